package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/totegamma/poapbot"
)

type WalletLink struct {
	UserID   string    `json:"userId"`
	Address  string    `json:"address"`
	Verified bool      `json:"verified"`
	LinkedAt time.Time `json:"linkedAt"`
}

type DistributionRecord struct {
	ID            int64              `json:"id"`
	UserID        string             `json:"userId"`
	CommunityID   string             `json:"communityId"`
	EventID       int64              `json:"eventId"`
	ClaimToken    string             `json:"claimToken"`
	Status        DistributionStatus `json:"status"`
	DistributedBy string             `json:"distributedBy"`
	RuleID        *int64             `json:"ruleId,omitempty"`
	ClaimKey      *string            `json:"-"`
	CreatedAt     time.Time          `json:"createdAt"`
	ClaimedAt     *time.Time         `json:"claimedAt,omitempty"`
}

// RuleClaimKey identifies the single allowed claim of a rule for a user.
func RuleClaimKey(ruleID int64, userID string) string {
	return fmt.Sprintf("rule:%d:user:%s", ruleID, userID)
}

type AutomationRule struct {
	ID          int64               `json:"id"`
	CommunityID string              `json:"communityId"`
	EventID     int64               `json:"eventId"`
	TriggerType poapbot.TriggerType `json:"triggerType"`
	TriggerData string              `json:"triggerData,omitempty"`
	SecretCode  string              `json:"-"`
	Active      bool                `json:"active"`
	CreatedBy   string              `json:"createdBy"`
	CreatedAt   time.Time           `json:"createdAt"`
}

// Matches reports whether every key=value pair of TriggerData is present in ctx.
// An empty filter matches everything.
func (r AutomationRule) Matches(ctx map[string]string) bool {
	filter, err := ParseTriggerFilter(r.TriggerData)
	if err != nil {
		return false
	}
	for k, v := range filter {
		if ctx[k] != v {
			return false
		}
	}
	return true
}

// ParseTriggerFilter parses "key=value[,key=value]".
func ParseTriggerFilter(s string) (map[string]string, error) {
	out := map[string]string{}
	s = strings.TrimSpace(s)
	if s == "" {
		return out, nil
	}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(pair), "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, InvalidInputError{Message: fmt.Sprintf("invalid filter %q: expected key=value", pair)}
		}
		out[k] = strings.TrimSpace(v)
	}
	return out, nil
}

type AccessGate struct {
	ID               int64     `json:"id"`
	CommunityID      string    `json:"communityId"`
	GateType         GateType  `json:"gateType"`
	RoleID           string    `json:"roleId,omitempty"`
	ChannelID        string    `json:"channelId,omitempty"`
	RequiredEventIDs []int64   `json:"requiredEventIds"`
	CreatedBy        string    `json:"createdBy"`
	CreatedAt        time.Time `json:"createdAt"`
}

// TargetID is the role or channel the gate grants.
func (g AccessGate) TargetID() string {
	if g.GateType == GateChannel {
		return g.ChannelID
	}
	return g.RoleID
}

// Validate checks that the target matches the gate type.
func (g AccessGate) Validate() error {
	switch g.GateType {
	case GateRole:
		if g.RoleID == "" || g.ChannelID != "" {
			return InvalidInputError{Message: "role gate requires a role and no channel"}
		}
	case GateChannel:
		if g.ChannelID == "" || g.RoleID != "" {
			return InvalidInputError{Message: "channel gate requires a channel and no role"}
		}
	default:
		return InvalidInputError{Message: fmt.Sprintf("unknown gate type %q", g.GateType)}
	}
	if len(g.RequiredEventIDs) == 0 {
		return InvalidInputError{Message: "at least one badge id is required"}
	}
	return nil
}

// SatisfiedBy reports whether owned is a superset of the required event ids.
func (g AccessGate) SatisfiedBy(owned map[int64]bool) bool {
	for _, id := range g.RequiredEventIDs {
		if !owned[id] {
			return false
		}
	}
	return true
}

// DistributionOutcome is the result of evaluating one rule for one trigger.
type DistributionOutcome struct {
	RuleID   int64
	EventID  int64
	UserID   string
	Kind     OutcomeKind
	RecordID int64
	TxHash   string
	Err      error
}

// GrantAction is a role or channel grant attempted by the reconciler.
type GrantAction struct {
	GateID   int64
	GateType GateType
	TargetID string
	Err      error
}
