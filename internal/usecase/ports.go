package usecase

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

var tracer = otel.Tracer("usecase")

// WalletRepository stores one wallet link per user.
type WalletRepository interface {
	Upsert(ctx context.Context, link domain.WalletLink) error
	Get(ctx context.Context, userID string) (domain.WalletLink, error)
}

// DistributionRepository appends distribution records and moves them out of pending.
type DistributionRepository interface {
	CreatePending(ctx context.Context, rec domain.DistributionRecord) (domain.DistributionRecord, error)
	MarkClaimed(ctx context.Context, id int64, at time.Time) error
	MarkFailed(ctx context.Context, id int64) error
}

// RuleRepository defines persistence for automation rules.
type RuleRepository interface {
	Create(ctx context.Context, rule domain.AutomationRule) (domain.AutomationRule, error)
	Get(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error)
	ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.AutomationRule, error)
	ListActive(ctx context.Context, communityID string, trigger poapbot.TriggerType) ([]domain.AutomationRule, error)
	Toggle(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error)
}

// GateRepository defines persistence for access gates.
type GateRepository interface {
	Create(ctx context.Context, gate domain.AccessGate) (domain.AccessGate, error)
	ListByCommunity(ctx context.Context, communityID string, limit int) ([]domain.AccessGate, error)
	Delete(ctx context.Context, communityID string, id int64) error
}

type EventCacheRepository interface {
	Get(ctx context.Context, eventID int64) (domain.CachedEvent, error)
	Put(ctx context.Context, event domain.Event, at time.Time) error
}

// IssuanceClient is the badge issuance API.
type IssuanceClient interface {
	GetEvent(ctx context.Context, eventID int64) (domain.Event, error)
	GetUserBadges(ctx context.Context, address string) ([]domain.Badge, error)
	GetClaimLinks(ctx context.Context, eventID int64, secret string) ([]domain.ClaimLink, error)
	Claim(ctx context.Context, claimToken, address, secret string) (domain.ClaimResult, error)
	GetEventStats(ctx context.Context, eventID int64) (int64, error)
}

// NameService resolves human readable names to addresses and back.
type NameService interface {
	Resolve(ctx context.Context, name string) (string, error)
	LookupName(ctx context.Context, address string) (string, error)
}

// Platform grants roles and channel permissions.
type Platform interface {
	HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error)
	AddRole(ctx context.Context, guildID, userID, roleID string) error
	HasChannelAccess(ctx context.Context, channelID, userID string) (bool, error)
	GrantChannel(ctx context.Context, channelID, userID string, allow int64) error
}

type Messenger interface {
	SendDM(ctx context.Context, userID string, msg poapbot.Message) error
}

type TriggerPublisher interface {
	Publish(ctx context.Context, trigger poapbot.Trigger) error
}
