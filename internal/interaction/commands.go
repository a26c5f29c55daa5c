package interaction

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/usecase"
)

type Wallets interface {
	Link(ctx context.Context, communityID, userID, input string) (usecase.LinkResult, error)
	Get(ctx context.Context, userID string) (domain.WalletLink, error)
}

type Identities interface {
	Resolve(ctx context.Context, input string) (usecase.Identity, error)
	DisplayName(ctx context.Context, address string) string
}

type Badges interface {
	Details(ctx context.Context, eventID int64) (usecase.EventDetails, error)
	Collection(ctx context.Context, address string) ([]domain.Badge, error)
}

type Distributor interface {
	Distribute(ctx context.Context, input usecase.DistributeInput) (usecase.Distribution, error)
}

type Gates interface {
	Create(ctx context.Context, input usecase.CreateGateInput) (domain.AccessGate, error)
	List(ctx context.Context, communityID string) ([]domain.AccessGate, error)
	Remove(ctx context.Context, communityID string, id int64) error
}

type Rules interface {
	Create(ctx context.Context, input usecase.CreateRuleInput) (usecase.CreatedRule, error)
	List(ctx context.Context, communityID string) ([]domain.AutomationRule, error)
	Toggle(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error)
}

// TargetFinder resolves a role or channel reference typed by an administrator.
type TargetFinder interface {
	FindRole(ctx context.Context, guildID, target string) (string, error)
	FindChannel(ctx context.Context, guildID, target string) (string, error)
}

// Commands holds the collaborators of the built-in command handlers.
type Commands struct {
	Wallets     Wallets
	Identities  Identities
	Badges      Badges
	Distributor Distributor
	Gates       Gates
	Rules       Rules
	Targets     TargetFinder
	Messenger   usecase.Messenger
}

const (
	ActionCreateRole    = "create-role"
	ActionCreateChannel = "create-channel"
	ActionList          = "list"
	ActionRemove        = "remove"
	ActionCreate        = "create"
	ActionToggle        = "toggle"
)

// All returns the command table in registration order.
func (c *Commands) All() []Command {
	return []Command{
		{
			Name:        "link-wallet",
			Description: "Link your Ethereum wallet to receive POAPs",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "address", Description: "Your Ethereum wallet address (0x...) or ENS name (vitalik.eth)", Required: true},
			},
			Handler: c.linkWallet,
		},
		{
			Name:        "my-badges",
			Description: "View your POAP collection",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "address", Description: "Address or ENS name to look up (defaults to your linked wallet)"},
			},
			Handler: c.myBadges,
		},
		{
			Name:        "badge-info",
			Description: "Get information about a POAP event",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "event-id", Description: "POAP event ID", Required: true},
			},
			Handler: c.badgeInfo,
		},
		{
			Name:        "distribute-badge",
			Description: "Distribute a POAP to a member (Admin only)",
			AdminOnly:   true,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "user", Description: "Member to receive the POAP", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "event-id", Description: "POAP event ID", Required: true},
				{Type: discordgo.ApplicationCommandOptionString, Name: "secret-code", Description: "Event secret code", Required: true},
			},
			Handler: c.distributeBadge,
		},
		{
			Name:        "access-gate",
			Description: "Manage POAP-based access control (Admin only)",
			AdminOnly:   true,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "Action to perform", Required: true, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "create-role-gate", Value: ActionCreateRole},
					{Name: "create-channel-gate", Value: ActionCreateChannel},
					{Name: "list-gates", Value: ActionList},
					{Name: "remove-gate", Value: ActionRemove},
				}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "target", Description: "Role or channel to gate"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "badge-ids", Description: "Required POAP IDs (comma-separated)"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "gate-id", Description: "Gate ID to remove"},
			},
			Handler: c.accessGate,
		},
		{
			Name:        "auto-distribute",
			Description: "Set up automatic POAP distribution (Admin only)",
			AdminOnly:   true,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionString, Name: "action", Description: "Action to perform", Required: true, Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "create-rule", Value: ActionCreate},
					{Name: "list-rules", Value: ActionList},
					{Name: "toggle-rule", Value: ActionToggle},
				}},
				{Type: discordgo.ApplicationCommandOptionString, Name: "trigger", Description: "Distribution trigger", Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "member-join", Value: string(poapbot.TriggerMemberJoin)},
					{Name: "reaction-add", Value: string(poapbot.TriggerReactionAdd)},
					{Name: "message-sent", Value: string(poapbot.TriggerMessageSent)},
				}},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "event-id", Description: "POAP event ID"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "secret-code", Description: "Event secret code"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "rule-id", Description: "Rule ID to toggle"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "filter", Description: "Trigger filter (key=value, comma-separated)"},
			},
			Handler: c.autoDistribute,
		},
	}
}

func (c *Commands) linkWallet(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	input, ok := inv.String("address")
	if !ok {
		return domain.InvalidInputError{Message: "Address or ENS name is required"}
	}
	res, err := c.Wallets.Link(ctx, inv.CommunityID(), inv.UserID(), input)
	if err != nil {
		return err
	}
	return sink.Respond(ctx, linkedMessage(res))
}

func (c *Commands) myBadges(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	var address, displayName string
	if input, ok := inv.String("address"); ok {
		identity, err := c.Identities.Resolve(ctx, input)
		if err != nil {
			return err
		}
		address, displayName = identity.Address, identity.DisplayName
	} else {
		link, err := c.Wallets.Get(ctx, inv.UserID())
		if errors.Is(err, domain.ErrNotFound) {
			return sink.Respond(ctx, ephemeral("❌ You haven't linked a wallet yet. Use `/link-wallet` first or provide an address."))
		}
		if err != nil {
			return err
		}
		address = link.Address
		displayName = c.Identities.DisplayName(ctx, address)
	}

	badges, err := c.Badges.Collection(ctx, address)
	if err != nil {
		return err
	}
	return sink.Respond(ctx, collectionMessage(displayName, address, badges))
}

func (c *Commands) badgeInfo(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	eventID, ok := inv.Int("event-id")
	if !ok || eventID <= 0 {
		return domain.InvalidInputError{Message: "Please provide a valid event ID."}
	}
	details, err := c.Badges.Details(ctx, eventID)
	if err != nil {
		var apiErr *domain.IssuanceAPIError
		if errors.As(err, &apiErr) && apiErr.Status == 404 {
			return sink.Respond(ctx, ephemeral(fmt.Sprintf("❌ Event with ID %d not found. Please check the event ID.", eventID)))
		}
		return err
	}
	return sink.Respond(ctx, eventMessage(details))
}

func (c *Commands) distributeBadge(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	recipient, ok := inv.UserOption("user")
	eventID, okEvent := inv.Int("event-id")
	secret, okSecret := inv.String("secret-code")
	if !ok || !okEvent || !okSecret {
		return domain.InvalidInputError{Message: "Please provide a user, event ID and secret code."}
	}
	if recipient.Bot {
		return domain.InvalidInputError{Message: "Bots cannot receive POAPs."}
	}

	if err := sink.DeferredAcknowledge(ctx, false); err != nil {
		return err
	}

	d, err := c.Distributor.Distribute(ctx, usecase.DistributeInput{
		CommunityID: inv.CommunityID(),
		AdminID:     inv.UserID(),
		RecipientID: recipient.ID,
		EventID:     eventID,
		SecretCode:  secret,
	})
	if err != nil {
		return err
	}

	if err := sink.Respond(ctx, distributedMessage(recipient, d)); err != nil {
		return err
	}

	if c.Messenger != nil {
		if err := c.Messenger.SendDM(ctx, recipient.ID, receivedMessage(inv.Invoker(), d)); err != nil {
			slog.InfoContext(ctx, "could not DM recipient", slog.String("user", recipient.ID), slog.String("error", err.Error()), slog.String("module", "interaction"))
		}
	}
	return nil
}

func parseEventIDs(s string) ([]int64, error) {
	var ids []int64
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil || id <= 0 {
			return nil, domain.InvalidInputError{Message: "Please provide valid POAP IDs (comma-separated numbers)."}
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return nil, domain.InvalidInputError{Message: "Please provide valid POAP IDs (comma-separated numbers)."}
	}
	return ids, nil
}

func (c *Commands) accessGate(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	action, _ := inv.String("action")
	switch action {
	case ActionCreateRole, ActionCreateChannel:
		return c.createGate(ctx, inv, sink, action)
	case ActionList:
		gates, err := c.Gates.List(ctx, inv.CommunityID())
		if err != nil {
			return err
		}
		return sink.Respond(ctx, gateListMessage(gates))
	case ActionRemove:
		id, ok := inv.Int("gate-id")
		if !ok {
			return domain.InvalidInputError{Message: "Please provide the gate ID to remove."}
		}
		err := c.Gates.Remove(ctx, inv.CommunityID(), id)
		if errors.Is(err, domain.ErrNotFound) {
			return sink.Respond(ctx, ephemeral(fmt.Sprintf("❌ Failed to remove gate %d. Please check the gate ID.", id)))
		}
		if err != nil {
			return err
		}
		return sink.Respond(ctx, poapbot.Message{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "🗑️ Gate Removed",
				Description: fmt.Sprintf("POAP gate %d has been deleted", id),
				Color:       colorSuccess,
			}},
		})
	}
	return domain.InvalidInputError{Message: "Invalid action specified."}
}

func (c *Commands) createGate(ctx context.Context, inv *Invocation, sink ResponseSink, action string) error {
	gateType, kind := domain.GateRole, "role"
	if action == ActionCreateChannel {
		gateType, kind = domain.GateChannel, "channel"
	}

	target, okTarget := inv.String("target")
	raw, okIDs := inv.String("badge-ids")
	if !okTarget || !okIDs {
		return domain.InvalidInputError{Message: fmt.Sprintf("Please provide both target %s and POAP IDs for %s gate creation.", kind, kind)}
	}
	ids, err := parseEventIDs(raw)
	if err != nil {
		return err
	}

	var targetID string
	if gateType == domain.GateChannel {
		targetID, err = c.Targets.FindChannel(ctx, inv.CommunityID(), target)
	} else {
		targetID, err = c.Targets.FindRole(ctx, inv.CommunityID(), target)
	}
	if errors.Is(err, domain.ErrNotFound) {
		return domain.InvalidInputError{Message: fmt.Sprintf("%s %q not found. Please mention the %s or use the exact %s name.", strings.ToUpper(kind[:1])+kind[1:], target, kind, kind)}
	}
	if err != nil {
		return err
	}

	gate, err := c.Gates.Create(ctx, usecase.CreateGateInput{
		CommunityID: inv.CommunityID(),
		GateType:    gateType,
		TargetID:    targetID,
		EventIDs:    ids,
		CreatedBy:   inv.UserID(),
	})
	if err != nil {
		return err
	}
	return sink.Respond(ctx, gateCreatedMessage(gate))
}

func (c *Commands) autoDistribute(ctx context.Context, inv *Invocation, sink ResponseSink) error {
	action, _ := inv.String("action")
	switch action {
	case ActionCreate:
		trigger, okTrigger := inv.String("trigger")
		eventID, okEvent := inv.Int("event-id")
		secret, okSecret := inv.String("secret-code")
		if !okTrigger || !okEvent || !okSecret {
			return domain.InvalidInputError{Message: "Please provide trigger type, event ID, and secret code to create a rule."}
		}
		filter, _ := inv.String("filter")
		created, err := c.Rules.Create(ctx, usecase.CreateRuleInput{
			CommunityID: inv.CommunityID(),
			TriggerType: poapbot.TriggerType(trigger),
			EventID:     eventID,
			SecretCode:  secret,
			Filter:      filter,
			CreatedBy:   inv.UserID(),
		})
		if err != nil {
			return err
		}
		return sink.Respond(ctx, ruleCreatedMessage(created))
	case ActionList:
		rules, err := c.Rules.List(ctx, inv.CommunityID())
		if err != nil {
			return err
		}
		return sink.Respond(ctx, ruleListMessage(rules))
	case ActionToggle:
		id, ok := inv.Int("rule-id")
		if !ok {
			return domain.InvalidInputError{Message: "Please provide the rule ID to toggle."}
		}
		rule, err := c.Rules.Toggle(ctx, inv.CommunityID(), id)
		if errors.Is(err, domain.ErrNotFound) {
			return sink.Respond(ctx, ephemeral(fmt.Sprintf("❌ Rule %d not found in this server.", id)))
		}
		if err != nil {
			return err
		}
		return sink.Respond(ctx, ruleToggledMessage(rule))
	}
	return domain.InvalidInputError{Message: "Invalid action specified."}
}
