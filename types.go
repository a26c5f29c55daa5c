package poapbot

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

type TriggerType string

const (
	TriggerMemberJoin  TriggerType = "member_join"
	TriggerReactionAdd TriggerType = "reaction_add"
	TriggerMessageSent TriggerType = "message_sent"

	// not selectable by automation rules
	TriggerWalletLinked     TriggerType = "wallet_linked"
	TriggerBadgeDistributed TriggerType = "badge_distributed"
)

// RuleTriggers are the trigger types an automation rule may subscribe to.
var RuleTriggers = []TriggerType{
	TriggerMemberJoin,
	TriggerReactionAdd,
	TriggerMessageSent,
}

func (t TriggerType) IsRuleTrigger() bool {
	for _, rt := range RuleTriggers {
		if rt == t {
			return true
		}
	}
	return false
}

func (t TriggerType) DisplayName() string {
	switch t {
	case TriggerMemberJoin:
		return "👋 Member Join"
	case TriggerReactionAdd:
		return "⭐ Reaction Added"
	case TriggerMessageSent:
		return "💬 Message Sent"
	default:
		return string(t)
	}
}

// Trigger is the envelope carried on the event bus and accepted from relays.
type Trigger struct {
	ID          string            `json:"id"`
	Type        TriggerType       `json:"type"`
	CommunityID string            `json:"communityId"`
	UserID      string            `json:"userId"`
	IsBot       bool              `json:"isBot,omitempty"`
	Context     map[string]string `json:"context,omitempty"`
	OccurredAt  time.Time         `json:"occurredAt"`
}

// Message is an outbound chat message or interaction response body.
type Message struct {
	Content    string
	Embeds     []*discordgo.MessageEmbed
	Components []discordgo.MessageComponent
	Flags      discordgo.MessageFlags
	Mentions   *discordgo.MessageAllowedMentions
}

// Send renders the message for a channel post.
func (m Message) Send() *discordgo.MessageSend {
	return &discordgo.MessageSend{
		Content:         m.Content,
		Embeds:          m.Embeds,
		Components:      m.Components,
		AllowedMentions: m.Mentions,
	}
}

// Edit renders the message as a replacement of an earlier response.
// Flags cannot change on edit and are dropped.
func (m Message) Edit() *discordgo.WebhookEdit {
	content := m.Content
	edit := &discordgo.WebhookEdit{Content: &content, AllowedMentions: m.Mentions}
	if len(m.Embeds) > 0 {
		embeds := m.Embeds
		edit.Embeds = &embeds
	}
	if len(m.Components) > 0 {
		components := m.Components
		edit.Components = &components
	}
	return edit
}

// ResponseData renders the message as an interaction response body.
func (m Message) ResponseData() *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Content:         m.Content,
		Embeds:          m.Embeds,
		Components:      m.Components,
		Flags:           m.Flags,
		AllowedMentions: m.Mentions,
	}
}

// LinkButtons lays the buttons out on one action row as link buttons.
func LinkButtons(buttons ...discordgo.Button) []discordgo.MessageComponent {
	row := discordgo.ActionsRow{Components: make([]discordgo.MessageComponent, 0, len(buttons))}
	for _, b := range buttons {
		b.Style = discordgo.LinkButton
		row.Components = append(row.Components, b)
	}
	return []discordgo.MessageComponent{row}
}
