package interaction

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/usecase"
)

const (
	colorBrand   = 0x6C5CE7
	colorSuccess = 0x00FF00
	colorWarning = 0xFFA500
)

const (
	collectorURL = "https://collectors.poap.xyz/scan/"
	txURL        = "https://etherscan.io/tx/"
	poapLogoURL  = "https://assets.poap.xyz/logo-512.png"
)

func orNA(s string) string {
	if s == "" {
		return "N/A"
	}
	return s
}

func shortDate(s string) string {
	if len(s) >= 10 {
		return s[:10]
	}
	return s
}

func linkedMessage(res usecase.LinkResult) poapbot.Message {
	input := "Address: " + res.Identity.DisplayName
	if res.Identity.WasNameLookup {
		input = fmt.Sprintf("ENS: %s → %s", res.Identity.DisplayName, res.Identity.Address)
	}
	return poapbot.Message{
		Flags: FlagEphemeral,
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🔗 Wallet Linked Successfully!",
			Description: fmt.Sprintf("Your account has been linked to:\n`%s`", res.Identity.Address),
			Color:       colorSuccess,
			Fields: []*discordgo.MessageEmbedField{
				{Name: "📝 Input", Value: input},
				{Name: "📝 Note", Value: "This wallet will be used for POAP distributions in this server."},
				{Name: "🔍 View POAPs", Value: "Use `/my-badges` to see your POAP collection!"},
				{Name: "🚪 Access Check", Value: "Checking for POAP-gated roles and channels..."},
			},
		}},
	}
}

func collectionMessage(displayName, address string, badges []domain.Badge) poapbot.Message {
	button := poapbot.LinkButtons(discordgo.Button{Label: "View Full Collection", URL: collectorURL + address})

	if len(badges) == 0 {
		return poapbot.Message{
			Embeds: []*discordgo.MessageEmbed{{
				Title:       "🎫 POAP Collection",
				Description: fmt.Sprintf("No POAPs found for **%s**\n📍 `%s`", displayName, address),
				Color:       colorWarning,
			}},
			Components: button,
		}
	}

	shown := badges
	if len(shown) > usecase.ListLimit {
		shown = shown[:usecase.ListLimit]
	}
	var list strings.Builder
	for i, b := range shown {
		fmt.Fprintf(&list, "**%d.** %s *(%s)*\n", i+1, b.Event.Name, shortDate(b.Created))
	}

	embed := &discordgo.MessageEmbed{
		Title:       "🎫 POAP Collection",
		Description: fmt.Sprintf("**%s** owns **%d** POAPs", displayName, len(badges)),
		Color:       colorBrand,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "📍 Address", Value: "`" + address + "`"},
			{Name: "🕒 Recent POAPs", Value: list.String()},
		},
		Footer: &discordgo.MessageEmbedFooter{
			Text:    fmt.Sprintf("Showing latest %d of %d POAPs", len(shown), len(badges)),
			IconURL: poapLogoURL,
		},
	}
	if img := shown[0].Event.ImageURL; img != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: img}
	}
	return poapbot.Message{Embeds: []*discordgo.MessageEmbed{embed}, Components: button}
}

func eventMessage(details usecase.EventDetails) poapbot.Message {
	ev := details.Event
	description := ev.Description
	if description == "" {
		description = "No description available"
	}
	embed := &discordgo.MessageEmbed{
		Title:       "🎫 " + ev.Name,
		Description: description,
		Color:       colorBrand,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🆔 Event ID", Value: strconv.FormatInt(ev.ID, 10), Inline: true},
			{Name: "📅 Start Date", Value: orNA(ev.StartDate), Inline: true},
			{Name: "📅 End Date", Value: orNA(ev.EndDate), Inline: true},
			{Name: "🌍 Country", Value: orNA(ev.Country), Inline: true},
			{Name: "🏙️ City", Value: orNA(ev.City), Inline: true},
		},
	}
	if details.Minted != nil {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "📊 Total Minted", Value: strconv.FormatInt(*details.Minted, 10), Inline: true})
	}
	if ev.Supply > 0 {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🎯 Supply", Value: strconv.FormatInt(ev.Supply, 10), Inline: true})
	}
	if ev.EventURL != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "🔗 Event URL", Value: fmt.Sprintf("[View Event](%s)", ev.EventURL)})
	}
	if ev.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: ev.ImageURL}
	}
	return poapbot.Message{Embeds: []*discordgo.MessageEmbed{embed}}
}

func transactionField(txHash string) string {
	if txHash == "" {
		return "Processing..."
	}
	return fmt.Sprintf("[View on Etherscan](%s%s)", txURL, txHash)
}

func distributedMessage(recipient *discordgo.User, d usecase.Distribution) poapbot.Message {
	embed := &discordgo.MessageEmbed{
		Title:       "🎉 POAP Distributed Successfully!",
		Description: fmt.Sprintf("**%s** has been sent to %s", d.Event.Name, poapbot.UserMention(recipient.ID)),
		Color:       colorSuccess,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "👤 Recipient", Value: fmt.Sprintf("%s (%s)", DisplayName(recipient), d.Address), Inline: true},
			{Name: "🎫 Event ID", Value: strconv.FormatInt(d.Event.ID, 10), Inline: true},
			{Name: "📅 Event Date", Value: orNA(d.Event.StartDate), Inline: true},
			{Name: "🔗 Transaction", Value: transactionField(d.TxHash)},
		},
	}
	if d.Event.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: d.Event.ImageURL}
	}
	return poapbot.Message{Embeds: []*discordgo.MessageEmbed{embed}}
}

func receivedMessage(distributor *discordgo.User, d usecase.Distribution) poapbot.Message {
	embed := &discordgo.MessageEmbed{
		Title:       "🎁 You received a POAP!",
		Description: "You've been awarded a POAP from this server",
		Color:       colorBrand,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "🎫 Event", Value: d.Event.Name},
			{Name: "👤 Distributed by", Value: DisplayName(distributor)},
			{Name: "💳 Sent to", Value: d.Address},
		},
	}
	if d.Event.ImageURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: d.Event.ImageURL}
	}
	return poapbot.Message{Embeds: []*discordgo.MessageEmbed{embed}}
}

func eventIDList(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}

func gateCreatedMessage(gate domain.AccessGate) poapbot.Message {
	title, target, label := "🚪 Role Gate Created", poapbot.RoleMention(gate.RoleID), "🎯 Target Role"
	if gate.GateType == domain.GateChannel {
		title, target, label = "🚪 Channel Gate Created", poapbot.ChannelMention(gate.ChannelID), "🎯 Target Channel"
	}
	return poapbot.Message{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: fmt.Sprintf("Users must own POAPs %s to receive %s", eventIDList(gate.RequiredEventIDs), target),
			Color:       colorSuccess,
			Fields: []*discordgo.MessageEmbedField{
				{Name: label, Value: target, Inline: true},
				{Name: "🆔 Gate ID", Value: strconv.FormatInt(gate.ID, 10), Inline: true},
			},
		}},
	}
}

func gateListMessage(gates []domain.AccessGate) poapbot.Message {
	if len(gates) == 0 {
		return ephemeral("📭 No POAP gates configured for this server.")
	}
	var list strings.Builder
	for _, g := range gates {
		target := poapbot.RoleMention(g.RoleID)
		if g.GateType == domain.GateChannel {
			target = poapbot.ChannelMention(g.ChannelID)
		}
		fmt.Fprintf(&list, "**#%d** %s ← POAPs %s\n", g.ID, target, eventIDList(g.RequiredEventIDs))
	}
	return poapbot.Message{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "🚪 POAP Gates",
			Description: fmt.Sprintf("%d gate(s) shown for this server", len(gates)),
			Color:       colorBrand,
			Fields:      []*discordgo.MessageEmbedField{{Name: "📋 Active Gates", Value: list.String()}},
		}},
	}
}

func ruleCreatedMessage(created usecase.CreatedRule) poapbot.Message {
	rule := created.Rule
	fields := []*discordgo.MessageEmbedField{
		{Name: "🎯 Trigger", Value: rule.TriggerType.DisplayName(), Inline: true},
		{Name: "🎫 Event", Value: fmt.Sprintf("%s (%d)", created.Event.Name, rule.EventID), Inline: true},
		{Name: "🆔 Rule ID", Value: strconv.FormatInt(rule.ID, 10), Inline: true},
	}
	if rule.TriggerData != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "🔍 Filter", Value: "`" + rule.TriggerData + "`"})
	}
	return poapbot.Message{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "⚡ Auto-Distribution Rule Created",
			Description: "POAPs will be automatically distributed when the trigger occurs",
			Color:       colorSuccess,
			Fields:      fields,
		}},
	}
}

func ruleStatus(active bool) string {
	if active {
		return "🟢 Active"
	}
	return "🔴 Inactive"
}

func ruleListMessage(rules []domain.AutomationRule) poapbot.Message {
	if len(rules) == 0 {
		return ephemeral("📭 No auto-distribution rules configured for this server.")
	}
	var list strings.Builder
	for _, r := range rules {
		fmt.Fprintf(&list, "**#%d** %s → event %d %s\n", r.ID, r.TriggerType.DisplayName(), r.EventID, ruleStatus(r.Active))
	}
	return poapbot.Message{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "⚡ Auto-Distribution Rules",
			Description: fmt.Sprintf("%d rule(s) shown for this server", len(rules)),
			Color:       colorBrand,
			Fields:      []*discordgo.MessageEmbedField{{Name: "📋 Rules", Value: list.String()}},
		}},
	}
}

func ruleToggledMessage(rule domain.AutomationRule) poapbot.Message {
	return poapbot.Message{
		Content: fmt.Sprintf("✅ Rule %d is now %s.", rule.ID, ruleStatus(rule.Active)),
	}
}
