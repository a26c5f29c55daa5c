package interaction

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/totegamma/poapbot/internal/domain"
)

const FlagEphemeral = discordgo.MessageFlagsEphemeral

// DisplayName prefers the global name over the account name.
func DisplayName(u *discordgo.User) string {
	if u == nil {
		return ""
	}
	if u.GlobalName != "" {
		return u.GlobalName
	}
	return u.Username
}

// Invocation is a parsed command interaction handed to handlers.
type Invocation struct {
	*discordgo.Interaction
	data discordgo.ApplicationCommandInteractionData
}

func newInvocation(in *discordgo.Interaction) (*Invocation, bool) {
	data, ok := in.Data.(discordgo.ApplicationCommandInteractionData)
	if !ok {
		return nil, false
	}
	return &Invocation{Interaction: in, data: data}, true
}

func (inv *Invocation) CommandName() string {
	return inv.data.Name
}

func (inv *Invocation) Invoker() *discordgo.User {
	if inv.Member != nil && inv.Member.User != nil {
		return inv.Member.User
	}
	if inv.User != nil {
		return inv.User
	}
	return &discordgo.User{}
}

func (inv *Invocation) UserID() string {
	return inv.Invoker().ID
}

func (inv *Invocation) CommunityID() string {
	return inv.GuildID
}

// IsAdmin reports whether the member may manage the community.
func (inv *Invocation) IsAdmin() bool {
	if inv.Member == nil {
		return false
	}
	perms := inv.Member.Permissions
	return perms&domain.PermissionAdministrator != 0 || perms&domain.PermissionManageGuild != 0
}

func (inv *Invocation) option(name string) (*discordgo.ApplicationCommandInteractionDataOption, bool) {
	for _, o := range inv.data.Options {
		if o != nil && o.Name == name {
			return o, true
		}
	}
	return nil, false
}

func (inv *Invocation) String(name string) (string, bool) {
	o, ok := inv.option(name)
	if !ok {
		return "", false
	}
	s, ok := o.Value.(string)
	if !ok {
		return "", false
	}
	s = strings.TrimSpace(s)
	return s, s != ""
}

func (inv *Invocation) Int(name string) (int64, bool) {
	o, ok := inv.option(name)
	if !ok {
		return 0, false
	}
	switch v := o.Value.(type) {
	case float64:
		if v != math.Trunc(v) || math.Abs(v) > 1<<53 {
			return 0, false
		}
		return int64(v), true
	case json.Number:
		n, err := v.Int64()
		return n, err == nil
	case string:
		// some clients send integers as strings
		n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		return n, err == nil
	}
	return 0, false
}

// UserOption returns the user referenced by a user option.
func (inv *Invocation) UserOption(name string) (*discordgo.User, bool) {
	id, ok := inv.String(name)
	if !ok {
		return nil, false
	}
	if inv.data.Resolved != nil {
		if u, found := inv.data.Resolved.Users[id]; found && u != nil {
			return u, true
		}
	}
	return &discordgo.User{ID: id}, true
}
