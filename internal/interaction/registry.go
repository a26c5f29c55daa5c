package interaction

import (
	"context"
	"regexp"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/totegamma/poapbot/internal/domain"
)

// Handler answers one command through the sink.
type Handler func(ctx context.Context, inv *Invocation, sink ResponseSink) error

type Command struct {
	Name        string
	Description string
	AdminOnly   bool
	Options     []*discordgo.ApplicationCommandOption
	Handler     Handler
}

var commandNamePattern = regexp.MustCompile(`^[-_a-z0-9]{1,32}$`)

// Registry is an immutable name to command table.
type Registry struct {
	commands map[string]Command
	order    []string
}

func NewRegistry(commands ...Command) (*Registry, error) {
	r := &Registry{commands: make(map[string]Command, len(commands))}
	for _, cmd := range commands {
		if !commandNamePattern.MatchString(cmd.Name) {
			return nil, errors.Errorf("invalid command name %q", cmd.Name)
		}
		if cmd.Handler == nil {
			return nil, errors.Errorf("command %q has no handler", cmd.Name)
		}
		if _, dup := r.commands[cmd.Name]; dup {
			return nil, errors.Errorf("duplicate command %q", cmd.Name)
		}
		required := true
		for _, o := range cmd.Options {
			if !commandNamePattern.MatchString(o.Name) {
				return nil, errors.Errorf("command %q: invalid option name %q", cmd.Name, o.Name)
			}
			// required options must come first
			if o.Required && !required {
				return nil, errors.Errorf("command %q: required option %q after optional", cmd.Name, o.Name)
			}
			required = o.Required
		}
		r.commands[cmd.Name] = cmd
		r.order = append(r.order, cmd.Name)
	}
	return r, nil
}

func (r *Registry) Lookup(name string) (Command, bool) {
	cmd, ok := r.commands[name]
	return cmd, ok
}

func (r *Registry) Names() []string {
	return append([]string(nil), r.order...)
}

// Definitions renders the registration payload. Admin commands are hidden
// from members without the manage permission and none are usable in DMs.
func (r *Registry) Definitions() []*discordgo.ApplicationCommand {
	dm := false
	defs := make([]*discordgo.ApplicationCommand, 0, len(r.order))
	for _, name := range r.order {
		cmd := r.commands[name]
		def := &discordgo.ApplicationCommand{
			Name:         cmd.Name,
			Description:  cmd.Description,
			Type:         discordgo.ChatApplicationCommand,
			Options:      cmd.Options,
			DMPermission: &dm,
		}
		if cmd.AdminOnly {
			perms := domain.PermissionManageGuild
			def.DefaultMemberPermissions = &perms
		}
		defs = append(defs, def)
	}
	return defs
}
