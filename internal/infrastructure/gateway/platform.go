package gateway

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/bwmarrin/snowflake"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

var tracer = otel.Tracer("platform")

const defaultTimeout = 10 * time.Second

// Intents are the gateway events the listener consumes.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions

// NewSession builds a bot session. A non-empty base sends every REST call
// to that origin instead of the platform default.
func NewSession(token, base string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create session")
	}
	s.UserAgent = "DiscordBot (https://github.com/totegamma/poapbot, 1.0)"
	s.Identify.Intents = Intents
	s.Client = &http.Client{Timeout: defaultTimeout}

	if base != "" {
		target, err := url.Parse(strings.TrimSuffix(base, "/"))
		if err != nil {
			return nil, errors.Wrap(err, "invalid api base")
		}
		api, _ := url.Parse(discordgo.EndpointAPI)
		s.Client.Transport = &rebase{target: target, prefix: api.Path, next: http.DefaultTransport}
	}
	return s, nil
}

type rebase struct {
	target *url.URL
	prefix string
	next   http.RoundTripper
}

func (t *rebase) RoundTrip(req *http.Request) (*http.Response, error) {
	out := req.Clone(req.Context())
	out.URL.Scheme = t.target.Scheme
	out.URL.Host = t.target.Host
	out.URL.Path = t.target.Path + "/" + strings.TrimPrefix(req.URL.Path, t.prefix)
	out.URL.RawPath = ""
	out.Host = t.target.Host
	return t.next.RoundTrip(out)
}

// PlatformGateway performs chat platform side effects through a bot session.
type PlatformGateway struct {
	session *discordgo.Session
	cache   *cache.Cache
	appID   string
}

func NewPlatformGateway(session *discordgo.Session, appID string) *PlatformGateway {
	return &PlatformGateway{
		session: session,
		cache:   cache.New(10*time.Minute, 15*time.Minute),
		appID:   appID,
	}
}

// ValidID reports whether id is a platform snowflake.
func ValidID(id string) bool {
	parsed, err := snowflake.ParseString(id)
	return err == nil && parsed > 0
}

func validIDs(ids ...string) error {
	for _, id := range ids {
		if !ValidID(id) {
			return domain.InvalidInputError{Message: fmt.Sprintf("invalid id %q", id)}
		}
	}
	return nil
}

// wrap maps a 404 answer to NotFoundError.
func wrap(err error, resource string) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return domain.NotFoundError{Resource: resource}
	}
	return err
}

func (g *PlatformGateway) HasRole(ctx context.Context, guildID, userID, roleID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.HasRole")
	defer span.End()

	if err := validIDs(guildID, userID, roleID); err != nil {
		return false, err
	}

	m, err := g.session.GuildMember(guildID, userID, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return false, wrap(err, "member")
	}
	for _, r := range m.Roles {
		if r == roleID {
			return true, nil
		}
	}
	return false, nil
}

func (g *PlatformGateway) AddRole(ctx context.Context, guildID, userID, roleID string) error {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.AddRole")
	defer span.End()

	if err := validIDs(guildID, userID, roleID); err != nil {
		return err
	}
	err := g.session.GuildMemberRoleAdd(guildID, userID, roleID, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return wrap(err, "role")
	}
	return nil
}

// HasChannelAccess reports whether a member override already allows every
// gated channel permission.
func (g *PlatformGateway) HasChannelAccess(ctx context.Context, channelID, userID string) (bool, error) {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.HasChannelAccess")
	defer span.End()

	if err := validIDs(channelID, userID); err != nil {
		return false, err
	}

	ch, err := g.session.Channel(channelID, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return false, wrap(err, "channel")
	}
	for _, o := range ch.PermissionOverwrites {
		if o.ID != userID || o.Type != discordgo.PermissionOverwriteTypeMember {
			continue
		}
		return o.Allow&domain.GatedChannelAllow == domain.GatedChannelAllow, nil
	}
	return false, nil
}

func (g *PlatformGateway) GrantChannel(ctx context.Context, channelID, userID string, allow int64) error {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.GrantChannel")
	defer span.End()

	if err := validIDs(channelID, userID); err != nil {
		return err
	}
	err := g.session.ChannelPermissionSet(channelID, userID, discordgo.PermissionOverwriteTypeMember, allow, 0, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return wrap(err, "channel")
	}
	return nil
}

func (g *PlatformGateway) SendDM(ctx context.Context, userID string, msg poapbot.Message) error {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.SendDM")
	defer span.End()

	if err := validIDs(userID); err != nil {
		return err
	}

	dm, err := g.session.UserChannelCreate(userID, discordgo.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		return wrap(err, "user")
	}
	if _, err := g.session.ChannelMessageSendComplex(dm.ID, msg.Send(), discordgo.WithContext(ctx)); err != nil {
		span.RecordError(err)
		return err
	}
	return nil
}

func (g *PlatformGateway) Roles(ctx context.Context, guildID string) ([]*discordgo.Role, error) {
	if err := validIDs(guildID); err != nil {
		return nil, err
	}

	cacheKey := "roles:" + guildID
	if x, found := g.cache.Get(cacheKey); found {
		return x.([]*discordgo.Role), nil
	}

	roles, err := g.session.GuildRoles(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "guild")
	}
	g.cache.Set(cacheKey, roles, cache.DefaultExpiration)
	return roles, nil
}

func (g *PlatformGateway) Channels(ctx context.Context, guildID string) ([]*discordgo.Channel, error) {
	if err := validIDs(guildID); err != nil {
		return nil, err
	}

	cacheKey := "channels:" + guildID
	if x, found := g.cache.Get(cacheKey); found {
		return x.([]*discordgo.Channel), nil
	}

	channels, err := g.session.GuildChannels(guildID, discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrap(err, "guild")
	}
	g.cache.Set(cacheKey, channels, cache.DefaultExpiration)
	return channels, nil
}

// FindRole resolves a role by mention or exact name.
func (g *PlatformGateway) FindRole(ctx context.Context, guildID, target string) (string, error) {
	if id, ok := poapbot.ParseMention(target, poapbot.RoleMentionPrefix); ok {
		return id, nil
	}
	roles, err := g.Roles(ctx, guildID)
	if err != nil {
		return "", err
	}
	for _, r := range roles {
		if r.Name == target || r.ID == target {
			return r.ID, nil
		}
	}
	return "", domain.NotFoundError{Resource: "role"}
}

// FindChannel resolves a channel by mention or exact name.
func (g *PlatformGateway) FindChannel(ctx context.Context, guildID, target string) (string, error) {
	if id, ok := poapbot.ParseMention(target, poapbot.ChannelMentionPrefix); ok {
		return id, nil
	}
	channels, err := g.Channels(ctx, guildID)
	if err != nil {
		return "", err
	}
	name := strings.TrimPrefix(target, "#")
	for _, c := range channels {
		if c.Name == name || c.ID == target {
			return c.ID, nil
		}
	}
	return "", domain.NotFoundError{Resource: "channel"}
}

// EditOriginal replaces the deferred response of an interaction.
func (g *PlatformGateway) EditOriginal(ctx context.Context, in *discordgo.Interaction, msg poapbot.Message) error {
	ctx, span := tracer.Start(ctx, "Platform.Gateway.EditOriginal")
	defer span.End()

	target := *in
	if target.AppID == "" {
		target.AppID = g.appID
	}
	if _, err := g.session.InteractionResponseEdit(&target, msg.Edit(), discordgo.WithContext(ctx)); err != nil {
		span.RecordError(err)
		return wrap(err, "interaction")
	}
	return nil
}

// RegisterCommands bulk-overwrites the global command definitions.
func (g *PlatformGateway) RegisterCommands(ctx context.Context, definitions []*discordgo.ApplicationCommand) error {
	if err := validIDs(g.appID); err != nil {
		return err
	}
	_, err := g.session.ApplicationCommandBulkOverwrite(g.appID, "", definitions, discordgo.WithContext(ctx))
	return err
}
