package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
)

const publishTimeout = 5 * time.Second

type Publisher interface {
	Publish(ctx context.Context, trigger poapbot.Trigger) error
}

// Listener turns gateway events into bus triggers.
type Listener struct {
	session   *discordgo.Session
	publisher Publisher
}

func NewListener(session *discordgo.Session, publisher Publisher) *Listener {
	return &Listener{
		session:   session,
		publisher: publisher,
	}
}

// Run connects to the gateway and blocks until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	removers := []func(){
		l.session.AddHandler(l.onMemberAdd),
		l.session.AddHandler(l.onReactionAdd),
		l.session.AddHandler(l.onMessageCreate),
	}
	defer func() {
		for _, remove := range removers {
			remove()
		}
	}()

	if err := l.session.Open(); err != nil {
		return errors.Wrap(err, "failed to open gateway")
	}
	slog.Info("gateway listener started", slog.String("module", "gateway"))

	<-ctx.Done()
	if err := l.session.Close(); err != nil {
		slog.Warn("failed to close gateway", slog.String("error", err.Error()), slog.String("module", "gateway"))
	}
	return ctx.Err()
}

func (l *Listener) publish(trigger poapbot.Trigger) {
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()

	if err := l.publisher.Publish(ctx, trigger); err != nil {
		slog.ErrorContext(ctx, "failed to publish trigger",
			slog.String("trigger", string(trigger.Type)),
			slog.String("user", trigger.UserID),
			slog.String("error", err.Error()),
			slog.String("module", "gateway"),
		)
	}
}

func guildName(s *discordgo.Session, guildID string) string {
	if s == nil || s.State == nil {
		return ""
	}
	g, err := s.State.Guild(guildID)
	if err != nil {
		return ""
	}
	return g.Name
}

func (l *Listener) onMemberAdd(s *discordgo.Session, m *discordgo.GuildMemberAdd) {
	if m.Member == nil || m.User == nil {
		return
	}
	l.publish(poapbot.Trigger{
		Type:        poapbot.TriggerMemberJoin,
		CommunityID: m.GuildID,
		UserID:      m.User.ID,
		IsBot:       m.User.Bot,
		Context:     map[string]string{"guild": guildName(s, m.GuildID)},
	})
}

func (l *Listener) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.MessageReaction == nil || r.GuildID == "" {
		return
	}
	isBot := r.Member != nil && r.Member.User != nil && r.Member.User.Bot
	l.publish(poapbot.Trigger{
		Type:        poapbot.TriggerReactionAdd,
		CommunityID: r.GuildID,
		UserID:      r.UserID,
		IsBot:       isBot,
		Context: map[string]string{
			"channel": r.ChannelID,
			"message": r.MessageID,
			"emoji":   r.Emoji.Name,
		},
	})
}

func (l *Listener) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	// direct messages carry no guild
	if m.Message == nil || m.Author == nil || m.GuildID == "" {
		return
	}
	l.publish(poapbot.Trigger{
		Type:        poapbot.TriggerMessageSent,
		CommunityID: m.GuildID,
		UserID:      m.Author.ID,
		IsBot:       m.Author.Bot,
		Context: map[string]string{
			"channel": m.ChannelID,
			"message": m.ID,
		},
	})
}
