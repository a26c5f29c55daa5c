package gateway

import (
	"context"
	"sync"
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot"
)

type mockPublisher struct {
	mu       sync.Mutex
	triggers []poapbot.Trigger
}

func (m *mockPublisher) Publish(ctx context.Context, trigger poapbot.Trigger) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.triggers = append(m.triggers, trigger)
	return nil
}

func TestListenerMemberAdd(t *testing.T) {
	pub := &mockPublisher{}
	l := NewListener(nil, pub)

	state := discordgo.NewState()
	require.NoError(t, state.GuildAdd(&discordgo.Guild{ID: guild, Name: "POAP Fans"}))
	s := &discordgo.Session{State: state}

	l.onMemberAdd(s, &discordgo.GuildMemberAdd{Member: &discordgo.Member{
		GuildID: guild,
		User:    &discordgo.User{ID: user},
	}})
	l.onMemberAdd(s, &discordgo.GuildMemberAdd{Member: &discordgo.Member{GuildID: guild}})

	require.Len(t, pub.triggers, 1)
	got := pub.triggers[0]
	require.Equal(t, poapbot.TriggerMemberJoin, got.Type)
	require.Equal(t, guild, got.CommunityID)
	require.Equal(t, user, got.UserID)
	require.Equal(t, "POAP Fans", got.Context["guild"])
}

func TestListenerReactionAdd(t *testing.T) {
	pub := &mockPublisher{}
	l := NewListener(nil, pub)

	l.onReactionAdd(nil, &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{
			UserID:    user,
			MessageID: "42",
			ChannelID: channel,
			GuildID:   guild,
			Emoji:     discordgo.Emoji{Name: "⭐"},
		},
		Member: &discordgo.Member{User: &discordgo.User{ID: user, Bot: true}},
	})
	// reactions in direct messages
	l.onReactionAdd(nil, &discordgo.MessageReactionAdd{
		MessageReaction: &discordgo.MessageReaction{UserID: user, ChannelID: channel},
	})

	require.Len(t, pub.triggers, 1)
	got := pub.triggers[0]
	require.Equal(t, poapbot.TriggerReactionAdd, got.Type)
	require.True(t, got.IsBot)
	require.Equal(t, map[string]string{"channel": channel, "message": "42", "emoji": "⭐"}, got.Context)
}

func TestListenerMessageCreate(t *testing.T) {
	pub := &mockPublisher{}
	l := NewListener(nil, pub)

	l.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "43",
		ChannelID: channel,
		GuildID:   guild,
		Author:    &discordgo.User{ID: user},
	}})
	l.onMessageCreate(nil, &discordgo.MessageCreate{Message: &discordgo.Message{
		ID:        "44",
		ChannelID: channel,
		Author:    &discordgo.User{ID: user},
	}})

	require.Len(t, pub.triggers, 1)
	got := pub.triggers[0]
	require.Equal(t, poapbot.TriggerMessageSent, got.Type)
	require.Equal(t, user, got.UserID)
	require.False(t, got.IsBot)
	require.Equal(t, "43", got.Context["message"])
}
