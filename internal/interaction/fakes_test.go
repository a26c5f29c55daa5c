package interaction

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

const vitalik = "0xd8da6bf26964af9d7eed9e03e53415d37aa96045"

type signer struct {
	key ed25519.PrivateKey
}

func newSigner(t *testing.T) (*signer, *Verifier) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	v, err := NewVerifier(hex.EncodeToString(pub))
	require.NoError(t, err)
	return &signer{key: priv}, v
}

func (s *signer) sign(body []byte) http.Header {
	ts := strconv.FormatInt(time.Now().Unix(), 10)
	sig := ed25519.Sign(s.key, append([]byte(ts), body...))
	h := http.Header{}
	h.Set(HeaderSignature, hex.EncodeToString(sig))
	h.Set(HeaderTimestamp, ts)
	return h
}

type invocationBuilder struct {
	in   discordgo.Interaction
	data discordgo.ApplicationCommandInteractionData
}

func command(name string) *invocationBuilder {
	return &invocationBuilder{
		in: discordgo.Interaction{
			ID:      "i1",
			AppID:   "app",
			Type:    discordgo.InteractionApplicationCommand,
			Token:   "tok-" + name,
			GuildID: "g1",
			Member: &discordgo.Member{
				User: &discordgo.User{ID: "u1", Username: "alice"},
			},
		},
		data: discordgo.ApplicationCommandInteractionData{
			ID:          "c1",
			Name:        name,
			CommandType: discordgo.ChatApplicationCommand,
		},
	}
}

func (b *invocationBuilder) admin() *invocationBuilder {
	b.in.Member.Permissions = domain.PermissionManageGuild
	return b
}

func (b *invocationBuilder) option(name string, value any) *invocationBuilder {
	b.data.Options = append(b.data.Options, &discordgo.ApplicationCommandInteractionDataOption{Name: name, Value: value})
	return b
}

func (b *invocationBuilder) resolvedUser(u *discordgo.User) *invocationBuilder {
	if b.data.Resolved == nil {
		b.data.Resolved = &discordgo.ApplicationCommandInteractionDataResolved{Users: map[string]*discordgo.User{}}
	}
	b.data.Resolved.Users[u.ID] = u
	return b
}

func (b *invocationBuilder) body(t *testing.T) []byte {
	raw, err := json.Marshal(b.in)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(raw, &doc))
	doc["data"] = b.data
	raw, err = json.Marshal(doc)
	require.NoError(t, err)
	return raw
}

type edit struct {
	token string
	msg   poapbot.Message
}

type mockEditor struct {
	mu    sync.Mutex
	edits []edit
}

func (m *mockEditor) EditOriginal(ctx context.Context, in *discordgo.Interaction, msg poapbot.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.edits = append(m.edits, edit{token: in.Token, msg: msg})
	return nil
}

func (m *mockEditor) all() []edit {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]edit(nil), m.edits...)
}

type mockMessenger struct {
	mu  sync.Mutex
	dms map[string][]poapbot.Message
}

func (m *mockMessenger) SendDM(ctx context.Context, userID string, msg poapbot.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dms == nil {
		m.dms = map[string][]poapbot.Message{}
	}
	m.dms[userID] = append(m.dms[userID], msg)
	return nil
}

type mockIssuance struct {
	mu     sync.Mutex
	events map[int64]domain.Event
	links  map[int64][]domain.ClaimLink
	badges map[string][]domain.Badge
	minted map[int64]int64
}

func newMockIssuance() *mockIssuance {
	return &mockIssuance{
		events: map[int64]domain.Event{},
		links:  map[int64][]domain.ClaimLink{},
		badges: map[string][]domain.Badge{},
		minted: map[int64]int64{},
	}
}

func (m *mockIssuance) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.events[eventID]
	if !ok {
		return domain.Event{}, &domain.IssuanceAPIError{Status: http.StatusNotFound, Message: "not found"}
	}
	return e, nil
}

func (m *mockIssuance) GetUserBadges(ctx context.Context, address string) ([]domain.Badge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.badges[address], nil
}

func (m *mockIssuance) GetClaimLinks(ctx context.Context, eventID int64, secret string) ([]domain.ClaimLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.ClaimLink(nil), m.links[eventID]...), nil
}

func (m *mockIssuance) Claim(ctx context.Context, token, address, secret string) (domain.ClaimResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, links := range m.links {
		for i := range links {
			if links[i].QRHash == token {
				m.links[id][i].Claimed = true
			}
		}
	}
	return domain.ClaimResult{TxHash: "0xtx-" + token}, nil
}

func (m *mockIssuance) GetEventStats(ctx context.Context, eventID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.minted[eventID], nil
}

type mockNames struct {
	addrs map[string]string
}

func (m *mockNames) Resolve(ctx context.Context, name string) (string, error) {
	addr, ok := m.addrs[name]
	if !ok {
		return "", domain.NotFoundError{Resource: "name"}
	}
	return addr, nil
}

func (m *mockNames) LookupName(ctx context.Context, address string) (string, error) {
	for name, addr := range m.addrs {
		if addr == address {
			return name, nil
		}
	}
	return "", domain.NotFoundError{Resource: "name"}
}

type mockTargets struct {
	roles    map[string]string
	channels map[string]string
}

func (m *mockTargets) FindRole(ctx context.Context, guildID, target string) (string, error) {
	if id, ok := poapbot.ParseMention(target, poapbot.RoleMentionPrefix); ok {
		return id, nil
	}
	if id, ok := m.roles[target]; ok {
		return id, nil
	}
	return "", domain.NotFoundError{Resource: "role"}
}

func (m *mockTargets) FindChannel(ctx context.Context, guildID, target string) (string, error) {
	if id, ok := poapbot.ParseMention(target, poapbot.ChannelMentionPrefix); ok {
		return id, nil
	}
	if id, ok := m.channels[target]; ok {
		return id, nil
	}
	return "", domain.NotFoundError{Resource: "channel"}
}
