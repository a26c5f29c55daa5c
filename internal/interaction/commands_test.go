package interaction

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/repository"
	"github.com/totegamma/poapbot/internal/testutil"
	"github.com/totegamma/poapbot/internal/usecase"
)

type fixture struct {
	gw        *Gateway
	signer    *signer
	editor    *mockEditor
	issuance  *mockIssuance
	messenger *mockMessenger
	wallets   *usecase.WalletUsecase
	rules     *usecase.RuleUsecase
}

func newFixture(t *testing.T) *fixture {
	db := testutil.NewTestDB(t)
	issuance := newMockIssuance()
	issuance.events[7] = domain.Event{ID: 7, Name: "DevCon", StartDate: "2024-11-12"}
	messenger := &mockMessenger{}

	walletRepo := repository.NewWalletRepository(db)
	identity := usecase.NewIdentityUsecase(&mockNames{addrs: map[string]string{"vitalik.eth": vitalik}}, time.Second)
	badges := usecase.NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)
	wallets := usecase.NewWalletUsecase(walletRepo, identity, nil)
	rules := usecase.NewRuleUsecase(repository.NewRuleRepository(db), badges)

	cmds := &Commands{
		Wallets:     wallets,
		Identities:  identity,
		Badges:      badges,
		Distributor: usecase.NewDistributionUsecase(walletRepo, repository.NewDistributionRepository(db), issuance, badges, nil),
		Gates:       usecase.NewGateUsecase(repository.NewGateRepository(db), badges),
		Rules:       rules,
		Targets:     &mockTargets{roles: map[string]string{"Holders": "555"}},
		Messenger:   messenger,
	}

	s, v := newSigner(t)
	reg, err := NewRegistry(cmds.All()...)
	require.NoError(t, err)
	editor := &mockEditor{}

	return &fixture{
		gw:        NewGateway(v, reg, editor, time.Second),
		signer:    s,
		editor:    editor,
		issuance:  issuance,
		messenger: messenger,
		wallets:   wallets,
		rules:     rules,
	}
}

func (f *fixture) send(t *testing.T, b *invocationBuilder) *discordgo.InteractionResponse {
	body := b.body(t)
	res := f.gw.Handle(context.Background(), http.MethodPost, f.signer.sign(body), body)
	f.gw.Wait()
	require.Equal(t, http.StatusOK, res.Status)
	return bodyOf(t, res)
}

func TestLinkWalletResolvesName(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("link-wallet").option("address", "vitalik.eth"))
	require.Equal(t, discordgo.InteractionResponseChannelMessageWithSource, resp.Type)
	require.Len(t, resp.Data.Embeds, 1)
	require.Contains(t, resp.Data.Embeds[0].Description, vitalik)

	link, err := f.wallets.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, vitalik, link.Address)
	require.False(t, link.Verified)
}

func TestLinkWalletRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("link-wallet").option("address", "not a wallet"))
	require.Equal(t, FlagEphemeral, resp.Data.Flags)
	require.Contains(t, resp.Data.Content, "is not a valid Ethereum address or ENS name")

	_, err := f.wallets.Get(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMyBadgesWithoutLink(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("my-badges"))
	require.Contains(t, resp.Data.Content, "haven't linked a wallet")
}

func TestMyBadgesListsCollection(t *testing.T) {
	f := newFixture(t)
	f.issuance.badges[vitalik] = []domain.Badge{
		{TokenID: "1", Created: "2023-01-01 00:00:00", Event: domain.Event{ID: 1, Name: "Old"}},
		{TokenID: "2", Created: "2024-01-01 00:00:00", Event: domain.Event{ID: 2, Name: "New"}},
	}
	f.send(t, command("link-wallet").option("address", vitalik))

	resp := f.send(t, command("my-badges"))
	require.Len(t, resp.Data.Embeds, 1)
	require.Contains(t, resp.Data.Embeds[0].Description, "**2** POAPs")
	require.Contains(t, resp.Data.Embeds[0].Fields[1].Value, "**1.** New")
	require.Len(t, resp.Data.Components, 1)
	row, ok := resp.Data.Components[0].(discordgo.ActionsRow)
	require.True(t, ok)
	button, ok := row.Components[0].(discordgo.Button)
	require.True(t, ok)
	require.Equal(t, discordgo.LinkButton, button.Style)
	require.Equal(t, collectorURL+vitalik, button.URL)
}

func TestBadgeInfo(t *testing.T) {
	f := newFixture(t)
	f.issuance.minted[7] = 42

	resp := f.send(t, command("badge-info").option("event-id", 7))
	require.Equal(t, "🎫 DevCon", resp.Data.Embeds[0].Title)
	var minted string
	for _, field := range resp.Data.Embeds[0].Fields {
		if field.Name == "📊 Total Minted" {
			minted = field.Value
		}
	}
	require.Equal(t, "42", minted)

	resp = f.send(t, command("badge-info").option("event-id", 404))
	require.Contains(t, resp.Data.Content, "Event with ID 404 not found")
}

func TestDistributeBadge(t *testing.T) {
	f := newFixture(t)
	f.issuance.links[7] = []domain.ClaimLink{{QRHash: "used", Claimed: true}, {QRHash: "fresh"}}
	recipient := &discordgo.User{ID: "u2", Username: "bob"}
	_, err := f.wallets.Link(context.Background(), "g1", "u2", vitalik)
	require.NoError(t, err)

	resp := f.send(t, command("distribute-badge").admin().
		option("user", "u2").resolvedUser(recipient).
		option("event-id", 7).
		option("secret-code", "s3cret"))
	require.Equal(t, discordgo.InteractionResponseDeferredChannelMessageWithSource, resp.Type)

	edits := f.editor.all()
	require.Len(t, edits, 1)
	require.Equal(t, "🎉 POAP Distributed Successfully!", edits[0].msg.Embeds[0].Title)
	require.Contains(t, edits[0].msg.Embeds[0].Fields[3].Value, "0xtx-fresh")
	require.Len(t, f.messenger.dms["u2"], 1)
}

func TestDistributeBadgeUnlinkedRecipient(t *testing.T) {
	f := newFixture(t)
	f.issuance.links[7] = []domain.ClaimLink{{QRHash: "fresh"}}

	f.send(t, command("distribute-badge").admin().
		option("user", "u2").
		option("event-id", 7).
		option("secret-code", "s3cret"))

	edits := f.editor.all()
	require.Len(t, edits, 1)
	require.Contains(t, edits[0].msg.Content, "/link-wallet")
	require.Empty(t, f.messenger.dms)
}

func TestAutoDistributeCreateAndList(t *testing.T) {
	f := newFixture(t)

	f.issuance.events[42] = domain.Event{ID: 42, Name: "Meetup"}

	resp := f.send(t, command("auto-distribute").admin().
		option("action", ActionCreate).
		option("trigger", "member_join").
		option("event-id", 42).
		option("secret-code", "abc"))
	require.Equal(t, "⚡ Auto-Distribution Rule Created", resp.Data.Embeds[0].Title)

	rules, err := f.rules.List(context.Background(), "g1")
	require.NoError(t, err)
	require.Len(t, rules, 1)
	require.Equal(t, int64(42), rules[0].EventID)
	require.True(t, rules[0].Active)
	require.Equal(t, "member_join", string(rules[0].TriggerType))

	resp = f.send(t, command("auto-distribute").admin().option("action", ActionList))
	require.Contains(t, resp.Data.Embeds[0].Description, "1 rule(s)")
	require.Contains(t, resp.Data.Embeds[0].Fields[0].Value, "**#1**")
	require.Contains(t, resp.Data.Embeds[0].Fields[0].Value, "Active")

	resp = f.send(t, command("auto-distribute").admin().option("action", ActionToggle).option("rule-id", 1))
	require.Contains(t, resp.Data.Content, "Inactive")
}

func TestAutoDistributeValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("auto-distribute").admin().option("action", ActionCreate))
	require.Contains(t, resp.Data.Content, "Please provide trigger type")

	resp = f.send(t, command("auto-distribute").admin().
		option("action", ActionCreate).
		option("trigger", "member_join").
		option("event-id", 99).
		option("secret-code", "s3cret"))
	require.Contains(t, resp.Data.Content, "99")

	resp = f.send(t, command("auto-distribute").admin().option("action", ActionToggle).option("rule-id", 12))
	require.Contains(t, resp.Data.Content, "not found in this server")
}

func TestAccessGateLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("access-gate").admin().
		option("action", ActionCreateRole).
		option("target", "Holders").
		option("badge-ids", "7"))
	require.Equal(t, "🚪 Role Gate Created", resp.Data.Embeds[0].Title)
	require.Equal(t, "<@&555>", resp.Data.Embeds[0].Fields[0].Value)

	resp = f.send(t, command("access-gate").admin().
		option("action", ActionCreateChannel).
		option("target", "<#777>").
		option("badge-ids", "7"))
	require.Equal(t, "🚪 Channel Gate Created", resp.Data.Embeds[0].Title)

	resp = f.send(t, command("access-gate").admin().option("action", ActionList))
	require.Contains(t, resp.Data.Embeds[0].Description, "2 gate(s)")

	resp = f.send(t, command("access-gate").admin().option("action", ActionRemove).option("gate-id", 1))
	require.Equal(t, "🗑️ Gate Removed", resp.Data.Embeds[0].Title)

	resp = f.send(t, command("access-gate").admin().option("action", ActionRemove).option("gate-id", 1))
	require.Contains(t, resp.Data.Content, "Failed to remove gate 1")
}

func TestAccessGateValidation(t *testing.T) {
	f := newFixture(t)

	resp := f.send(t, command("access-gate").admin().
		option("action", ActionCreateRole).
		option("target", "Holders").
		option("badge-ids", "7,abc"))
	require.Contains(t, resp.Data.Content, "valid POAP IDs")

	resp = f.send(t, command("access-gate").admin().
		option("action", ActionCreateRole).
		option("target", "Missing").
		option("badge-ids", "7"))
	require.Contains(t, resp.Data.Content, `Role "Missing" not found`)

	resp = f.send(t, command("access-gate").admin().
		option("action", ActionCreateRole).
		option("target", "Holders").
		option("badge-ids", "7,8"))
	require.Contains(t, resp.Data.Content, "8")

	resp = f.send(t, command("access-gate").option("action", ActionList))
	require.Contains(t, resp.Data.Content, "Manage Server")
}
