package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/infrastructure/repository"
	"github.com/totegamma/poapbot/internal/testutil"
)

func TestWalletLinkPublishesTrigger(t *testing.T) {
	db := testutil.NewTestDB(t)
	pub := &mockPublisher{}
	names := &mockNames{addrs: map[string]string{"vitalik.eth": vitalik}}
	uc := NewWalletUsecase(repository.NewWalletRepository(db), NewIdentityUsecase(names, time.Second), pub)

	res, err := uc.Link(context.Background(), "g1", "u1", "vitalik.eth")
	require.NoError(t, err)
	require.Equal(t, vitalik, res.Link.Address)
	require.True(t, res.Identity.WasNameLookup)

	link, err := uc.Get(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, vitalik, link.Address)

	require.Len(t, pub.triggers, 1)
	require.Equal(t, poapbot.TriggerWalletLinked, pub.triggers[0].Type)
}

func TestWalletLinkInvalidInputWritesNothing(t *testing.T) {
	db := testutil.NewTestDB(t)
	pub := &mockPublisher{}
	uc := NewWalletUsecase(repository.NewWalletRepository(db), NewIdentityUsecase(nil, 0), pub)

	_, err := uc.Link(context.Background(), "g1", "u1", "garbage")
	require.ErrorIs(t, err, domain.InvalidInputError{})
	_, err = uc.Get(context.Background(), "u1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Empty(t, pub.triggers)
}

func TestBadgeEventCache(t *testing.T) {
	db := testutil.NewTestDB(t)
	issuance := newMockIssuance()
	issuance.events[7] = domain.Event{ID: 7, Name: "Conf"}
	uc := NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)
	now := testNow
	uc.now = func() time.Time { return now }

	for i := 0; i < 3; i++ {
		e, err := uc.GetEvent(context.Background(), 7)
		require.NoError(t, err)
		require.Equal(t, "Conf", e.Name)
	}
	require.Equal(t, 1, issuance.eventCalls)

	now = now.Add(2 * time.Hour)
	_, err := uc.GetEvent(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, 2, issuance.eventCalls)

	details, err := uc.Details(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, details.Minted)
	require.EqualValues(t, 3, *details.Minted)
}

func TestCollectionSortedRecentFirst(t *testing.T) {
	db := testutil.NewTestDB(t)
	issuance := newMockIssuance()
	issuance.badges[vitalik] = []domain.Badge{
		{TokenID: "1", Created: "2022-01-01 00:00:00"},
		{TokenID: "2", Created: "2024-01-01 00:00:00"},
	}
	uc := NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)

	badges, err := uc.Collection(context.Background(), vitalik)
	require.NoError(t, err)
	require.Equal(t, "2", badges[0].TokenID)
}

func TestDistributeManual(t *testing.T) {
	db := testutil.NewTestDB(t)
	wallets := repository.NewWalletRepository(db)
	records := repository.NewDistributionRepository(db)
	issuance := newMockIssuance()
	issuance.events[7] = domain.Event{ID: 7, Name: "Conf"}
	issuance.links[7] = []domain.ClaimLink{{QRHash: "qr7"}}
	pub := &mockPublisher{}
	badges := NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)
	uc := NewDistributionUsecase(wallets, records, issuance, badges, pub)

	input := DistributeInput{CommunityID: "g1", AdminID: "admin", RecipientID: "u1", EventID: 7, SecretCode: "s"}

	_, err := uc.Distribute(context.Background(), input)
	require.ErrorIs(t, err, domain.InvalidInputError{})

	require.NoError(t, wallets.Upsert(context.Background(), domain.WalletLink{UserID: "u1", Address: vitalik}))
	res, err := uc.Distribute(context.Background(), input)
	require.NoError(t, err)
	require.Equal(t, "0xtx-qr7", res.TxHash)
	require.Equal(t, domain.StatusClaimed, res.Record.Status)
	require.Equal(t, "admin", res.Record.DistributedBy)
	require.Len(t, pub.triggers, 1)

	_, err = uc.Distribute(context.Background(), input)
	require.ErrorIs(t, err, domain.ErrExhaustedSupply)
}

func TestRuleCreateListToggle(t *testing.T) {
	db := testutil.NewTestDB(t)
	issuance := newMockIssuance()
	issuance.events[7] = domain.Event{ID: 7, Name: "Conf"}
	badges := NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)
	uc := NewRuleUsecase(repository.NewRuleRepository(db), badges)
	ctx := context.Background()

	_, err := uc.Create(ctx, CreateRuleInput{CommunityID: "g1", TriggerType: poapbot.TriggerWalletLinked, EventID: 7, SecretCode: "s"})
	require.ErrorIs(t, err, domain.InvalidInputError{})

	_, err = uc.Create(ctx, CreateRuleInput{CommunityID: "g1", TriggerType: poapbot.TriggerMemberJoin, EventID: 99, SecretCode: "s"})
	require.ErrorIs(t, err, domain.InvalidInputError{})

	created, err := uc.Create(ctx, CreateRuleInput{CommunityID: "g1", TriggerType: poapbot.TriggerMemberJoin, EventID: 7, SecretCode: "s", CreatedBy: "admin"})
	require.NoError(t, err)
	require.True(t, created.Rule.Active)
	require.Equal(t, "Conf", created.Event.Name)

	rules, err := uc.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, rules, 1)

	toggled, err := uc.Toggle(ctx, "g1", created.Rule.ID)
	require.NoError(t, err)
	require.False(t, toggled.Active)

	_, err = uc.Toggle(ctx, "other", created.Rule.ID)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGateCreateValidatesBadges(t *testing.T) {
	db := testutil.NewTestDB(t)
	issuance := newMockIssuance()
	issuance.events[1001] = domain.Event{ID: 1001}
	badges := NewBadgeUsecase(repository.NewEventCacheRepository(db), issuance)
	uc := NewGateUsecase(repository.NewGateRepository(db), badges)
	ctx := context.Background()

	_, err := uc.Create(ctx, CreateGateInput{CommunityID: "g1", GateType: domain.GateRole, TargetID: "r1", EventIDs: []int64{1001, 1002}})
	require.ErrorIs(t, err, domain.InvalidInputError{})

	gate, err := uc.Create(ctx, CreateGateInput{CommunityID: "g1", GateType: domain.GateRole, TargetID: "r1", EventIDs: []int64{1001}})
	require.NoError(t, err)

	gates, err := uc.List(ctx, "g1")
	require.NoError(t, err)
	require.Len(t, gates, 1)

	require.NoError(t, uc.Remove(ctx, "g1", gate.ID))
	require.ErrorIs(t, uc.Remove(ctx, "g1", gate.ID), domain.ErrNotFound)
}
