package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

type WalletUsecase struct {
	wallets   WalletRepository
	identity  *IdentityUsecase
	publisher TriggerPublisher
	now       func() time.Time
}

// NewWalletUsecase wires the wallet link flow. publisher may be nil.
func NewWalletUsecase(wallets WalletRepository, identity *IdentityUsecase, publisher TriggerPublisher) *WalletUsecase {
	return &WalletUsecase{
		wallets:   wallets,
		identity:  identity,
		publisher: publisher,
		now:       time.Now,
	}
}

type LinkResult struct {
	Identity Identity
	Link     domain.WalletLink
}

// Link resolves input and replaces the caller's wallet link.
func (uc *WalletUsecase) Link(ctx context.Context, communityID, userID, input string) (LinkResult, error) {
	ctx, span := tracer.Start(ctx, "Wallet.Usecase.Link")
	defer span.End()

	identity, err := uc.identity.Resolve(ctx, input)
	if err != nil {
		span.RecordError(err)
		return LinkResult{}, err
	}

	link := domain.WalletLink{
		UserID:   userID,
		Address:  identity.Address,
		Verified: false,
		LinkedAt: uc.now(),
	}
	if err := uc.wallets.Upsert(ctx, link); err != nil {
		span.RecordError(err)
		return LinkResult{}, err
	}

	if uc.publisher != nil && communityID != "" {
		err := uc.publisher.Publish(ctx, poapbot.Trigger{
			Type:        poapbot.TriggerWalletLinked,
			CommunityID: communityID,
			UserID:      userID,
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to publish wallet link", slog.String("user", userID), slog.String("error", err.Error()), slog.String("module", "wallet"))
		}
	}

	return LinkResult{Identity: identity, Link: link}, nil
}

func (uc *WalletUsecase) Get(ctx context.Context, userID string) (domain.WalletLink, error) {
	return uc.wallets.Get(ctx, userID)
}
