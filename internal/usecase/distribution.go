package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

type DistributeInput struct {
	CommunityID string
	AdminID     string
	RecipientID string
	EventID     int64
	SecretCode  string
}

type Distribution struct {
	Record  domain.DistributionRecord
	Event   domain.Event
	Address string
	TxHash  string
}

// DistributionUsecase issues a badge on behalf of an administrator.
type DistributionUsecase struct {
	wallets   WalletRepository
	records   DistributionRepository
	issuance  IssuanceClient
	badges    *BadgeUsecase
	publisher TriggerPublisher
	now       func() time.Time
}

func NewDistributionUsecase(
	wallets WalletRepository,
	records DistributionRepository,
	issuance IssuanceClient,
	badges *BadgeUsecase,
	publisher TriggerPublisher,
) *DistributionUsecase {
	return &DistributionUsecase{
		wallets:   wallets,
		records:   records,
		issuance:  issuance,
		badges:    badges,
		publisher: publisher,
		now:       time.Now,
	}
}

func (uc *DistributionUsecase) Distribute(ctx context.Context, input DistributeInput) (Distribution, error) {
	ctx, span := tracer.Start(ctx, "Distribution.Usecase.Distribute")
	defer span.End()

	link, err := uc.wallets.Get(ctx, input.RecipientID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return Distribution{}, domain.InvalidInputError{
				Message: poapbot.UserMention(input.RecipientID) + " has not linked a wallet address. They need to use `/link-wallet` first.",
			}
		}
		span.RecordError(err)
		return Distribution{}, err
	}

	event, err := uc.badges.GetEvent(ctx, input.EventID)
	if err != nil {
		span.RecordError(err)
		return Distribution{}, err
	}

	links, err := uc.issuance.GetClaimLinks(ctx, input.EventID, input.SecretCode)
	if err != nil {
		span.RecordError(err)
		return Distribution{}, err
	}
	token, ok := firstUnclaimed(links)
	if !ok {
		return Distribution{}, domain.ErrExhaustedSupply
	}

	record, err := uc.records.CreatePending(ctx, domain.DistributionRecord{
		UserID:        input.RecipientID,
		CommunityID:   input.CommunityID,
		EventID:       input.EventID,
		ClaimToken:    token,
		DistributedBy: input.AdminID,
		CreatedAt:     uc.now(),
	})
	if err != nil {
		span.RecordError(err)
		return Distribution{}, err
	}

	result, err := uc.issuance.Claim(ctx, token, link.Address, input.SecretCode)
	if err != nil {
		span.RecordError(err)
		if markErr := uc.records.MarkFailed(ctx, record.ID); markErr != nil {
			slog.ErrorContext(ctx, "failed to mark record failed", slog.Int64("record", record.ID), slog.String("error", markErr.Error()), slog.String("module", "distribution"))
		}
		return Distribution{}, err
	}

	if err := uc.records.MarkClaimed(ctx, record.ID, uc.now()); err != nil {
		slog.ErrorContext(ctx, "failed to mark record claimed", slog.Int64("record", record.ID), slog.String("error", err.Error()), slog.String("module", "distribution"))
	} else {
		record.Status = domain.StatusClaimed
	}

	if uc.publisher != nil {
		err := uc.publisher.Publish(ctx, poapbot.Trigger{
			Type:        poapbot.TriggerBadgeDistributed,
			CommunityID: input.CommunityID,
			UserID:      input.RecipientID,
			Context:     map[string]string{"event": event.Name},
		})
		if err != nil {
			slog.WarnContext(ctx, "failed to publish distribution", slog.String("error", err.Error()), slog.String("module", "distribution"))
		}
	}

	return Distribution{
		Record:  record,
		Event:   event,
		Address: link.Address,
		TxHash:  result.TxHash,
	}, nil
}
