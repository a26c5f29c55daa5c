package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

// EngineUsecase evaluates automation rules against trigger events.
// It keeps no state between calls; rules and links are read fresh each time.
type EngineUsecase struct {
	rules    RuleRepository
	wallets  WalletRepository
	records  DistributionRepository
	issuance IssuanceClient
	now      func() time.Time
}

func NewEngineUsecase(
	rules RuleRepository,
	wallets WalletRepository,
	records DistributionRepository,
	issuance IssuanceClient,
) *EngineUsecase {
	return &EngineUsecase{
		rules:    rules,
		wallets:  wallets,
		records:  records,
		issuance: issuance,
		now:      time.Now,
	}
}

// OnTrigger runs every active rule of the community subscribed to trigger.
// Rules are evaluated independently. The returned error is set only when
// the rules themselves could not be loaded.
func (e *EngineUsecase) OnTrigger(
	ctx context.Context,
	communityID string,
	trigger poapbot.TriggerType,
	userID string,
	triggerCtx map[string]string,
) ([]domain.DistributionOutcome, error) {
	ctx, span := tracer.Start(ctx, "Engine.Usecase.OnTrigger")
	defer span.End()
	span.SetAttributes(
		attribute.String("community", communityID),
		attribute.String("trigger", string(trigger)),
	)

	rules, err := e.rules.ListActive(ctx, communityID, trigger)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(rules) == 0 {
		return nil, nil
	}

	link, linkErr := e.wallets.Get(ctx, userID)

	outcomes := make([]domain.DistributionOutcome, 0, len(rules))
	for _, rule := range rules {
		outcome := e.evaluate(ctx, rule, userID, triggerCtx, link, linkErr)
		outcomes = append(outcomes, outcome)

		attrs := []any{
			slog.Int64("rule", rule.ID),
			slog.String("user", userID),
			slog.String("outcome", string(outcome.Kind)),
			slog.String("module", "engine"),
		}
		if outcome.Err != nil {
			attrs = append(attrs, slog.String("error", outcome.Err.Error()))
			slog.WarnContext(ctx, "rule evaluation", attrs...)
		} else {
			slog.InfoContext(ctx, "rule evaluation", attrs...)
		}
	}

	return outcomes, nil
}

func (e *EngineUsecase) evaluate(
	ctx context.Context,
	rule domain.AutomationRule,
	userID string,
	triggerCtx map[string]string,
	link domain.WalletLink,
	linkErr error,
) (outcome domain.DistributionOutcome) {
	outcome = domain.DistributionOutcome{RuleID: rule.ID, EventID: rule.EventID, UserID: userID}

	defer func() {
		if r := recover(); r != nil {
			outcome.Kind = domain.OutcomeFailed
			outcome.Err = fmt.Errorf("rule %d panicked: %v", rule.ID, r)
		}
	}()

	if !rule.Matches(triggerCtx) {
		outcome.Kind = domain.OutcomeSkippedFiltered
		return outcome
	}

	if linkErr != nil {
		if errors.Is(linkErr, domain.ErrNotFound) {
			outcome.Kind = domain.OutcomeSkippedUnlinked
			return outcome
		}
		outcome.Kind = domain.OutcomeFailed
		outcome.Err = linkErr
		return outcome
	}

	links, err := e.issuance.GetClaimLinks(ctx, rule.EventID, rule.SecretCode)
	if err != nil {
		outcome.Kind = domain.OutcomeFailed
		outcome.Err = err
		return outcome
	}

	token, ok := firstUnclaimed(links)
	if !ok {
		outcome.Kind = domain.OutcomeSkippedExhausted
		outcome.Err = domain.ErrExhaustedSupply
		return outcome
	}

	ruleID := rule.ID
	key := domain.RuleClaimKey(rule.ID, userID)
	record, err := e.records.CreatePending(ctx, domain.DistributionRecord{
		UserID:        userID,
		CommunityID:   rule.CommunityID,
		EventID:       rule.EventID,
		ClaimToken:    token,
		DistributedBy: domain.DistributedByAutomation,
		RuleID:        &ruleID,
		ClaimKey:      &key,
		CreatedAt:     e.now(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrDuplicateClaim) {
			outcome.Kind = domain.OutcomeSkippedDuplicate
			return outcome
		}
		outcome.Kind = domain.OutcomeFailed
		outcome.Err = err
		return outcome
	}
	outcome.RecordID = record.ID

	result, err := e.issuance.Claim(ctx, token, link.Address, rule.SecretCode)
	if err != nil {
		if markErr := e.records.MarkFailed(ctx, record.ID); markErr != nil {
			slog.ErrorContext(ctx, "failed to mark record failed", slog.Int64("record", record.ID), slog.String("error", markErr.Error()), slog.String("module", "engine"))
		}
		outcome.Kind = domain.OutcomeFailed
		outcome.Err = err
		return outcome
	}

	outcome.Kind = domain.OutcomeIssued
	outcome.TxHash = result.TxHash
	if err := e.records.MarkClaimed(ctx, record.ID, e.now()); err != nil {
		// the badge is issued; the record stays pending for manual review
		outcome.Err = errors.Wrap(err, "claim succeeded but record update failed")
	}
	return outcome
}

func firstUnclaimed(links []domain.ClaimLink) (string, bool) {
	for _, l := range links {
		if !l.Claimed && l.QRHash != "" {
			return l.QRHash, true
		}
	}
	return "", false
}
