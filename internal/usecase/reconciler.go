package usecase

import (
	"context"
	"log/slog"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel/attribute"

	"github.com/totegamma/poapbot/internal/domain"
)

// ReconcilerUsecase grants the roles and channels a user's badges entitle them to.
type ReconcilerUsecase struct {
	wallets  WalletRepository
	gates    GateRepository
	issuance IssuanceClient
	platform Platform
}

func NewReconcilerUsecase(
	wallets WalletRepository,
	gates GateRepository,
	issuance IssuanceClient,
	platform Platform,
) *ReconcilerUsecase {
	return &ReconcilerUsecase{
		wallets:  wallets,
		gates:    gates,
		issuance: issuance,
		platform: platform,
	}
}

// Reconcile returns the grants attempted. Grants the user already holds are
// not attempted, so running it again is a no-op. A failed grant is reported
// on its action and does not stop the others.
func (uc *ReconcilerUsecase) Reconcile(ctx context.Context, communityID, userID string) ([]domain.GrantAction, error) {
	ctx, span := tracer.Start(ctx, "Reconciler.Usecase.Reconcile")
	defer span.End()
	span.SetAttributes(attribute.String("community", communityID), attribute.String("user", userID))

	link, err := uc.wallets.Get(ctx, userID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, nil
		}
		span.RecordError(err)
		return nil, err
	}

	gates, err := uc.gates.ListByCommunity(ctx, communityID, 0)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if len(gates) == 0 {
		return nil, nil
	}

	badges, err := uc.issuance.GetUserBadges(ctx, link.Address)
	if err != nil {
		span.RecordError(err)
		return nil, domain.LookupError{Address: link.Address, Cause: err}
	}

	owned := make(map[int64]bool, len(badges))
	for _, b := range badges {
		owned[b.Event.ID] = true
	}

	var actions []domain.GrantAction
	for _, gate := range gates {
		if !gate.SatisfiedBy(owned) {
			continue
		}

		held, err := uc.holds(ctx, communityID, userID, gate)
		if err != nil {
			slog.WarnContext(ctx, "grant check failed, granting anyway",
				slog.Int64("gate", gate.ID),
				slog.String("error", err.Error()),
				slog.String("module", "reconciler"),
			)
		} else if held {
			continue
		}

		action := domain.GrantAction{GateID: gate.ID, GateType: gate.GateType, TargetID: gate.TargetID()}
		action.Err = uc.grant(ctx, communityID, userID, gate)
		if action.Err != nil {
			slog.ErrorContext(ctx, "grant failed",
				slog.Int64("gate", gate.ID),
				slog.String("user", userID),
				slog.String("error", action.Err.Error()),
				slog.String("module", "reconciler"),
			)
		} else {
			slog.InfoContext(ctx, "granted",
				slog.Int64("gate", gate.ID),
				slog.String("user", userID),
				slog.String("type", string(gate.GateType)),
				slog.String("module", "reconciler"),
			)
		}
		actions = append(actions, action)
	}

	return actions, nil
}

func (uc *ReconcilerUsecase) holds(ctx context.Context, communityID, userID string, gate domain.AccessGate) (bool, error) {
	switch gate.GateType {
	case domain.GateRole:
		return uc.platform.HasRole(ctx, communityID, userID, gate.RoleID)
	case domain.GateChannel:
		return uc.platform.HasChannelAccess(ctx, gate.ChannelID, userID)
	}
	return false, errors.Errorf("unknown gate type %q", gate.GateType)
}

func (uc *ReconcilerUsecase) grant(ctx context.Context, communityID, userID string, gate domain.AccessGate) error {
	switch gate.GateType {
	case domain.GateRole:
		return uc.platform.AddRole(ctx, communityID, userID, gate.RoleID)
	case domain.GateChannel:
		return uc.platform.GrantChannel(ctx, gate.ChannelID, userID, domain.GatedChannelAllow)
	}
	return errors.Errorf("unknown gate type %q", gate.GateType)
}
