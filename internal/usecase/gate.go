package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/poapbot/internal/domain"
)

// ListLimit bounds list commands.
const ListLimit = 10

type CreateGateInput struct {
	CommunityID string
	GateType    domain.GateType
	TargetID    string
	EventIDs    []int64
	CreatedBy   string
}

type GateUsecase struct {
	gates  GateRepository
	badges *BadgeUsecase
}

func NewGateUsecase(gates GateRepository, badges *BadgeUsecase) *GateUsecase {
	return &GateUsecase{gates: gates, badges: badges}
}

// Create validates every required badge against the issuance API first.
func (uc *GateUsecase) Create(ctx context.Context, input CreateGateInput) (domain.AccessGate, error) {
	ctx, span := tracer.Start(ctx, "Gate.Usecase.Create")
	defer span.End()

	gate := domain.AccessGate{
		CommunityID:      input.CommunityID,
		GateType:         input.GateType,
		RequiredEventIDs: input.EventIDs,
		CreatedBy:        input.CreatedBy,
		CreatedAt:        time.Now(),
	}
	switch input.GateType {
	case domain.GateRole:
		gate.RoleID = input.TargetID
	case domain.GateChannel:
		gate.ChannelID = input.TargetID
	}
	if err := gate.Validate(); err != nil {
		return domain.AccessGate{}, err
	}

	for _, id := range input.EventIDs {
		if _, err := uc.badges.GetEvent(ctx, id); err != nil {
			span.RecordError(err)
			var apiErr *domain.IssuanceAPIError
			if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
				return domain.AccessGate{}, domain.InvalidInputError{Message: fmt.Sprintf("Badge event %d was not found.", id)}
			}
			return domain.AccessGate{}, err
		}
	}

	return uc.gates.Create(ctx, gate)
}

func (uc *GateUsecase) List(ctx context.Context, communityID string) ([]domain.AccessGate, error) {
	return uc.gates.ListByCommunity(ctx, communityID, ListLimit)
}

func (uc *GateUsecase) Remove(ctx context.Context, communityID string, id int64) error {
	return uc.gates.Delete(ctx, communityID, id)
}
