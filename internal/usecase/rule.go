package usecase

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
)

type CreateRuleInput struct {
	CommunityID string
	TriggerType poapbot.TriggerType
	EventID     int64
	SecretCode  string
	Filter      string
	CreatedBy   string
}

type CreatedRule struct {
	Rule  domain.AutomationRule
	Event domain.Event
}

type RuleUsecase struct {
	rules  RuleRepository
	badges *BadgeUsecase
}

func NewRuleUsecase(rules RuleRepository, badges *BadgeUsecase) *RuleUsecase {
	return &RuleUsecase{rules: rules, badges: badges}
}

func (uc *RuleUsecase) Create(ctx context.Context, input CreateRuleInput) (CreatedRule, error) {
	ctx, span := tracer.Start(ctx, "Rule.Usecase.Create")
	defer span.End()

	if !input.TriggerType.IsRuleTrigger() {
		return CreatedRule{}, domain.InvalidInputError{Message: fmt.Sprintf("Unsupported trigger %q.", input.TriggerType)}
	}
	if input.EventID <= 0 || input.SecretCode == "" {
		return CreatedRule{}, domain.InvalidInputError{Message: "Event ID and secret code are required to create a rule."}
	}
	if _, err := domain.ParseTriggerFilter(input.Filter); err != nil {
		return CreatedRule{}, err
	}

	event, err := uc.badges.GetEvent(ctx, input.EventID)
	if err != nil {
		span.RecordError(err)
		var apiErr *domain.IssuanceAPIError
		if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
			return CreatedRule{}, domain.InvalidInputError{Message: fmt.Sprintf("Badge event %d was not found.", input.EventID)}
		}
		return CreatedRule{}, err
	}

	rule, err := uc.rules.Create(ctx, domain.AutomationRule{
		CommunityID: input.CommunityID,
		EventID:     input.EventID,
		TriggerType: input.TriggerType,
		TriggerData: input.Filter,
		SecretCode:  input.SecretCode,
		Active:      true,
		CreatedBy:   input.CreatedBy,
		CreatedAt:   time.Now(),
	})
	if err != nil {
		span.RecordError(err)
		return CreatedRule{}, err
	}

	return CreatedRule{Rule: rule, Event: event}, nil
}

func (uc *RuleUsecase) List(ctx context.Context, communityID string) ([]domain.AutomationRule, error) {
	return uc.rules.ListByCommunity(ctx, communityID, ListLimit)
}

// Toggle flips the active flag of a rule owned by the community.
func (uc *RuleUsecase) Toggle(ctx context.Context, communityID string, id int64) (domain.AutomationRule, error) {
	ctx, span := tracer.Start(ctx, "Rule.Usecase.Toggle")
	defer span.End()

	rule, err := uc.rules.Toggle(ctx, communityID, id)
	if err != nil {
		span.RecordError(err)
		return domain.AutomationRule{}, err
	}
	return rule, nil
}
