package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/totegamma/poapbot"
	"github.com/totegamma/poapbot/internal/domain"
	"github.com/totegamma/poapbot/internal/usecase"
)

var tracer = otel.Tracer("trigger")

const (
	handleTimeout = time.Minute
	maxInFlight   = 16
)

type Subscriber interface {
	Subscribe(ctx context.Context) (<-chan poapbot.Trigger, func(), error)
}

type Engine interface {
	OnTrigger(ctx context.Context, communityID string, trigger poapbot.TriggerType, userID string, triggerCtx map[string]string) ([]domain.DistributionOutcome, error)
}

type Reconciler interface {
	Reconcile(ctx context.Context, communityID, userID string) ([]domain.GrantAction, error)
}

type EventLookup interface {
	GetEvent(ctx context.Context, eventID int64) (domain.Event, error)
}

// TriggerService consumes bus triggers and drives the engine and the reconciler.
type TriggerService struct {
	bus        Subscriber
	engine     Engine
	reconciler Reconciler
	events     EventLookup
	messenger  usecase.Messenger
	inflight   *semaphore.Weighted
}

func NewTriggerService(
	bus Subscriber,
	engine Engine,
	reconciler Reconciler,
	events EventLookup,
	messenger usecase.Messenger,
) *TriggerService {
	return &TriggerService{
		bus:        bus,
		engine:     engine,
		reconciler: reconciler,
		events:     events,
		messenger:  messenger,
		inflight:   semaphore.NewWeighted(maxInFlight),
	}
}

// Run blocks until ctx is done or the subscription ends, then waits for
// in-flight triggers. At most maxInFlight triggers are handled at once.
func (s *TriggerService) Run(ctx context.Context) error {
	ch, cancel, err := s.bus.Subscribe(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to subscribe trigger bus")
	}
	defer cancel()

	slog.Info("trigger consumer started", slog.String("module", "trigger"))

	var wg sync.WaitGroup
	defer wg.Wait()
	for trigger := range ch {
		if err := s.inflight.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(trigger poapbot.Trigger) {
			defer wg.Done()
			defer s.inflight.Release(1)
			s.Handle(ctx, trigger)
		}(trigger)
	}
	return ctx.Err()
}

// Handle processes one trigger. Failures are logged and never propagated.
func (s *TriggerService) Handle(ctx context.Context, trigger poapbot.Trigger) {
	ctx, span := tracer.Start(ctx, "Trigger.Service.Handle",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			attribute.String("trigger.id", trigger.ID),
			attribute.String("trigger.type", string(trigger.Type)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	if trigger.IsBot || trigger.CommunityID == "" || trigger.UserID == "" {
		return
	}

	reconcile := false
	switch trigger.Type {
	case poapbot.TriggerMemberJoin, poapbot.TriggerReactionAdd, poapbot.TriggerMessageSent:
		outcomes, err := s.engine.OnTrigger(ctx, trigger.CommunityID, trigger.Type, trigger.UserID, trigger.Context)
		if err != nil {
			span.RecordError(err)
			slog.ErrorContext(ctx, "rule evaluation failed",
				slog.String("trigger", string(trigger.Type)),
				slog.String("error", err.Error()),
				slog.String("module", "trigger"),
			)
		}
		for _, o := range outcomes {
			if o.Kind != domain.OutcomeIssued {
				continue
			}
			reconcile = true
			s.notify(ctx, trigger, o)
		}
		if trigger.Type == poapbot.TriggerMemberJoin {
			reconcile = true
		}
	case poapbot.TriggerWalletLinked, poapbot.TriggerBadgeDistributed:
		reconcile = true
	default:
		slog.WarnContext(ctx, "unknown trigger type", slog.String("trigger", string(trigger.Type)), slog.String("module", "trigger"))
		return
	}

	if !reconcile {
		return
	}

	actions, err := s.reconciler.Reconcile(ctx, trigger.CommunityID, trigger.UserID)
	if err != nil {
		span.RecordError(err)
		slog.ErrorContext(ctx, "gate reconciliation failed",
			slog.String("user", trigger.UserID),
			slog.String("error", err.Error()),
			slog.String("module", "trigger"),
		)
		return
	}
	for _, a := range actions {
		if a.Err == nil {
			continue
		}
		span.RecordError(a.Err)
	}
}

// notify sends a best-effort DM about an issued badge.
func (s *TriggerService) notify(ctx context.Context, trigger poapbot.Trigger, outcome domain.DistributionOutcome) {
	if s.messenger == nil {
		return
	}

	name := fmt.Sprintf("#%d", outcome.EventID)
	if s.events != nil {
		if event, err := s.events.GetEvent(ctx, outcome.EventID); err == nil && event.Name != "" {
			name = event.Name
		}
	}

	var content string
	switch trigger.Type {
	case poapbot.TriggerMemberJoin:
		guild := trigger.Context["guild"]
		if guild == "" {
			guild = "the server"
		}
		content = fmt.Sprintf("🎉 Welcome to **%s**! You've been awarded a POAP: **%s**", guild, name)
	default:
		content = fmt.Sprintf("🎉 You've been awarded a POAP: **%s**", name)
	}

	err := s.messenger.SendDM(ctx, trigger.UserID, poapbot.Message{Content: content})
	if err != nil {
		slog.InfoContext(ctx, "could not send dm", slog.String("user", trigger.UserID), slog.String("error", err.Error()), slog.String("module", "trigger"))
	}
}
