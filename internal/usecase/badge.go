package usecase

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/singleflight"

	"github.com/totegamma/poapbot/internal/domain"
)

type EventDetails struct {
	Event  domain.Event
	Minted *int64
}

type BadgeUsecase struct {
	cache    EventCacheRepository
	issuance IssuanceClient
	group    singleflight.Group
	now      func() time.Time
}

func NewBadgeUsecase(cache EventCacheRepository, issuance IssuanceClient) *BadgeUsecase {
	return &BadgeUsecase{cache: cache, issuance: issuance, now: time.Now}
}

// GetEvent reads through the event cache. Cache failures never fail the lookup.
func (uc *BadgeUsecase) GetEvent(ctx context.Context, eventID int64) (domain.Event, error) {
	cached, err := uc.cache.Get(ctx, eventID)
	if err == nil && cached.Fresh(uc.now()) {
		return cached.Event, nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		slog.WarnContext(ctx, "event cache read failed", slog.Int64("event", eventID), slog.String("error", err.Error()), slog.String("module", "badge"))
	}

	v, err, _ := uc.group.Do(strconv.FormatInt(eventID, 10), func() (any, error) {
		event, err := uc.issuance.GetEvent(ctx, eventID)
		if err != nil {
			return domain.Event{}, err
		}
		if event.ID == 0 {
			event.ID = eventID
		}
		if err := uc.cache.Put(ctx, event, uc.now()); err != nil {
			slog.WarnContext(ctx, "event cache write failed", slog.Int64("event", eventID), slog.String("error", err.Error()), slog.String("module", "badge"))
		}
		return event, nil
	})
	if err != nil {
		return domain.Event{}, err
	}
	return v.(domain.Event), nil
}

// Details adds the minted count when the stats endpoint answers.
func (uc *BadgeUsecase) Details(ctx context.Context, eventID int64) (EventDetails, error) {
	ctx, span := tracer.Start(ctx, "Badge.Usecase.Details")
	defer span.End()

	event, err := uc.GetEvent(ctx, eventID)
	if err != nil {
		span.RecordError(err)
		return EventDetails{}, err
	}

	details := EventDetails{Event: event}
	minted, err := uc.issuance.GetEventStats(ctx, eventID)
	if err != nil {
		slog.InfoContext(ctx, "event stats unavailable", slog.Int64("event", eventID), slog.String("error", err.Error()), slog.String("module", "badge"))
	} else {
		details.Minted = &minted
	}
	return details, nil
}

// Collection lists badges held by address, most recent first.
func (uc *BadgeUsecase) Collection(ctx context.Context, address string) ([]domain.Badge, error) {
	ctx, span := tracer.Start(ctx, "Badge.Usecase.Collection")
	defer span.End()

	badges, err := uc.issuance.GetUserBadges(ctx, address)
	if err != nil {
		span.RecordError(err)
		return nil, domain.LookupError{Address: address, Cause: err}
	}
	sort.SliceStable(badges, func(i, j int) bool {
		return badges[i].Created > badges[j].Created
	})
	return badges, nil
}
