package bus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/totegamma/poapbot"
)

// Channel is the pub/sub channel carrying trigger envelopes.
const Channel = "poapbot:triggers"

type Bus interface {
	Publish(ctx context.Context, trigger poapbot.Trigger) error
	// Subscribe delivers envelopes until ctx is done or the returned cancel is called.
	Subscribe(ctx context.Context) (<-chan poapbot.Trigger, func(), error)
}

// Stamp fills id and timestamp of an envelope when the producer left them empty.
func Stamp(trigger poapbot.Trigger) poapbot.Trigger {
	if trigger.ID == "" {
		trigger.ID = uuid.NewString()
	}
	if trigger.OccurredAt.IsZero() {
		trigger.OccurredAt = time.Now().UTC()
	}
	return trigger
}

func Encode(trigger poapbot.Trigger) ([]byte, error) {
	return json.Marshal(trigger)
}

func Decode(payload []byte) (poapbot.Trigger, error) {
	var trigger poapbot.Trigger
	err := json.Unmarshal(payload, &trigger)
	return trigger, err
}

const subscriberBuffer = 64

type MemoryBus struct {
	mu          sync.RWMutex
	nextID      int
	subscribers map[int]chan poapbot.Trigger
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subscribers: map[int]chan poapbot.Trigger{}}
}

// Publish never waits on a subscriber. A subscriber whose buffer is full
// misses the envelope.
func (b *MemoryBus) Publish(ctx context.Context, trigger poapbot.Trigger) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	trigger = Stamp(trigger)

	b.mu.RLock()
	defer b.mu.RUnlock()
	for id, ch := range b.subscribers {
		select {
		case ch <- trigger:
		default:
			slog.WarnContext(
				ctx, "subscriber buffer full, dropping trigger",
				slog.Int("subscriber", id),
				slog.String("trigger", trigger.ID),
				slog.String("module", "bus"),
			)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) (<-chan poapbot.Trigger, func(), error) {
	ch := make(chan poapbot.Trigger, subscriberBuffer)

	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subscribers[id] = ch
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, id)
			b.mu.Unlock()
			close(ch)
		})
	}

	go func() {
		<-ctx.Done()
		cancel()
	}()

	return ch, cancel, nil
}
