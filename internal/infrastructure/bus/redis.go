package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/totegamma/poapbot"
)

type RedisBus struct {
	rdb     *redis.Client
	channel string
}

func NewRedisBus(redisClient *redis.Client) *RedisBus {
	return &RedisBus{
		rdb:     redisClient,
		channel: Channel,
	}
}

func (b *RedisBus) Publish(ctx context.Context, trigger poapbot.Trigger) error {

	jsonstr, err := Encode(Stamp(trigger))
	if err != nil {
		return err
	}

	err = b.rdb.Publish(ctx, b.channel, jsonstr).Err()
	if err != nil {
		return errors.Wrap(err, "failed to publish trigger")
	}

	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) (<-chan poapbot.Trigger, func(), error) {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, nil, errors.Wrap(err, "failed to subscribe")
	}

	out := make(chan poapbot.Trigger, subscriberBuffer)
	var once sync.Once
	cancel := func() {
		once.Do(func() {
			pubsub.Close()
		})
	}

	go func() {
		defer close(out)
		messages := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				cancel()
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				trigger, err := Decode([]byte(msg.Payload))
				if err != nil {
					slog.Warn("dropping malformed trigger", slog.String("error", err.Error()), slog.String("module", "bus"))
					continue
				}
				select {
				case out <- trigger:
				case <-ctx.Done():
					cancel()
					return
				}
			}
		}
	}()

	return out, cancel, nil
}
