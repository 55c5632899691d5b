package events

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher publishes events on a pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
}

func NewRedisPublisher(rdb *redis.Client, channel string) *RedisPublisher {
	return &RedisPublisher{rdb: rdb, channel: channel}
}

func (p *RedisPublisher) Publish(ctx context.Context, ev Event) error {
	payload, err := encode(ev)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, p.channel, payload).Err()
}

// Subscribe calls fn for every event on channel until ctx is done.
// Malformed payloads are skipped.
func Subscribe(ctx context.Context, rdb *redis.Client, channel string, fn func(Event)) error {
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			ev, err := decode(msg.Payload)
			if err != nil {
				continue
			}
			fn(ev)
		}
	}
}

var _ Publisher = (*RedisPublisher)(nil)
