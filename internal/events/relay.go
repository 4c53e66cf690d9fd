package events

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// DefaultRelayChannel is the Redis pub/sub channel list changes travel on.
const DefaultRelayChannel = "events:list-changes"

// RedisRelay fans list changes out to every API instance. Publish writes to
// Redis; Run forwards everything received on the channel into the local Hub,
// including this instance's own messages.
type RedisRelay struct {
	R       *redis.Client
	Hub     *Hub
	Channel string
	Logger  zerolog.Logger
}

func (r *RedisRelay) channel() string {
	if r.Channel == "" {
		return DefaultRelayChannel
	}
	return r.Channel
}

// Publish implements Publisher. Redis failures fall back to local delivery.
func (r *RedisRelay) Publish(ctx context.Context, change ListChange) {
	if r == nil {
		return
	}
	if r.R == nil {
		if r.Hub != nil {
			r.Hub.Publish(ctx, change)
		}
		return
	}
	data, err := json.Marshal(change)
	if err != nil {
		r.Logger.Error().Err(err).Str("topic", change.Topic).Msg("encode list change")
		return
	}
	if err := r.R.Publish(ctx, r.channel(), data).Err(); err != nil {
		r.Logger.Warn().Err(err).Str("topic", change.Topic).Msg("relay publish failed, delivering locally")
		if r.Hub != nil {
			r.Hub.Publish(ctx, change)
		}
	}
}

// Run subscribes to the relay channel until ctx is cancelled. ready, when not
// nil, is closed once the subscription is confirmed.
func (r *RedisRelay) Run(ctx context.Context, ready chan<- struct{}) error {
	pubsub := r.R.Subscribe(ctx, r.channel())
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return err
	}
	if ready != nil {
		close(ready)
	}
	msgs := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-msgs:
			if !ok {
				return nil
			}
			var change ListChange
			if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
				r.Logger.Warn().Err(err).Msg("discard malformed list change")
				continue
			}
			if r.Hub != nil {
				r.Hub.Publish(ctx, change)
			}
		}
	}
}
