package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ChannelPrefix prefixes the Redis channel of an event room.
	ChannelPrefix  = "event:"
	publishTimeout = 5 * time.Second
)

// Channel returns the Redis channel for an event room.
func Channel(eventID uuid.UUID) string {
	return ChannelPrefix + eventID.String()
}

// envelope is the message published to Redis for cross-instance broadcast.
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
	At    int64           `json:"at"`
}

// RedisPubSub bridges event rooms over Redis pub/sub.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for event rooms.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Publish publishes an encoded event to the room's channel.
func (r *RedisPubSub) Publish(eventID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(envelope{Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel(eventID), body).Err()
}

// PublishEvent encodes payload and publishes it, logging failures. Processes
// without a hub, such as the worker, publish through this.
func (r *RedisPubSub) PublishEvent(eventID uuid.UUID, event string, payload interface{}) {
	data, err := encode(payload)
	if err == nil {
		err = r.Publish(eventID, event, data)
	}
	if err != nil {
		r.logger.Warn("publish event failed", zap.String("event_id", eventID.String()), zap.String("event", event), zap.Error(err))
	}
}

// Subscribe subscribes to a room's channel and calls handler for each message.
// The returned cancel stops the subscription.
func (r *RedisPubSub) Subscribe(eventID uuid.UUID, handler func(event string, payload []byte)) (cancel func(), err error) {
	ctx, cancelCtx := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(ctx, Channel(eventID))
	if _, err := pubsub.Receive(ctx); err != nil {
		cancelCtx()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	ch := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var e envelope
				if err := json.Unmarshal([]byte(msg.Payload), &e); err != nil {
					r.logger.Debug("drop malformed room message", zap.String("channel", msg.Channel), zap.Error(err))
					continue
				}
				handler(e.Event, e.Data)
			}
		}
	}()
	return cancelCtx, nil
}
