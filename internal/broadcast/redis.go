package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// redisBridge publishes local messages to Redis and forwards every
// message published by another instance into the local Hub, skipping its
// own. Grounded on original_source's redis_pubsub.py RedisPubSubManager,
// translated from its asyncio listener task to a goroutine reading
// *redis.PubSub's channel.
type redisBridge struct {
	client     *redis.Client
	instanceID string
	hub        *Hub
	log        zerolog.Logger
}

func newInstanceID() string {
	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "omen"
	}
	return fmt.Sprintf("%s-%s", hostname, uuid.NewString()[:8])
}

func newRedisBridge(redisURL string, hub *Hub, log zerolog.Logger) (*redisBridge, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("broadcast: parse REDIS_URL: %w", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("broadcast: ping redis: %w", err)
	}

	return &redisBridge{
		client:     client,
		instanceID: newInstanceID(),
		hub:        hub,
		log:        log.With().Str("component", "broadcast_redis").Logger(),
	}, nil
}

func (b *redisBridge) publish(ctx context.Context, msg Message) error {
	msg.SenderInstance = b.instanceID
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, channelPrefix+msg.Channel, data).Err()
}

// listen subscribes to channel and forwards every remote message (one not
// sent by this instance) into the local hub, until ctx is cancelled.
func (b *redisBridge) listen(ctx context.Context, channel string) {
	sub := b.client.Subscribe(ctx, channelPrefix+channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			var decoded Message
			if err := json.Unmarshal([]byte(msg.Payload), &decoded); err != nil {
				b.log.Warn().Err(err).Msg("broadcast: malformed redis message, dropping")
				continue
			}
			if decoded.SenderInstance == b.instanceID {
				continue // already delivered locally when we published it
			}
			payload, err := json.Marshal(decoded)
			if err != nil {
				continue
			}
			b.hub.BroadcastLocal(channel, payload)
		}
	}
}

func (b *redisBridge) close() error {
	return b.client.Close()
}
