package broadcast

import (
	"context"
	"encoding/json"
	"time"

	"github.com/rs/zerolog"

	"github.com/hoangpro267200/omen/internal/domain"
)

// SignalsChannel is the one channel the emitter notifies on (spec.md
// §4.11: "on every emit result, broadcast signal_emitted").
const SignalsChannel = "signals"

// Config selects local-only vs. Redis-distributed fan-out.
type Config struct {
	RedisURL string // empty disables the Redis bridge, per spec.md's documented fallback
}

// Broadcaster is the single entry point emitters and the HTTP layer use to
// fan out and subscribe to realtime events.
type Broadcaster struct {
	hub   *Hub
	redis *redisBridge
	log   zerolog.Logger
	stop  context.CancelFunc
}

// New builds a broadcaster. If cfg.RedisURL is set and reachable, messages
// are also mirrored through Redis for cross-instance fan-out; if it's
// unset or unreachable, the broadcaster silently runs local-only, exactly
// as the original falls back when REDIS_URL isn't configured.
func New(cfg Config, log zerolog.Logger) *Broadcaster {
	log = log.With().Str("component", "broadcaster").Logger()
	hub := NewHub(log)

	b := &Broadcaster{hub: hub, log: log}

	if cfg.RedisURL == "" {
		log.Info().Msg("broadcast: REDIS_URL not configured, running local-only")
		return b
	}

	bridge, err := newRedisBridge(cfg.RedisURL, hub, log)
	if err != nil {
		log.Warn().Err(err).Msg("broadcast: redis unavailable, running local-only")
		return b
	}
	b.redis = bridge

	ctx, cancel := context.WithCancel(context.Background())
	b.stop = cancel
	go bridge.listen(ctx, SignalsChannel)
	return b
}

// Hub exposes the local fan-out hub so the HTTP layer can register new
// WebSocket subscribers.
func (b *Broadcaster) Hub() *Hub { return b.hub }

// NotifyEmit publishes a signal_emitted event for one emit outcome. Every
// error is logged and swallowed: a broadcaster failure must never affect
// the emit result it is reporting on (spec.md §4.11).
func (b *Broadcaster) NotifyEmit(ctx context.Context, signal domain.OmenSignal, status domain.EmitStatus) {
	msg := Message{
		Channel:   SignalsChannel,
		EventType: "signal_emitted",
		SignalID:  signal.SignalID,
		Title:     signal.Title,
		Category:  string(signal.Category),
		Status:    string(status),
		Timestamp: time.Now().UTC(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		b.log.Warn().Err(err).Msg("broadcast: marshal signal_emitted event failed")
		return
	}
	b.hub.BroadcastLocal(SignalsChannel, payload)

	if b.redis != nil {
		publishCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := b.redis.publish(publishCtx, msg); err != nil {
			b.log.Warn().Err(err).Msg("broadcast: redis publish failed, local subscribers already notified")
		}
	}
}

// Close releases the Redis connection, if one was opened.
func (b *Broadcaster) Close() error {
	if b.stop != nil {
		b.stop()
	}
	if b.redis != nil {
		return b.redis.close()
	}
	return nil
}
