package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const DefaultChannel = "rbac:invalidate"

// RedisBus delivers locally and relays every event to peer instances over
// a Redis pub/sub channel. Events carrying this instance's origin are not
// delivered twice.
type RedisBus struct {
	local   *LocalBus
	client  *redis.Client
	channel string
	origin  string
	log     *logrus.Logger

	pubsub *redis.PubSub
	wg     sync.WaitGroup
}

// NewRedisClient parses url and checks connectivity
func NewRedisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	// Set connection timeouts
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// NewRedisBus subscribes to channel and starts relaying peer events.
// The subscription is confirmed before it returns.
func NewRedisBus(ctx context.Context, client *redis.Client, channel string, log *logrus.Logger) (*RedisBus, error) {
	if channel == "" {
		channel = DefaultChannel
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	pubsub := client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	b := &RedisBus{
		local:   NewLocalBus(),
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		log:     log,
		pubsub:  pubsub,
	}

	b.wg.Add(1)
	go b.relay(pubsub.Channel())
	return b, nil
}

func (b *RedisBus) relay(ch <-chan *redis.Message) {
	defer b.wg.Done()
	for msg := range ch {
		var ev Event
		if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
			b.log.WithError(err).WithField("channel", msg.Channel).Warn("dropping malformed invalidation event")
			continue
		}
		if ev.Origin == b.origin {
			continue
		}
		b.log.WithFields(logrus.Fields{
			"kind":   ev.Kind,
			"reason": ev.Reason,
			"origin": ev.Origin,
		}).Debug("peer invalidation event")
		b.local.dispatch(ev)
	}
}

// Publish delivers to local subscribers, then to peers. A Redis failure is
// returned after local delivery has happened; peers fall back to cache TTL.
func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	b.local.dispatch(ev)

	ev.Origin = b.origin
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	if err := b.client.Publish(ctx, b.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish failed: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(h Handler) {
	b.local.Subscribe(h)
}

func (b *RedisBus) Close() error {
	err := b.pubsub.Close()
	b.wg.Wait()
	return err
}
