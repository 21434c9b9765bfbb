package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/parleyhq/parley/internal/common/cnst"
	"github.com/parleyhq/parley/internal/common/config"
)

// Bridge replicates fan-out events between relay instances over a Redis
// pub/sub topic so a visitor on one instance reaches admins connected to
// another. Each instance keeps its own registries; only events travel.
type Bridge struct {
	logger *zap.Logger
	client redis.UniversalClient
	topic  string
	pubsub *redis.PubSub
}

// bridgeFrame is the wire shape on the Redis topic.
type bridgeFrame struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// NewBridge connects to Redis and subscribes to the configured topic.
func NewBridge(ctx context.Context, logger *zap.Logger, cfg config.BridgeConfig) (*Bridge, error) {
	var client redis.UniversalClient
	switch cfg.ClusterType {
	case cnst.RedisClusterTypeCluster:
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    []string{cfg.Addr},
			Username: cfg.Username,
			Password: cfg.Password,
		})
	case cnst.RedisClusterTypeSentinel:
		client = redis.NewFailoverClient(&redis.FailoverOptions{
			MasterName:    cfg.MasterName,
			SentinelAddrs: []string{cfg.Addr},
			Username:      cfg.Username,
			Password:      cfg.Password,
			DB:            cfg.DB,
		})
	default:
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Username: cfg.Username,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	topic := cfg.Topic
	if topic == "" {
		topic = "parley:relay"
	}

	return &Bridge{
		logger: logger.Named("relay.bridge"),
		client: client,
		topic:  topic,
		pubsub: client.Subscribe(ctx, topic),
	}, nil
}

// Run pumps remote events into the hub until the subscription closes.
func (b *Bridge) Run(hub *Hub) {
	ch := b.pubsub.Channel()
	for msg := range ch {
		var f bridgeFrame
		if err := json.Unmarshal([]byte(msg.Payload), &f); err != nil {
			b.logger.Error("failed to unmarshal bridge frame",
				zap.Error(err),
				zap.String("payload", msg.Payload))
			continue
		}
		if f.Origin == hub.InstanceID() {
			continue
		}
		f.Event.Origin = f.Origin
		hub.Post(f.Event)
	}
}

// Publish replicates one locally accepted event to the other instances.
// Publish failures are logged and dropped: the bridge inherits the relay's
// best-effort delivery contract.
func (b *Bridge) Publish(ev *Event, origin string) {
	payload, err := json.Marshal(bridgeFrame{Origin: origin, Event: *ev})
	if err != nil {
		b.logger.Error("failed to marshal bridge frame", zap.Error(err))
		return
	}
	if err := b.client.Publish(context.Background(), b.topic, payload).Err(); err != nil {
		b.logger.Warn("failed to publish bridge frame",
			zap.String("kind", string(ev.Kind)),
			zap.Error(err))
	}
}

// Close tears down the subscription and the client.
func (b *Bridge) Close() error {
	if err := b.pubsub.Close(); err != nil {
		return err
	}
	return b.client.Close()
}
