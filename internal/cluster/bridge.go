package cluster

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pegrelay/internal/observe"
	"pegrelay/internal/relay"
)

// Relay is the part of the server the bridge drives.
type Relay interface {
	Hub() *relay.Hub
	Publish(m relay.Message) int
	Metrics() *observe.Metrics
}

// publisher is the write side of the Redis client.
type publisher interface {
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
}

// envelope is the JSON payload exchanged on the Redis channel.
type envelope struct {
	Origin string `json:"origin"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

// Bridge mirrors hub traffic between relay instances over one Redis pub/sub
// channel. Only locally published messages are exported, so relayed messages
// never bounce back.
type Bridge struct {
	Instance string

	rdb     *redis.Client
	pub     publisher
	relay   Relay
	channel string
	log     *zap.Logger
}

// Connect parses a redis:// URL and checks the server answers.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return rdb, nil
}

func NewBridge(rdb *redis.Client, r Relay, channel string, log *zap.Logger) *Bridge {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bridge{
		Instance: uuid.NewString(),
		rdb:      rdb,
		pub:      rdb,
		relay:    r,
		channel:  channel,
		log:      log,
	}
}

// Run exchanges messages until ctx is done or Redis fails.
func (b *Bridge) Run(ctx context.Context) error {
	pubsub := b.rdb.Subscribe(ctx, b.channel)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", b.channel, err)
	}
	sub := b.relay.Hub().Subscribe()
	defer sub.Close()

	b.log.Info("cluster bridge running",
		zap.String("channel", b.channel),
		zap.String("instance", b.Instance))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return b.exportLoop(gctx, sub) })
	g.Go(func() error { return b.importLoop(gctx, pubsub.Channel()) })
	return g.Wait()
}

func (b *Bridge) exportLoop(ctx context.Context, sub *relay.Subscription) error {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			var lag *relay.LagError
			if errors.As(err, &lag) {
				b.log.Warn("bridge lagged", zap.Uint64("skipped", lag.Skipped))
				continue
			}
			return err
		}
		payload, ok := b.encode(msg)
		if !ok {
			continue
		}
		if err := b.pub.Publish(ctx, b.channel, payload).Err(); err != nil {
			b.log.Warn("bridge publish failed", zap.Error(err))
			continue
		}
		b.relay.Metrics().IncBridged("out")
	}
}

func (b *Bridge) importLoop(ctx context.Context, ch <-chan *redis.Message) error {
	for {
		select {
		case in, ok := <-ch:
			if !ok {
				return nil
			}
			msg, ok := b.decode(in.Payload)
			if !ok {
				continue
			}
			b.relay.Publish(msg)
			b.relay.Metrics().IncBridged("in")
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// encode returns the payload for a local message, or false for messages that
// came from another instance.
func (b *Bridge) encode(msg relay.Message) ([]byte, bool) {
	if msg.Origin != "" {
		return nil, false
	}
	data, err := json.Marshal(envelope{Origin: b.Instance, Kind: msg.Kind.String(), Text: msg.Text})
	if err != nil {
		return nil, false
	}
	return data, true
}

// decode accepts payloads from other instances only.
func (b *Bridge) decode(payload string) (relay.Message, bool) {
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		b.log.Debug("bad bridge payload", zap.Error(err))
		return relay.Message{}, false
	}
	if env.Origin == "" || env.Origin == b.Instance {
		return relay.Message{}, false
	}
	kind := relay.KindChat
	if env.Kind == relay.KindBoard.String() {
		kind = relay.KindBoard
	}
	return relay.Message{Kind: kind, Text: env.Text, Origin: env.Origin}, true
}
