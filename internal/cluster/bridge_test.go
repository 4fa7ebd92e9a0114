package cluster

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pegrelay/internal/relay"
)

func newTestBridge(t *testing.T) *Bridge {
	t.Helper()
	s, err := relay.NewServer()
	require.NoError(t, err)
	return NewBridge(nil, s, "pegrelay:test", nil)
}

func TestEncodeDecode(t *testing.T) {
	a := newTestBridge(t)
	b := newTestBridge(t)
	require.NotEqual(t, a.Instance, b.Instance)

	payload, ok := a.encode(relay.BoardUpdate("move A3-A5"))
	require.True(t, ok)
	assert.JSONEq(t, `{"origin":"`+a.Instance+`","kind":"board","text":"move A3-A5"}`, string(payload))

	msg, ok := b.decode(string(payload))
	require.True(t, ok)
	assert.Equal(t, relay.Message{Kind: relay.KindBoard, Text: "move A3-A5", Origin: a.Instance}, msg)

	_, ok = a.decode(string(payload))
	assert.False(t, ok, "own messages are ignored")
}

func TestRemoteMessagesAreNotExported(t *testing.T) {
	b := newTestBridge(t)
	_, ok := b.encode(relay.Message{Kind: relay.KindChat, Text: "bob: hi", Origin: "other"})
	assert.False(t, ok)
}

func TestDecodeRejectsGarbage(t *testing.T) {
	b := newTestBridge(t)
	for _, payload := range []string{"", "not json", `{"kind":"chat","text":"no origin"}`} {
		_, ok := b.decode(payload)
		assert.False(t, ok, payload)
	}
	msg, ok := b.decode(`{"origin":"x","kind":"whatever","text":"alice: hi"}`)
	require.True(t, ok)
	assert.Equal(t, relay.KindChat, msg.Kind)
}

func TestImportLoopPublishesIntoHub(t *testing.T) {
	s, err := relay.NewServer()
	require.NoError(t, err)
	b := NewBridge(nil, s, "pegrelay:test", nil)
	sub := s.Hub().Subscribe()
	defer sub.Close()

	ch := make(chan *redis.Message, 2)
	ch <- &redis.Message{Payload: `{"origin":"other","kind":"chat","text":"bob: hi"}`}
	ch <- &redis.Message{Payload: `{"origin":"` + b.Instance + `","kind":"chat","text":"echo"}`}
	close(ch)
	require.NoError(t, b.importLoop(context.Background(), ch))

	msg, err := sub.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "bob: hi", msg.Text)
	assert.Equal(t, "other", msg.Origin)
}

func TestConnectBadURL(t *testing.T) {
	_, err := Connect(context.Background(), "not-a-url")
	assert.ErrorContains(t, err, "parse redis url")
}

// recordingPublisher stands in for Redis on the export side.
type recordingPublisher struct {
	payloads chan string
}

func (p *recordingPublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.payloads <- channel + " " + string(message.([]byte))
	return redis.NewIntResult(1, nil)
}

func TestExportLoopPublishesLocalMessages(t *testing.T) {
	s, err := relay.NewServer()
	require.NoError(t, err)
	b := NewBridge(nil, s, "pegrelay:test", nil)
	pub := &recordingPublisher{payloads: make(chan string, 4)}
	b.pub = pub

	sub := s.Hub().Subscribe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		defer sub.Close()
		done <- b.exportLoop(ctx, sub)
	}()

	s.Publish(relay.ChatMessage("alice", "hi"))
	s.Publish(relay.Message{Kind: relay.KindChat, Text: "bob: from afar", Origin: "other"})
	s.Publish(relay.BoardUpdate("move A3-A5"))

	prefix := `pegrelay:test {"origin":"` + b.Instance + `",`
	assert.Equal(t, prefix+`"kind":"chat","text":"alice: hi"}`, <-pub.payloads)
	assert.Equal(t, prefix+`"kind":"board","text":"move A3-A5"}`, <-pub.payloads)

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Empty(t, pub.payloads)
}

func TestRunFailsWithoutRedis(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 200 * time.Millisecond, MaxRetries: -1})
	defer rdb.Close()
	s, err := relay.NewServer()
	require.NoError(t, err)

	err = NewBridge(rdb, s, "pegrelay:test", nil).Run(context.Background())
	assert.ErrorContains(t, err, "subscribe pegrelay:test")
	assert.Equal(t, 0, s.Hub().Subscribers())
}
