package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dialTimeout    = 2 * time.Second
	messageTimeout = 500 * time.Millisecond
)

type testClient struct {
	conn   net.Conn
	reader *bufio.Reader
}

func newTestClient(t *testing.T, address string) *testClient {
	t.Helper()
	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.Dial("tcp", address)
	require.NoError(t, err, "could not connect to server")
	t.Cleanup(func() { conn.Close() })
	return &testClient{conn: conn, reader: bufio.NewReader(conn)}
}

func (c *testClient) readLine() (string, error) {
	c.conn.SetReadDeadline(time.Now().Add(messageTimeout))
	line, err := c.reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("failed to read message: %w", err)
	}
	return strings.TrimRight(line, "\n"), nil
}

func (c *testClient) expectMessage(t *testing.T, expected string) {
	t.Helper()
	line, err := c.readLine()
	require.NoError(t, err)
	assert.Equal(t, expected, line)
}

func (c *testClient) expectNothing(t *testing.T) {
	t.Helper()
	c.conn.SetReadDeadline(time.Now().Add(50 * time.Millisecond))
	line, err := c.reader.ReadString('\n')
	assert.Error(t, err, "unexpected line %q", line)
}

func (c *testClient) sendMessage(t *testing.T, message string) {
	t.Helper()
	_, err := c.conn.Write([]byte(message + "\n"))
	require.NoError(t, err)
}

func setupTestServer(t *testing.T, options ...Option) (*Server, string) {
	t.Helper()
	s, err := NewServer(options...)
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, listener) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
	return s, listener.Addr().String()
}

// join connects and registers name, waiting until the server has the user.
func join(t *testing.T, s *Server, addr, name string) *testClient {
	t.Helper()
	c := newTestClient(t, addr)
	before := len(s.Users())
	c.sendMessage(t, name)
	require.Eventually(t, func() bool { return len(s.Users()) == before+1 }, time.Second, 5*time.Millisecond)
	return c
}

func TestServer_ChatBetweenTwoClients(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")
	bob := join(t, s, addr, "bob")

	alice.sendMessage(t, "hello")

	bob.expectMessage(t, "alice: hello")
	alice.expectMessage(t, "alice: hello")
}

func TestServer_BoardLinesAreVerbatim(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")
	bob := join(t, s, addr, "bob")

	alice.sendMessage(t, "move D2-D4")
	bob.expectMessage(t, "move D2-D4")
	bob.sendMessage(t, "  hi there  ")
	alice.expectMessage(t, "move D2-D4")
	alice.expectMessage(t, "bob: hi there")
}

func TestServer_DuplicateNames(t *testing.T) {
	s, addr := setupTestServer(t)
	join(t, s, addr, "sam")
	join(t, s, addr, "sam")

	users := s.Users()
	require.Len(t, users, 2)
	assert.NotEqual(t, users[0].Addr, users[1].Addr)
	assert.NotEqual(t, users[0].Session, users[1].Session)
}

func TestServer_CloseBeforeUsername(t *testing.T) {
	s, addr := setupTestServer(t)
	c := newTestClient(t, addr)
	c.conn.Close()

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, s.Users())
	assert.Equal(t, 0, s.Hub().Subscribers())
}

func TestServer_EmptyUsername(t *testing.T) {
	s, addr := setupTestServer(t)
	c := newTestClient(t, addr)
	c.sendMessage(t, "   ")

	_, err := c.readLine()
	assert.Error(t, err)
	assert.Empty(t, s.Users())
}

func TestServer_DisconnectDeregisters(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")
	bob := join(t, s, addr, "bob")

	alice.conn.Close()
	require.Eventually(t, func() bool { return len(s.Users()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "bob", s.Users()[0].Name)
	assert.Equal(t, 1, s.Hub().Subscribers())

	// the survivor keeps working
	bob.sendMessage(t, "anyone?")
	bob.expectMessage(t, "bob: anyone?")
}

func TestServer_EmptyLineDisconnects(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")

	alice.sendMessage(t, "")
	require.Eventually(t, func() bool { return len(s.Users()) == 0 }, time.Second, 5*time.Millisecond)
	_, err := alice.readLine()
	assert.Error(t, err)
}

func TestServer_Announce(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")

	assert.Equal(t, 1, s.Announce("welcome"))
	alice.expectMessage(t, "server: welcome")
	alice.expectNothing(t)
}

func TestServer_ListenAndServeBindFailure(t *testing.T) {
	taken, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer taken.Close()

	s, err := NewServer()
	require.NoError(t, err)
	err = s.ListenAndServe(context.Background(), taken.Addr().String())
	assert.ErrorContains(t, err, "failed to start server")
}

func TestServer_Options(t *testing.T) {
	_, err := NewServer(WithBacklog(0))
	assert.Error(t, err)
	_, err = NewServer(WithLogger(nil))
	assert.Error(t, err)
	_, err = NewServer(WithMetrics(nil))
	assert.Error(t, err)

	s, err := NewServer(WithBacklog(2), nil)
	require.NoError(t, err)
	assert.Len(t, s.Hub().ring, 2)
}

func TestServer_WebSocketGateway(t *testing.T) {
	s, addr := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	web := httptest.NewServer(s.WebSocketHandler(ctx))
	defer web.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(web.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("carol")))
	require.Eventually(t, func() bool { return len(s.Users()) == 1 }, time.Second, 5*time.Millisecond)

	bob := join(t, s, addr, "bob")
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hi from the browser")))
	bob.expectMessage(t, "carol: hi from the browser")

	bob.sendMessage(t, "hi carol")
	ws.SetReadDeadline(time.Now().Add(messageTimeout))
	for _, want := range []string{"carol: hi from the browser", "bob: hi carol"} {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, want, string(data))
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	require.Eventually(t, func() bool { return len(s.Users()) == 1 }, time.Second, 5*time.Millisecond)
}

func TestServer_OverlongLineEndsOnlyThatConnection(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")
	bob := join(t, s, addr, "bob")

	bob.sendMessage(t, strings.Repeat("z", MaxLineLength+1))
	require.Eventually(t, func() bool { return len(s.Users()) == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, "alice", s.Users()[0].Name)
	alice.expectNothing(t)

	alice.sendMessage(t, "still here")
	alice.expectMessage(t, "alice: still here")
}

func TestServer_LineAtLimitIsRelayed(t *testing.T) {
	s, addr := setupTestServer(t)
	alice := join(t, s, addr, "alice")

	line := strings.Repeat("z", MaxLineLength)
	alice.sendMessage(t, line)
	alice.expectMessage(t, "alice: "+line)
}

func TestServer_WebSocketReadLimit(t *testing.T) {
	s, _ := setupTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	web := httptest.NewServer(s.WebSocketHandler(ctx))
	defer web.Close()

	ws, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(web.URL, "http"), nil)
	require.NoError(t, err)
	defer ws.Close()
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("carol")))
	require.Eventually(t, func() bool { return len(s.Users()) == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(strings.Repeat("z", MaxLineLength+3))))
	require.Eventually(t, func() bool { return len(s.Users()) == 0 }, time.Second, 5*time.Millisecond)
}

// flakyListener fails Accept a few times and then reports itself closed.
type flakyListener struct {
	failures int
	calls    []time.Time
}

func (l *flakyListener) Accept() (net.Conn, error) {
	l.calls = append(l.calls, time.Now())
	if len(l.calls) <= l.failures {
		return nil, errors.New("accept: too many open files")
	}
	return nil, net.ErrClosed
}

func (l *flakyListener) Close() error   { return nil }
func (l *flakyListener) Addr() net.Addr { return &net.TCPAddr{IP: net.IPv4(127, 0, 0, 1)} }

func TestServer_AcceptErrorsBackOff(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	l := &flakyListener{failures: 3}

	require.NoError(t, s.Serve(context.Background(), l))
	require.Len(t, l.calls, 4)
	for i := 1; i < len(l.calls); i++ {
		gap := l.calls[i].Sub(l.calls[i-1])
		assert.GreaterOrEqual(t, gap, minAcceptDelay<<(i-1), "retry %d", i)
	}
}

func TestServer_AcceptBackoffStopsOnShutdown(t *testing.T) {
	s, err := NewServer()
	require.NoError(t, err)
	l := &flakyListener{failures: 1000}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	require.NoError(t, s.Serve(ctx, l))
	assert.Less(t, time.Since(start), maxAcceptDelay)
	assert.Less(t, len(l.calls), 20)
}
