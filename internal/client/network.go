package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// ErrNotConnected is returned by Send once the relay connection is gone.
var ErrNotConnected = errors.New("client: not connected")

// Sender delivers one protocol line to the relay.
type Sender interface {
	Send(text string) error
}

// Manager owns the connection to the relay. A background goroutine feeds
// received lines into Incoming, which is closed when the connection ends.
// Lines of any length are accepted; the relay bounds what it forwards.
type Manager struct {
	conn     net.Conn
	log      *zap.Logger
	incoming chan string
	done     chan struct{}

	mu        sync.Mutex
	gone      bool
	closeOnce sync.Once
}

// Dial connects to the relay at addr.
func Dial(ctx context.Context, addr string, log *zap.Logger) (*Manager, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return NewManager(conn, log), nil
}

// NewManager takes over conn and starts receiving from it.
func NewManager(conn net.Conn, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	m := &Manager{
		conn:     conn,
		log:      log,
		incoming: make(chan string, 256),
		done:     make(chan struct{}),
	}
	go m.receive()
	return m
}

// Incoming yields lines from the relay in arrival order.
func (m *Manager) Incoming() <-chan string { return m.incoming }

// Send writes text as one line. Writes are serialized so lines from
// concurrent callers never interleave. A failure is returned to the caller
// and does not close the connection.
func (m *Manager) Send(text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gone {
		return ErrNotConnected
	}
	if _, err := io.WriteString(m.conn, text+"\n"); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}

// Close shuts the connection and stops the receive goroutine.
func (m *Manager) Close() error {
	var err error
	m.closeOnce.Do(func() {
		close(m.done)
		err = m.conn.Close()
	})
	return err
}

func (m *Manager) receive() {
	defer close(m.incoming)

	reader := bufio.NewReader(m.conn)
	var err error
	for {
		var line string
		line, err = reader.ReadString('\n')
		if err != nil {
			break
		}
		select {
		case m.incoming <- strings.TrimRight(line, "\r\n"):
		case <-m.done:
			return
		}
	}

	m.mu.Lock()
	m.gone = true
	m.mu.Unlock()

	select {
	case <-m.done:
		return
	default:
	}
	if errors.Is(err, io.EOF) {
		m.log.Warn("relay closed the connection")
	} else {
		m.log.Warn("relay connection lost", zap.Error(err))
	}
	// the relay only forgets this user once the socket is gone
	m.Close()
}

// offline stands in for a Manager when the relay could not be reached.
type offline struct{}

func (offline) Send(string) error { return ErrNotConnected }
