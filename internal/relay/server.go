package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"pegrelay/internal/observe"
)

const (
	minAcceptDelay = 5 * time.Millisecond
	maxAcceptDelay = time.Second
)

// Server accepts connections and relays their lines through one Hub.
type Server struct {
	hub     *Hub
	users   *Registry
	log     *zap.Logger
	metrics *observe.Metrics
	backlog int

	mu   sync.Mutex
	addr net.Addr
}

func NewServer(options ...Option) (*Server, error) {
	s := &Server{
		users:   NewRegistry(),
		log:     zap.NewNop(),
		backlog: DefaultBacklog,
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(s); err != nil {
			return nil, err
		}
	}
	if s.metrics == nil {
		s.metrics = observe.NewMetrics()
	}
	s.hub = NewHub(s.backlog)
	return s, nil
}

func (s *Server) Hub() *Hub                 { return s.hub }
func (s *Server) Metrics() *observe.Metrics { return s.metrics }

// Users returns the registered users ordered by join time.
func (s *Server) Users() []User { return s.users.Snapshot() }

// Addr is the address of the TCP listener, nil before ListenAndServe binds.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Publish hands m to the hub and counts it.
func (s *Server) Publish(m Message) int {
	s.metrics.IncMessage(m.Kind.String())
	return s.hub.Publish(m)
}

// Announce publishes an operator chat line.
func (s *Server) Announce(text string) int {
	return s.Publish(ChatMessage("server", text))
}

// ListenAndServe binds addr and serves until ctx is done. A bind failure is
// returned immediately.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return s.Serve(ctx, listener)
}

// Serve accepts connections on listener until ctx is done. The listener is
// closed on return.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	s.mu.Lock()
	s.addr = listener.Addr()
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, func() { listener.Close() })
	defer stop()
	defer listener.Close()

	s.log.Info("listening", zap.String("addr", listener.Addr().String()))
	var delay time.Duration
	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			// back off on persistent failures such as running out of file descriptors
			if delay == 0 {
				delay = minAcceptDelay
			} else {
				delay = min(delay*2, maxAcceptDelay)
			}
			s.log.Warn("failed to accept connection", zap.Error(err), zap.Duration("retry_in", delay))
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil
			}
			continue
		}
		delay = 0
		go s.handleConnection(ctx, NewTCPConn(conn))
	}
}

// handleConnection runs one connection from the username line to close.
// The first line names the user; an empty one or EOF ends the connection
// unregistered. After that a read loop and a write loop run together and
// the first one to stop takes the other down with it.
func (s *Server) handleConnection(ctx context.Context, conn LineConn) {
	defer conn.Close()
	s.metrics.IncConnection()
	addr := conn.RemoteAddr()

	line, err := conn.ReadLine()
	if err != nil {
		s.log.Debug("connection closed before username", zap.String("addr", addr), zap.Error(err))
		return
	}
	name := strings.TrimSpace(line)
	if name == "" {
		s.log.Debug("empty username", zap.String("addr", addr))
		return
	}

	user := User{
		Name:     name,
		Addr:     addr,
		Session:  uuid.NewString(),
		JoinTime: time.Now(),
	}
	sub := s.hub.Subscribe()
	s.users.Register(user)
	s.metrics.AddOnline(1)
	s.log.Info("user connected",
		zap.String("user", user.Name),
		zap.String("addr", addr),
		zap.String("session", user.Session))

	defer func() {
		sub.Close()
		s.users.Deregister(addr)
		s.metrics.AddOnline(-1)
	}()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		<-gctx.Done()
		// unblocks whichever loop is still waiting on the socket
		conn.Close()
		return nil
	})
	g.Go(func() error { return s.readLoop(conn, user) })
	g.Go(func() error { return s.writeLoop(gctx, conn, sub, user) })

	err = g.Wait()
	fields := []zap.Field{zap.String("user", user.Name), zap.String("session", user.Session)}
	if err != nil && !errors.Is(err, ErrPeerGone) && !errors.Is(err, context.Canceled) {
		fields = append(fields, zap.Error(err))
	}
	s.log.Info("user disconnected", fields...)
}

func (s *Server) readLoop(conn LineConn, user User) error {
	for {
		line, err := conn.ReadLine()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return ErrPeerGone
			}
			return fmt.Errorf("read from %s: %w", user.Addr, err)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return ErrPeerGone
		}
		s.Publish(Classify(user.Name, line))
	}
}

func (s *Server) writeLoop(ctx context.Context, conn LineConn, sub *Subscription, user User) error {
	for {
		msg, err := sub.Recv(ctx)
		if err != nil {
			var lag *LagError
			if errors.As(err, &lag) {
				s.metrics.AddLagged(lag.Skipped)
				s.log.Warn("subscriber lagged",
					zap.String("user", user.Name),
					zap.Uint64("skipped", lag.Skipped))
				continue
			}
			return err
		}
		if err := conn.WriteLine(msg.Text); err != nil {
			return fmt.Errorf("write to %s: %w", user.Addr, err)
		}
	}
}
