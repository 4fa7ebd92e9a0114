package relay

import (
	"fmt"

	"go.uber.org/zap"

	"pegrelay/internal/observe"
)

// Option configures a Server
type Option func(s *Server) error

// WithLogger replaces the default no-op logger.
func WithLogger(log *zap.Logger) Option {
	return func(s *Server) error {
		if log == nil {
			return fmt.Errorf("relay.WithLogger: nil logger")
		}
		s.log = log
		return nil
	}
}

// WithMetrics records server activity into m.
func WithMetrics(m *observe.Metrics) Option {
	return func(s *Server) error {
		if m == nil {
			return fmt.Errorf("relay.WithMetrics: nil metrics")
		}
		s.metrics = m
		return nil
	}
}

// WithBacklog sets how far a subscriber may lag before losing messages.
func WithBacklog(n int) Option {
	return func(s *Server) error {
		if n <= 0 {
			return fmt.Errorf("relay.WithBacklog: invalid backlog (%d)", n)
		}
		s.backlog = n
		return nil
	}
}
