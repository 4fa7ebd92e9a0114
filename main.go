// main.go
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"pegrelay/internal/client"
	"pegrelay/internal/cluster"
	"pegrelay/internal/config"
	"pegrelay/internal/console"
	"pegrelay/internal/logging"
	"pegrelay/internal/observe"
	"pegrelay/internal/relay"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "pegrelay",
		Short:        "Line based chat relay with a peg solitaire terminal client",
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(), newJoinCmd())
	return root
}

func newServeCmd() *cobra.Command {
	cfg := config.DefaultServer().FromEnv()

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the relay server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServer(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "TCP listen address")
	flags.StringVar(&cfg.WSAddr, "ws-addr", cfg.WSAddr, "websocket gateway address (disabled when empty)")
	flags.StringVar(&cfg.MetricsAddr, "metrics-addr", cfg.MetricsAddr, "address for /metrics and /healthz (disabled when empty)")
	flags.IntVar(&cfg.Backlog, "backlog", cfg.Backlog, "messages a slow client may fall behind before losing the oldest")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flags.BoolVar(&cfg.LogJSON, "log-json", cfg.LogJSON, "log as JSON")
	flags.StringVar(&cfg.ActivityLog, "activity-log", cfg.ActivityLog, "append activity to this file (disabled when empty)")
	flags.StringVar(&cfg.RedisURL, "redis-url", cfg.RedisURL, "bridge traffic with other relays through this Redis (disabled when empty)")
	flags.StringVar(&cfg.RedisChannel, "redis-channel", cfg.RedisChannel, "Redis pub/sub channel for the bridge")
	flags.BoolVar(&cfg.UI, "ui", cfg.UI, "show the operator console")
	return cmd
}

func newJoinCmd() *cobra.Command {
	cfg := config.DefaultClient().FromEnv()

	cmd := &cobra.Command{
		Use:   "join",
		Short: "Connect to a relay with the terminal client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := cfg.Validate(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return client.Run(ctx, cfg)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&cfg.Addr, "addr", cfg.Addr, "relay address")
	flags.DurationVar(&cfg.Tick, "tick", cfg.Tick, "render tick interval")
	flags.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "level of the Logs tab")
	flags.StringVar(&cfg.Username, "name", cfg.Username, "register with this username right away")
	return cmd
}

func runServer(ctx context.Context, cfg config.Server) error {
	opts := logging.Options{
		Level:    cfg.LogLevel,
		JSON:     cfg.LogJSON,
		Activity: cfg.ActivityLog,
	}
	if cfg.UI {
		// the console owns the terminal
		opts.Output = zapcore.AddSync(io.Discard)
	}
	log, closeLog, err := logging.New(opts)
	if err != nil {
		return err
	}
	defer closeLog()
	defer log.Sync()

	metrics := observe.NewMetrics()
	server, err := relay.NewServer(
		relay.WithLogger(log),
		relay.WithMetrics(metrics),
		relay.WithBacklog(cfg.Backlog),
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return server.ListenAndServe(gctx, cfg.Addr) })
	if cfg.WSAddr != "" {
		g.Go(func() error { return server.ListenAndServeWS(gctx, cfg.WSAddr) })
	}
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			log.Info("metrics listening", zap.String("addr", cfg.MetricsAddr))
			return observe.StartHTTP(gctx, cfg.MetricsAddr, metrics)
		})
	}
	if cfg.RedisURL != "" {
		rdb, err := cluster.Connect(gctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		defer rdb.Close()
		bridge := cluster.NewBridge(rdb, server, cfg.RedisChannel, log)
		g.Go(func() error {
			if err := bridge.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if cfg.UI {
		g.Go(func() error {
			defer cancel()
			con, err := console.New(server, "Listening on "+cfg.Addr)
			if err != nil {
				return err
			}
			return con.Run(gctx)
		})
	}

	return g.Wait()
}
