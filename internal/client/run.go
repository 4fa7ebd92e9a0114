package client

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"pegrelay/internal/config"
	"pegrelay/internal/logging"
)

// Run connects to the relay and runs the terminal UI until the user quits or
// ctx is done. Failing to reach the relay is not fatal; the UI starts offline.
func Run(ctx context.Context, cfg config.Client) error {
	feed := logging.NewFeed(256)
	log := logging.NewFeedLogger(feed, cfg.LogLevel)
	defer log.Sync()

	opts := Options{
		Logs:     feed.Lines(),
		Logger:   log,
		Tick:     cfg.Tick,
		Username: cfg.Username,
	}
	mgr, err := Dial(ctx, cfg.Addr, log)
	if err != nil {
		log.Error("could not connect to relay", zap.String("addr", cfg.Addr), zap.Error(err))
	} else {
		defer mgr.Close()
		log.Info("connected to relay", zap.String("addr", cfg.Addr))
		opts.Net = mgr
		opts.Incoming = mgr.Incoming()
	}

	p := tea.NewProgram(New(opts), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
