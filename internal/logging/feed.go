package logging

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Feed is a WriteSyncer that turns encoded log entries into lines on a
// bounded channel. Lines are dropped when nobody drains the channel fast
// enough; logging never blocks the caller.
type Feed struct {
	mu      sync.Mutex
	lines   chan string
	dropped int
}

// NewFeed returns a Feed buffering up to size lines.
func NewFeed(size int) *Feed {
	if size <= 0 {
		size = 1
	}
	return &Feed{lines: make(chan string, size)}
}

// Lines is the receive side of the feed.
func (f *Feed) Lines() <-chan string { return f.lines }

// Dropped returns how many lines were discarded because the buffer was full.
func (f *Feed) Dropped() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.dropped
}

func (f *Feed) Write(p []byte) (int, error) {
	for _, line := range strings.Split(strings.TrimRight(string(p), "\n"), "\n") {
		if line == "" {
			continue
		}
		select {
		case f.lines <- line:
		default:
			f.mu.Lock()
			f.dropped++
			f.mu.Unlock()
		}
	}
	return len(p), nil
}

func (f *Feed) Sync() error { return nil }

// NewFeedLogger returns a console logger whose entries end up on f.
func NewFeedLogger(f *Feed, level string) *zap.Logger {
	cfg := zapcore.EncoderConfig{
		TimeKey:     "ts",
		LevelKey:    "level",
		MessageKey:  "msg",
		LineEnding:  zapcore.DefaultLineEnding,
		EncodeLevel: zapcore.CapitalLevelEncoder,
		EncodeTime:  zapcore.TimeEncoderOfLayout("15:04:05"),
	}
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(cfg), f, ParseLevel(level))
	return zap.New(core)
}
