package client

import "time"

// FPSCounter averages ticks over one second windows.
type FPSCounter struct {
	frames int
	last   time.Time
	fps    float64
}

func (f *FPSCounter) Tick(now time.Time) {
	if f.last.IsZero() {
		f.last = now
	}
	f.frames++
	if elapsed := now.Sub(f.last); elapsed >= time.Second {
		f.fps = float64(f.frames) / elapsed.Seconds()
		f.frames = 0
		f.last = now
	}
}

func (f *FPSCounter) FPS() float64 { return f.fps }
