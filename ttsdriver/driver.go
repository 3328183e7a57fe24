// Package ttsdriver defines the TTS Driver contract (spec.md §4.3) and
// a small in-process stub implementation for tests and demos.
package ttsdriver

import (
	"context"
	"strings"
	"time"

	"speechpool/logger"
	"speechpool/streambuf"
)

// Driver converts text into a byte stream and writes it into w, calling
// w.Close when it's done — with incomplete=false on a clean finish, or
// incomplete=true on any upstream failure or cancellation. Convert must
// never let a panic escape to the caller; a broken upstream marks the
// buffer corrupted instead of taking down the process.
type Driver interface {
	Convert(ctx context.Context, text string, w *streambuf.Writer)
}

// UpperCaseDriver is the reference stub upstream: it upper-cases text
// and emits it one byte per Tick, mirroring the original emulator's
// "_play" loop.
type UpperCaseDriver struct {
	Tick   time.Duration
	Logger logger.Logger
}

// NewUpperCaseDriver returns a driver that emits one byte every tick. A
// non-positive tick falls back to a 5ms default.
func NewUpperCaseDriver(tick time.Duration, log logger.Logger) *UpperCaseDriver {
	if log == nil {
		log = logger.Default
	}
	return &UpperCaseDriver{Tick: tick, Logger: log}
}

func (d *UpperCaseDriver) tick() time.Duration {
	if d.Tick <= 0 {
		return 5 * time.Millisecond
	}
	return d.Tick
}

// Convert implements Driver.
func (d *UpperCaseDriver) Convert(ctx context.Context, text string, w *streambuf.Writer) {
	defer func() {
		if r := recover(); r != nil {
			d.Logger.Errorf("ttsdriver: recovered from panic: %v", r)
			_ = w.Close(true)
		}
	}()

	upper := strings.ToUpper(text)
	ticker := time.NewTicker(d.tick())
	defer ticker.Stop()

	for i := 0; i < len(upper); i++ {
		select {
		case <-ctx.Done():
			d.Logger.Debug("ttsdriver: upstream cancelled mid-conversion")
			_ = w.Close(true)
			return
		case <-ticker.C:
			if err := w.Write([]byte{upper[i]}); err != nil {
				d.Logger.Errorf("ttsdriver: write failed: %v", err)
				return
			}
		}
	}
	_ = w.Close(false)
}
