// Package eventbus publishes delivery-completion notifications
// (spec.md §4.6: "on_completed_event" is fire-and-forget from the
// dispatcher's point of view).
package eventbus

import "speechpool/logger"

// Bus is a fire-and-forget completion-event sink.
type Bus interface {
	Publish(event string)
}

// LogBus is the reference Bus: every event becomes one log line.
// Publish recovers from a panicking logger so a broken sink can never
// propagate into the delivery task that called it.
type LogBus struct {
	Logger logger.Logger
}

// NewLogBus returns a Bus that logs through log, or logger.Default if
// log is nil.
func NewLogBus(log logger.Logger) *LogBus {
	if log == nil {
		log = logger.Default
	}
	return &LogBus{Logger: log}
}

// Publish implements Bus.
func (b *LogBus) Publish(event string) {
	defer func() { _ = recover() }()
	b.Logger.Log(event)
}
