package events

import "log/slog"

// SlogEmitter logs every event as a structured record. It is the default
// emitter wired by the daemon so downstream systems can tail the event
// stream without a dedicated bus.
type SlogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (e SlogEmitter) Emit(ev Event) {
	logger := e.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("ledger event", slog.String("type", ev.EventType()), slog.Any("event", ev))
}
