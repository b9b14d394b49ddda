package common

import "errors"

var ErrActionPaused = errors.New("action paused")

// PauseView reports whether a named action is currently paused.
type PauseView interface {
	IsPaused(action string) bool
}

// Guard rejects the call when the given action is paused.
func Guard(p PauseView, action string) error {
	if p == nil || action == "" {
		return nil
	}
	if p.IsPaused(action) {
		return ErrActionPaused
	}
	return nil
}
