package service

import "errors"

var (
	// ErrNotStarted is returned by operations called before Start or after Stop.
	ErrNotStarted = errors.New("service not started")
	// ErrPendingChanges is returned by Reload while local changes are still
	// waiting to be written to the store.
	ErrPendingChanges = errors.New("local changes not yet saved")
)
