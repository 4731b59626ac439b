package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrClosed      = errors.New("store closed")
	ErrEmptyKey    = errors.New("store key is required")
	ErrStorePath   = errors.New("store path is required")
	ErrCorruptBlob = errors.New("corrupt saved results")
)
