package realtime

import "errors"

var (
	ErrAlreadyRunning = errors.New("realtime: manager is already running")
	ErrNotRunning     = errors.New("realtime: manager is not running")

	errStreamClosed = errors.New("realtime: push stream closed by server")
)
