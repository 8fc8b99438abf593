package queue

import "errors"

// Sentinel kinds for queue errors.
var (
	ErrBackpressure = errors.New("lookup queue is full")
	ErrClosed       = errors.New("lookup queue is closed")
)
