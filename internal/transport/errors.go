package transport

import "errors"

var (
	// ErrEmptyTopic is returned when advertising or subscribing to "".
	ErrEmptyTopic = errors.New("transport: empty topic name")

	// ErrNodeShutdown is returned by operations on a node after Shutdown.
	ErrNodeShutdown = errors.New("transport: node is shut down")
)
