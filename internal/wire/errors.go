package wire

import "errors"

// Canonical error kinds surfaced across the bridge.
var (
	// ErrNoClientsConnected is returned when a request is issued while no
	// editor client is connected.
	ErrNoClientsConnected = errors.New("no Unity clients connected")

	// ErrConnectionClosed is returned when the target client disconnects
	// before its response arrives, or when the bridge shuts down.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrTimeout is returned when a routed request receives no response
	// within its deadline.
	ErrTimeout = errors.New("request timed out")

	// ErrProtocol covers malformed JSON, missing or malformed commands, and
	// unknown command prefixes.
	ErrProtocol = errors.New("protocol error")

	// ErrHandlerDisabled is returned when a registered handler has been
	// disabled at runtime.
	ErrHandlerDisabled = errors.New("handler disabled")

	// ErrBufferOverflow is returned by the framer when a peer sends more
	// than MaxBufferSize bytes without completing a message.
	ErrBufferOverflow = errors.New("receive buffer overflow")
)
