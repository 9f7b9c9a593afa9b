package relay

import "errors"

// State is the lifecycle position of a relay session.
type State int

const (
	Idle State = iota
	Connecting
	Ready
	Streaming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Ready:
		return "ready"
	case Streaming:
		return "streaming"
	default:
		return "unknown"
	}
}

var (
	// ErrAlreadyStarted is returned by every Start call after the first.
	ErrAlreadyStarted = errors.New("relay session already started")
	// ErrReadyTimeout means the voice connection never became ready.
	ErrReadyTimeout = errors.New("voice connection not ready in time")
	// ErrNoDestination means no voice channel was configured.
	ErrNoDestination = errors.New("no voice channel configured")
	// ErrFrameDropped is returned when the voice connection cannot take a frame in time.
	ErrFrameDropped = errors.New("voice connection busy, frame dropped")
)
