package radio

import "errors"

// Classified failures of the playback backend and the audio source
var (
	ErrUnreachableBackend     = errors.New("playback backend unreachable")
	ErrUnreachableAudioSource = errors.New("audio source unreachable")
	ErrMalformedResponse      = errors.New("malformed response")
)

// BackendError is an error the playback backend reported itself.
type BackendError struct {
	Message string
}

func (e *BackendError) Error() string {
	return "backend error: " + e.Message
}

// ErrorKind is the user-facing classification of a failed call.
type ErrorKind int

const (
	BackendReported ErrorKind = iota
	UnreachableBackend
	UnreachableAudioSource
	MalformedResponse
)

func (k ErrorKind) String() string {
	switch k {
	case BackendReported:
		return "backend_error"
	case UnreachableBackend:
		return "unreachable_backend"
	case UnreachableAudioSource:
		return "unreachable_audio_source"
	default:
		return "malformed_response"
	}
}

// KindOf classifies err. Errors that carry none of the known causes are
// treated as malformed responses.
func KindOf(err error) ErrorKind {
	var backendErr *BackendError
	switch {
	case errors.As(err, &backendErr):
		return BackendReported
	case errors.Is(err, ErrUnreachableBackend):
		return UnreachableBackend
	case errors.Is(err, ErrUnreachableAudioSource):
		return UnreachableAudioSource
	default:
		return MalformedResponse
	}
}
