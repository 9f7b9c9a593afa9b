package radio

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"backend error", &BackendError{Message: "no token"}, BackendReported},
		{"wrapped backend error", fmt.Errorf("GET /np: %w", &BackendError{Message: "x"}), BackendReported},
		{"unreachable backend", fmt.Errorf("GET /skip: %w", ErrUnreachableBackend), UnreachableBackend},
		{"unreachable audio source", ErrUnreachableAudioSource, UnreachableAudioSource},
		{"malformed", ErrMalformedResponse, MalformedResponse},
		{"unknown", errors.New("boom"), MalformedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestTrackInfoValid(t *testing.T) {
	assert.True(t, TrackInfo{Title: "Song", Artists: []string{"A"}}.Valid())
	assert.False(t, TrackInfo{Title: "Song"}.Valid())
	assert.False(t, TrackInfo{Artists: []string{"A"}}.Valid())
}

func TestWithListenersDoesNotMutate(t *testing.T) {
	r := TrackResult(TrackInfo{Title: "Song", Artists: []string{"A"}})
	decorated := r.WithListeners(12)

	assert.False(t, r.HasListeners)
	assert.True(t, decorated.HasListeners)
	assert.Equal(t, 12, decorated.Listeners)
}
