package format

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

var songA = radio.TrackInfo{ID: "5", Title: "Song A", Artists: []string{"Artist X", "Artist Y"}}

func TestTrackPlain(t *testing.T) {
	lines := Lines(radio.TrackResult(songA), Plain)
	assert.Equal(t, []string{"Song A by Artist X, Artist Y"}, lines)
}

func TestTrackPlainWithListeners(t *testing.T) {
	lines := Lines(radio.TrackResult(songA).WithListeners(12), Plain)
	assert.Equal(t, []string{"Song A by Artist X, Artist Y (12 listeners)"}, lines)
}

func TestTrackIRC(t *testing.T) {
	lines := Lines(radio.TrackResult(songA).WithListeners(12), IRC)
	require.Len(t, lines, 1)
	assert.Equal(t,
		"\x031,9 ♪ \x03 \x031,15 Song A \x03 by \x031,15 Artist X, Artist Y \x03 \x031,9 12 \x03",
		lines[0])
}

func TestTrackMarkdown(t *testing.T) {
	lines := Lines(radio.TrackResult(songA), Markdown)
	assert.Equal(t, []string{"`Song A` by __`Artist X`__ __`Artist Y`__"}, lines)
}

func TestTrackList(t *testing.T) {
	tracks := []radio.TrackInfo{
		{Title: "One", Artists: []string{"A"}},
		{Title: "Two", Artists: []string{"B", "C"}},
	}

	lines := Lines(radio.TrackListResult(tracks), Plain)
	assert.Equal(t, []string{"One by A", "Two by B, C"}, lines)
}

func TestEmptyTrackListHasNoLines(t *testing.T) {
	for _, style := range []Style{Plain, IRC, Markdown} {
		assert.Empty(t, Lines(radio.TrackListResult(nil), style), style.String())
	}
}

func TestFixedResults(t *testing.T) {
	assert.Equal(t, []string{"shuffled"}, Lines(radio.ShuffledResult(), IRC))
	assert.Equal(t, []string{"https://open.spotify.com/track/5"}, Lines(radio.URLResult("https://open.spotify.com/track/5"), IRC))
	assert.Equal(t, []string{"3 listeners"}, Lines(radio.ListenerCountResult(3), Plain))
	assert.Equal(t, []string{"1 listener"}, Lines(radio.ListenerCountResult(1), Plain))
}

func TestErrorText(t *testing.T) {
	backend := fmt.Errorf("GET /np: %w", &radio.BackendError{Message: "no token"})
	assert.Equal(t, "error: no token", Error(backend, IRC))

	texts := map[string]bool{
		Error(fmt.Errorf("x: %w", radio.ErrUnreachableBackend), Plain):     true,
		Error(fmt.Errorf("x: %w", radio.ErrUnreachableAudioSource), Plain): true,
		Error(radio.ErrMalformedResponse, Plain):                           true,
	}
	assert.Len(t, texts, 3, "each error kind has its own text")

	assert.Equal(t, MalformedResponseText, Error(errors.New("boom"), Plain))
}

func TestDeterministic(t *testing.T) {
	res := radio.TrackListResult([]radio.TrackInfo{songA, songA})
	for _, style := range []Style{Plain, IRC, Markdown} {
		assert.Equal(t, Lines(res, style), Lines(res, style))
	}
}

func TestParseStyle(t *testing.T) {
	tests := map[string]Style{"": Plain, "plain": Plain, "IRC": IRC, "markdown": Markdown}
	for in, want := range tests {
		got, err := ParseStyle(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := ParseStyle("html")
	assert.Error(t, err)
}
