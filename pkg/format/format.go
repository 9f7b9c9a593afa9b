// Package format renders playback results and errors as chat replies.
package format

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

// Style selects how replies are decorated for a chat network.
type Style int

const (
	// Plain is undecorated text.
	Plain Style = iota
	// IRC uses mIRC colour control codes.
	IRC
	// Markdown uses Discord inline code and underline markup.
	Markdown
)

// ParseStyle maps a configuration value to a Style.
func ParseStyle(name string) (Style, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "plain":
		return Plain, nil
	case "irc", "color", "colour":
		return IRC, nil
	case "markdown":
		return Markdown, nil
	default:
		return Plain, fmt.Errorf("unknown reply style %q", name)
	}
}

func (s Style) String() string {
	switch s {
	case IRC:
		return "irc"
	case Markdown:
		return "markdown"
	default:
		return "plain"
	}
}

// mIRC colour codes: black on green for the note and listener count, black on
// light grey for title and artists.
const (
	ircColor     = "\x03"
	ircHighlight = ircColor + "1,9"
	ircTrack     = ircColor + "1,15"
)

// Fixed replies
const (
	ShuffledText = "shuffled"

	UnreachableBackendText     = "backend is down"
	UnreachableAudioSourceText = "radio is down"
	MalformedResponseText      = "error generating track info"
)

// Lines renders res as zero or more reply lines. An empty track list yields
// no lines at all.
func Lines(res radio.Result, style Style) []string {
	switch res.Kind {
	case radio.KindTrack:
		return []string{track(res.Track, res.Listeners, res.HasListeners, style)}
	case radio.KindTrackList:
		lines := make([]string, 0, len(res.Tracks))
		for _, t := range res.Tracks {
			lines = append(lines, track(t, 0, false, style))
		}
		return lines
	case radio.KindListenerCount:
		return []string{listeners(res.Listeners, style)}
	case radio.KindShuffled:
		return []string{ShuffledText}
	case radio.KindURL:
		return []string{res.URL}
	default:
		return nil
	}
}

// Error renders a failed call. Error text is the same for every style.
func Error(err error, style Style) string {
	switch radio.KindOf(err) {
	case radio.BackendReported:
		var backendErr *radio.BackendError
		errors.As(err, &backendErr)
		return "error: " + backendErr.Message
	case radio.UnreachableBackend:
		return UnreachableBackendText
	case radio.UnreachableAudioSource:
		return UnreachableAudioSourceText
	default:
		return MalformedResponseText
	}
}

func track(t radio.TrackInfo, count int, hasCount bool, style Style) string {
	var b strings.Builder

	switch style {
	case IRC:
		b.WriteString(ircHighlight + " ♪ " + ircColor + " ")
		b.WriteString(ircTrack + " " + t.Title + " " + ircColor + " by ")
		b.WriteString(ircTrack + " " + strings.Join(t.Artists, ", ") + " " + ircColor)
		if hasCount {
			b.WriteString(" " + ircHighlight + " " + strconv.Itoa(count) + " " + ircColor)
		}
	case Markdown:
		b.WriteString("`" + t.Title + "` by __`")
		b.WriteString(strings.Join(t.Artists, "`__ __`"))
		b.WriteString("`__")
		if hasCount {
			b.WriteString(" (" + listeners(count, Plain) + ")")
		}
	default:
		b.WriteString(t.Title + " by " + strings.Join(t.Artists, ", "))
		if hasCount {
			b.WriteString(" (" + listeners(count, Plain) + ")")
		}
	}
	return b.String()
}

func listeners(n int, style Style) string {
	text := strconv.Itoa(n) + " listeners"
	if n == 1 {
		text = "1 listener"
	}
	if style == IRC {
		return ircHighlight + " " + text + " " + ircColor
	}
	return text
}
