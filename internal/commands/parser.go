package commands

import (
	"strings"
	"unicode"
)

// Trigger prefixes every command word.
const Trigger = "!"

// Verb is a playback action a chat user can ask for.
type Verb int

const (
	NowPlaying Verb = iota + 1
	Skip
	Previous
	Next
	Queue
	Play
	Search
	Shuffle
	NowPlayingURL
)

var verbNames = map[Verb]string{
	NowPlaying:    "np",
	Skip:          "skip",
	Previous:      "prev",
	Next:          "next",
	Queue:         "queue",
	Play:          "play",
	Search:        "search",
	Shuffle:       "shuffle",
	NowPlayingURL: "url",
}

func (v Verb) String() string {
	if name, ok := verbNames[v]; ok {
		return name
	}
	return "unknown"
}

// verbs maps command words to verbs. Matching is case-sensitive.
var verbs = map[string]Verb{
	"np":       NowPlaying,
	"skip":     Skip,
	"prev":     Previous,
	"previous": Previous,
	"next":     Next,
	"queue":    Queue,
	"play":     Play,
	"search":   Search,
	"shuffle":  Shuffle,
	"url":      NowPlayingURL,
	"link":     NowPlayingURL,
}

// Command is a parsed chat command.
type Command struct {
	Verb     Verb
	Argument string
}

// NeedsArgument reports whether the verb takes a search query.
func (v Verb) NeedsArgument() bool {
	return v == Queue || v == Play || v == Search
}

// Dispatchable reports whether the command has everything its verb needs.
// Query commands without a query are ignored rather than sent upstream.
func (c Command) Dispatchable() bool {
	return !c.Verb.NeedsArgument() || c.Argument != ""
}

// Parse reads a command from a raw chat message. It returns false when the
// message is not a command.
func Parse(raw string) (Command, bool) {
	word, rest := raw, ""
	if i := strings.IndexFunc(raw, unicode.IsSpace); i >= 0 {
		word, rest = raw[:i], raw[i:]
	}

	if !strings.HasPrefix(word, Trigger) {
		return Command{}, false
	}

	verb, ok := verbs[strings.TrimPrefix(word, Trigger)]
	if !ok {
		return Command{}, false
	}

	return Command{Verb: verb, Argument: strings.TrimSpace(rest)}, true
}
