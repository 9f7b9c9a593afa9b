package ircbot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ergochat/irc-go/ircmsg"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Spotifm/internal/commands"
	"github.com/latoulicious/Spotifm/pkg/format"
	"github.com/latoulicious/Spotifm/pkg/logging"
	"github.com/latoulicious/Spotifm/pkg/playback"
)

type fixedReplier struct {
	seen []string
}

func (r *fixedReplier) Handle(_ context.Context, raw string) []string {
	r.seen = append(r.seen, raw)
	if raw != "!search x" {
		return nil
	}
	return []string{"a by b", "c by d"}
}

type sent struct {
	target, text string
}

type recorder struct {
	msgs   []sent
	joined []string
	err    error
}

func (r *recorder) Privmsg(target, message string) error {
	r.msgs = append(r.msgs, sent{target, message})
	return r.err
}

func (r *recorder) Join(channel string) error {
	if channel == "#locked" {
		return errors.New("cannot join")
	}
	r.joined = append(r.joined, channel)
	return nil
}

func parse(t *testing.T, line string) ircmsg.Message {
	t.Helper()
	msg, err := ircmsg.ParseLine(line)
	require.NoError(t, err)
	return msg
}

func newTestBot(replier Replier, channels ...string) *Bot {
	return New(context.Background(), Config{
		Address:  "irc.example.org:6697",
		Nick:     "spotifm",
		Channels: channels,
		TLS:      true,
	}, replier, logging.Discard())
}

func TestChannelRepliesGoToChannel(t *testing.T) {
	replier := &fixedReplier{}
	out := &recorder{}
	b := newTestBot(replier)

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :!search x"))

	assert.Equal(t, []sent{{"#radio", "a by b"}, {"#radio", "c by d"}}, out.msgs)
}

func TestPrivateRepliesGoToSender(t *testing.T) {
	out := &recorder{}
	b := newTestBot(&fixedReplier{})

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG spotifm :!search x"))

	require.Len(t, out.msgs, 2)
	assert.Equal(t, "alice", out.msgs[0].target)
}

func TestIgnoresOwnMessagesAndNonCommands(t *testing.T) {
	replier := &fixedReplier{}
	out := &recorder{}
	b := newTestBot(replier)

	b.handle(out, "spotifm", parse(t, ":SpotiFM!s@example.org PRIVMSG #radio :!search x"))
	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :hello"))
	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio"))

	assert.Equal(t, []string{"hello"}, replier.seen)
	assert.Empty(t, out.msgs)
}

func TestSendFailureKeepsGoing(t *testing.T) {
	out := &recorder{err: errors.New("write: broken pipe")}
	b := newTestBot(&fixedReplier{})

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :!search x"))

	assert.Len(t, out.msgs, 2)
}

func TestJoinAllSkipsFailures(t *testing.T) {
	out := &recorder{}
	b := newTestBot(&fixedReplier{}, "#radio", "#locked", "#music")

	b.joinAll(out)

	assert.Equal(t, []string{"#radio", "#music"}, out.joined)
}

func TestNewConfiguresConnection(t *testing.T) {
	b := New(context.Background(), Config{
		Address:     "irc.example.org:6697",
		Nick:        "spotifm",
		TLS:         true,
		TLSInsecure: true,
	}, &fixedReplier{}, logging.Discard())

	assert.Equal(t, "irc.example.org:6697", b.conn.Server)
	assert.Equal(t, "spotifm", b.conn.Nick)
	assert.True(t, b.conn.UseTLS)
	assert.True(t, b.conn.AllowTruncation)
	require.NotNil(t, b.conn.TLSConfig)
	assert.True(t, b.conn.TLSConfig.InsecureSkipVerify)

	plain := New(context.Background(), Config{Address: "irc.example.org:6667", Nick: "spotifm"}, &fixedReplier{}, logging.Discard())
	assert.False(t, plain.conn.UseTLS)
	assert.Nil(t, plain.conn.TLSConfig)
}

func TestIsChannel(t *testing.T) {
	assert.True(t, isChannel("#radio"))
	assert.True(t, isChannel("&local"))
	assert.False(t, isChannel("alice"))
	assert.False(t, isChannel(""))
}

type linesReplier []string

func (r linesReplier) Handle(context.Context, string) []string {
	return r
}

func TestMultiLineRepliesAreSplit(t *testing.T) {
	out := &recorder{}
	b := newTestBot(linesReplier{"error: no previous track\nqueue is empty", "a\r\n\r\nb\x00c", "\n"})

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :!prev"))

	assert.Equal(t, []sent{
		{"#radio", "error: no previous track"},
		{"#radio", "queue is empty"},
		{"#radio", "a"},
		{"#radio", "bc"},
	}, out.msgs)
}

func TestBackendErrorWithNewlineStillReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/prev":
			w.Write([]byte(`{"error":"no previous track\nqueue is empty"}`))
		case "/np":
			artists := make([]string, 30)
			for i := range artists {
				artists[i] = `"` + strings.Repeat("Artist", 4) + `"`
			}
			w.Write([]byte(`{"id":"1","track":"Song A","artists":[` + strings.Join(artists, ",") + `]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	dispatcher := commands.NewDispatcher(playback.NewClient(srv.URL), nil, commands.Options{
		Frontend: "irc",
		Style:    format.IRC,
		Logger:   logging.Discard(),
	})
	out := &recorder{}
	b := newTestBot(dispatcher)

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :!prev"))
	require.Len(t, out.msgs, 2)
	for _, msg := range out.msgs {
		assert.NotContains(t, msg.text, "\n")
	}

	b.handle(out, "spotifm", parse(t, ":alice!a@example.org PRIVMSG #radio :!np"))
	require.Len(t, out.msgs, 3)
	assert.Contains(t, out.msgs[2].text, "Song A")
	assert.True(t, b.conn.AllowTruncation, "long replies rely on truncation")
}
