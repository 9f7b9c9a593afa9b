package commands

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/latoulicious/Spotifm/pkg/format"
	"github.com/latoulicious/Spotifm/pkg/metrics"
	"github.com/latoulicious/Spotifm/pkg/radio"
)

// DefaultTimeout bounds the network calls behind one command.
const DefaultTimeout = 30 * time.Second

// Backend is the playback contract commands are executed against.
type Backend interface {
	NowPlaying(ctx context.Context) (radio.TrackInfo, error)
	Skip(ctx context.Context) (radio.TrackInfo, error)
	Previous(ctx context.Context) (radio.TrackInfo, error)
	Next(ctx context.Context) (radio.TrackInfo, error)
	Shuffle(ctx context.Context) error
	NowPlayingURL(ctx context.Context) (string, error)
	Search(ctx context.Context, query string) ([]radio.TrackInfo, error)
	Queue(ctx context.Context, query string) (radio.TrackInfo, error)
	Play(ctx context.Context, query string) (radio.TrackInfo, error)
}

// ListenerCounter reports how many people listen to the stream.
type ListenerCounter interface {
	ListenerCount(ctx context.Context) (int, error)
}

// Options configures a Dispatcher.
type Options struct {
	// Frontend names the chat network in logs and metrics.
	Frontend string
	Style    format.Style
	Logger   logrus.FieldLogger
	Metrics  *metrics.Recorder
	Timeout  time.Duration
}

// Dispatcher turns chat messages into replies. It holds no mutable state and
// may handle any number of messages concurrently.
type Dispatcher struct {
	backend   Backend
	listeners ListenerCounter
	style     format.Style
	frontend  string
	log       logrus.FieldLogger
	metrics   *metrics.Recorder
	timeout   time.Duration
}

// NewDispatcher creates a dispatcher. listeners may be nil, in which case
// replies are never decorated with a listener count.
func NewDispatcher(backend Backend, listeners ListenerCounter, opts Options) *Dispatcher {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Dispatcher{
		backend:   backend,
		listeners: listeners,
		style:     opts.Style,
		frontend:  opts.Frontend,
		log:       log.WithField("frontend", opts.Frontend),
		metrics:   opts.Metrics,
		timeout:   timeout,
	}
}

// Handle returns the reply lines for a raw chat message. Messages that are
// not dispatchable commands get no reply.
func (d *Dispatcher) Handle(ctx context.Context, raw string) []string {
	cmd, ok := Parse(raw)
	if !ok || !cmd.Dispatchable() {
		return nil
	}

	log := d.log.WithFields(logrus.Fields{
		"request_id": uuid.NewString(),
		"verb":       cmd.Verb.String(),
	})
	log.WithField("argument", cmd.Argument).Debug("Handling command")

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	res, err := d.Execute(ctx, cmd)
	d.metrics.CommandHandled(d.frontend, cmd.Verb.String(), metrics.Outcome(err))

	if err != nil {
		log.WithError(err).WithField("elapsed", time.Since(start)).Warn("Command failed")
		return []string{format.Error(err, d.style)}
	}

	lines := format.Lines(res, d.style)
	if len(lines) == 0 {
		log.Debug("Command produced no reply")
	}
	return lines
}

// Execute runs cmd against the backend and normalizes the outcome.
func (d *Dispatcher) Execute(ctx context.Context, cmd Command) (radio.Result, error) {
	switch cmd.Verb {
	case NowPlaying:
		return d.decorated(ctx, d.backend.NowPlaying)
	case Skip:
		return d.decorated(ctx, d.backend.Skip)
	case Previous:
		return trackResult(d.backend.Previous(ctx))
	case Next:
		return trackResult(d.backend.Next(ctx))
	case Queue:
		return trackResult(d.backend.Queue(ctx, cmd.Argument))
	case Play:
		return trackResult(d.backend.Play(ctx, cmd.Argument))
	case Search:
		tracks, err := d.backend.Search(ctx, cmd.Argument)
		if err != nil {
			return radio.Result{}, err
		}
		return radio.TrackListResult(tracks), nil
	case Shuffle:
		if err := d.backend.Shuffle(ctx); err != nil {
			return radio.Result{}, err
		}
		return radio.ShuffledResult(), nil
	case NowPlayingURL:
		link, err := d.backend.NowPlayingURL(ctx)
		if err != nil {
			return radio.Result{}, err
		}
		return radio.URLResult(link), nil
	default:
		return radio.Result{}, radio.ErrMalformedResponse
	}
}

// decorated runs a track call and adds the listener count when the audio
// source can provide one. A failing audio source never fails the command.
func (d *Dispatcher) decorated(ctx context.Context, call func(context.Context) (radio.TrackInfo, error)) (radio.Result, error) {
	res, err := trackResult(call(ctx))
	if err != nil || d.listeners == nil {
		return res, err
	}

	n, err := d.listeners.ListenerCount(ctx)
	if err != nil {
		d.log.WithError(err).Debug("Listener count unavailable")
		return res, nil
	}
	return res.WithListeners(n), nil
}

func trackResult(track radio.TrackInfo, err error) (radio.Result, error) {
	if err != nil {
		return radio.Result{}, err
	}
	return radio.TrackResult(track), nil
}
