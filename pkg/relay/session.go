// Package relay streams the radio into a voice channel.
package relay

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/latoulicious/Spotifm/pkg/metrics"
)

// DefaultReadyTimeout bounds how long Start waits for the voice connection.
const DefaultReadyTimeout = 20 * time.Second

// Config names the voice destination and the audio to relay into it.
type Config struct {
	GuildID      string
	ChannelID    string
	StreamURL    string
	ReadyTimeout time.Duration
}

// Session joins one voice channel once per process and relays the stream
// into it. Idle -> Connecting -> Ready -> Streaming; a failed connection
// goes back to Idle for good.
type Session struct {
	voice   Voice
	source  Source
	cfg     Config
	log     logrus.FieldLogger
	metrics *metrics.Recorder

	started atomic.Bool
	done    chan struct{}

	mu    sync.RWMutex
	state State
	conn  Conn
}

// NewSession creates an idle session. rec may be nil.
func NewSession(voice Voice, source Source, cfg Config, log logrus.FieldLogger, rec *metrics.Recorder) *Session {
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = DefaultReadyTimeout
	}
	s := &Session{
		voice:   voice,
		source:  source,
		cfg:     cfg,
		log:     log.WithField("component", "relay"),
		metrics: rec,
		done:    make(chan struct{}),
	}
	s.setState(Idle)
	return s
}

// State reports the current lifecycle state.
func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Done is closed once the session has nothing left to do: after a failed
// connection, or after the stream ends.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
	s.metrics.RelayState(state.String())
}

// Start connects to the configured voice channel and starts relaying in the
// background. Only the first call does anything; a failed connection is not
// retried.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return ErrAlreadyStarted
	}

	log := s.log.WithFields(logrus.Fields{
		"guild_id":   s.cfg.GuildID,
		"channel_id": s.cfg.ChannelID,
	})

	if s.cfg.ChannelID == "" {
		close(s.done)
		return ErrNoDestination
	}

	s.setState(Connecting)
	log.WithField("timeout", s.cfg.ReadyTimeout).Info("Connecting voice relay")

	joinCtx, cancel := context.WithTimeout(ctx, s.cfg.ReadyTimeout)
	conn, err := s.voice.Join(joinCtx, s.cfg.GuildID, s.cfg.ChannelID)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", ErrReadyTimeout, s.cfg.ReadyTimeout, err)
		}
		s.setState(Idle)
		log.WithError(err).Error("Voice relay failed, not retrying")
		close(s.done)
		return err
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.setState(Ready)

	go s.stream(ctx, conn, log)
	return nil
}

func (s *Session) stream(ctx context.Context, conn Conn, log logrus.FieldLogger) {
	defer close(s.done)

	s.setState(Streaming)
	log = log.WithField("url", s.cfg.StreamURL)
	log.Info("Relaying audio stream")

	// Stream-level failures are reported but the session stays put.
	if err := s.source.Stream(ctx, s.cfg.StreamURL, conn); err != nil && ctx.Err() == nil {
		log.WithError(err).Warn("Audio stream stopped")
		return
	}
	log.Info("Audio stream finished")
}

// Close leaves the voice channel, if one was joined.
func (s *Session) Close() error {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	return conn.Disconnect()
}
