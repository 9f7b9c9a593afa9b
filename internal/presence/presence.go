package presence

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/latoulicious/Spotifm/pkg/radio"
)

const refreshTimeout = 15 * time.Second

// StatusUpdater is the part of a discordgo session that sets the bot status.
type StatusUpdater interface {
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
}

// NowPlayingSource reports the track on air.
type NowPlayingSource interface {
	NowPlaying(ctx context.Context) (radio.TrackInfo, error)
}

// ListenerCounter reports how many people listen to the stream.
type ListenerCounter interface {
	ListenerCount(ctx context.Context) (int, error)
}

// idleActivity is shown while the backend cannot tell what is playing.
var idleActivity = &discordgo.Activity{
	Name: "the radio",
	Type: discordgo.ActivityTypeListening,
}

// Manager keeps the bot's status in sync with the playing track.
type Manager struct {
	session   StatusUpdater
	backend   NowPlayingSource
	listeners ListenerCounter
	log       logrus.FieldLogger
	cron      *cron.Cron

	mu      sync.Mutex
	current string
}

// NewManager creates a presence manager. listeners may be nil.
func NewManager(session StatusUpdater, backend NowPlayingSource, listeners ListenerCounter, log logrus.FieldLogger) *Manager {
	log = log.WithField("component", "presence")
	return &Manager{
		session:   session,
		backend:   backend,
		listeners: listeners,
		log:       log,
		cron: cron.New(
			cron.WithLogger(cron.PrintfLogger(log)),
			cron.WithChain(cron.Recover(cron.PrintfLogger(log)), cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
	}
}

// Start refreshes the presence now and then on schedule.
func (m *Manager) Start(schedule string) error {
	if _, err := m.cron.AddFunc(schedule, func() { m.Refresh(context.Background()) }); err != nil {
		return fmt.Errorf("invalid presence schedule %q: %w", schedule, err)
	}
	m.cron.Start()
	m.log.WithField("schedule", schedule).Info("Scheduled presence updates")

	go m.Refresh(context.Background())
	return nil
}

// Stop halts scheduled updates and waits for a running one to finish.
func (m *Manager) Stop() {
	<-m.cron.Stop().Done()
}

// Refresh looks up the playing track and updates the status if it changed.
func (m *Manager) Refresh(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, refreshTimeout)
	defer cancel()

	activity := idleActivity
	if track, err := m.backend.NowPlaying(ctx); err != nil {
		m.log.WithError(err).Debug("Now playing unavailable, showing idle presence")
	} else {
		activity = trackActivity(track, m.listenerState(ctx))
	}

	key := activity.Name + "\x00" + activity.State
	m.mu.Lock()
	defer m.mu.Unlock()
	if key == m.current {
		return
	}

	err := m.session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status:     string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{activity},
	})
	if err != nil {
		m.log.WithError(err).Warn("Failed to update presence")
		return
	}
	m.current = key
}

func (m *Manager) listenerState(ctx context.Context) string {
	if m.listeners == nil {
		return ""
	}
	n, err := m.listeners.ListenerCount(ctx)
	if err != nil {
		return ""
	}
	if n == 1 {
		return "1 listener"
	}
	return fmt.Sprintf("%d listeners", n)
}

func trackActivity(track radio.TrackInfo, state string) *discordgo.Activity {
	return &discordgo.Activity{
		Name:  track.Title + " by " + strings.Join(track.Artists, ", "),
		Type:  discordgo.ActivityTypeListening,
		State: state,
	}
}
