package handlers

import (
	"context"
	"sync"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

// Replier turns a chat message into reply lines.
type Replier interface {
	Handle(ctx context.Context, raw string) []string
}

// MessageSender is the part of a discordgo session that posts messages.
type MessageSender interface {
	ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Relay is started once, the first time the bot becomes ready.
type Relay interface {
	Start(ctx context.Context) error
}

// Presence keeps the bot status up to date on a cron schedule.
type Presence interface {
	Start(schedule string) error
}

// Options wires the optional collaborators of a Handler.
type Options struct {
	Logger           logrus.FieldLogger
	Relay            Relay
	Presence         Presence
	PresenceSchedule string
}

// Handler binds the command dispatcher to a Discord session.
type Handler struct {
	ctx      context.Context
	replier  Replier
	log      logrus.FieldLogger
	relay    Relay
	presence Presence
	schedule string

	readyOnce sync.Once
}

// New returns a handler whose work is cancelled with ctx.
func New(ctx context.Context, replier Replier, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Handler{
		ctx:      ctx,
		replier:  replier,
		log:      log.WithField("frontend", "discord"),
		relay:    opts.Relay,
		presence: opts.Presence,
		schedule: opts.PresenceSchedule,
	}
}

// MessageCreate answers commands. discordgo runs each call in its own goroutine.
func (h *Handler) MessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	h.handleMessage(s, s.State.User.ID, m)
}

func (h *Handler) handleMessage(sender MessageSender, botID string, m *discordgo.MessageCreate) {
	// Ignore the bot itself and other bots
	if m.Author == nil || m.Author.ID == botID || m.Author.Bot {
		return
	}

	for _, line := range h.replier.Handle(h.ctx, m.Content) {
		if _, err := sender.ChannelMessageSend(m.ChannelID, line); err != nil {
			h.log.WithError(err).WithField("channel_id", m.ChannelID).Warn("Failed to send reply")
		}
	}
}

// Ready starts the presence updater and the voice relay on the first Ready
// event. Later Ready events after reconnects are ignored.
func (h *Handler) Ready(s *discordgo.Session, r *discordgo.Ready) {
	h.log.WithFields(logrus.Fields{
		"user":   r.User.Username,
		"guilds": len(r.Guilds),
	}).Info("Discord session ready")

	h.readyOnce.Do(h.startOnce)
}

func (h *Handler) startOnce() {
	if h.presence != nil && h.schedule != "" {
		if err := h.presence.Start(h.schedule); err != nil {
			h.log.WithError(err).Warn("Presence updates disabled")
		}
	}

	if h.relay != nil {
		go func() {
			if err := h.relay.Start(h.ctx); err != nil {
				h.log.WithError(err).Debug("Voice relay not running")
			}
		}()
	}
}
