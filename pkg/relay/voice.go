package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sirupsen/logrus"
)

const (
	readyPollInterval = 100 * time.Millisecond
	frameSendTimeout  = 100 * time.Millisecond
)

// Conn is an established voice connection that accepts Opus frames.
type Conn interface {
	Speaking(speaking bool) error
	Send(ctx context.Context, frame []byte) error
	Disconnect() error
}

// Voice opens voice connections. Join must give up when ctx is done.
type Voice interface {
	Join(ctx context.Context, guildID, channelID string) (Conn, error)
}

// DiscordVoice joins Discord voice channels through a discordgo session.
type DiscordVoice struct {
	session *discordgo.Session
	log     logrus.FieldLogger

	join       func(guildID, channelID string) (*discordgo.VoiceConnection, error)
	disconnect func(vc *discordgo.VoiceConnection) error
}

// NewDiscordVoice joins voice channels through s.
func NewDiscordVoice(s *discordgo.Session, log logrus.FieldLogger) *DiscordVoice {
	return &DiscordVoice{
		session: s,
		log:     log,
		join: func(guildID, channelID string) (*discordgo.VoiceConnection, error) {
			return s.ChannelVoiceJoin(guildID, channelID, false, true)
		},
		disconnect: (*discordgo.VoiceConnection).Disconnect,
	}
}

type joinResult struct {
	vc  *discordgo.VoiceConnection
	err error
}

// Join joins channelID and waits until discordgo reports the connection
// ready. An empty guildID is looked up from the channel.
func (v *DiscordVoice) Join(ctx context.Context, guildID, channelID string) (Conn, error) {
	if guildID == "" {
		resolved, err := v.guildOf(channelID)
		if err != nil {
			return nil, err
		}
		guildID = resolved
	}

	results := make(chan joinResult, 1)
	go func() {
		vc, err := v.join(guildID, channelID)
		results <- joinResult{vc: vc, err: err}
	}()

	var vc *discordgo.VoiceConnection
	select {
	case <-ctx.Done():
		// The join may still complete later; drop that connection.
		go func() {
			if r := <-results; r.vc != nil {
				v.disconnect(r.vc)
			}
		}()
		return nil, fmt.Errorf("joining voice channel %s: %w", channelID, ctx.Err())
	case r := <-results:
		if r.err != nil {
			if r.vc != nil {
				v.disconnect(r.vc)
			}
			return nil, fmt.Errorf("joining voice channel %s: %w", channelID, r.err)
		}
		vc = r.vc
	}

	ticker := time.NewTicker(readyPollInterval)
	defer ticker.Stop()

	for {
		if isReady(vc) {
			v.log.WithFields(logrus.Fields{
				"guild_id":   guildID,
				"channel_id": channelID,
			}).Info("Voice connection ready")
			return &discordConn{vc: vc}, nil
		}

		select {
		case <-ctx.Done():
			v.disconnect(vc)
			return nil, fmt.Errorf("waiting for voice channel %s: %w", channelID, ctx.Err())
		case <-ticker.C:
		}
	}
}

func (v *DiscordVoice) guildOf(channelID string) (string, error) {
	if ch, err := v.session.State.Channel(channelID); err == nil && ch.GuildID != "" {
		return ch.GuildID, nil
	}
	ch, err := v.session.Channel(channelID)
	if err != nil {
		return "", fmt.Errorf("looking up voice channel %s: %w", channelID, err)
	}
	if ch.GuildID == "" {
		return "", fmt.Errorf("channel %s is not a guild channel: %w", channelID, ErrNoDestination)
	}
	return ch.GuildID, nil
}

func isReady(vc *discordgo.VoiceConnection) bool {
	vc.RLock()
	defer vc.RUnlock()
	return vc.Ready
}

type discordConn struct {
	vc *discordgo.VoiceConnection
}

func (c *discordConn) Speaking(speaking bool) error {
	return c.vc.Speaking(speaking)
}

func (c *discordConn) Send(ctx context.Context, frame []byte) error {
	timer := time.NewTimer(frameSendTimeout)
	defer timer.Stop()

	select {
	case c.vc.OpusSend <- frame:
		return nil
	case <-timer.C:
		return ErrFrameDropped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *discordConn) Disconnect() error {
	return c.vc.Disconnect()
}
