package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"

	"github.com/latoulicious/Spotifm/internal/commands"
	"github.com/latoulicious/Spotifm/internal/config"
	"github.com/latoulicious/Spotifm/internal/handlers"
	"github.com/latoulicious/Spotifm/internal/ircbot"
	"github.com/latoulicious/Spotifm/internal/presence"
	"github.com/latoulicious/Spotifm/pkg/format"
	"github.com/latoulicious/Spotifm/pkg/icecast"
	"github.com/latoulicious/Spotifm/pkg/logging"
	"github.com/latoulicious/Spotifm/pkg/metrics"
	"github.com/latoulicious/Spotifm/pkg/playback"
	"github.com/latoulicious/Spotifm/pkg/relay"
)

const shutdownTimeout = 5 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}

	logger := logging.New(logging.Config{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Output: "stdout",
	})

	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("Gateway stopped")
	}
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	defer stop()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	rec := metrics.New(reg)

	var wg sync.WaitGroup
	if cfg.MetricsAddr != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metrics.Serve(ctx, cfg.MetricsAddr, reg, logger); err != nil {
				logger.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	if cfg.Discord.Enabled() {
		closeDiscord, err := startDiscord(ctx, cfg, logger, rec)
		if err != nil {
			return err
		}
		defer closeDiscord()
	}

	var bot *ircbot.Bot
	if cfg.IRC.Enabled() {
		bot = ircbot.New(ctx, ircbot.Config{
			Address:     cfg.IRC.Address(),
			Nick:        cfg.IRC.Nick,
			Channels:    cfg.IRC.Channels,
			TLS:         cfg.IRC.TLS,
			TLSInsecure: cfg.IRC.TLSInsecure,
		}, newDispatcher(cfg, "irc", format.IRC, logger, rec), logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := bot.Run(); err != nil {
				logger.WithError(err).Error("IRC connection failed")
			}
		}()
	}

	logger.Info("Gateway is running. Press CTRL-C to exit.")
	<-ctx.Done()
	logger.Info("Shutting down")

	if bot != nil {
		bot.Close()
	}
	wg.Wait()
	return nil
}

// newDispatcher gives each front-end its own backend and audio source clients.
func newDispatcher(cfg *config.Config, frontend string, style format.Style, logger *logrus.Logger, rec *metrics.Recorder) *commands.Dispatcher {
	backend, listeners := newClients(cfg, rec)
	return commands.NewDispatcher(backend, listeners, commands.Options{
		Frontend: frontend,
		Style:    style,
		Logger:   logger,
		Metrics:  rec,
	})
}

func newClients(cfg *config.Config, rec *metrics.Recorder) (*playback.Client, *icecast.Client) {
	backend := playback.NewClient(cfg.PlaybackURL,
		playback.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		playback.WithTrackURLBase(cfg.TrackURLBase),
		playback.WithObserver(rec.BackendRequest),
	)
	listeners := icecast.NewClient(cfg.AudioSourceURL, cfg.AudioStreamPath, &http.Client{Timeout: cfg.HTTPTimeout})
	return backend, listeners
}

func startDiscord(ctx context.Context, cfg *config.Config, logger *logrus.Logger, rec *metrics.Recorder) (func(), error) {
	bridgeDiscordLog(logger)

	dg, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create Discord session: %w", err)
	}
	dg.LogLevel = discordLogLevel(logger.GetLevel())
	dg.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildVoiceStates |
		discordgo.IntentsMessageContent

	opts := handlers.Options{
		Logger:           logger,
		PresenceSchedule: cfg.Discord.PresenceSchedule,
	}

	backend, listeners := newClients(cfg, rec)
	presenceManager := presence.NewManager(dg, backend, listeners, logger)
	opts.Presence = presenceManager

	var session *relay.Session
	if cfg.Discord.VoiceChannelID != "" {
		session = relay.NewSession(
			relay.NewDiscordVoice(dg, logger),
			relay.NewFFmpegSource(cfg.Discord.FFmpegPath, logger),
			relay.Config{
				GuildID:      cfg.Discord.GuildID,
				ChannelID:    cfg.Discord.VoiceChannelID,
				StreamURL:    listeners.StreamURL(),
				ReadyTimeout: cfg.Discord.RelayTimeout,
			},
			logger, rec,
		)
		opts.Relay = session
	}

	h := handlers.New(ctx, newDispatcher(cfg, "discord", cfg.Discord.ReplyStyle, logger, rec), opts)
	dg.AddHandler(h.MessageCreate)
	dg.AddHandler(h.Ready)

	if err := dg.Open(); err != nil {
		return nil, fmt.Errorf("failed to open Discord session: %w", err)
	}

	return func() {
		presenceManager.Stop()
		if session != nil && session.State() != relay.Idle {
			select {
			case <-session.Done():
			case <-time.After(shutdownTimeout):
			}
			session.Close()
		}
		dg.Close()
	}, nil
}

// bridgeDiscordLog sends discordgo's own logging through logger.
func bridgeDiscordLog(logger *logrus.Logger) {
	entry := logger.WithField("component", "discordgo")
	discordgo.Logger = func(msgL, caller int, msgFormat string, a ...interface{}) {
		msg := fmt.Sprintf(msgFormat, a...)
		switch msgL {
		case discordgo.LogError:
			entry.Error(msg)
		case discordgo.LogWarning:
			entry.Warn(msg)
		case discordgo.LogInformational:
			entry.Info(msg)
		default:
			entry.Debug(msg)
		}
	}
}

func discordLogLevel(level logrus.Level) int {
	switch {
	case level >= logrus.DebugLevel:
		return discordgo.LogDebug
	case level >= logrus.InfoLevel:
		return discordgo.LogInformational
	default:
		return discordgo.LogWarning
	}
}
