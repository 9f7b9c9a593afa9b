package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/latoulicious/Spotifm/pkg/format"
	"github.com/latoulicious/Spotifm/pkg/icecast"
	"github.com/latoulicious/Spotifm/pkg/playback"
	"github.com/latoulicious/Spotifm/pkg/relay"
)

var (
	ErrNoFrontend         = errors.New("neither DISCORD_TOKEN nor IRC_SERVER is set")
	ErrIRCChannelsNotSet  = errors.New("IRC_CHANNELS is not set")
	ErrInvalidValue       = errors.New("invalid configuration value")
	ErrInvalidDiscordFile = errors.New("invalid discord config file")
)

const (
	DefaultPresenceSchedule = "@every 1m"
	DefaultIRCPort          = 6697
	DefaultIRCNick          = "spotifm"
)

// Config is the process configuration, immutable after load.
type Config struct {
	PlaybackURL     string
	AudioSourceURL  string
	AudioStreamPath string
	TrackURLBase    string
	HTTPTimeout     time.Duration

	Discord DiscordConfig
	IRC     IRCConfig

	MetricsAddr string
	LogLevel    string
	LogFormat   string
}

// DiscordConfig configures the Discord front-end and its voice relay.
type DiscordConfig struct {
	Token            string
	GuildID          string
	VoiceChannelID   string
	ReplyStyle       format.Style
	PresenceSchedule string
	FFmpegPath       string
	RelayTimeout     time.Duration
}

// Enabled reports whether the Discord adapter should run.
func (c DiscordConfig) Enabled() bool {
	return c.Token != ""
}

// IRCConfig configures the IRC front-end.
type IRCConfig struct {
	Server      string
	Port        int
	Nick        string
	Channels    []string
	TLS         bool
	TLSInsecure bool
}

// Enabled reports whether the IRC adapter should run.
func (c IRCConfig) Enabled() bool {
	return c.Server != ""
}

// Address is the server's host:port.
func (c IRCConfig) Address() string {
	return net.JoinHostPort(c.Server, strconv.Itoa(c.Port))
}

// discordFile is the legacy Discord bot config.json.
type discordFile struct {
	Token          string `json:"token"`
	VoiceChannelID string `json:"voiceChannelId"`
	GuildID        string `json:"guildId"`
}

// LoadConfig reads .env when present and builds the configuration from the
// environment.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds the configuration from environment variables only.
func FromEnv() (*Config, error) {
	var p parser

	cfg := &Config{
		PlaybackURL:     p.str("PLAYBACK_API_URL", playback.DefaultBaseURL),
		AudioSourceURL:  p.str("AUDIO_SOURCE_URL", icecast.DefaultBaseURL),
		AudioStreamPath: p.str("AUDIO_STREAM_PATH", icecast.DefaultMount),
		TrackURLBase:    p.str("TRACK_URL_BASE", playback.DefaultTrackURLBase),
		HTTPTimeout:     p.duration("HTTP_TIMEOUT", playback.DefaultTimeout),
		MetricsAddr:     p.str("METRICS_ADDR", ""),
		LogLevel:        p.str("LOG_LEVEL", "info"),
		LogFormat:       p.str("LOG_FORMAT", "text"),
	}

	discord, err := loadDiscord(&p)
	if err != nil {
		return nil, err
	}
	cfg.Discord = discord

	cfg.IRC = IRCConfig{
		Server:      p.str("IRC_SERVER", ""),
		Port:        p.integer("IRC_PORT", DefaultIRCPort),
		Nick:        p.str("IRC_NICK", DefaultIRCNick),
		Channels:    splitList(p.str("IRC_CHANNELS", "")),
		TLS:         p.boolean("IRC_TLS", true),
		TLSInsecure: p.boolean("IRC_TLS_INSECURE", true),
	}

	if p.err != nil {
		return nil, p.err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadDiscord(p *parser) (DiscordConfig, error) {
	var file discordFile
	if path := p.str("DISCORD_CONFIG_FILE", ""); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return DiscordConfig{}, fmt.Errorf("%w: %w", ErrInvalidDiscordFile, err)
		}
		if err := json.Unmarshal(data, &file); err != nil {
			return DiscordConfig{}, fmt.Errorf("%w: %s: %w", ErrInvalidDiscordFile, path, err)
		}
	}

	style, err := format.ParseStyle(p.str("DISCORD_REPLY_STYLE", format.Plain.String()))
	if err != nil {
		return DiscordConfig{}, fmt.Errorf("%w: DISCORD_REPLY_STYLE: %w", ErrInvalidValue, err)
	}

	return DiscordConfig{
		Token:            firstSet(p.str("DISCORD_TOKEN", ""), file.Token),
		GuildID:          firstSet(p.str("DISCORD_GUILD_ID", ""), file.GuildID),
		VoiceChannelID:   firstSet(p.str("DISCORD_VOICE_CHANNEL_ID", ""), file.VoiceChannelID),
		ReplyStyle:       style,
		PresenceSchedule: p.str("PRESENCE_SCHEDULE", DefaultPresenceSchedule),
		FFmpegPath:       p.str("FFMPEG_PATH", relay.DefaultFFmpeg),
		RelayTimeout:     p.duration("RELAY_READY_TIMEOUT", relay.DefaultReadyTimeout),
	}, nil
}

// Validate checks that at least one adapter is usable.
func (c *Config) Validate() error {
	if !c.Discord.Enabled() && !c.IRC.Enabled() {
		return ErrNoFrontend
	}
	if c.IRC.Enabled() && len(c.IRC.Channels) == 0 {
		return ErrIRCChannelsNotSet
	}
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// parser reads typed environment variables and keeps the first error.
type parser struct {
	err error
}

func (p *parser) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return strings.TrimSpace(v)
	}
	return def
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("%w: %s=%q: %w", ErrInvalidValue, key, value, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err == nil && d <= 0 {
		err = errors.New("must be positive")
	}
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return d
}

func (p *parser) integer(key string, def int) int {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return n
}

func (p *parser) boolean(key string, def bool) bool {
	v := p.str(key, "")
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		p.fail(key, v, err)
		return def
	}
	return b
}
