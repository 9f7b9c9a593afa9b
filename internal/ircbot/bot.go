// Package ircbot answers radio commands on IRC channels.
package ircbot

import (
	"context"
	"crypto/tls"
	"log"
	"strings"

	"github.com/ergochat/irc-go/ircevent"
	"github.com/ergochat/irc-go/ircmsg"
	"github.com/sirupsen/logrus"
)

// Replier turns a chat message into reply lines.
type Replier interface {
	Handle(ctx context.Context, raw string) []string
}

type privmsger interface {
	Privmsg(target, message string) error
}

// Config selects the server, identity and channels of a Bot.
type Config struct {
	// Address is the server's host:port.
	Address     string
	Nick        string
	Channels    []string
	TLS         bool
	TLSInsecure bool
}

// Bot is one IRC connection joined to the configured channels.
type Bot struct {
	ctx      context.Context
	conn     *ircevent.Connection
	replier  Replier
	channels []string
	log      logrus.FieldLogger
}

// New prepares a connection; Run dials it.
func New(ctx context.Context, cfg Config, replier Replier, logger *logrus.Logger) *Bot {
	entry := logger.WithField("frontend", "irc")

	conn := &ircevent.Connection{
		Server:      cfg.Address,
		Nick:        cfg.Nick,
		User:        cfg.Nick,
		RealName:    cfg.Nick,
		UseTLS:      cfg.TLS,
		QuitMessage: "bye",
		Log:         log.New(logger.WriterLevel(logrus.DebugLevel), "", 0),
	}
	// Overlong replies are cut to the line limit instead of rejected.
	conn.AllowTruncation = true
	if cfg.TLS {
		conn.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSInsecure}
	}

	b := &Bot{
		ctx:      ctx,
		conn:     conn,
		replier:  replier,
		channels: cfg.Channels,
		log:      entry,
	}
	conn.AddConnectCallback(func(ircmsg.Message) { b.joinAll(conn) })
	conn.AddCallback("PRIVMSG", func(e ircmsg.Message) {
		go b.handle(conn, conn.CurrentNick(), e)
	})
	return b
}

// Run connects and processes events until Close. The connection reconnects
// on its own after network errors.
func (b *Bot) Run() error {
	b.log.WithField("server", b.conn.Server).Info("Connecting to IRC")
	if err := b.conn.Connect(); err != nil {
		return err
	}
	b.conn.Loop()
	return nil
}

// Close quits the server and makes Run return.
func (b *Bot) Close() {
	b.conn.Quit()
}

type joiner interface {
	Join(channel string) error
}

func (b *Bot) joinAll(conn joiner) {
	for _, ch := range b.channels {
		if err := conn.Join(ch); err != nil {
			b.log.WithError(err).WithField("channel", ch).Warn("Failed to join channel")
			continue
		}
		b.log.WithField("channel", ch).Info("Joined channel")
	}
}

func (b *Bot) handle(out privmsger, ownNick string, e ircmsg.Message) {
	if len(e.Params) < 2 {
		return
	}
	nick := e.Nick()
	if nick == "" || strings.EqualFold(nick, ownNick) {
		return
	}

	target := e.Params[0]
	if !isChannel(target) {
		target = nick
	}

	for _, line := range ircLines(b.replier.Handle(b.ctx, e.Params[1])) {
		if err := out.Privmsg(target, line); err != nil {
			b.log.WithError(err).WithField("target", target).Warn("Failed to send reply")
		}
	}
}

// ircLines splits replies on line breaks, since an IRC message cannot carry
// CR, LF or NUL.
func ircLines(replies []string) []string {
	var out []string
	for _, reply := range replies {
		reply = strings.ReplaceAll(reply, "\x00", "")
		for _, line := range strings.FieldsFunc(reply, func(r rune) bool { return r == '\r' || r == '\n' }) {
			if strings.TrimSpace(line) != "" {
				out = append(out, line)
			}
		}
	}
	return out
}

func isChannel(target string) bool {
	return target != "" && strings.ContainsRune("#&+!", rune(target[0]))
}
