package relay

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/latoulicious/Spotifm/pkg/logging"
)

// disconnects records which voice connections were dropped.
type disconnects struct {
	mu  sync.Mutex
	vcs []*discordgo.VoiceConnection
}

func (d *disconnects) record(vc *discordgo.VoiceConnection) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.vcs = append(d.vcs, vc)
	return nil
}

func (d *disconnects) list() []*discordgo.VoiceConnection {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*discordgo.VoiceConnection(nil), d.vcs...)
}

func testVoice(join func(guildID, channelID string) (*discordgo.VoiceConnection, error), dropped *disconnects) *DiscordVoice {
	return &DiscordVoice{
		log:        logging.Discard(),
		join:       join,
		disconnect: dropped.record,
	}
}

func setReady(vc *discordgo.VoiceConnection) {
	vc.Lock()
	vc.Ready = true
	vc.Unlock()
}

func TestJoinWaitsUntilReady(t *testing.T) {
	vc := &discordgo.VoiceConnection{}
	dropped := &disconnects{}
	var gotGuild, gotChannel string
	v := testVoice(func(guildID, channelID string) (*discordgo.VoiceConnection, error) {
		gotGuild, gotChannel = guildID, channelID
		time.AfterFunc(3*readyPollInterval, func() { setReady(vc) })
		return vc, nil
	}, dropped)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, err := v.Join(ctx, "guild", "voice")
	require.NoError(t, err)
	require.IsType(t, &discordConn{}, conn)
	assert.Same(t, vc, conn.(*discordConn).vc)
	assert.Equal(t, "guild", gotGuild)
	assert.Equal(t, "voice", gotChannel)
	assert.Empty(t, dropped.list())
}

func TestJoinNeverReadyDisconnects(t *testing.T) {
	vc := &discordgo.VoiceConnection{}
	dropped := &disconnects{}
	v := testVoice(func(string, string) (*discordgo.VoiceConnection, error) {
		return vc, nil
	}, dropped)

	ctx, cancel := context.WithTimeout(context.Background(), 3*readyPollInterval)
	defer cancel()

	_, err := v.Join(ctx, "guild", "voice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, []*discordgo.VoiceConnection{vc}, dropped.list())
}

func TestLateJoinIsDisconnected(t *testing.T) {
	late := &discordgo.VoiceConnection{}
	release := make(chan struct{})
	dropped := &disconnects{}
	v := testVoice(func(string, string) (*discordgo.VoiceConnection, error) {
		<-release
		return late, nil
	}, dropped)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := v.Join(ctx, "guild", "voice")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, dropped.list())

	close(release)
	assert.Eventually(t, func() bool {
		list := dropped.list()
		return len(list) == 1 && list[0] == late
	}, time.Second, 10*time.Millisecond)
}

func TestJoinErrorDropsPartialConnection(t *testing.T) {
	partial := &discordgo.VoiceConnection{}
	dropped := &disconnects{}
	boom := errors.New("timeout waiting for voice")
	v := testVoice(func(string, string) (*discordgo.VoiceConnection, error) {
		return partial, boom
	}, dropped)

	_, err := v.Join(context.Background(), "guild", "voice")
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []*discordgo.VoiceConnection{partial}, dropped.list())
}
