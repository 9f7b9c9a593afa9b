package relay

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os/exec"

	"github.com/sirupsen/logrus"
	"layeh.com/gopus"
)

const (
	sampleRate = 48000
	channels   = 2
	// frameSize is 20ms of audio per channel.
	frameSize  = 960
	frameBytes = frameSize * channels * 2

	DefaultBitrate = 128000
	DefaultFFmpeg  = "ffmpeg"
)

// Source feeds a continuous audio stream into a voice connection until the
// stream ends or ctx is cancelled.
type Source interface {
	Stream(ctx context.Context, url string, conn Conn) error
}

type frameEncoder interface {
	Encode(pcm []int16, frameSize, maxDataBytes int) ([]byte, error)
}

// FFmpegSource decodes the stream with ffmpeg and encodes Opus with libopus.
type FFmpegSource struct {
	path    string
	bitrate int
	log     logrus.FieldLogger
}

// NewFFmpegSource returns a source running the ffmpeg binary at path.
func NewFFmpegSource(path string, log logrus.FieldLogger) *FFmpegSource {
	if path == "" {
		path = DefaultFFmpeg
	}
	return &FFmpegSource{path: path, bitrate: DefaultBitrate, log: log}
}

func ffmpegArgs(url string) []string {
	return []string{
		"-reconnect", "1",
		"-reconnect_streamed", "1",
		"-reconnect_delay_max", "5",
		"-i", url,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", "48000",
		"-ac", "2",
		"-bufsize", "64k",
		"-loglevel", "warning",
		"-",
	}
}

// Stream relays url into conn until ffmpeg exits or ctx is cancelled.
func (f *FFmpegSource) Stream(ctx context.Context, url string, conn Conn) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("failed to create opus encoder: %w", err)
	}
	encoder.SetBitrate(f.bitrate)

	cmd := exec.CommandContext(ctx, f.path, ffmpegArgs(url)...)
	if w, ok := f.log.(interface {
		WriterLevel(logrus.Level) *io.PipeWriter
	}); ok {
		stderr := w.WriterLevel(logrus.DebugLevel)
		defer stderr.Close()
		cmd.Stderr = stderr
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start ffmpeg: %w", err)
	}
	defer func() {
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
		cmd.Wait()
	}()

	if err := conn.Speaking(true); err != nil {
		f.log.WithError(err).Warn("Could not set speaking state")
	}
	defer conn.Speaking(false)

	return f.pump(ctx, stdout, encoder, conn)
}

// pump reads 20ms PCM frames from r, encodes them and sends them to conn.
// A short final frame is padded with silence.
func (f *FFmpegSource) pump(ctx context.Context, r io.Reader, enc frameEncoder, conn Conn) error {
	buf := make([]byte, frameBytes)
	samples := make([]int16, frameSize*channels)
	var sent, dropped int

	for {
		n, err := io.ReadFull(r, buf)
		if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
			if errors.Is(err, io.EOF) {
				f.log.WithField("frames", sent).Info("Audio stream ended")
				return nil
			}
			return fmt.Errorf("error reading PCM data: %w", err)
		}
		clear(buf[n:])
		pcmFrame(buf, samples)

		opus, encErr := enc.Encode(samples, frameSize, frameBytes)
		if encErr != nil {
			f.log.WithError(encErr).Debug("Opus encoding error")
		} else {
			switch sendErr := conn.Send(ctx, opus); {
			case sendErr == nil:
				sent++
			case errors.Is(sendErr, ErrFrameDropped):
				dropped++
				if dropped%50 == 1 {
					f.log.WithField("dropped", dropped).Warn("Voice connection is not keeping up")
				}
			default:
				return sendErr
			}
		}

		if err != nil {
			f.log.WithField("frames", sent).Info("Audio stream ended")
			return nil
		}
	}
}

// pcmFrame decodes little-endian s16 PCM from buf into samples.
func pcmFrame(buf []byte, samples []int16) {
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2:]))
	}
}
