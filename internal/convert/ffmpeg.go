package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"audioconv/internal/config"
	"audioconv/internal/deps"
	"audioconv/internal/logging"
	"audioconv/internal/services"
)

// SourceFormatWAV is the only accepted upload format.
const SourceFormatWAV = "wav"

const (
	stderrLimit = 4096
	waitDelay   = 2 * time.Second
)

// Converter transforms source bytes into MP3 bytes.
type Converter interface {
	Convert(ctx context.Context, src []byte, format string) ([]byte, error)
	HealthCheck(ctx context.Context) error
}

// FFmpeg shells out to ffmpeg with libmp3lame.
type FFmpeg struct {
	binary  string
	quality int
	logger  *slog.Logger
}

// NewFFmpeg builds a converter for binary at the given libmp3lame VBR quality.
func NewFFmpeg(binary string, quality int, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return &FFmpeg{
		binary:  binary,
		quality: quality,
		logger:  logging.NewComponentLogger(logger, "convert"),
	}
}

// NewFromConfig builds the converter described by the [conversion] section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *FFmpeg {
	return NewFFmpeg(cfg.FFmpegBinary(), cfg.Conversion.Quality, logger)
}

// Convert validates src as WAV and transcodes it to MP3.
func (c *FFmpeg) Convert(ctx context.Context, src []byte, format string) ([]byte, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format != "" && format != SourceFormatWAV {
		return nil, services.Wrap(services.ErrInvalidInput, "convert", "inspect",
			fmt.Sprintf("unsupported source format %q", format), nil)
	}
	info, err := InspectWAV(src)
	if err != nil {
		return nil, err
	}

	binary, err := exec.LookPath(c.binary)
	if err != nil {
		return nil, services.Wrap(services.ErrConversionFault, "convert", "ffmpeg", "binary not found", err)
	}

	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-f", "wav", "-i", "pipe:0",
		"-vn", "-acodec", "libmp3lame", "-q:a", strconv.Itoa(c.quality),
		"-f", "mp3", "pipe:1",
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = bytes.NewReader(src)
	var stdout bytes.Buffer
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stdout = &stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	started := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(started)

	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, services.Wrap(services.ErrTimeout, "convert", "ffmpeg",
				fmt.Sprintf("conversion exceeded deadline after %s", elapsed.Round(time.Millisecond)), ctxErr)
		}
		return nil, services.Wrap(services.ErrConversionFault, "convert", "ffmpeg", "conversion cancelled", ctxErr)
	}
	if runErr != nil {
		detail := strings.TrimSpace(stderr.String())
		if isInvalidDataMessage(detail) {
			return nil, services.Wrap(services.ErrInvalidInput, "convert", "ffmpeg", detail, runErr)
		}
		if detail == "" {
			detail = "ffmpeg failed"
		}
		return nil, services.Wrap(services.ErrConversionFault, "convert", "ffmpeg", detail, runErr)
	}

	out := stdout.Bytes()
	mp3Info, err := VerifyMP3(out)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("conversion complete",
		logging.Int("source_sample_rate", info.SampleRate),
		logging.Int("source_channels", info.Channels),
		logging.Duration("source_duration", info.Duration),
		logging.Int("output_bytes", len(out)),
		logging.Int("output_sample_rate", mp3Info.SampleRate),
		logging.Duration("elapsed", elapsed),
	)
	return out, nil
}

// HealthCheck confirms ffmpeg resolves and provides libmp3lame.
func (c *FFmpeg) HealthCheck(ctx context.Context) error {
	status := deps.CheckFFmpeg(ctx, c.binary)
	if !status.Available {
		return services.Wrap(services.ErrExternalTool, "convert", "health", status.Detail, nil)
	}
	return nil
}

func isInvalidDataMessage(stderr string) bool {
	lower := strings.ToLower(stderr)
	return strings.Contains(lower, "invalid data found when processing input") ||
		strings.Contains(lower, "could not find codec parameters")
}

// limitedBuffer keeps the first limit bytes written and discards the rest.
type limitedBuffer struct {
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	if remaining := b.limit - b.buf.Len(); remaining > 0 {
		if len(p) > remaining {
			b.buf.Write(p[:remaining])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string { return b.buf.String() }
