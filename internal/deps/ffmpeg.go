package deps

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const encoderProbeTimeout = 10 * time.Second

// MP3Encoder is the ffmpeg encoder the converter invokes.
const MP3Encoder = "libmp3lame"

// CheckFFmpeg resolves the ffmpeg binary and confirms it was built with the
// MP3 encoder.
func CheckFFmpeg(ctx context.Context, binary string) Status {
	result := Resolve(FFmpegTool(binary))
	if !result.Available {
		return result
	}
	result.Available = false

	if ctx == nil {
		ctx = context.Background()
	}
	probeCtx, cancel := context.WithTimeout(ctx, encoderProbeTimeout)
	defer cancel()
	out, err := exec.CommandContext(probeCtx, result.Command, "-hide_banner", "-encoders").CombinedOutput()
	if err != nil {
		result.Detail = fmt.Sprintf("list encoders: %v", err)
		return result
	}
	if !strings.Contains(string(out), MP3Encoder) {
		result.Detail = fmt.Sprintf("ffmpeg lacks the %s encoder", MP3Encoder)
		return result
	}
	result.Available = true
	return result
}
