package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// DefaultFFmpeg is looked up on PATH when no binary is configured.
const DefaultFFmpeg = "ffmpeg"

// Tool is an external program the converter shells out to.
type Tool struct {
	Name    string
	Command string
	Purpose string
}

// FFmpegTool describes the configured ffmpeg binary.
func FFmpegTool(command string) Tool {
	command = strings.TrimSpace(command)
	if command == "" {
		command = DefaultFFmpeg
	}
	return Tool{Name: "FFmpeg", Command: command, Purpose: "Transcodes uploaded WAV audio to MP3"}
}

// Status reports whether a tool can be run. Command holds the resolved path
// once the lookup succeeds.
type Status struct {
	Name      string
	Command   string
	Purpose   string
	Available bool
	Detail    string
}

// Resolve looks tool up on PATH without running it.
func Resolve(tool Tool) Status {
	status := Status{Name: tool.Name, Command: strings.TrimSpace(tool.Command), Purpose: tool.Purpose}
	if status.Command == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(status.Command)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", status.Command)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}
