// Package convert turns uploaded WAV bytes into MP3 bytes.
//
// Input is validated with go-audio/wav before ffmpeg runs, so undecodable
// uploads are classified as services.ErrInvalidInput without spawning a
// process. ffmpeg (libmp3lame, VBR) reads from stdin and writes to stdout;
// the output is decoded with go-mp3 before it is accepted. Every other
// failure is reported as services.ErrConversionFault or services.ErrTimeout.
package convert
