package convert

import (
	"bytes"
	"fmt"
	"time"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"

	"audioconv/internal/services"
)

// WAVInfo describes a validated WAV upload.
type WAVInfo struct {
	SampleRate  int
	Channels    int
	BitDepth    int
	AudioFormat int
	Duration    time.Duration
}

// InspectWAV parses the RIFF headers and rejects anything that is not a
// playable WAV stream. Chunk sizes are bounds-checked against data before the
// decoder sees it, since the decoder allocates whatever a header declares.
func InspectWAV(data []byte) (WAVInfo, error) {
	if len(data) == 0 {
		return WAVInfo{}, services.Wrap(services.ErrInvalidInput, "convert", "inspect", "empty upload", nil)
	}
	if _, err := scanRIFF(data); err != nil {
		return WAVInfo{}, err
	}
	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return WAVInfo{}, services.Wrap(services.ErrInvalidInput, "convert", "inspect", "not a valid wav file", dec.Err())
	}
	duration, err := dec.Duration()
	if err != nil {
		return WAVInfo{}, services.Wrap(services.ErrInvalidInput, "convert", "inspect", "unreadable wav duration", err)
	}
	return WAVInfo{
		SampleRate:  int(dec.SampleRate),
		Channels:    int(dec.NumChans),
		BitDepth:    int(dec.BitDepth),
		AudioFormat: int(dec.WavAudioFormat),
		Duration:    duration,
	}, nil
}

// MP3Info describes a decoded MP3 result.
type MP3Info struct {
	SampleRate int
	// PCMBytes is the decoded length, or -1 when the stream length is unknown.
	PCMBytes int64
}

// VerifyMP3 decodes the stream header to confirm data is playable MP3.
func VerifyMP3(data []byte) (MP3Info, error) {
	if len(data) == 0 {
		return MP3Info{}, services.Wrap(services.ErrConversionFault, "convert", "verify", "empty mp3 output", nil)
	}
	dec, err := mp3.NewDecoder(bytes.NewReader(data))
	if err != nil {
		return MP3Info{}, services.Wrap(services.ErrConversionFault, "convert", "verify", "output is not decodable mp3", err)
	}
	if dec.SampleRate() <= 0 {
		return MP3Info{}, services.Wrap(services.ErrConversionFault, "convert", "verify",
			fmt.Sprintf("invalid sample rate %d", dec.SampleRate()), nil)
	}
	return MP3Info{SampleRate: dec.SampleRate(), PCMBytes: dec.Length()}, nil
}
