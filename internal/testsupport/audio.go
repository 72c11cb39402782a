package testsupport

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVBytes renders a mono 16-bit PCM sine tone of the given length.
func WAVBytes(t testing.TB, sampleRate int, seconds float64) []byte {
	t.Helper()

	path := filepath.Join(t.TempDir(), "tone.wav")
	WriteWAV(t, path, sampleRate, seconds)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read wav: %v", err)
	}
	return data
}

// WriteWAV writes a mono 16-bit PCM 440 Hz tone to path.
func WriteWAV(t testing.TB, path string, sampleRate int, seconds float64) {
	t.Helper()

	if sampleRate <= 0 {
		sampleRate = 44100
	}
	frames := int(float64(sampleRate) * seconds)
	if frames <= 0 {
		frames = 1
	}
	samples := make([]int, frames)
	for i := range samples {
		samples[i] = int(math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)) * 12000)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           samples,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode wav: %v", err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finalize wav: %v", err)
	}
}
