package convert

import (
	"encoding/binary"
	"fmt"

	"audioconv/internal/services"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	minFmtChunkSize = 16
	maxFmtChunkSize = 64
)

// wavHeader holds the fmt chunk fields checked before decoding.
type wavHeader struct {
	channels   uint16
	sampleRate uint32
	bitDepth   uint16
}

// scanRIFF walks the chunk table of a WAV upload without allocating from
// declared sizes. Every chunk must fit inside data, the fmt chunk must be a
// plausible size and describe a non-empty stream, and a data chunk must
// follow it.
func scanRIFF(data []byte) (wavHeader, error) {
	invalid := func(format string, args ...any) (wavHeader, error) {
		return wavHeader{}, services.Wrap(services.ErrInvalidInput, "convert", "inspect", fmt.Sprintf(format, args...), nil)
	}
	if len(data) < riffHeaderSize || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return invalid("not a RIFF/WAVE stream")
	}
	if declared := binary.LittleEndian.Uint32(data[4:8]); uint64(declared) > uint64(len(data)-8) {
		return invalid("riff size %d exceeds upload of %d bytes", declared, len(data))
	}

	var (
		header  wavHeader
		sawFmt  bool
		sawData bool
	)
	offset := riffHeaderSize
	for offset+chunkHeaderSize <= len(data) {
		id := string(data[offset : offset+4])
		size := uint64(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + chunkHeaderSize
		if size > uint64(len(data)-body) {
			return invalid("chunk %q declares %d bytes, %d remain", id, size, len(data)-body)
		}
		switch id {
		case "fmt ":
			if size < minFmtChunkSize || size > maxFmtChunkSize {
				return invalid("fmt chunk size %d out of range", size)
			}
			header = wavHeader{
				channels:   binary.LittleEndian.Uint16(data[body+2 : body+4]),
				sampleRate: binary.LittleEndian.Uint32(data[body+4 : body+8]),
				bitDepth:   binary.LittleEndian.Uint16(data[body+14 : body+16]),
			}
			sawFmt = true
		case "data":
			if !sawFmt {
				return invalid("data chunk precedes fmt chunk")
			}
			sawData = true
		}
		next := uint64(body) + size + size&1
		if next > uint64(len(data)) {
			break
		}
		offset = int(next)
	}

	switch {
	case !sawFmt:
		return invalid("missing fmt chunk")
	case !sawData:
		return invalid("missing data chunk")
	case header.channels == 0:
		return invalid("zero channel count")
	case header.sampleRate == 0:
		return invalid("zero sample rate")
	case header.bitDepth == 0:
		return invalid("zero bit depth")
	}
	return header, nil
}
