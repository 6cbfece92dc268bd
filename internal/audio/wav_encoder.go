package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"melo/internal/domain"
	"melo/internal/ports"
)

const (
	bitDepth       = 16
	pcmAudioFormat = 1

	wavContentType = "audio/wav"
	wavFilename    = "recording.wav"
)

// WAVEncoder transcodes captured s16le PCM into a RIFF/WAVE payload in memory.
type WAVEncoder struct{}

func NewWAVEncoder() *WAVEncoder {
	return &WAVEncoder{}
}

func (e *WAVEncoder) Encode(cfg ports.AudioConfig, pcm []byte) (domain.AudioPayload, error) {
	cfg = withDefaults(cfg)

	buf, err := decodePCM(cfg, pcm)
	if err != nil {
		return domain.AudioPayload{}, domain.NewError(domain.ErrorCodeEncoding, err)
	}

	// wav.Encoder patches the header on Close and needs a seekable sink.
	sink := &memSink{}
	enc := wav.NewEncoder(sink, cfg.SampleRate, bitDepth, cfg.Channels, pcmAudioFormat)
	if err := enc.Write(buf); err != nil {
		return domain.AudioPayload{}, domain.NewError(domain.ErrorCodeEncoding, fmt.Errorf("write wav samples: %w", err))
	}
	if err := enc.Close(); err != nil {
		return domain.AudioPayload{}, domain.NewError(domain.ErrorCodeEncoding, fmt.Errorf("finalize wav: %w", err))
	}
	data := sink.Bytes()

	return domain.AudioPayload{
		Data:        data,
		ContentType: wavContentType,
		Filename:    wavFilename,
		Duration:    PCMDuration(cfg, len(pcm)),
	}, nil
}

// PCMDuration is the playback length of n bytes of s16le PCM.
func PCMDuration(cfg ports.AudioConfig, n int) time.Duration {
	rate := withDefaults(cfg).BytesPerSecond()
	if rate <= 0 {
		return 0
	}
	return time.Duration(int64(n) * int64(time.Second) / int64(rate))
}

func decodePCM(cfg ports.AudioConfig, pcm []byte) (*goaudio.IntBuffer, error) {
	frame := cfg.Channels * bitDepth / 8
	if len(pcm) == 0 {
		return nil, fmt.Errorf("no pcm samples")
	}
	if len(pcm)%frame != 0 {
		return nil, fmt.Errorf("pcm length %d is not a whole number of %d-byte frames", len(pcm), frame)
	}

	samples := make([]int, len(pcm)/2)
	for i := range samples {
		samples[i] = int(int16(binary.LittleEndian.Uint16(pcm[i*2:])))
	}

	return &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: cfg.Channels, SampleRate: cfg.SampleRate},
		Data:           samples,
		SourceBitDepth: bitDepth,
	}, nil
}

// memSink is an in-memory io.WriteSeeker.
type memSink struct {
	buf []byte
	pos int
}

func (m *memSink) Write(p []byte) (int, error) {
	end := m.pos + len(p)
	if end > len(m.buf) {
		if end > cap(m.buf) {
			grown := make([]byte, end, 2*end)
			copy(grown, m.buf)
			m.buf = grown
		} else {
			m.buf = m.buf[:end]
		}
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memSink) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(m.pos)
	case io.SeekEnd:
		base = int64(len(m.buf))
	default:
		return 0, fmt.Errorf("invalid whence %d", whence)
	}
	next := base + offset
	if next < 0 {
		return 0, errors.New("negative seek position")
	}
	m.pos = int(next)
	return next, nil
}

// Bytes returns the written content.
func (m *memSink) Bytes() []byte {
	return m.buf
}
