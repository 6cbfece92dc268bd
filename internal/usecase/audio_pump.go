package usecase

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"melo/internal/domain"
	"melo/internal/ports"
)

const minChunkSize = 256

// chunkSizeFor returns the byte length of one buffering interval, aligned to whole frames.
func chunkSizeFor(cfg ports.AudioConfig, interval time.Duration) int {
	frame := cfg.Channels * 2
	if frame <= 0 {
		frame = 2
	}
	size := int(int64(cfg.BytesPerSecond()) * int64(interval) / int64(time.Second))
	size -= size % frame
	if size < minChunkSize {
		size = minChunkSize
	}
	return size
}

func pumpAudioChunks(
	session *captureSession,
	chunkSize int,
	events ports.EventSink,
	logger *slog.Logger,
	done chan struct{},
) {
	defer close(done)

	if chunkSize < minChunkSize {
		chunkSize = minChunkSize
	}

	buf := make([]byte, chunkSize)
	for {
		n, err := io.ReadFull(session.audio, buf)
		if n > 0 {
			session.chunks.Append(buf[:n])
		}
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return
			}
			// A stopped ffmpeg can surface a closed pipe rather than EOF.
			if session.getState() != domain.CaptureStateRecording {
				return
			}
			session.pumpErr = err
			logger.Warn("audio capture read failed", "session", session.id, "error", err)
			events.SessionError(domain.ErrorCodeAudioStream, fmt.Sprintf("audio capture error: %v", err))
			return
		}
	}
}
