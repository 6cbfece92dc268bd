package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"melo/internal/domain"
	"melo/internal/ports"
)

var (
	ErrCaptureActive = errors.New("a capture session is already active")
	ErrNotRecording  = errors.New("no recording in progress")
)

const defaultChunkInterval = 100 * time.Millisecond

// CaptureConfig controls microphone capture and buffering.
type CaptureConfig struct {
	Audio         ports.AudioConfig
	ChunkInterval time.Duration
}

// CaptureController owns the microphone for one bounded recording at a time.
type CaptureController struct {
	audio     ports.AudioCapture
	encoder   ports.AudioEncoder
	events    ports.EventSink
	logger    *slog.Logger
	cfg       CaptureConfig
	chunkSize int

	mu       sync.Mutex
	starting bool
	current  *captureSession
}

func NewCaptureController(
	audio ports.AudioCapture,
	encoder ports.AudioEncoder,
	events ports.EventSink,
	logger *slog.Logger,
	cfg CaptureConfig,
) *CaptureController {
	if cfg.ChunkInterval <= 0 {
		cfg.ChunkInterval = defaultChunkInterval
	}
	if cfg.Audio.SampleRate <= 0 {
		cfg.Audio.SampleRate = 44100
	}
	if cfg.Audio.Channels <= 0 {
		cfg.Audio.Channels = 1
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CaptureController{
		audio:     audio,
		encoder:   encoder,
		events:    events,
		logger:    logger,
		cfg:       cfg,
		chunkSize: chunkSizeFor(cfg.Audio, cfg.ChunkInterval),
	}
}

// Start acquires the microphone and begins buffering chunks.
func (c *CaptureController) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.starting || c.current != nil {
		c.mu.Unlock()
		return ErrCaptureActive
	}
	c.starting = true
	c.mu.Unlock()

	sessionCtx, cancel := context.WithCancel(ctx)
	audioSession, err := c.audio.Start(sessionCtx, c.cfg.Audio)
	if err != nil {
		cancel()
		c.mu.Lock()
		c.starting = false
		c.mu.Unlock()
		c.logger.Warn("microphone start failed", "error", err)
		return asStartError(err)
	}

	session := &captureSession{
		id:        uuid.New(),
		cancel:    cancel,
		audio:     audioSession,
		state:     domain.CaptureStateRecording,
		chunks:    newChunkBuffer(),
		audioDone: make(chan struct{}),
	}

	c.mu.Lock()
	c.current = session
	c.starting = false
	c.mu.Unlock()

	go pumpAudioChunks(session, c.chunkSize, c.events, c.logger, session.audioDone)

	c.logger.Info("capture started", "session", session.id, "chunkBytes", c.chunkSize)
	return nil
}

// Stop releases the microphone and returns the encoded capture.
func (c *CaptureController) Stop(_ context.Context) (domain.AudioPayload, error) {
	session, err := c.getCurrent()
	if err != nil {
		return domain.AudioPayload{}, err
	}
	if !session.transition(domain.CaptureStateRecording, domain.CaptureStateStopping) {
		return domain.AudioPayload{}, ErrNotRecording
	}
	defer c.finishSession(session)

	c.releaseDevice(session)
	pcm, count := session.chunks.Drain()
	if count == 0 || len(pcm) == 0 {
		c.logger.Warn("capture produced no audio", "session", session.id)
		return domain.AudioPayload{}, domain.NewError(domain.ErrorCodeEmptyCapture, session.pumpErr)
	}

	payload, err := c.encoder.Encode(c.cfg.Audio, pcm)
	if err != nil {
		c.logger.Warn("capture encoding failed", "session", session.id, "error", err)
		if errors.Is(err, domain.ErrEncoding) {
			return domain.AudioPayload{}, err
		}
		return domain.AudioPayload{}, domain.NewError(domain.ErrorCodeEncoding, err)
	}

	c.logger.Info("capture finalized",
		"session", session.id,
		"chunks", count,
		"bytes", len(payload.Data),
		"duration", payload.Duration)
	return payload, nil
}

// Abort releases the microphone and discards everything captured so far.
func (c *CaptureController) Abort() error {
	session, err := c.getCurrent()
	if err != nil {
		return err
	}
	if !session.transition(domain.CaptureStateRecording, domain.CaptureStateStopping) {
		// A concurrent Stop owns the session and will release it.
		return nil
	}

	c.releaseDevice(session)
	_, count := session.chunks.Drain()
	c.finishSession(session)
	c.logger.Info("capture discarded", "session", session.id, "chunks", count)
	return nil
}

// Status returns the current capture status.
func (c *CaptureController) Status() domain.CaptureStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return domain.CaptureStatus{State: domain.CaptureStateIdle}
	}
	return domain.CaptureStatus{
		State:     c.current.getState(),
		SessionID: c.current.id.String(),
		Chunks:    c.current.chunks.Len(),
	}
}

func (c *CaptureController) getCurrent() (*captureSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.current == nil {
		return nil, ErrNotRecording
	}
	return c.current, nil
}

func (c *CaptureController) releaseDevice(session *captureSession) {
	if err := session.audio.Stop(); err != nil {
		c.logger.Warn("microphone did not stop cleanly", "session", session.id, "error", err)
		c.events.SessionError(domain.ErrorCodeAudioStop, "failed to stop audio capture cleanly")
	}
	<-session.audioDone
	session.cancel()
}

func (c *CaptureController) finishSession(session *captureSession) {
	session.cancel()
	session.setState(domain.CaptureStateStopped)

	c.mu.Lock()
	if c.current == session {
		c.current = nil
	}
	c.mu.Unlock()
}

func asStartError(err error) error {
	if errors.Is(err, domain.ErrPermissionDenied) || errors.Is(err, domain.ErrDeviceUnavailable) {
		return err
	}
	return domain.NewError(domain.ErrorCodeDeviceUnavailable, err)
}
