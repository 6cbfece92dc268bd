package usecase

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"melo/internal/domain"
	"melo/internal/ports"
)

var (
	ErrInvalidTransition = errors.New("action not allowed in the current state")
	ErrNotListening      = errors.New("not listening")
)

type stopTrigger string

const (
	stopManual  stopTrigger = "manual"
	stopTimeout stopTrigger = "timeout"
)

// ListenController drives idle → recording → searching → result|error.
type ListenController struct {
	capture    *CaptureController
	timer      *SessionTimer
	recognizer ports.RecognitionClient
	session    ports.SessionContext
	lyrics     lyricsCopier
	events     ports.EventSink
	logger     *slog.Logger

	mu      sync.Mutex
	state   domain.ViewState
	result  *domain.RecognitionResult
	errCode domain.ErrorCode
	errMsg  string

	// starting is set while the microphone is opening; a stop that arrives
	// then is deferred until the capture exists.
	starting    bool
	stopPending bool
}

func NewListenController(
	capture *CaptureController,
	timer *SessionTimer,
	recognizer ports.RecognitionClient,
	session ports.SessionContext,
	clipboard ports.Clipboard,
	events ports.EventSink,
	logger *slog.Logger,
) *ListenController {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ListenController{
		capture:    capture,
		timer:      timer,
		recognizer: recognizer,
		session:    session,
		lyrics:     newLyricsCopier(clipboard, events),
		events:     events,
		logger:     logger,
		state:      domain.ViewStateIdle,
	}
}

// StartListening opens the microphone and arms the listening cap.
func (v *ListenController) StartListening(ctx context.Context) (domain.ViewStatus, error) {
	v.mu.Lock()
	if v.state != domain.ViewStateIdle || v.starting {
		v.mu.Unlock()
		return v.Status(), ErrInvalidTransition
	}
	v.state = domain.ViewStateRecording
	v.starting = true
	v.stopPending = false
	v.mu.Unlock()

	startErr := v.capture.Start(ctx)

	v.mu.Lock()
	v.starting = false
	stillRecording := v.state == domain.ViewStateRecording
	stopNow := v.stopPending
	v.stopPending = false
	v.mu.Unlock()

	if !stillRecording {
		// Torn down while the microphone was opening.
		if startErr == nil {
			if err := v.capture.Abort(); err != nil && !errors.Is(err, ErrNotRecording) {
				v.logger.Warn("capture abort failed", "error", err)
			}
			v.logger.Info("capture discarded after teardown during startup")
		}
		return v.Status(), ErrNotListening
	}
	if startErr != nil {
		return v.fail(startErr)
	}
	if stopNow {
		return v.finish(ctx, stopManual)
	}

	v.timer.Start(v.onTick, func() {
		_, _ = v.finish(ctx, stopTimeout)
	})

	status := v.Status()
	v.events.ViewStateChanged(status)
	return status, nil
}

// StopListening ends the recording early and submits it.
func (v *ListenController) StopListening(ctx context.Context) (domain.ViewStatus, error) {
	return v.finish(ctx, stopManual)
}

// NewSearch discards a shown result or error and returns to idle.
func (v *ListenController) NewSearch() (domain.ViewStatus, error) {
	v.mu.Lock()
	switch v.state {
	case domain.ViewStateResult, domain.ViewStateError:
		v.state = domain.ViewStateIdle
		v.result = nil
		v.errCode = ""
		v.errMsg = ""
	case domain.ViewStateIdle:
	default:
		v.mu.Unlock()
		return v.Status(), ErrInvalidTransition
	}
	v.mu.Unlock()

	status := v.Status()
	v.events.ViewStateChanged(status)
	return status, nil
}

// CopyLyrics places the displayed result's lyrics on the clipboard.
func (v *ListenController) CopyLyrics(ctx context.Context) error {
	v.mu.Lock()
	var lyrics string
	if v.state == domain.ViewStateResult && v.result != nil {
		lyrics = v.result.Lyrics
	}
	v.mu.Unlock()

	return v.lyrics.Copy(ctx, lyrics)
}

// Teardown releases the microphone and timer when the view goes away.
func (v *ListenController) Teardown() {
	v.timer.Stop()
	if err := v.capture.Abort(); err != nil && !errors.Is(err, ErrNotRecording) {
		v.logger.Warn("capture abort failed", "error", err)
	}

	v.mu.Lock()
	if v.state == domain.ViewStateRecording {
		v.state = domain.ViewStateIdle
	}
	v.stopPending = false
	v.mu.Unlock()
}

// Status returns the snapshot the view renders.
func (v *ListenController) Status() domain.ViewStatus {
	v.mu.Lock()
	defer v.mu.Unlock()

	status := domain.ViewStatus{
		State:        v.state,
		MaxSeconds:   v.timer.Max(),
		ErrorCode:    v.errCode,
		ErrorMessage: v.errMsg,
	}
	if v.state == domain.ViewStateRecording {
		status.Elapsed = v.timer.Elapsed()
	}
	if v.result != nil {
		result := *v.result
		status.Result = &result
		status.Tier = result.Tier()
	}
	return status
}

func (v *ListenController) onTick(elapsed int, max int) {
	v.mu.Lock()
	recording := v.state == domain.ViewStateRecording
	v.mu.Unlock()
	if recording {
		v.events.ListeningTick(elapsed, max)
	}
}

// finish takes the recording → searching edge at most once per cycle.
func (v *ListenController) finish(ctx context.Context, trigger stopTrigger) (domain.ViewStatus, error) {
	v.mu.Lock()
	if v.state != domain.ViewStateRecording {
		v.mu.Unlock()
		return v.Status(), ErrNotListening
	}
	if v.starting {
		v.stopPending = true
		v.mu.Unlock()
		v.logger.Info("stop requested while microphone is opening", "trigger", string(trigger))
		return v.Status(), nil
	}
	v.state = domain.ViewStateSearching
	v.mu.Unlock()

	v.timer.Stop()
	v.events.ViewStateChanged(v.Status())
	v.logger.Info("listening stopped", "trigger", string(trigger))

	payload, err := v.capture.Stop(ctx)
	if err != nil {
		return v.fail(err)
	}

	req := domain.RecognitionRequest{Payload: payload}
	if identity, ok := v.session.Identity(); ok {
		req.Identity = &identity
	}

	result, err := v.recognizer.Submit(ctx, req)
	if err != nil {
		return v.fail(err)
	}

	v.mu.Lock()
	v.state = domain.ViewStateResult
	v.result = &result
	v.errCode = ""
	v.errMsg = ""
	v.mu.Unlock()

	v.logger.Info("recognition succeeded",
		"title", result.Title,
		"artist", result.Artist,
		"confidence", result.Confidence)

	status := v.Status()
	v.events.ViewStateChanged(status)
	if req.Identity != nil {
		v.events.HistoryChanged()
	}
	return status, nil
}

func (v *ListenController) fail(err error) (domain.ViewStatus, error) {
	code := domain.CodeOf(err, domain.ErrorCodeRecognitionFailed)
	message := err.Error()

	v.mu.Lock()
	v.state = domain.ViewStateError
	v.result = nil
	v.errCode = code
	v.errMsg = message
	v.mu.Unlock()

	v.logger.Warn("listen cycle failed", "code", string(code), "error", err, "cause", errors.Unwrap(err))

	status := v.Status()
	v.events.SessionError(code, message)
	v.events.ViewStateChanged(status)
	return status, err
}
