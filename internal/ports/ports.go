package ports

import (
	"context"
	"io"

	"melo/internal/domain"
)

// AudioConfig describes how the microphone should be captured.
type AudioConfig struct {
	SampleRate  int
	Channels    int
	InputFormat string
	InputDevice string
}

// BytesPerSecond is the PCM s16le rate for the config.
func (c AudioConfig) BytesPerSecond() int {
	return c.SampleRate * c.Channels * 2
}

// AudioSession is a live capture session producing s16le PCM.
type AudioSession interface {
	io.ReadCloser
	Stop() error
}

// AudioCapture creates microphone capture sessions.
type AudioCapture interface {
	Start(ctx context.Context, cfg AudioConfig) (AudioSession, error)
}

// AudioEncoder packages raw PCM into the container the recognition API accepts.
type AudioEncoder interface {
	Encode(cfg AudioConfig, pcm []byte) (domain.AudioPayload, error)
}

// RecognitionClient submits captured audio for identification.
type RecognitionClient interface {
	Submit(ctx context.Context, req domain.RecognitionRequest) (domain.RecognitionResult, error)
}

// AuthClient exchanges credentials with the remote API.
type AuthClient interface {
	Login(ctx context.Context, email string, password string) (domain.Identity, error)
	Register(ctx context.Context, name string, email string, password string) error
}

// HistoryClient reads and edits server-side search history.
type HistoryClient interface {
	ListHistory(ctx context.Context, userID domain.ID) ([]domain.HistoryEntry, error)
	DeleteHistory(ctx context.Context, id domain.ID) error
	SaveHistory(ctx context.Context, result domain.RecognitionResult, userID domain.ID) error
}

// IdentityStore persists the authenticated identity between runs.
type IdentityStore interface {
	Load() (domain.Identity, bool, error)
	Save(identity domain.Identity) error
	Clear() error
}

// SessionContext exposes the current authenticated identity, if any.
type SessionContext interface {
	Identity() (domain.Identity, bool)
}

// Clipboard writes text into the system clipboard.
type Clipboard interface {
	SetText(ctx context.Context, text string) error
}

// EventSink emits backend state/events to the UI.
type EventSink interface {
	ViewStateChanged(status domain.ViewStatus)
	ListeningTick(elapsed int, max int)
	HistoryChanged()
	SessionError(code domain.ErrorCode, detail string)
}
