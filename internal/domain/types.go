package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// ViewState models the listen/recognize lifecycle shown to the user.
type ViewState string

const (
	ViewStateIdle      ViewState = "idle"
	ViewStateRecording ViewState = "recording"
	ViewStateSearching ViewState = "searching"
	ViewStateResult    ViewState = "result"
	ViewStateError     ViewState = "error"
)

// CaptureState models one microphone capture session.
type CaptureState string

const (
	CaptureStateIdle      CaptureState = "idle"
	CaptureStateRecording CaptureState = "recording"
	CaptureStateStopping  CaptureState = "stopping"
	CaptureStateStopped   CaptureState = "stopped"
)

// ConfidenceTier partitions recognition confidence for display.
type ConfidenceTier string

const (
	ConfidenceTierSuccess ConfidenceTier = "success"
	ConfidenceTierWarning ConfidenceTier = "warning"
	ConfidenceTierError   ConfidenceTier = "error"
)

const (
	highConfidence   = 0.9
	mediumConfidence = 0.7
)

// TierFor maps a confidence score in [0,1] to its display tier.
func TierFor(confidence float64) ConfidenceTier {
	switch {
	case confidence >= highConfidence:
		return ConfidenceTierSuccess
	case confidence >= mediumConfidence:
		return ConfidenceTierWarning
	default:
		return ConfidenceTierError
	}
}

// ID is a server identifier that may arrive as a JSON number or string.
type ID string

func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string {
	return string(id)
}

// User is the authenticated user profile returned by login.
type User struct {
	ID    ID     `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Identity is the authenticated session: bearer token plus profile.
type Identity struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// Valid reports whether the identity carries a usable user.
func (i Identity) Valid() bool {
	return i.User.ID != ""
}

// Prediction is one audio-classifier label returned alongside a match.
type Prediction struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// RecognitionResult is the structured response of a recognize/search call.
type RecognitionResult struct {
	ID          ID           `json:"id,omitempty"`
	Title       string       `json:"title"`
	Artist      string       `json:"artist"`
	Album       string       `json:"album,omitempty"`
	Lyrics      string       `json:"lyrics,omitempty"`
	Confidence  float64      `json:"confidence"`
	YouTubeURL  string       `json:"youtube_url,omitempty"`
	Predictions []Prediction `json:"yamnet_prediction,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// Tier returns the display tier of the result's confidence.
func (r RecognitionResult) Tier() ConfidenceTier {
	return TierFor(r.Confidence)
}

// HistoryEntry is a read-only projection of a past search.
type HistoryEntry struct {
	ID         ID      `json:"id"`
	Title      string  `json:"title"`
	Lyrics     string  `json:"lyrics"`
	Timestamp  string  `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	Artist     string  `json:"artist,omitempty"`
}

// AudioPayload is a finalized, encoded capture ready for submission.
type AudioPayload struct {
	Data        []byte
	ContentType string
	Filename    string
	Duration    time.Duration
}

// RecognitionRequest is built once from a finalized capture and consumed once.
type RecognitionRequest struct {
	Payload  AudioPayload
	Identity *Identity
}

// CaptureStatus summarizes the capture controller.
type CaptureStatus struct {
	State     CaptureState `json:"state"`
	SessionID string       `json:"sessionId,omitempty"`
	Chunks    int          `json:"chunks"`
}

// ViewStatus is the snapshot rendered by the frontend.
type ViewStatus struct {
	State        ViewState          `json:"state"`
	Elapsed      int                `json:"elapsed"`
	MaxSeconds   int                `json:"maxSeconds"`
	Result       *RecognitionResult `json:"result,omitempty"`
	Tier         ConfidenceTier     `json:"tier,omitempty"`
	ErrorCode    ErrorCode          `json:"errorCode,omitempty"`
	ErrorMessage string             `json:"errorMessage,omitempty"`
}
