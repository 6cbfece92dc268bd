package domain

import "errors"

// ErrorCode identifies a failure kind surfaced to the user.
type ErrorCode string

const (
	ErrorCodeStartup           ErrorCode = "startup"
	ErrorCodePermissionDenied  ErrorCode = "permission_denied"
	ErrorCodeDeviceUnavailable ErrorCode = "device_unavailable"
	ErrorCodeEmptyCapture      ErrorCode = "empty_capture"
	ErrorCodeEncoding          ErrorCode = "encoding"
	ErrorCodeNetwork           ErrorCode = "network"
	ErrorCodeRecognitionFailed ErrorCode = "recognition_failed"
	ErrorCodeAudioStop         ErrorCode = "audio_stop"
	ErrorCodeAudioStream       ErrorCode = "audio_stream"
	ErrorCodeAuth              ErrorCode = "auth"
	ErrorCodeHistory           ErrorCode = "history"
	ErrorCodeClipboard         ErrorCode = "clipboard"
)

var defaultMessages = map[ErrorCode]string{
	ErrorCodePermissionDenied:  "Failed to start recording. Please check microphone permissions.",
	ErrorCodeDeviceUnavailable: "Aucun microphone disponible.",
	ErrorCodeEmptyCapture:      "Échec de l'enregistrement audio.",
	ErrorCodeEncoding:          "Échec de la conversion audio.",
	ErrorCodeNetwork:           "Erreur réseau : service de reconnaissance injoignable.",
	ErrorCodeRecognitionFailed: "Échec de l'identification",
	ErrorCodeAuth:              "Login failed",
	ErrorCodeHistory:           "Échec du chargement de l'historique",
	ErrorCodeClipboard:         "Copie des paroles impossible",
}

// DefaultMessage returns the user-facing fallback message for a code.
func DefaultMessage(code ErrorCode) string {
	if msg, ok := defaultMessages[code]; ok {
		return msg
	}
	return "Erreur inconnue"
}

// Error is a coded failure whose Error() text is shown verbatim to the user.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

// NewError builds an Error with the code's default message.
func NewError(code ErrorCode, cause error) *Error {
	return &Error{Code: code, Message: DefaultMessage(code), Err: cause}
}

// NewErrorMessage builds an Error with an explicit message, falling back to the default.
func NewErrorMessage(code ErrorCode, message string, cause error) *Error {
	if message == "" {
		message = DefaultMessage(code)
	}
	return &Error{Code: code, Message: message, Err: cause}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return DefaultMessage(e.Code)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code, so the sentinels below work with errors.Is.
func (e *Error) Is(target error) bool {
	var other *Error
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

var (
	ErrPermissionDenied  = &Error{Code: ErrorCodePermissionDenied}
	ErrDeviceUnavailable = &Error{Code: ErrorCodeDeviceUnavailable}
	ErrEmptyCapture      = &Error{Code: ErrorCodeEmptyCapture}
	ErrEncoding          = &Error{Code: ErrorCodeEncoding}
	ErrNetwork           = &Error{Code: ErrorCodeNetwork}
	ErrRecognitionFailed = &Error{Code: ErrorCodeRecognitionFailed}
)

// CodeOf extracts the code of a coded error, or fallback when err is not one.
func CodeOf(err error, fallback ErrorCode) ErrorCode {
	var coded *Error
	if errors.As(err, &coded) {
		return coded.Code
	}
	return fallback
}
