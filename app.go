package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/wailsapp/wails/v2/pkg/runtime"

	"melo/internal/auth"
	"melo/internal/bootstrap"
	"melo/internal/config"
	"melo/internal/domain"
	"melo/internal/usecase"
)

const (
	eventView    = "melo:view"
	eventTick    = "melo:tick"
	eventHistory = "melo:history"
	eventError   = "melo:error"
)

// App is the Wails application root.
type App struct {
	ctx       context.Context
	stopWatch context.CancelFunc
	listen    *usecase.ListenController
	history   *usecase.HistoryService
	session   *auth.Session
	cfg       config.Config
	logger    *slog.Logger
	bootErr   error
}

func NewApp() *App {
	return &App{}
}

func (a *App) startup(ctx context.Context) {
	a.ctx = ctx

	services, err := bootstrap.Build(a, &wailsClipboard{})
	if err != nil {
		a.bootErr = err
		a.SessionError(domain.ErrorCodeStartup, err.Error())
		return
	}

	a.cfg = services.Config
	a.listen = services.Listen
	a.history = services.History
	a.session = services.Session
	a.logger = services.Logger

	watchCtx, cancel := context.WithCancel(ctx)
	a.stopWatch = cancel
	err = services.Store.Watch(watchCtx, func() {
		services.Session.Reload()
		a.HistoryChanged()
	})
	if err != nil {
		a.logger.Warn("session watch disabled", "path", services.Store.Path(), "error", err)
	}

	a.ViewStateChanged(a.listen.Status())
}

func (a *App) shutdown(_ context.Context) {
	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.listen != nil {
		a.listen.Teardown()
	}
}

// StartListening opens the microphone and starts the listening countdown.
func (a *App) StartListening() (domain.ViewStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.ViewStatus{}, err
	}
	return a.listen.StartListening(a.ctx)
}

// StopListening ends the recording early and submits it for recognition.
func (a *App) StopListening() (domain.ViewStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.ViewStatus{}, err
	}
	status, err := a.listen.StopListening(a.ctx)
	if errors.Is(err, usecase.ErrNotListening) {
		return status, nil
	}
	return status, err
}

// NewSearch clears a result or error and returns to idle.
func (a *App) NewSearch() (domain.ViewStatus, error) {
	if err := a.requireReady(); err != nil {
		return domain.ViewStatus{}, err
	}
	return a.listen.NewSearch()
}

// GetStatus returns the current view snapshot.
func (a *App) GetStatus() domain.ViewStatus {
	if a.listen == nil {
		if a.bootErr != nil {
			return domain.ViewStatus{
				State:        domain.ViewStateError,
				ErrorCode:    domain.ErrorCodeStartup,
				ErrorMessage: a.bootErr.Error(),
			}
		}
		return domain.ViewStatus{State: domain.ViewStateIdle}
	}
	return a.listen.Status()
}

// CopyLyrics copies the displayed lyrics to the clipboard.
func (a *App) CopyLyrics() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.listen.CopyLyrics(a.ctx)
}

// GetRuntimeInfo returns non-sensitive config for the UI.
func (a *App) GetRuntimeInfo() map[string]string {
	if a.bootErr != nil {
		return map[string]string{"error": a.bootErr.Error()}
	}

	return map[string]string{
		"api":              a.cfg.API.BaseURL,
		"flow":             a.cfg.Listen.Flow,
		"maxListenSeconds": strconv.Itoa(a.cfg.Listen.MaxSeconds),
		"sampleRate":       strconv.Itoa(a.cfg.Audio.SampleRate),
		"audioInput":       a.cfg.Audio.InputDevice,
		"audioInputFormat": a.cfg.Audio.InputFormat,
	}
}

// Login signs in and persists the session.
func (a *App) Login(email string, password string) (domain.User, error) {
	if err := a.requireReady(); err != nil {
		return domain.User{}, err
	}
	user, err := a.session.Login(a.ctx, email, password)
	if err != nil {
		return domain.User{}, err
	}
	a.HistoryChanged()
	return user, nil
}

// Register creates an account; the user signs in afterwards.
func (a *App) Register(name string, email string, password string, confirm string) error {
	if err := a.requireReady(); err != nil {
		return err
	}
	return a.session.Register(a.ctx, name, email, password, confirm)
}

func (a *App) Logout() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	err := a.session.Logout()
	a.HistoryChanged()
	return err
}

// GetUser returns the signed-in user, or nil when anonymous.
func (a *App) GetUser() *domain.User {
	if a.session == nil {
		return nil
	}
	return a.session.User()
}

func (a *App) GetHistory() ([]domain.HistoryEntry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.history.Refresh(a.ctx)
}

func (a *App) DeleteHistoryItem(id string) ([]domain.HistoryEntry, error) {
	if err := a.requireReady(); err != nil {
		return nil, err
	}
	return a.history.Delete(a.ctx, domain.ID(id))
}

// SaveToHistory stores the displayed result in the user's history.
func (a *App) SaveToHistory() error {
	if err := a.requireReady(); err != nil {
		return err
	}
	status := a.listen.Status()
	if status.Result == nil {
		return fmt.Errorf("no result to save")
	}
	return a.history.Save(a.ctx, *status.Result)
}

func (a *App) requireReady() error {
	if a.bootErr != nil {
		return a.bootErr
	}
	if a.listen == nil {
		return fmt.Errorf("application is not initialized")
	}
	return nil
}

// ViewStateChanged emits view transitions to the frontend.
func (a *App) ViewStateChanged(status domain.ViewStatus) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventView, map[string]any{
		"status":  status,
		"message": viewStateMessage(status.State),
	})
}

// ListeningTick emits the elapsed listening time for the progress bar.
func (a *App) ListeningTick(elapsed int, max int) {
	if a.ctx == nil {
		return
	}
	remaining := max - elapsed
	if remaining < 0 {
		remaining = 0
	}
	runtime.EventsEmit(a.ctx, eventTick, map[string]int{
		"elapsed":   elapsed,
		"max":       max,
		"remaining": remaining,
	})
}

// HistoryChanged tells the frontend to refetch history.
func (a *App) HistoryChanged() {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventHistory)
}

// SessionError emits backend errors to the UI.
func (a *App) SessionError(code domain.ErrorCode, detail string) {
	if a.ctx == nil {
		return
	}
	runtime.EventsEmit(a.ctx, eventError, map[string]string{
		"code":    string(code),
		"message": errorMessage(code, detail),
		"detail":  detail,
	})
}

func viewStateMessage(state domain.ViewState) string {
	switch state {
	case domain.ViewStateIdle:
		return "Démarrer l'écoute"
	case domain.ViewStateRecording:
		return "Enregistrement en cours..."
	case domain.ViewStateSearching:
		return "Analyse de votre enregistrement"
	case domain.ViewStateResult:
		return "Résultat"
	case domain.ViewStateError:
		return "Erreur"
	default:
		return ""
	}
}

func errorMessage(code domain.ErrorCode, detail string) string {
	switch code {
	case domain.ErrorCodeStartup:
		return "Startup failed"
	case domain.ErrorCodeAudioStop:
		return "Audio stop issue"
	case domain.ErrorCodeAudioStream:
		return "Audio streaming issue"
	case domain.ErrorCodeClipboard:
		return domain.DefaultMessage(code)
	default:
		if detail == "" {
			return domain.DefaultMessage(code)
		}
		return detail
	}
}

type wailsClipboard struct{}

func (c *wailsClipboard) SetText(ctx context.Context, text string) error {
	return runtime.ClipboardSetText(ctx, text)
}
