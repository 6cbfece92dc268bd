package bootstrap

import (
	"log/slog"
	"os"

	"melo/internal/audio"
	"melo/internal/auth"
	"melo/internal/config"
	"melo/internal/ports"
	"melo/internal/providers/meloapi"
	"melo/internal/usecase"
)

// Services is the assembled runtime graph.
type Services struct {
	Listen  *usecase.ListenController
	History *usecase.HistoryService
	Session *auth.Session
	Store   *auth.FileStore
	Config  config.Config
	Logger  *slog.Logger
}

// Build wires all backend dependencies for the current runtime.
func Build(eventSink ports.EventSink, clipboard ports.Clipboard) (Services, error) {
	cfg, err := config.Load()
	if err != nil {
		return Services{}, err
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: cfg.Log.Level}))

	api := meloapi.NewClient(meloapi.Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout,
	})

	store := auth.NewFileStore(cfg.Session.Path)
	session := auth.NewSession(api, store, logger.With("component", "session"))
	if err := session.Load(); err != nil {
		logger.Warn("stored session unavailable", "path", store.Path(), "error", err)
	}

	capture := usecase.NewCaptureController(
		audio.NewFFMPEGCapture(cfg.Audio.RecorderCommand),
		audio.NewWAVEncoder(),
		eventSink,
		logger.With("component", "capture"),
		usecase.CaptureConfig{
			Audio: ports.AudioConfig{
				SampleRate:  cfg.Audio.SampleRate,
				Channels:    cfg.Audio.Channels,
				InputFormat: cfg.Audio.InputFormat,
				InputDevice: cfg.Audio.InputDevice,
			},
			ChunkInterval: cfg.Audio.ChunkInterval,
		},
	)

	listen := usecase.NewListenController(
		capture,
		usecase.NewSessionTimer(cfg.Listen.MaxSeconds),
		api,
		session,
		clipboard,
		eventSink,
		logger.With("component", "listen"),
	)

	history := usecase.NewHistoryService(api, session, eventSink, logger.With("component", "history"))

	logger.Info("services ready",
		"api", api.BaseURL(),
		"flow", cfg.Listen.Flow,
		"max_listen_seconds", cfg.Listen.MaxSeconds,
		"sample_rate", cfg.Audio.SampleRate)

	return Services{
		Listen:  listen,
		History: history,
		Session: session,
		Store:   store,
		Config:  cfg,
		Logger:  logger,
	}, nil
}
