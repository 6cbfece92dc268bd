package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"

	"melo/internal/domain"
	"melo/internal/ports"
)

const (
	minPasswordLength = 6

	passwordMismatch = "Les mots de passe ne correspondent pas"
	passwordTooShort = "Le mot de passe doit contenir au moins 6 caractères"
	missingFields    = "Tous les champs sont obligatoires"
)

// Session holds the authenticated identity for the running app.
type Session struct {
	client ports.AuthClient
	store  ports.IdentityStore
	logger *slog.Logger

	mu       sync.RWMutex
	identity domain.Identity
	ok       bool
}

func NewSession(client ports.AuthClient, store ports.IdentityStore, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{client: client, store: store, logger: logger}
}

// Identity implements ports.SessionContext.
func (s *Session) Identity() (domain.Identity, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.identity, s.ok
}

// User returns the signed-in profile, or nil.
func (s *Session) User() *domain.User {
	identity, ok := s.Identity()
	if !ok {
		return nil
	}
	user := identity.User
	return &user
}

// Load restores the stored identity. A corrupt store is cleared and the
// session starts signed out.
func (s *Session) Load() error {
	identity, ok, err := s.store.Load()
	if errors.Is(err, ErrCorruptSession) {
		s.logger.Warn("discarded corrupt stored session", "error", err)
		s.set(domain.Identity{}, false)
		return nil
	}
	if err != nil {
		return err
	}
	s.set(identity, ok)
	if ok {
		s.logger.Info("session restored", "user_id", identity.User.ID)
	}
	return nil
}

// Reload re-reads the store after an external change.
func (s *Session) Reload() {
	if err := s.Load(); err != nil {
		s.logger.Warn("session reload failed", "error", err)
	}
}

func (s *Session) Login(ctx context.Context, email string, password string) (domain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return domain.User{}, domain.NewErrorMessage(domain.ErrorCodeAuth, missingFields, nil)
	}

	identity, err := s.client.Login(ctx, email, password)
	if err != nil {
		s.logger.Warn("login failed", "error", err)
		return domain.User{}, err
	}
	if err := s.store.Save(identity); err != nil {
		s.logger.Warn("persist session failed", "error", err)
	}
	s.set(identity, true)
	s.logger.Info("login succeeded", "user_id", identity.User.ID)
	return identity.User, nil
}

// Register validates the form locally before creating the account. It does
// not sign the user in.
func (s *Session) Register(ctx context.Context, name string, email string, password string, confirm string) error {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)
	if name == "" || email == "" || password == "" {
		return domain.NewErrorMessage(domain.ErrorCodeAuth, missingFields, nil)
	}
	if password != confirm {
		return domain.NewErrorMessage(domain.ErrorCodeAuth, passwordMismatch, nil)
	}
	if len([]rune(password)) < minPasswordLength {
		return domain.NewErrorMessage(domain.ErrorCodeAuth, passwordTooShort, nil)
	}

	if err := s.client.Register(ctx, name, email, password); err != nil {
		s.logger.Warn("register failed", "error", err)
		return err
	}
	s.logger.Info("account registered", "email", email)
	return nil
}

func (s *Session) Logout() error {
	s.set(domain.Identity{}, false)
	if err := s.store.Clear(); err != nil {
		s.logger.Warn("clear stored session failed", "error", err)
		return err
	}
	return nil
}

func (s *Session) set(identity domain.Identity, ok bool) {
	s.mu.Lock()
	s.identity = identity
	s.ok = ok && identity.Valid()
	s.mu.Unlock()
}
