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

var ErrNotAuthenticated = errors.New("not authenticated")

// HistoryService keeps the signed-in user's search history in sync with the API.
type HistoryService struct {
	client  ports.HistoryClient
	session ports.SessionContext
	events  ports.EventSink
	logger  *slog.Logger

	mu      sync.Mutex
	entries []domain.HistoryEntry
}

func NewHistoryService(client ports.HistoryClient, session ports.SessionContext, events ports.EventSink, logger *slog.Logger) *HistoryService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &HistoryService{client: client, session: session, events: events, logger: logger}
}

// Refresh refetches history. Anonymous users have none.
func (h *HistoryService) Refresh(ctx context.Context) ([]domain.HistoryEntry, error) {
	identity, ok := h.session.Identity()
	if !ok {
		h.setEntries(nil)
		return []domain.HistoryEntry{}, nil
	}

	entries, err := h.client.ListHistory(ctx, identity.User.ID)
	if err != nil {
		h.logger.Warn("history refresh failed", "user", identity.User.ID, "error", err)
		return h.Entries(), err
	}
	h.setEntries(entries)
	return h.Entries(), nil
}

// Delete removes one entry remotely, then locally.
func (h *HistoryService) Delete(ctx context.Context, id domain.ID) ([]domain.HistoryEntry, error) {
	if _, ok := h.session.Identity(); !ok {
		return nil, ErrNotAuthenticated
	}
	if err := h.client.DeleteHistory(ctx, id); err != nil {
		h.logger.Warn("history delete failed", "id", id, "error", err)
		return h.Entries(), err
	}

	h.mu.Lock()
	kept := h.entries[:0]
	for _, entry := range h.entries {
		if entry.ID != id {
			kept = append(kept, entry)
		}
	}
	h.entries = kept
	h.mu.Unlock()

	return h.Entries(), nil
}

// Save records a result for the signed-in user and signals a refresh.
func (h *HistoryService) Save(ctx context.Context, result domain.RecognitionResult) error {
	identity, ok := h.session.Identity()
	if !ok {
		return ErrNotAuthenticated
	}
	if err := h.client.SaveHistory(ctx, result, identity.User.ID); err != nil {
		h.logger.Warn("history save failed", "user", identity.User.ID, "error", err)
		return err
	}
	h.events.HistoryChanged()
	return nil
}

// Entries returns a copy of the last fetched history.
func (h *HistoryService) Entries() []domain.HistoryEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]domain.HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

func (h *HistoryService) setEntries(entries []domain.HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append([]domain.HistoryEntry(nil), entries...)
}
