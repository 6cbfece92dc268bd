package usecase

import (
	"sync"

	"github.com/google/uuid"

	"melo/internal/domain"
	"melo/internal/ports"
)

type captureSession struct {
	id     uuid.UUID
	cancel func()
	audio  ports.AudioSession

	stateMu sync.Mutex
	state   domain.CaptureState

	chunks    *chunkBuffer
	pumpErr   error
	audioDone chan struct{}
}

func (s *captureSession) setState(state domain.CaptureState) {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	s.state = state
}

func (s *captureSession) getState() domain.CaptureState {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	return s.state
}

// transition moves from one state to another, reporting whether it happened.
func (s *captureSession) transition(from domain.CaptureState, to domain.CaptureState) bool {
	s.stateMu.Lock()
	defer s.stateMu.Unlock()
	if s.state != from {
		return false
	}
	s.state = to
	return true
}

// chunkBuffer holds captured slices in arrival order.
type chunkBuffer struct {
	mu     sync.Mutex
	chunks [][]byte
	size   int
}

func newChunkBuffer() *chunkBuffer {
	return &chunkBuffer{}
}

func (b *chunkBuffer) Append(chunk []byte) {
	if len(chunk) == 0 {
		return
	}
	copied := append([]byte(nil), chunk...)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.chunks = append(b.chunks, copied)
	b.size += len(copied)
}

func (b *chunkBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.chunks)
}

// Drain joins all chunks into one contiguous buffer and releases them.
func (b *chunkBuffer) Drain() ([]byte, int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	count := len(b.chunks)
	joined := make([]byte, 0, b.size)
	for _, chunk := range b.chunks {
		joined = append(joined, chunk...)
	}
	b.chunks = nil
	b.size = 0
	return joined, count
}
