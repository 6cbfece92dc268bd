package usecase

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"melo/internal/domain"
	"melo/internal/ports"
)

type fakeAudioCapture struct {
	mu       sync.Mutex
	sessions []ports.AudioSession
	err      error
	calls    int
	// gate, when set, holds Start open until closed.
	gate chan struct{}
}

func (f *fakeAudioCapture) Start(_ context.Context, _ ports.AudioConfig) (ports.AudioSession, error) {
	f.mu.Lock()
	f.calls++
	gate := f.gate
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.sessions) == 0 {
		return nil, errors.New("no audio session configured")
	}
	session := f.sessions[0]
	f.sessions = f.sessions[1:]
	return session, nil
}

func (f *fakeAudioCapture) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeAudioSession yields its chunks, then EOF; with block set it waits for Stop first.
type fakeAudioSession struct {
	mu        sync.Mutex
	chunks    [][]byte
	index     int
	block     bool
	stopped   chan struct{}
	stopCalls int
	stopErr   error
}

func newFakeAudioSession(block bool, chunks ...[]byte) *fakeAudioSession {
	return &fakeAudioSession{chunks: chunks, block: block, stopped: make(chan struct{})}
}

func (f *fakeAudioSession) Read(p []byte) (int, error) {
	f.mu.Lock()
	if f.index < len(f.chunks) {
		n := copy(p, f.chunks[f.index])
		f.index++
		f.mu.Unlock()
		return n, nil
	}
	block := f.block
	f.mu.Unlock()

	if block {
		<-f.stopped
	}
	return 0, io.EOF
}

func (f *fakeAudioSession) Close() error { return f.Stop() }

func (f *fakeAudioSession) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stopCalls == 0 {
		close(f.stopped)
	}
	f.stopCalls++
	return f.stopErr
}

func (f *fakeAudioSession) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopCalls
}

type fakeEncoder struct {
	mu    sync.Mutex
	calls int
	pcm   []byte
	err   error
}

func (f *fakeEncoder) Encode(cfg ports.AudioConfig, pcm []byte) (domain.AudioPayload, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.pcm = append([]byte(nil), pcm...)
	if f.err != nil {
		return domain.AudioPayload{}, f.err
	}
	rate := cfg.BytesPerSecond()
	return domain.AudioPayload{
		Data:        append([]byte("RIFF"), pcm...),
		ContentType: "audio/wav",
		Filename:    "recording.wav",
		Duration:    time.Duration(int64(len(pcm)) * int64(time.Second) / int64(rate)),
	}, nil
}

func (f *fakeEncoder) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeRecognizer struct {
	mu       sync.Mutex
	result   domain.RecognitionResult
	err      error
	requests []domain.RecognitionRequest
}

func (f *fakeRecognizer) Submit(_ context.Context, req domain.RecognitionRequest) (domain.RecognitionResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.err != nil {
		return domain.RecognitionResult{}, f.err
	}
	return f.result, nil
}

func (f *fakeRecognizer) snapshot() []domain.RecognitionRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.RecognitionRequest, len(f.requests))
	copy(out, f.requests)
	return out
}

type fakeSession struct {
	identity *domain.Identity
}

func (f fakeSession) Identity() (domain.Identity, bool) {
	if f.identity == nil {
		return domain.Identity{}, false
	}
	return *f.identity, true
}

type fakeClipboard struct {
	lastText string
	err      error
}

func (f *fakeClipboard) SetText(_ context.Context, text string) error {
	f.lastText = text
	return f.err
}

type fakeHistoryClient struct {
	mu      sync.Mutex
	entries []domain.HistoryEntry
	listErr error
	delErr  error
	saveErr error
	listFor []domain.ID
	deleted []domain.ID
	saved   []domain.RecognitionResult
}

func (f *fakeHistoryClient) ListHistory(_ context.Context, userID domain.ID) ([]domain.HistoryEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listFor = append(f.listFor, userID)
	if f.listErr != nil {
		return nil, f.listErr
	}
	return append([]domain.HistoryEntry(nil), f.entries...), nil
}

func (f *fakeHistoryClient) DeleteHistory(_ context.Context, id domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.delErr != nil {
		return f.delErr
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeHistoryClient) SaveHistory(_ context.Context, result domain.RecognitionResult, _ domain.ID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saveErr != nil {
		return f.saveErr
	}
	f.saved = append(f.saved, result)
	return nil
}

type fakeEventSink struct {
	mu sync.Mutex

	states         []domain.ViewStatus
	ticks          []int
	historyChanges int
	errors         []errEvent
}

type errEvent struct {
	code   domain.ErrorCode
	detail string
}

func (f *fakeEventSink) ViewStateChanged(status domain.ViewStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = append(f.states, status)
}

func (f *fakeEventSink) ListeningTick(elapsed int, _ int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticks = append(f.ticks, elapsed)
}

func (f *fakeEventSink) HistoryChanged() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyChanges++
}

func (f *fakeEventSink) SessionError(code domain.ErrorCode, detail string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.errors = append(f.errors, errEvent{code: code, detail: detail})
}

func (f *fakeEventSink) snapshotStates() []domain.ViewStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.ViewStatus, len(f.states))
	copy(out, f.states)
	return out
}

func (f *fakeEventSink) snapshotTicks() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.ticks...)
}

func (f *fakeEventSink) snapshotErrors() []errEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]errEvent, len(f.errors))
	copy(out, f.errors)
	return out
}

func (f *fakeEventSink) historyChangeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.historyChanges
}

type fakeTicker struct {
	ch      chan time.Time
	mu      sync.Mutex
	stopped bool
}

func newFakeTicker() *fakeTicker {
	return &fakeTicker{ch: make(chan time.Time, 64)}
}

func (f *fakeTicker) Chan() <-chan time.Time { return f.ch }

func (f *fakeTicker) Stop() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = true
}

func (f *fakeTicker) isStopped() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopped
}

func (f *fakeTicker) tick(n int) {
	for i := 0; i < n; i++ {
		f.ch <- time.Now()
	}
}

func withFakeTicker(timer *SessionTimer, tk *fakeTicker) {
	timer.newTicker = func(time.Duration) ticker { return tk }
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func filled(size int, value byte) []byte {
	chunk := make([]byte, size)
	for i := range chunk {
		chunk[i] = value
	}
	return chunk
}
