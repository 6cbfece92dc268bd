package usecase

import (
	"sync"
	"time"
)

const (
	PrimaryMaxListenSeconds = 20
	LegacyMaxListenSeconds  = 15
)

type ticker interface {
	Chan() <-chan time.Time
	Stop()
}

type realTicker struct {
	t *time.Ticker
}

func (r realTicker) Chan() <-chan time.Time { return r.t.C }
func (r realTicker) Stop()                  { r.t.Stop() }

func newRealTicker(d time.Duration) ticker {
	return realTicker{t: time.NewTicker(d)}
}

// SessionTimer counts listening seconds and fires onExpire once at the cap.
type SessionTimer struct {
	max       int
	period    time.Duration
	newTicker func(time.Duration) ticker

	mu         sync.Mutex
	generation uint64
	elapsed    int
	running    bool
	halt       chan struct{}
}

func NewSessionTimer(maxSeconds int) *SessionTimer {
	if maxSeconds <= 0 {
		maxSeconds = PrimaryMaxListenSeconds
	}
	return &SessionTimer{max: maxSeconds, period: time.Second, newTicker: newRealTicker}
}

// Max is the listening cap in seconds.
func (t *SessionTimer) Max() int {
	return t.max
}

// Elapsed is the number of whole seconds counted in the current cycle.
func (t *SessionTimer) Elapsed() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.elapsed
}

// Start resets the count and begins ticking. A running cycle is replaced.
func (t *SessionTimer) Start(onTick func(elapsed int, max int), onExpire func()) {
	t.mu.Lock()
	t.stopLocked()
	t.generation++
	gen := t.generation
	t.running = true
	halt := make(chan struct{})
	t.halt = halt
	tk := t.newTicker(t.period)
	t.mu.Unlock()

	go t.run(gen, tk, halt, onTick, onExpire)
}

// Stop halts ticking and resets the count to zero.
func (t *SessionTimer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.stopLocked()
}

func (t *SessionTimer) stopLocked() {
	if t.running {
		close(t.halt)
		t.running = false
	}
	t.generation++
	t.elapsed = 0
}

func (t *SessionTimer) run(gen uint64, tk ticker, halt <-chan struct{}, onTick func(int, int), onExpire func()) {
	defer tk.Stop()

	for {
		select {
		case <-halt:
			return
		case <-tk.Chan():
		}

		t.mu.Lock()
		if t.generation != gen {
			t.mu.Unlock()
			return
		}
		t.elapsed++
		elapsed := t.elapsed
		expired := elapsed >= t.max
		if expired {
			close(t.halt)
			t.running = false
			t.generation++
		}
		t.mu.Unlock()

		if onTick != nil {
			onTick(elapsed, t.max)
		}
		if expired {
			if onExpire != nil {
				onExpire()
			}
			return
		}
	}
}
