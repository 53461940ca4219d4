package transport

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"mediaclient/internal/core"
)

// breaker guards one kind of exchange. It opens after FailureThreshold consecutive server
// failures and rejects until Timeout has passed since the last one. Exchanges admitted
// after that are trial runs: SuccessThreshold successes in a row close it again, and a
// single failure reopens it.
type breaker struct {
	kind string
	cfg  CircuitBreakerConfig

	mu         sync.Mutex
	failures   int
	trials     int
	open       bool
	trial      bool
	lastFailed time.Time
}

// breakerSet holds an independent breaker per exchange kind, so failing chunk transfers
// never stop API calls and the reverse.
type breakerSet map[string]*breaker

func newBreakerSet(cfg *CircuitBreakerConfig, kinds ...string) breakerSet {
	if cfg == nil {
		return nil
	}
	set := make(breakerSet, len(kinds))
	for _, kind := range kinds {
		set[kind] = &breaker{kind: kind, cfg: *cfg}
	}
	return set
}

// admit returns an error when exchanges of kind are currently blocked.
func (s breakerSet) admit(kind string) error {
	b, ok := s[kind]
	if !ok || b.allow() {
		return nil
	}
	return core.NewTransferError(http.StatusServiceUnavailable,
		fmt.Sprintf("%s circuit breaker is open: service temporarily unavailable", kind), nil)
}

func (s breakerSet) failure(kind string) {
	if b, ok := s[kind]; ok {
		b.failure()
	}
}

func (s breakerSet) success(kind string) {
	if b, ok := s[kind]; ok {
		b.success()
	}
}

// state reports the breaker of kind as closed, open or half-open.
func (s breakerSet) state(kind string) string {
	b, ok := s[kind]
	if !ok {
		return "closed"
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	switch {
	case b.trial:
		return "half-open"
	case b.open:
		return "open"
	}
	return "closed"
}

func (b *breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.open || b.trial {
		return true
	}
	if time.Since(b.lastFailed) <= b.cfg.Timeout {
		return false
	}
	b.trial, b.trials = true, 0
	return true
}

func (b *breaker) success() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.trial {
		b.failures = 0
		return
	}
	b.trials++
	if b.trials >= b.cfg.SuccessThreshold {
		b.open, b.trial = false, false
		b.failures, b.trials = 0, 0
	}
}

func (b *breaker) failure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastFailed = time.Now()
	if b.trial {
		b.trial, b.trials = false, 0
		b.open = true
		return
	}
	b.failures++
	if b.failures >= b.cfg.FailureThreshold {
		b.open = true
	}
}
