// Package pool bounds the number of concurrent upload transfers.
//
// A Pool hands out admission tokens. Tokens released while callers are queued go straight
// to the oldest waiter, so a queued caller can never be overtaken by a later TryAcquire.
package pool

import (
	"container/list"
	"context"
	"errors"
	"sync"
)

// DefaultCapacity is the number of concurrent upload connections when none is configured.
const DefaultCapacity = 6

// ErrOverRelease is returned when more tokens are released than were acquired.
var ErrOverRelease = errors.New("pool: release without matching acquire")

// Observer is notified whenever the number of available tokens changes.
type Observer interface {
	PoolAvailable(available, capacity int)
}

// Option configures a Pool.
type Option func(*Pool)

// WithObserver reports token availability to o.
func WithObserver(o Observer) Option {
	return func(p *Pool) {
		p.observer = o
	}
}

// Pool is a fixed-capacity admission counter with a FIFO waiter queue.
type Pool struct {
	mu        sync.Mutex
	capacity  int
	available int
	waiters   *list.List // of func()
	observer  Observer
}

// New creates a pool with capacity tokens. Non-positive capacities use DefaultCapacity.
func New(capacity int, opts ...Option) *Pool {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	p := &Pool{
		capacity:  capacity,
		available: capacity,
		waiters:   list.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.notify(p.available)
	return p
}

// Capacity returns the fixed number of tokens.
func (p *Pool) Capacity() int {
	return p.capacity
}

// Available returns the number of tokens not currently held.
func (p *Pool) Available() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

// Waiting returns the number of queued waiters.
func (p *Pool) Waiting() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.waiters.Len()
}

// TryAcquire takes a token without blocking. It fails while waiters are queued.
func (p *Pool) TryAcquire() bool {
	p.mu.Lock()
	if p.available == 0 || p.waiters.Len() > 0 {
		p.mu.Unlock()
		return false
	}
	p.available--
	available := p.available
	p.mu.Unlock()

	p.notify(available)
	return true
}

// Release returns a token. If waiters are queued, the token is handed to the oldest one
// and its callback runs on the calling goroutine.
func (p *Pool) Release() error {
	p.mu.Lock()
	if front := p.waiters.Front(); front != nil {
		cb := p.waiters.Remove(front).(func())
		p.mu.Unlock()
		cb()
		return nil
	}
	if p.available >= p.capacity {
		p.mu.Unlock()
		return ErrOverRelease
	}
	p.available++
	available := p.available
	p.mu.Unlock()

	p.notify(available)
	return nil
}

// RegisterWaiter queues cb to run exactly once, holding a token acquired on its behalf.
// If a token is free right away cb runs immediately on the calling goroutine.
// The returned cancel function dequeues cb; it reports false if cb already ran or is running.
// Callbacks run outside the pool lock but must not block.
func (p *Pool) RegisterWaiter(cb func()) (cancel func() bool) {
	p.mu.Lock()
	if p.available > 0 && p.waiters.Len() == 0 {
		p.available--
		available := p.available
		p.mu.Unlock()

		p.notify(available)
		cb()
		return func() bool { return false }
	}
	elem := p.waiters.PushBack(cb)
	p.mu.Unlock()

	return func() bool {
		p.mu.Lock()
		defer p.mu.Unlock()
		for e := p.waiters.Front(); e != nil; e = e.Next() {
			if e == elem {
				p.waiters.Remove(e)
				return true
			}
		}
		return false
	}
}

// Acquire blocks until a token is granted or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	granted := make(chan struct{})
	cancel := p.RegisterWaiter(func() { close(granted) })

	select {
	case <-granted:
		return nil
	case <-ctx.Done():
		if cancel() {
			return ctx.Err()
		}
		// the token was handed over concurrently; give it back
		<-granted
		_ = p.Release()
		return ctx.Err()
	}
}

func (p *Pool) notify(available int) {
	if p.observer != nil {
		p.observer.PoolAvailable(available, p.capacity)
	}
}
