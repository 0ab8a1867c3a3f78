// Package ratelimit implements the token-bucket primitive shared by
// connection, request, and byte-rate limiting (spec §4.1), and the
// RateLimitService that wraps it for those three uses.
package ratelimit

import (
	"container/list"
	"context"
	"sync"
	"time"
)

// Grant is the result of a TokenBucket.RequestGrant call.
type Grant struct {
	Granted   bool
	GrantSize float64
	WaitTime  time.Duration
}

// TokenBucket is a continuous-fill token bucket with a bounded FIFO
// waiter queue (spec §4.1). The zero value is not usable; use New.
type TokenBucket struct {
	flowRate          float64 // tokens per second
	maxBurstSize      float64
	maxQueueSize      float64
	maxQueueGrantSize float64 // 0 means "unset": use the requested size

	mu            sync.Mutex
	available     float64
	lastTopUp     time.Time
	waiters       *list.List // of *waiter
	queuedTokens  float64
	denyAll       bool
	wake          chan struct{}
	stopped       chan struct{}
	stopOnce      sync.Once
	stopDispatch  context.CancelFunc
	dispatchDoneC chan struct{}
}

type waiter struct {
	want     float64
	resultC  chan Grant
	enqueued time.Time
	elem     *list.Element
}

// Config holds the parameters of a TokenBucket (spec §3, "TokenBucket
// state").
type Config struct {
	FlowRate          float64 // tokens per second, > 0
	MaxBurstSize      float64 // tokens, > 0
	MaxQueueSize      float64 // tokens, >= 0
	MaxQueueGrantSize float64 // tokens, <= MaxBurstSize; 0 means unset
}

// New returns a new TokenBucket starting with a full burst of available
// tokens, and starts its background dispatcher goroutine, which wakes
// queued waiters as tokens accrue even absent new RequestGrant calls.
func New(cfg Config) *TokenBucket {
	ctx, cancel := context.WithCancel(context.Background())

	b := &TokenBucket{
		flowRate:          cfg.FlowRate,
		maxBurstSize:      cfg.MaxBurstSize,
		maxQueueSize:      cfg.MaxQueueSize,
		maxQueueGrantSize: cfg.MaxQueueGrantSize,
		available:         cfg.MaxBurstSize,
		lastTopUp:         time.Now(),
		waiters:           list.New(),
		wake:              make(chan struct{}, 1),
		stopped:           make(chan struct{}),
		stopDispatch:      cancel,
		dispatchDoneC:     make(chan struct{}),
	}

	go b.dispatchLoop(ctx)

	return b
}

// Close stops the bucket's background dispatcher and denies every queued
// waiter. It is idempotent.
func (b *TokenBucket) Close() {
	b.DenyAllRequests()
	b.stopOnce.Do(func() {
		b.stopDispatch()
		close(b.stopped)
	})
	<-b.dispatchDoneC
}

func (b *TokenBucket) effectiveCap(n float64) float64 {
	if b.maxQueueGrantSize > 0 && b.maxQueueGrantSize < n {
		return b.maxQueueGrantSize
	}
	return n
}

// topUp refills available tokens based on elapsed time since the last
// top-up, capped at maxBurstSize. Caller must hold b.mu.
func (b *TokenBucket) topUp() {
	now := time.Now()
	elapsed := now.Sub(b.lastTopUp).Seconds()
	if elapsed <= 0 {
		return
	}

	b.available += elapsed * b.flowRate
	if b.available > b.maxBurstSize {
		b.available = b.maxBurstSize
	}
	b.lastTopUp = now
}

// RequestGrant requests n tokens. It returns synchronously when tokens
// are immediately available or the request must be synchronously denied,
// and suspends (observing ctx) when the request is queued. See spec
// §4.1 for the full semantics.
func (b *TokenBucket) RequestGrant(ctx context.Context, n float64) (Grant, error) {
	b.mu.Lock()

	b.topUp()

	if b.denyAll {
		b.mu.Unlock()
		return Grant{}, nil
	}

	capSize := b.effectiveCap(n)

	if b.waiters.Len() == 0 && b.available >= capSize {
		b.available -= capSize
		b.mu.Unlock()
		return Grant{Granted: true, GrantSize: capSize}, nil
	}

	if b.queuedTokens+capSize > b.maxQueueSize {
		b.mu.Unlock()
		return Grant{}, nil
	}

	w := &waiter{
		want:     capSize,
		resultC:  make(chan Grant, 1),
		enqueued: time.Now(),
	}
	w.elem = b.waiters.PushBack(w)
	b.queuedTokens += capSize

	b.mu.Unlock()
	b.nudge()

	select {
	case g := <-w.resultC:
		return g, nil
	case <-ctx.Done():
		b.cancelWaiter(w)
		return Grant{}, ctx.Err()
	case <-b.stopped:
		return Grant{}, nil
	}
}

func (b *TokenBucket) cancelWaiter(w *waiter) {
	b.mu.Lock()
	defer b.mu.Unlock()

	// The waiter may already have been resolved by the dispatcher
	// between ctx.Done() firing and us acquiring the lock; removing an
	// already-removed element is a no-op in container/list only if we
	// guard on it still being linked, which we track via elem.Value
	// remaining this waiter (list.Remove on a detached element is
	// unsafe, so only remove while it is still in the list).
	for e := b.waiters.Front(); e != nil; e = e.Next() {
		if e == w.elem {
			b.waiters.Remove(e)
			b.queuedTokens -= w.want
			return
		}
	}
}

// nudge wakes the dispatcher loop without blocking.
func (b *TokenBucket) nudge() {
	select {
	case b.wake <- struct{}{}:
	default:
	}
}

// dispatchLoop services the FIFO waiter queue strictly in order, waking
// either when nudged (a new waiter arrived, or a denyAll occurred) or
// when enough time has passed for the head waiter to have accrued its
// requested tokens.
func (b *TokenBucket) dispatchLoop(ctx context.Context) {
	defer close(b.dispatchDoneC)

	timer := time.NewTimer(time.Hour)
	defer timer.Stop()

	for {
		wait := b.serviceQueue()

		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		if wait > 0 {
			timer.Reset(wait)
		} else {
			timer.Reset(time.Hour)
		}

		select {
		case <-ctx.Done():
			return
		case <-b.wake:
		case <-timer.C:
		}
	}
}

// serviceQueue tops up and, strictly in FIFO order, grants every waiter
// it can satisfy. It returns how long to wait before the now-head waiter
// could next be satisfied, or 0 if no waiter remains or a deny occurred.
func (b *TokenBucket) serviceQueue() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.topUp()

	for {
		front := b.waiters.Front()
		if front == nil {
			return 0
		}

		w := front.Value.(*waiter)
		if b.available < w.want {
			if b.flowRate <= 0 {
				return time.Hour
			}
			deficit := w.want - b.available
			return time.Duration(deficit/b.flowRate*1000) * time.Millisecond
		}

		b.available -= w.want
		b.waiters.Remove(front)
		b.queuedTokens -= w.want

		w.resultC <- Grant{
			Granted:   true,
			GrantSize: w.want,
			WaitTime:  time.Since(w.enqueued),
		}
	}
}

// DenyAllRequests sets the deny-all flag, synchronously completes every
// currently queued waiter with a denial, and causes every future
// RequestGrant call to deny immediately until the bucket is replaced
// (spec §4.1; this core does not expose a reset operation).
func (b *TokenBucket) DenyAllRequests() {
	b.mu.Lock()
	b.denyAll = true

	for e := b.waiters.Front(); e != nil; {
		next := e.Next()
		w := e.Value.(*waiter)
		b.waiters.Remove(e)
		w.resultC <- Grant{}
		e = next
	}
	b.queuedTokens = 0

	b.mu.Unlock()
}
