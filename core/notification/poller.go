// Package notification keeps a session's unread notification count fresh.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/masomo-portal/core"
)

const DefaultInterval = 30 * time.Second

type Source interface {
	UnreadCount(ctx context.Context) (int, error)
}

type SourceFunc func(ctx context.Context) (int, error)

func (f SourceFunc) UnreadCount(ctx context.Context) (int, error) { return f(ctx) }

// Poller refreshes the unread count on a fixed interval from Start until Stop.
type Poller struct {
	src      Source
	interval time.Duration
	log      core.Logger

	mu        sync.RWMutex
	unread    int
	updatedAt time.Time
	lastErr   error
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewPoller(src Source, interval time.Duration, log core.Logger) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if log == nil {
		log = core.NopLogger{}
	}
	return &Poller{src: src, interval: interval, log: log}
}

// Start polls once right away, then every interval until Stop or ctx is done.
// Starting a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.done = make(chan struct{})
	go p.run(ctx, p.done)
}

// Stop ends polling and waits for an in-flight poll to return.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

func (p *Poller) Running() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.cancel != nil
}

func (p *Poller) run(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		_, _ = p.Refresh(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Refresh polls now. On failure the last known count is kept.
func (p *Poller) Refresh(ctx context.Context) (int, error) {
	n, err := p.src.UnreadCount(ctx)

	p.mu.Lock()
	defer p.mu.Unlock()
	p.lastErr = err
	if err != nil {
		if ctx.Err() == nil {
			p.log.Warn("polling unread notifications", err)
		}
		return p.unread, err
	}
	p.unread, p.updatedAt = n, core.NowFunc()
	return n, nil
}

// Unread is the last polled count.
func (p *Poller) Unread() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.unread
}

func (p *Poller) UpdatedAt() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.updatedAt
}

func (p *Poller) LastError() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastErr
}
