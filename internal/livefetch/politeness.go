package livefetch

import (
	"context"
	"sync"
	"time"
)

// Politeness spaces requests to the same host by at least interval.
// Each caller reserves the next free slot for its host and waits for it.
type Politeness struct {
	mu       sync.Mutex
	nextSlot map[string]time.Time
	interval time.Duration
	now      func() time.Time
}

func NewPoliteness(interval time.Duration) *Politeness {
	return &Politeness{
		nextSlot: make(map[string]time.Time),
		interval: interval,
		now:      time.Now,
	}
}

// Reserve books the next slot for host and returns how long to wait for it.
func (p *Politeness) Reserve(host string) time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	availableAt := now
	if slot, ok := p.nextSlot[host]; ok && slot.After(now) {
		availableAt = slot
	}
	p.nextSlot[host] = availableAt.Add(p.interval)

	return availableAt.Sub(now)
}

// Wait reserves a slot for host and sleeps until it opens.
func (p *Politeness) Wait(ctx context.Context, host string) error {
	wait := p.Reserve(host)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
