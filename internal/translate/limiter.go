package translate

import (
	"context"
	"sync"
	"time"
)

// pacer spaces translation calls so a backend's requests-per-second cap holds
// across concurrent workflow runs. Callers reserve the next slot under the
// lock and then sleep outside it, so waiting never serializes other callers.
// A nil pacer never blocks.
type pacer struct {
	mu       sync.Mutex
	interval time.Duration
	next     time.Time
}

func newPacer(rps float64) *pacer {
	if rps <= 0 {
		return nil
	}
	interval := time.Duration(float64(time.Second) / rps)
	if interval <= 0 {
		return nil
	}
	return &pacer{interval: interval}
}

// Wait blocks until the caller's reserved slot arrives or ctx is done.
func (p *pacer) Wait(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	now := time.Now()
	if p.next.Before(now) {
		p.next = now
	}
	wait := p.next.Sub(now)
	p.next = p.next.Add(p.interval)
	p.mu.Unlock()

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
