package card

import (
	"context"
	"fmt"
	"sync"
	"time"

	"ai-market-dashboard/internal/types"
)

// fetchFunc performs one chart fetch. manual marks fetches the user asked for
// (initial load, range change); their failures are visible. Ticker refreshes
// are not manual and fail silently.
type fetchFunc func(ctx context.Context, r types.ChartRange, manual bool)

// ChartPoller schedules chart fetches for one card: an immediate fetch on
// Open, then a periodic refresh of the current range until Close. It only
// schedules; the card owns fetching and committing the data. Range changes
// do not abort fetches already in flight, so a late response for the old
// range may land after the change.
type ChartPoller struct {
	interval time.Duration
	fetch    fetchFunc

	mu   sync.Mutex
	rng  types.ChartRange
	open bool
	stop chan struct{}
}

func newChartPoller(interval time.Duration, initial types.ChartRange, fetch fetchFunc) *ChartPoller {
	return &ChartPoller{
		interval: interval,
		rng:      initial,
		fetch:    fetch,
	}
}

// Open starts polling. Opening an already open poller is a no-op.
func (p *ChartPoller) Open(ctx context.Context) {
	p.mu.Lock()
	if p.open {
		p.mu.Unlock()
		return
	}
	p.open = true
	p.stop = make(chan struct{})
	stop := p.stop
	r := p.rng
	p.mu.Unlock()

	p.fetch(ctx, r, true)

	go func() {
		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				p.fetch(ctx, p.Range(), false)
			}
		}
	}()
}

// SetRange switches the polled range and fetches it immediately.
func (p *ChartPoller) SetRange(ctx context.Context, r types.ChartRange) error {
	if !r.Valid() {
		return fmt.Errorf("unsupported chart range %q", r)
	}

	p.mu.Lock()
	p.rng = r
	open := p.open
	p.mu.Unlock()

	if open {
		p.fetch(ctx, r, true)
	}
	return nil
}

// Range returns the range currently polled.
func (p *ChartPoller) Range() types.ChartRange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng
}

// Close stops the ticker. Safe to call repeatedly and from either the user
// action or card teardown path.
func (p *ChartPoller) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.open {
		return
	}
	p.open = false
	close(p.stop)
}
