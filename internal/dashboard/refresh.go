package dashboard

import (
	"context"
	"time"
)

// DefaultMinInterval spaces refreshes far enough apart that a burst of
// requests costs one list command.
const DefaultMinInterval = 500 * time.Millisecond

// Dispatcher debounces refresh requests: any burst arriving within the
// minimum interval collapses into a single refresh, and no request is
// ever dropped outright.
type Dispatcher struct {
	refresh     func(context.Context)
	minInterval time.Duration
	requests    chan struct{}
}

func NewDispatcher(refresh func(context.Context), minInterval time.Duration) *Dispatcher {
	if minInterval <= 0 {
		minInterval = DefaultMinInterval
	}
	return &Dispatcher{
		refresh:     refresh,
		minInterval: minInterval,
		requests:    make(chan struct{}, 1),
	}
}

// Request asks for a refresh. Never blocks; requests raised while one
// is already pending coalesce.
func (d *Dispatcher) Request() {
	select {
	case d.requests <- struct{}{}:
	default:
	}
}

// Run services requests until the context ends.
func (d *Dispatcher) Run(ctx context.Context) {
	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.requests:
		}
		if wait := d.minInterval - time.Since(last); wait > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(wait):
			}
		}
		last = time.Now()
		d.refresh(ctx)
	}
}
