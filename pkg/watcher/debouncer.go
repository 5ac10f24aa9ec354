package watcher

import (
	"context"
	"time"

	"github.com/ritzau/syncgraph/pkg/logging"
)

// Debouncer turns bursts of change notifications into single sync triggers.
// A trigger fires once no notification arrived for quietPeriod, or once maxWait
// elapsed since the first notification of the burst, whichever comes first.
type Debouncer struct {
	input       <-chan struct{}
	output      chan struct{}
	quietPeriod time.Duration
	maxWait     time.Duration
}

// NewDebouncer creates a new debouncer over a notification channel
func NewDebouncer(input <-chan struct{}, quietPeriod, maxWait time.Duration) *Debouncer {
	return &Debouncer{
		input:       input,
		output:      make(chan struct{}, 1),
		quietPeriod: quietPeriod,
		maxWait:     maxWait,
	}
}

// Start begins processing notifications
func (d *Debouncer) Start(ctx context.Context) {
	go d.run(ctx)
}

func (d *Debouncer) run(ctx context.Context) {
	defer close(d.output)

	var (
		quiet    <-chan time.Time
		deadline <-chan time.Time
		pending  int
	)

	fire := func() {
		logging.Debug("flushing accumulated notifications", "count", pending)
		pending = 0
		quiet = nil
		deadline = nil
		select {
		case d.output <- struct{}{}:
		default:
			// A trigger is already queued and covers this burst
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case _, ok := <-d.input:
			if !ok {
				if pending > 0 {
					fire()
				}
				return
			}
			pending++
			quiet = time.After(d.quietPeriod)
			if deadline == nil {
				deadline = time.After(d.maxWait)
			}

		case <-quiet:
			fire()

		case <-deadline:
			fire()
		}
	}
}

// Output returns the channel of debounced triggers
func (d *Debouncer) Output() <-chan struct{} {
	return d.output
}
