// Package outbox runs the background relay that retries undelivered
// notifications: verification notices and contact form messages.
//
// A pass runs once at start and then on every tick until Stop.
package outbox

import (
	"context"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Retrier re-sends pending notifications and reports how many went out.
type Retrier interface {
	RetryPending(ctx context.Context) (int, error)
}

// Retriers runs each Retrier in turn. A failing one does not stop the
// rest; the pass reports the first error.
type Retriers []Retrier

// RetryPending implements Retrier.
func (rs Retriers) RetryPending(ctx context.Context) (int, error) {
	total := 0
	var first error
	for _, r := range rs {
		n, err := r.RetryPending(ctx)
		total += n
		if err != nil && first == nil {
			first = err
		}
	}
	return total, first
}

// Relay periodically calls a Retrier.
type Relay struct {
	retrier  Retrier
	interval time.Duration

	passes atomic.Uint64
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// Start creates a Relay and starts its worker. A non-positive interval
// returns a Relay that does nothing.
func Start(r Retrier, interval time.Duration) *Relay {
	ctx, cancel := context.WithCancel(context.Background())
	rl := &Relay{
		retrier:  r,
		interval: interval,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	if interval <= 0 {
		close(rl.done)
		return rl
	}
	go rl.run(ctx)
	return rl
}

// Passes returns the number of completed retry passes.
func (rl *Relay) Passes() uint64 {
	return rl.passes.Load()
}

// Stop shuts the worker down and waits for an in-flight pass to finish.
func (rl *Relay) Stop() {
	rl.once.Do(rl.cancel)
	<-rl.done
}

func (rl *Relay) run(ctx context.Context) {
	defer close(rl.done)

	rl.pass(ctx)

	ticker := time.NewTicker(rl.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.pass(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (rl *Relay) pass(ctx context.Context) {
	n, err := rl.retrier.RetryPending(ctx)
	rl.passes.Add(1)
	if err != nil && ctx.Err() == nil {
		log.Printf("outbox: retry pass: %v", err)
		return
	}
	if n > 0 {
		log.Printf("outbox: re-sent %d pending notification(s)", n)
	}
}
