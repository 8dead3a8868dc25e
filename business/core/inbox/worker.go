package inbox

import (
	"context"
	"sync"
	"time"

	"github.com/ardanlabs/vaults/foundation/vault/state"
)

// Worker drains the inbox on an interval in its own goroutine.
type Worker struct {
	processor *Processor
	wg        sync.WaitGroup
	ticker    *time.Ticker
	shut      chan struct{}
	cancel    context.CancelFunc
	fatal     chan error
	evHandler state.EventHandler
}

// Run creates a worker and starts polling the inbox.
func Run(p *Processor, interval time.Duration) *Worker {
	ctx, cancel := context.WithCancel(context.Background())

	w := Worker{
		processor: p,
		ticker:    time.NewTicker(interval),
		shut:      make(chan struct{}),
		cancel:    cancel,
		fatal:     make(chan error, 1),
		evHandler: p.evHandler,
	}

	w.wg.Add(1)

	// We don't want to return until we know the G is up and running.
	hasStarted := make(chan bool)

	go func() {
		defer w.wg.Done()
		hasStarted <- true
		w.pollOperations(ctx)
	}()

	<-hasStarted

	return &w
}

// Fatal returns a channel that receives the error that stopped the worker.
func (w *Worker) Fatal() <-chan error {
	return w.fatal
}

// Shutdown terminates the goroutine performing work.
func (w *Worker) Shutdown() {
	w.evHandler("worker: shutdown: started")
	defer w.evHandler("worker: shutdown: completed")

	w.evHandler("worker: shutdown: stop ticker")
	w.ticker.Stop()

	w.evHandler("worker: shutdown: terminate goroutines")
	close(w.shut)
	w.cancel()
	w.wg.Wait()
}

// =============================================================================

// pollOperations handles draining the inbox on every tick.
func (w *Worker) pollOperations(ctx context.Context) {
	w.evHandler("worker: pollOperations: G started")
	defer w.evHandler("worker: pollOperations: G completed")

	for {
		select {
		case <-w.ticker.C:
			if !w.isShutdown() {
				if err := w.runOnce(ctx); err != nil {
					w.fatal <- err
					return
				}
			}
		case <-w.shut:
			w.evHandler("worker: pollOperations: received shut signal")
			return
		}
	}
}

// runOnce drains the inbox. Only a fatal error is returned, everything
// else is logged and retried on the next tick.
func (w *Worker) runOnce(ctx context.Context) error {
	results, err := w.processor.Run(ctx)
	if err != nil {
		if IsFatal(err) {
			w.evHandler("worker: runOnce: FATAL: %s", err)
			return err
		}
		w.evHandler("worker: runOnce: ERROR: %s", err)
	}

	if len(results) > 0 {
		w.evHandler("worker: runOnce: processed %d events", len(results))
	}

	return nil
}

// isShutdown is used to test if a shutdown has been signaled.
func (w *Worker) isShutdown() bool {
	select {
	case <-w.shut:
		return true
	default:
		return false
	}
}
