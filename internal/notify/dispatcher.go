package notify

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/xenking/couponables/internal/domain/coupon"
)

const (
	DefaultQueueSize = 1024
	DefaultWorkers   = 4
)

type workRequest struct {
	ctx   context.Context
	event coupon.Event
}

// Dispatcher hands events to a sink from a pool of workers, so a slow sink
// never blocks the caller. Events that arrive while the queue is full are
// dropped and counted.
type Dispatcher struct {
	next     coupon.Notifier
	jobQueue chan workRequest
	workers  int
	lg       *zap.Logger

	mu      sync.RWMutex
	closed  bool
	wg      sync.WaitGroup
	dropped atomic.Int64
}

var _ coupon.Notifier = (*Dispatcher)(nil)

// NewDispatcher returns a Dispatcher in front of next. Non-positive sizes
// take the defaults.
func NewDispatcher(next coupon.Notifier, workers, queueSize int, lg *zap.Logger) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if queueSize <= 0 {
		queueSize = DefaultQueueSize
	}
	if lg == nil {
		lg = zap.NewNop()
	}
	return &Dispatcher{
		next:     next,
		jobQueue: make(chan workRequest, queueSize),
		workers:  workers,
		lg:       lg,
	}
}

// Run starts the workers. Call Close to stop them.
func (d *Dispatcher) Run() {
	for i := range d.workers {
		d.wg.Add(1)
		go d.work(i + 1)
	}
}

func (d *Dispatcher) work(id int) {
	defer d.wg.Done()
	for job := range d.jobQueue {
		d.deliver(id, job)
	}
}

func (d *Dispatcher) deliver(id int, job workRequest) {
	defer func() {
		if rec := recover(); rec != nil {
			d.lg.Error("Notifier panicked",
				zap.Int("worker_id", id),
				zap.String("event", string(job.event.Name)),
				zap.Any("panic", rec),
			)
		}
	}()
	d.next.Notify(job.ctx, job.event)
}

// Notify queues e without blocking. The request context is detached from
// cancellation so delivery outlives the request.
func (d *Dispatcher) Notify(ctx context.Context, e coupon.Event) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(e, "dispatcher closed")
		return
	}

	select {
	case d.jobQueue <- workRequest{ctx: context.WithoutCancel(ctx), event: e}:
	default:
		d.drop(e, "queue full")
	}
}

func (d *Dispatcher) drop(e coupon.Event, reason string) {
	d.dropped.Add(1)
	d.lg.Warn("Dropped coupon event",
		zap.String("event", string(e.Name)),
		zap.String("code", e.Coupon.Code),
		zap.String("reason", reason),
	)
}

// Dropped returns how many events were discarded.
func (d *Dispatcher) Dropped() int64 {
	return d.dropped.Load()
}

// Close stops accepting events, delivers what is queued, and waits for
// the workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobQueue)
	d.mu.Unlock()

	d.wg.Wait()
}
