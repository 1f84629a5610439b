package engine

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrWorkerStopped is returned by Submit after Close.
var ErrWorkerStopped = errors.New("worker stopped")

// TaskFunc is a unit of work run on a worker goroutine.
type TaskFunc func(ctx context.Context) (any, error)

// Result is the single terminal result of a task.
type Result struct {
	Value any
	Err   error
}

type task struct {
	id     string
	name   string
	ctx    context.Context
	fn     TaskFunc
	result chan Result
}

// Worker runs blocking engine operations (device sessions, enrollment) on a fixed set of goroutines.
// Every accepted task runs exactly once and delivers exactly one result, even when the submitter
// stopped waiting.
type Worker struct {
	tasks chan *task
	done  chan struct{}
	base  context.Context
	stop  context.CancelFunc
	log   *slog.Logger
	wg    sync.WaitGroup

	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewWorker starts size goroutines with a queue of queueSize tasks.
func NewWorker(size, queueSize int, logger *slog.Logger) *Worker {
	if size <= 0 {
		size = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	base, stop := context.WithCancel(context.Background())
	w := &Worker{
		tasks: make(chan *task, queueSize),
		done:  make(chan struct{}),
		base:  base,
		stop:  stop,
		log:   logger,
	}
	for i := 0; i < size; i++ {
		w.wg.Add(1)
		go w.loop()
	}
	return w
}

func (w *Worker) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case t := <-w.tasks:
			w.run(t)
		}
	}
}

func (w *Worker) run(t *task) {
	start := time.Now()
	var res Result
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("task panicked", "task", t.name, "id", t.id, "panic", r)
				res = Result{Err: errors.New("task panicked")}
			}
		}()
		v, err := t.fn(t.ctx)
		res = Result{Value: v, Err: err}
	}()
	t.result <- res
	w.log.Debug("task finished", "task", t.name, "id", t.id, "elapsed", time.Since(start), "error", res.Err)
}

// Submit queues fn. The task context carries ctx's values but not its cancellation,
// so a caller that stops waiting does not abort the task; Close cancels it.
// The returned channel receives exactly one result. An error means the task was not queued.
func (w *Worker) Submit(ctx context.Context, name string, fn TaskFunc) (<-chan Result, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		return nil, ErrWorkerStopped
	}

	tctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	stopAfter := context.AfterFunc(w.base, cancel)
	t := &task{
		id:     uuid.NewString(),
		name:   name,
		ctx:    tctx,
		result: make(chan Result, 1),
		fn: func(ctx context.Context) (any, error) {
			defer stopAfter()
			defer cancel()
			return fn(ctx)
		},
	}

	select {
	case w.tasks <- t:
		return t.result, nil
	case <-ctx.Done():
		stopAfter()
		cancel()
		return nil, ctx.Err()
	case <-w.done:
		stopAfter()
		cancel()
		return nil, ErrWorkerStopped
	}
}

// Do submits fn and waits for its result or for ctx to end.
func (w *Worker) Do(ctx context.Context, name string, fn TaskFunc) (any, error) {
	ch, err := w.Submit(ctx, name, fn)
	if err != nil {
		return nil, err
	}
	select {
	case res := <-ch:
		return res.Value, res.Err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels running tasks and waits for the goroutines to exit.
// Tasks still queued are run with a cancelled context so they deliver their result.
func (w *Worker) Close() {
	w.once.Do(func() {
		close(w.done)
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		w.stop()
		w.wg.Wait()

		for {
			select {
			case t := <-w.tasks:
				w.run(t)
			default:
				return
			}
		}
	})
}
