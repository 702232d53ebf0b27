package voice

import (
	"sync"

	"go.uber.org/zap"
)

const defaultQueueSize = 64

// taskQueue runs enqueued tasks strictly in order on a single worker
// goroutine. One instance backs each session's processing chain and one its
// playback chain; the single consumer is what guarantees FIFO ordering
// without chaining continuations by hand.
type taskQueue struct {
	name   string
	logger *zap.Logger

	mu     sync.Mutex
	tasks  chan func()
	closed bool
	wg     sync.WaitGroup
}

func newTaskQueue(name string, size int, logger *zap.Logger) *taskQueue {
	if size <= 0 {
		size = defaultQueueSize
	}
	q := &taskQueue{
		name:   name,
		logger: logger,
		tasks:  make(chan func(), size),
	}
	q.wg.Add(1)
	go q.run()
	return q
}

func (q *taskQueue) run() {
	defer q.wg.Done()
	for task := range q.tasks {
		q.runOne(task)
	}
}

// runOne isolates a single task so a panic drops that task, not the queue.
func (q *taskQueue) runOne(task func()) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("Queue task panicked",
				zap.String("queue", q.name),
				zap.Any("panic", r))
		}
	}()
	task()
}

// Enqueue adds a task; it never blocks. Returns false when the queue is
// closed or full (the task is dropped with a warning).
func (q *taskQueue) Enqueue(task func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return false
	}
	select {
	case q.tasks <- task:
		return true
	default:
		q.logger.Warn("Dropping task; queue full", zap.String("queue", q.name))
		return false
	}
}

// Close stops accepting tasks. Already-enqueued tasks still run.
func (q *taskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
}

// Wait blocks until the worker has drained all tasks after Close.
func (q *taskQueue) Wait() {
	q.wg.Wait()
}
