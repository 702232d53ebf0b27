package voice

import (
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestTaskQueueRunsInOrder(t *testing.T) {
	q := newTaskQueue("test", 16, zap.NewNop())

	var mu sync.Mutex
	var order []int
	for i := 0; i < 10; i++ {
		i := i
		if !q.Enqueue(func() {
			mu.Lock()
			order = append(order, i)
			mu.Unlock()
		}) {
			t.Fatalf("Enqueue %d rejected", i)
		}
	}

	q.Close()
	q.Wait()

	if len(order) != 10 {
		t.Fatalf("Expected 10 tasks to run, got %d", len(order))
	}
	for i, got := range order {
		if got != i {
			t.Errorf("Task %d ran out of order: got %d", i, got)
		}
	}
}

func TestTaskQueueRejectsWhenFull(t *testing.T) {
	q := newTaskQueue("test", 1, zap.NewNop())

	// Block the worker so the buffer stays occupied.
	release := make(chan struct{})
	started := make(chan struct{})
	q.Enqueue(func() {
		close(started)
		<-release
	})
	<-started

	if !q.Enqueue(func() {}) {
		t.Fatal("Expected the buffered slot to accept a task")
	}
	if q.Enqueue(func() {}) {
		t.Error("Expected a full queue to reject the task")
	}

	close(release)
	q.Close()
	q.Wait()
}

func TestTaskQueueRejectsAfterClose(t *testing.T) {
	q := newTaskQueue("test", 4, zap.NewNop())
	q.Close()

	if q.Enqueue(func() {}) {
		t.Error("Expected a closed queue to reject tasks")
	}
	q.Wait()
}

func TestTaskQueueCloseIsIdempotent(t *testing.T) {
	q := newTaskQueue("test", 4, zap.NewNop())
	q.Close()
	q.Close()
	q.Wait()
}

func TestTaskQueueDrainsOnClose(t *testing.T) {
	q := newTaskQueue("test", 16, zap.NewNop())

	var mu sync.Mutex
	ran := 0
	for i := 0; i < 8; i++ {
		q.Enqueue(func() {
			mu.Lock()
			ran++
			mu.Unlock()
		})
	}
	q.Close()
	q.Wait()

	if ran != 8 {
		t.Errorf("Expected all enqueued tasks to run before Wait returns, got %d", ran)
	}
}

func TestTaskQueueSurvivesPanickingTask(t *testing.T) {
	q := newTaskQueue("test", 4, zap.NewNop())

	ran := make(chan struct{})
	q.Enqueue(func() { panic("boom") })
	q.Enqueue(func() { close(ran) })

	q.Close()
	q.Wait()

	select {
	case <-ran:
	default:
		t.Error("Expected the task after a panic to still run")
	}
}
