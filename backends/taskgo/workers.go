package taskgo

import (
	"runtime"
	"sync"
)

// workersPool caps the amount of parallel kernel work in flight.
//
// maxParallelism is a soft target: the number of goroutines can be slightly
// higher because of workers blocked handing off tasks.
type workersPool struct {
	maxParallelism int

	mu         sync.Mutex
	cond       sync.Cond // Signaled whenever numRunning decreases.
	numRunning int
}

// Initialize must be called before use.
func (w *workersPool) Initialize() {
	w.maxParallelism = runtime.NumCPU()
	w.cond = sync.Cond{L: &w.mu}
}

// IsEnabled returns whether parallelism is enabled (maxParallelism != 0).
func (w *workersPool) IsEnabled() bool {
	return w.maxParallelism != 0
}

// MaxParallelism is the soft target of parallel work. 0 means parallelism
// is disabled; negative means unlimited.
func (w *workersPool) MaxParallelism() int {
	return w.maxParallelism
}

// SetMaxParallelism changes the soft target. Only change it before any
// workers start running; changing it mid-execution is undefined.
func (w *workersPool) SetMaxParallelism(maxParallelism int) {
	w.maxParallelism = maxParallelism
}

// lockedIsFull returns whether all available workers are in use.
// Call with w.mu held.
func (w *workersPool) lockedIsFull() bool {
	if w.maxParallelism == 0 {
		return true
	}
	if w.maxParallelism < 0 {
		return false
	}
	return w.numRunning >= w.maxParallelism
}

// WaitToStart blocks until a worker is available, then runs task on it.
//
// If parallelism is disabled it runs the task inline -- callers relying on
// concurrency between tasks must check IsEnabled first.
func (w *workersPool) WaitToStart(task func()) {
	if w.maxParallelism < 0 {
		go task()
		return
	}
	if w.maxParallelism == 0 {
		task()
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	for w.lockedIsFull() {
		w.cond.Wait()
	}
	w.lockedRunTaskInGoroutine(task)
}

// StartIfAvailable runs task in a separate goroutine if a worker is free,
// returning whether it did. The caller synchronizes the task's completion.
func (w *workersPool) StartIfAvailable(task func()) bool {
	if w.maxParallelism < 0 {
		go task()
		return true
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.lockedIsFull() {
		return false
	}
	w.lockedRunTaskInGoroutine(task)
	return true
}

// lockedRunTaskInGoroutine keeps tabs on numRunning.
// Call with w.mu held.
func (w *workersPool) lockedRunTaskInGoroutine(task func()) {
	w.numRunning++
	go func() {
		task()
		w.mu.Lock()
		w.numRunning--
		w.cond.Signal()
		w.mu.Unlock()
	}()
}
