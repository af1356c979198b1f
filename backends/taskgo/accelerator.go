package taskgo

import (
	"sync"

	"github.com/eapache/queue"
	"k8s.io/klog/v2"
)

// fence marks the completion of one asynchronous submission. done is closed
// exactly once, after err is set.
type fence struct {
	done chan struct{}
	err  error
}

func newFence() *fence {
	return &fence{done: make(chan struct{})}
}

func (f *fence) wait() error {
	<-f.done
	return f.err
}

// setPending records f as the latest asynchronous write on the buffer.
func (b *Buffer) setPending(f *fence) {
	b.pendingMu.Lock()
	b.pending = f
	b.pendingMu.Unlock()
}

// waitPending blocks until the latest asynchronous write on the buffer (if
// any) completes, and returns its error.
func (b *Buffer) waitPending() error {
	b.pendingMu.Lock()
	f := b.pending
	b.pendingMu.Unlock()
	if f == nil {
		return nil
	}
	err := f.wait()
	b.pendingMu.Lock()
	if b.pending == f {
		b.pending = nil
	}
	b.pendingMu.Unlock()
	return err
}

// device is the accelerator execution loop: a single FIFO of submissions
// consumed by a dedicated goroutine. Submissions are enqueued exactly once
// and executed in order; completion ordering relative to the submitting
// goroutine is only observable through fences.
//
// The FIFO itself is an eapache ring-buffer queue; the mutex/cond pair
// around it is the usual producer/consumer handshake.
type device struct {
	engine *Engine

	mu     sync.Mutex
	cond   sync.Cond
	fifo   *queue.Queue
	closed bool
	drained sync.WaitGroup
}

// deviceWork is one queued submission: the already-selected kernel body and
// the fence to complete.
type deviceWork struct {
	run   func() error
	fence *fence
}

func newDevice(engine *Engine, queueDepth int) *device {
	d := &device{
		engine: engine,
		fifo:   queue.New(),
	}
	_ = queueDepth // The ring buffer grows on demand; depth is only a hint.
	d.cond = sync.Cond{L: &d.mu}
	d.drained.Add(1)
	go d.loop()
	return d
}

// enqueue hands one unit of work to the device. It never blocks the
// submitting goroutine on execution, only on the queue mutex.
func (d *device) enqueue(work deviceWork) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		work.fence.err = errDeviceClosed
		close(work.fence.done)
		return
	}
	d.fifo.Add(work)
	d.cond.Signal()
}

// loop is the device goroutine: pops work in FIFO order, runs it to
// completion with no internal suspension points, and completes its fence.
func (d *device) loop() {
	defer d.drained.Done()
	for {
		d.mu.Lock()
		for d.fifo.Length() == 0 && !d.closed {
			d.cond.Wait()
		}
		if d.fifo.Length() == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		work := d.fifo.Remove().(deviceWork)
		d.mu.Unlock()

		work.fence.err = work.run()
		if work.fence.err != nil {
			klog.V(2).Infof("%s: accelerator submission failed: %v", EngineName, work.fence.err)
		}
		close(work.fence.done)
	}
}

// shutdown stops accepting work and waits for the queue to drain.
func (d *device) shutdown() {
	d.mu.Lock()
	d.closed = true
	d.cond.Signal()
	d.mu.Unlock()
	d.drained.Wait()
}

var errDeviceClosed = errDeviceClosedType{}

type errDeviceClosedType struct{}

func (errDeviceClosedType) Error() string { return "taskgo: accelerator device is shut down" }
