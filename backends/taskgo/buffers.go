package taskgo

import (
	"reflect"
	"sync"
	"sync/atomic"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

// Buffer is the taskgo storage blob behind an array handle.
//
// Ownership is shared: the refcount counts the handles holding it, and the
// storage returns to the engine pool on the last release. The raw flat data
// is only reachable through the scoped map-for-read / map-for-write
// accessors, never through a raw pointer held across calls.
type Buffer struct {
	shape shapes.Shape

	// flat is always a slice of the Go type corresponding to shape.DType.
	flat any

	refs  atomic.Int32
	valid atomic.Bool

	// mu implements map-for-read (RLock) / map-for-write (Lock): concurrent
	// readers are fine, writers are exclusive.
	mu sync.RWMutex

	// pending is the fence of the latest asynchronous submission writing
	// this buffer, nil when none is in flight. Guarded by pendingMu.
	pendingMu sync.Mutex
	pending   *fence
}

type bufferPoolKey struct {
	dtype  dtypes.DType
	length int
}

// getBufferPool for the given dtype/length.
func (e *Engine) getBufferPool(dtype dtypes.DType, length int) *sync.Pool {
	key := bufferPoolKey{dtype: dtype, length: length}
	poolInterface, ok := e.bufferPools.Load(key)
	if !ok {
		poolInterface, _ = e.bufferPools.LoadOrStore(key, &sync.Pool{
			New: func() interface{} {
				atomic.AddInt64(&e.pooledBytes, int64(dtype.Memory())*int64(length))
				return &Buffer{
					flat:  reflect.MakeSlice(reflect.SliceOf(dtype.GoType()), length, length).Interface(),
					shape: shapes.Make(dtype, length),
				}
			},
		})
	}
	return poolInterface.(*sync.Pool)
}

// getBuffer from the engine pools, with one reference held by the caller.
// The data is whatever the previous user left there.
func (e *Engine) getBuffer(dtype dtypes.DType, length int) *Buffer {
	pool := e.getBufferPool(dtype, length)
	buf := pool.Get().(*Buffer)
	buf.valid.Store(true)
	buf.refs.Store(1)
	return buf
}

// putBuffer returns the storage to the pool. All references must be gone.
func (e *Engine) putBuffer(buffer *Buffer) {
	if buffer == nil || !buffer.shape.Ok() {
		return
	}
	buffer.valid.Store(false)
	pool := e.getBufferPool(buffer.shape.DType, buffer.shape.Size())
	pool.Put(buffer)
}

// newBuffer creates a zero-initialized buffer of the given shape.
func (e *Engine) newBuffer(shape shapes.Shape) *Buffer {
	buffer := e.getBuffer(shape.DType, shape.Size())
	buffer.shape = shape.Clone()
	zeroFlat(buffer.flat)
	return buffer
}

// zeroFlat clears a flat slice of any supported element type.
func zeroFlat(flat any) {
	value := reflect.ValueOf(flat)
	zero := reflect.Zero(value.Type().Elem())
	for i := 0; i < value.Len(); i++ {
		value.Index(i).Set(zero)
	}
}

// copyFlat assumes both flat slices are of the same underlying type.
func copyFlat(flatDst, flatSrc any) {
	reflect.Copy(reflect.ValueOf(flatDst), reflect.ValueOf(flatSrc))
}

// checkBuffer asserts an opaque handle belongs to this engine and is alive.
func (e *Engine) checkBuffer(opaque backends.Buffer) (*Buffer, error) {
	buffer, ok := opaque.(*Buffer)
	if !ok {
		return nil, numerr.Preconditionf("buffer is not a %q engine buffer (got %T)", EngineName, opaque)
	}
	if buffer == nil || !buffer.valid.Load() {
		return nil, numerr.Preconditionf("buffer (%p) is not valid, likely used after its last release", buffer)
	}
	return buffer, nil
}

// NewBuffer creates a zero-initialized buffer for the given shape, with one
// reference held by the caller.
func (e *Engine) NewBuffer(shape shapes.Shape) (backends.Buffer, error) {
	if !shape.Ok() {
		return nil, numerr.Preconditionf("NewBuffer: invalid shape")
	}
	if !shapes.SupportedDType(shape.DType) {
		return nil, numerr.Typef("NewBuffer: dtype %s is not in the supported element-type set", shape.DType)
	}
	return e.newBuffer(shape), nil
}

// BufferShape returns the shape of the given buffer.
func (e *Engine) BufferShape(opaque backends.Buffer) (shapes.Shape, error) {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return shapes.Invalid(), err
	}
	return buffer.shape, nil
}

// BufferRetain adds a reference to the buffer.
func (e *Engine) BufferRetain(opaque backends.Buffer) error {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return err
	}
	buffer.refs.Add(1)
	return nil
}

// BufferRelease drops one reference; the last release waits for pending
// asynchronous writes and returns the storage to the engine.
func (e *Engine) BufferRelease(opaque backends.Buffer) error {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return err
	}
	remaining := buffer.refs.Add(-1)
	if remaining < 0 {
		return numerr.Preconditionf("BufferRelease(%p): released more times than retained", buffer)
	}
	if remaining > 0 {
		return nil
	}
	// Last holder: nothing may be reading or writing anymore, but an
	// asynchronous submission may still be in flight.
	_ = buffer.waitPending()
	e.putBuffer(buffer)
	return nil
}

// ConstFlatData acquires the buffer for reading and calls accessFn with the
// flat data. Release happens on every exit path, including a panic in
// accessFn.
func (e *Engine) ConstFlatData(opaque backends.Buffer, accessFn func(flat any)) error {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return err
	}
	if err := buffer.waitPending(); err != nil {
		return err
	}
	buffer.mu.RLock()
	defer buffer.mu.RUnlock()
	accessFn(buffer.flat)
	return nil
}

// MutableFlatData acquires the buffer for writing -- excluding every other
// reader and writer -- and calls accessFn with the flat data. Release
// happens on every exit path, including a panic in accessFn.
func (e *Engine) MutableFlatData(opaque backends.Buffer, accessFn func(flat any)) error {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return err
	}
	if err := buffer.waitPending(); err != nil {
		return err
	}
	buffer.mu.Lock()
	defer buffer.mu.Unlock()
	accessFn(buffer.flat)
	return nil
}

// Wait blocks until pending asynchronous submissions writing the buffer
// complete, returning their error, if any.
func (e *Engine) Wait(opaque backends.Buffer) error {
	buffer, err := e.checkBuffer(opaque)
	if err != nil {
		return err
	}
	return buffer.waitPending()
}
