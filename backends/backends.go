// Package backends defines the contract between the array façade
// (github.com/numforge/numforge/types/arrays) and execution engines.
//
// An engine owns array storage (opaque Buffer references with shared
// ownership), executes submissions -- (operation, element type, execution
// variant) units of work -- and reports its capabilities. The engine's
// internals (placement, partitioning, synchronization) are a black box to
// the rest of the system; the façade's only obligations are to submit
// exactly once per logical operation and to acquire buffer data through the
// scoped map-for-read / map-for-write accessors.
//
// The in-process pure-Go engine lives in
// github.com/numforge/numforge/backends/taskgo.
package backends

import (
	"github.com/google/uuid"
	"github.com/numforge/numforge/types/shapes"
)

// Buffer is an opaque reference to an engine-owned storage blob. The
// concrete type is engine-specific; the core never dereferences it directly.
//
// Buffers are shared-ownership: they stay alive while at least one holder
// retains them, and are released back to the engine when the last reference
// is dropped.
type Buffer any

// Operand describes one input or output of a submission: the buffer, its
// logical shape, and its element strides.
//
// Strides are in elements (not bytes), one per axis, and must be
// non-negative: an operand always addresses forward from the buffer's first
// element, so a reversed view cannot be expressed. A nil Strides means
// contiguous row-major layout. Kernels must be correct for arbitrary
// non-negative strides, including non-contiguous ones.
type Operand struct {
	Buffer  Buffer
	Shape   shapes.Shape
	Strides []int
}

// Contiguous returns an Operand for a buffer using the shape's natural
// row-major layout.
func Contiguous(buffer Buffer, shape shapes.Shape) Operand {
	return Operand{Buffer: buffer, Shape: shape}
}

// Attributes are the operation-specific parameters of a submission. Only the
// fields relevant to the submitted operation are read.
type Attributes struct {
	// FillValue is the constant for Fill, given as the Go value matching the
	// output dtype.
	FillValue any

	// DiagonalOffset is the diagonal k for Tril/Triu (0 = main diagonal,
	// >0 above, <0 below).
	DiagonalOffset int

	// NaNToIdentity makes reductions and scans over floating-point data
	// treat NaN as the operation's identity element instead of propagating
	// it.
	NaNToIdentity bool

	// Partitions are the partition lengths for the local phase of a scan.
	// They must sum to the input length. Empty means the engine picks its
	// own partitioning.
	Partitions []int

	// Seed for RandomUniform. Zero means the engine seeds itself.
	Seed uint64
}

// Submission is one unit of work handed to an engine: a logical operation,
// the requested execution variant, and the operand descriptors. The engine
// resolves (Op, element type, Variant) to a kernel body, applying its
// documented fallback policy when the requested variant has no body.
type Submission struct {
	// ID identifies this submission in logs and accounting. The zero value
	// is replaced by a fresh ID at submit time.
	ID uuid.UUID

	Op      OpType
	Variant Variant

	Inputs []Operand
	Output Operand

	// Aggregates is only used by scan operations: when its buffer is
	// non-nil, the engine runs only the local phase, writing one aggregate
	// per partition (ordered by partition index) into it. When nil, the
	// engine also applies the global fix-up and Output receives the full
	// scan.
	Aggregates Operand

	Attrs Attributes
}

// Backend is the interface the array façade programs against.
//
// All methods returning an error surface the numerr taxonomy: TypeError for
// unsupported element types, ShapeError for shape conflicts discovered at
// submission, ComputeError for numerical failures, PreconditionError for
// malformed submissions. Failures are all-or-nothing: after an error, no
// partially computed output is observable.
type Backend interface {
	// Name returns the engine's short name.
	Name() string

	// Description returns a human-readable description of the engine.
	Description() string

	// Capabilities returns the set of operations and element types this
	// engine supports.
	Capabilities() Capabilities

	// NewBuffer creates a zero-initialized buffer for the given shape, with
	// one reference held by the caller.
	NewBuffer(shape shapes.Shape) (Buffer, error)

	// BufferShape returns the shape of the given buffer.
	BufferShape(buffer Buffer) (shapes.Shape, error)

	// BufferRetain adds a reference to the buffer.
	BufferRetain(buffer Buffer) error

	// BufferRelease drops a reference; on the last release the storage
	// returns to the engine. The caller must drop its Buffer reference
	// afterwards.
	BufferRelease(buffer Buffer) error

	// ConstFlatData acquires the buffer for reading ("map for read") and
	// calls accessFn with the flat data as a slice of the Go type matching
	// the buffer's dtype. The slice is valid only during the call; release
	// is guaranteed on every exit path, including panics in accessFn.
	ConstFlatData(buffer Buffer, accessFn func(flat any)) error

	// MutableFlatData acquires the buffer for writing ("map for write"),
	// excluding all other readers and writers, and calls accessFn with the
	// flat data. Release is guaranteed on every exit path.
	MutableFlatData(buffer Buffer, accessFn func(flat any)) error

	// Submit executes one unit of work. Sequential and parallel-loop
	// variants run synchronously-to-completion; accelerator submissions are
	// asynchronous relative to the caller, with completion observable via
	// Wait. Dependencies between successive submissions touching the same
	// buffers are tracked by the engine; the caller never needs to assume
	// completion before issuing a dependent submission.
	Submit(sub *Submission) error

	// Wait blocks until every pending asynchronous submission writing the
	// given buffer has completed, and returns the first error among them,
	// if any.
	Wait(buffer Buffer) error

	// Finalize drains pending work and frees engine resources. The engine
	// must not be used afterwards.
	Finalize()
}
