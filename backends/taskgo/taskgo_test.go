package taskgo

import (
	"reflect"
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

func newTestEngine(t *testing.T, options ...Option) *Engine {
	e, err := New(options...)
	require.NoError(t, err)
	t.Cleanup(e.Finalize)
	return e
}

func newBufferFrom[T any](t *testing.T, e *Engine, dtype dtypes.DType, flat []T, dims ...int) backends.Buffer {
	buf, err := e.NewBuffer(shapes.Make(dtype, dims...))
	require.NoError(t, err)
	require.NoError(t, e.MutableFlatData(buf, func(dst any) { copy(dst.([]T), flat) }))
	return buf
}

func flatData[T any](t *testing.T, e *Engine, buf backends.Buffer) []T {
	var out []T
	require.NoError(t, e.ConstFlatData(buf, func(flat any) {
		out = append(out, flat.([]T)...)
	}))
	return out
}

func operandOf(t *testing.T, e *Engine, buf backends.Buffer) backends.Operand {
	shape, err := e.BufferShape(buf)
	require.NoError(t, err)
	return backends.Operand{Buffer: buf, Shape: shape}
}

// runOp submits one operation and waits for its completion.
func runOp(t *testing.T, e *Engine, op backends.OpType, variant backends.Variant,
	attrs backends.Attributes, output backends.Buffer, inputs ...backends.Buffer) {
	sub := &backends.Submission{Op: op, Variant: variant, Output: operandOf(t, e, output), Attrs: attrs}
	for _, input := range inputs {
		sub.Inputs = append(sub.Inputs, operandOf(t, e, input))
	}
	require.NoError(t, e.Submit(sub))
	require.NoError(t, e.Wait(output))
}

func TestEngineLifecycle(t *testing.T) {
	e, err := New(WithMaxParallelism(2), WithQueueDepth(4), WithSeed(42))
	require.NoError(t, err)
	assert.Equal(t, "taskgo", e.Name())
	capabilities := e.Capabilities()
	assert.True(t, capabilities.Supports(backends.OpTypeAdd, dtypes.Float32))
	assert.True(t, capabilities.Supports(backends.OpTypeCholesky, dtypes.Float64))
	assert.False(t, capabilities.Supports(backends.OpTypeCholesky, dtypes.Int32))
	e.Finalize()
}

func TestNewBufferRejectsUnsupportedDType(t *testing.T) {
	e := newTestEngine(t)
	_, err := e.NewBuffer(shapes.Shape{DType: dtypes.BFloat16, Dimensions: []int{2}})
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))
}

func TestNewBufferZeroInitialized(t *testing.T) {
	e := newTestEngine(t)
	buf, err := e.NewBuffer(shapes.Make(dtypes.Float64, 3))
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0, 0}, flatData[float64](t, e, buf))
}

func TestBufferRefCounting(t *testing.T) {
	e := newTestEngine(t)
	buf := newBufferFrom(t, e, dtypes.Int32, []int32{1, 2}, 2)
	require.NoError(t, e.BufferRetain(buf))
	require.NoError(t, e.BufferRelease(buf))
	// Still one reference left, data remains accessible.
	assert.Equal(t, []int32{1, 2}, flatData[int32](t, e, buf))
	require.NoError(t, e.BufferRelease(buf))

	// Use after the last release is refused.
	err := e.ConstFlatData(buf, func(any) {})
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

// fillSequence writes a deterministic pattern into a flat slice of any
// supported element type.
func fillSequence(flat any) {
	value := reflect.ValueOf(flat)
	for i := 0; i < value.Len(); i++ {
		element := value.Index(i)
		switch element.Kind() {
		case reflect.Bool:
			element.SetBool(i%2 == 1)
		case reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
			element.SetInt(int64(i + 1))
		case reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			element.SetUint(uint64(i + 1))
		case reflect.Float32, reflect.Float64:
			element.SetFloat(float64(i) + 0.5)
		case reflect.Complex64, reflect.Complex128:
			element.SetComplex(complex(float64(i), 1))
		}
	}
}

func TestCopyIdentityAllDTypes(t *testing.T) {
	e := newTestEngine(t)
	for _, dtype := range shapes.SupportedDTypes() {
		t.Run(dtype.String(), func(t *testing.T) {
			shape := shapes.Make(dtype, 8)
			in, err := e.NewBuffer(shape)
			require.NoError(t, err)
			out, err := e.NewBuffer(shape)
			require.NoError(t, err)
			require.NoError(t, e.MutableFlatData(in, fillSequence))

			for variant := backends.VariantSequential; variant < backends.NumVariants; variant++ {
				runOp(t, e, backends.OpTypeCopy, variant, backends.Attributes{}, out, in)
				var inFlat, outFlat any
				require.NoError(t, e.ConstFlatData(in, func(flat any) { inFlat = flat }))
				require.NoError(t, e.ConstFlatData(out, func(flat any) { outFlat = flat }))
				assert.Equal(t, inFlat, outFlat, "variant %s", variant)
			}
		})
	}
}

func TestSubmitValidation(t *testing.T) {
	e := newTestEngine(t)
	f32 := newBufferFrom(t, e, dtypes.Float32, []float32{1, 2, 3}, 3)
	f64 := newBufferFrom(t, e, dtypes.Float64, []float64{1, 2, 3}, 3)
	out, err := e.NewBuffer(shapes.Make(dtypes.Float32, 3))
	require.NoError(t, err)

	// Nil submission and invalid op codes are refused.
	require.Error(t, e.Submit(nil))
	err = e.Submit(&backends.Submission{Op: backends.OpType(999)})
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))

	// Wrong arity.
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeAdd,
		Inputs:  []backends.Operand{operandOf(t, e, f32)},
		Output:  operandOf(t, e, out),
		Variant: backends.VariantSequential,
	})
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))

	// Mixed operand dtypes: promotion happens above the engine.
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeAdd,
		Inputs:  []backends.Operand{operandOf(t, e, f32), operandOf(t, e, f64)},
		Output:  operandOf(t, e, out),
		Variant: backends.VariantSequential,
	})
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	// Unsupported (op, dtype) pair.
	boolBuf := newBufferFrom(t, e, dtypes.Bool, []bool{true, false, true}, 3)
	boolOut, err := e.NewBuffer(shapes.Make(dtypes.Bool, 3))
	require.NoError(t, err)
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeAdd,
		Inputs:  []backends.Operand{operandOf(t, e, boolBuf), operandOf(t, e, boolBuf)},
		Output:  operandOf(t, e, boolOut),
		Variant: backends.VariantSequential,
	})
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))
}

func TestSubmitBroadcastConflict(t *testing.T) {
	e := newTestEngine(t)
	lhs := newBufferFrom(t, e, dtypes.Float64, make([]float64, 6), 2, 3)
	rhs := newBufferFrom(t, e, dtypes.Float64, make([]float64, 12), 4, 3)
	out, err := e.NewBuffer(shapes.Make(dtypes.Float64, 2, 3))
	require.NoError(t, err)
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeAdd,
		Inputs:  []backends.Operand{operandOf(t, e, lhs), operandOf(t, e, rhs)},
		Output:  operandOf(t, e, out),
		Variant: backends.VariantSequential,
	})
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}

func TestSelectKernelFallback(t *testing.T) {
	e := newTestEngine(t)

	// Cholesky has no accelerator body: accelerator degrades to
	// parallel-loop.
	_, variant, err := e.kernels.selectKernel(backends.OpTypeCholesky, dtypes.Float64, backends.VariantAccelerator)
	require.NoError(t, err)
	assert.Equal(t, backends.VariantParallelLoop, variant)

	// Eye only has a sequential body.
	_, variant, err = e.kernels.selectKernel(backends.OpTypeEye, dtypes.Float32, backends.VariantParallelLoop)
	require.NoError(t, err)
	assert.Equal(t, backends.VariantSequential, variant)

	// Elementwise ops run on the requested variant.
	_, variant, err = e.kernels.selectKernel(backends.OpTypeAdd, dtypes.Float32, backends.VariantAccelerator)
	require.NoError(t, err)
	assert.Equal(t, backends.VariantAccelerator, variant)

	// Unregistered tag: TypeError, not a silent rerouting.
	_, _, err = e.kernels.selectKernel(backends.OpTypeAdd, dtypes.BFloat16, backends.VariantSequential)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))
}

func TestVerifyCompleteDetectsGaps(t *testing.T) {
	var incomplete kernelTable
	registerUnaryOps(&incomplete) // Everything else missing.
	err := incomplete.verifyComplete(Capabilities)
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestAcceleratorOrdering(t *testing.T) {
	e := newTestEngine(t)
	a := newBufferFrom(t, e, dtypes.Float64, []float64{1, 2, 3, 4}, 4)
	b, err := e.NewBuffer(shapes.Make(dtypes.Float64, 4))
	require.NoError(t, err)
	c, err := e.NewBuffer(shapes.Make(dtypes.Float64, 4))
	require.NoError(t, err)

	// b = a + a, then c = b + b: the second submission depends on the first
	// through b's fence; submission returns before execution.
	submitAdd := func(out, lhs, rhs backends.Buffer) {
		require.NoError(t, e.Submit(&backends.Submission{
			Op:      backends.OpTypeAdd,
			Variant: backends.VariantAccelerator,
			Inputs:  []backends.Operand{operandOf(t, e, lhs), operandOf(t, e, rhs)},
			Output:  operandOf(t, e, out),
		}))
	}
	submitAdd(b, a, a)
	submitAdd(c, b, b)
	require.NoError(t, e.Wait(c))
	assert.Equal(t, []float64{4, 8, 12, 16}, flatData[float64](t, e, c))
}

func TestStridedOperandTranspose(t *testing.T) {
	e := newTestEngine(t)
	// Row-major [2, 3] data viewed through strides as its [3, 2] transpose.
	in := newBufferFrom(t, e, dtypes.Float64, []float64{1, 2, 3, 4, 5, 6}, 2, 3)
	out, err := e.NewBuffer(shapes.Make(dtypes.Float64, 3, 2))
	require.NoError(t, err)
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeCopy,
		Variant: backends.VariantSequential,
		Inputs: []backends.Operand{{
			Buffer:  in,
			Shape:   shapes.Make(dtypes.Float64, 3, 2),
			Strides: []int{1, 3},
		}},
		Output: operandOf(t, e, out),
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 4, 2, 5, 3, 6}, flatData[float64](t, e, out))
}

func TestNegativeStrideRejected(t *testing.T) {
	e := newTestEngine(t)
	in := newBufferFrom(t, e, dtypes.Float64, []float64{1, 2, 3}, 3)
	out, err := e.NewBuffer(shapes.Make(dtypes.Float64, 3))
	require.NoError(t, err)
	// A reversed view: operands carry no base offset, so a negative stride
	// would index below the buffer. Validation must refuse it instead of
	// letting the kernel panic.
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeCopy,
		Variant: backends.VariantSequential,
		Inputs: []backends.Operand{{
			Buffer:  in,
			Shape:   shapes.Make(dtypes.Float64, 3),
			Strides: []int{-1},
		}},
		Output: operandOf(t, e, out),
	})
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestOperandOverflowRejected(t *testing.T) {
	e := newTestEngine(t)
	in := newBufferFrom(t, e, dtypes.Float64, []float64{1, 2, 3}, 3)
	out, err := e.NewBuffer(shapes.Make(dtypes.Float64, 2, 2))
	require.NoError(t, err)
	err = e.Submit(&backends.Submission{
		Op:      backends.OpTypeCopy,
		Variant: backends.VariantSequential,
		Inputs: []backends.Operand{{
			Buffer:  in,
			Shape:   shapes.Make(dtypes.Float64, 2, 2),
			Strides: []int{2, 1}, // Would touch element 3 of a 3-element buffer.
		}},
		Output: operandOf(t, e, out),
	})
	require.Error(t, err)
	assert.True(t, numerr.IsShape(err))
}
