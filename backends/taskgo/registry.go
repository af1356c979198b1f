package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

// registerAllKernels populates the kernel table. Registration is explicit
// and ordered -- every family in turn, then the accelerator bodies -- so the
// full set of kernels is readable from this one call chain, and
// verifyComplete can hold it to the capabilities the engine advertises.
func registerAllKernels(k *kernelTable) {
	registerUnaryOps(k)
	registerBinaryOps(k)
	registerReductionOps(k)
	registerScanOps(k)
	registerLinalgOps(k)
	registerStructuralOps(k)
	registerAcceleratorKernels(k)
}

// registerAcceleratorKernels fills in the accelerator variant for the
// elementwise and reduction families. The device loop provides the
// asynchrony, so the bodies themselves are the sequential ones -- except
// Float16 elementwise ops, which promote to single precision on the device.
//
// Scans, linear algebra and structural ops have no device bodies;
// requesting the accelerator for those degrades per the fallback order.
func registerAcceleratorKernels(k *kernelTable) {
	for op := backends.OpTypeInvalid + 1; op < backends.OpTypeLast; op++ {
		switch op.Family() {
		case backends.FamilyUnary, backends.FamilyBinary, backends.FamilyReduction:
		default:
			continue
		}
		for _, dtype := range shapes.SupportedDTypes() {
			if !op.SupportsDType(dtype) {
				continue
			}
			if dtype == dtypes.Float16 && op.Family() != backends.FamilyReduction {
				k.register(op, backends.VariantAccelerator, dtype, promotedF16Kernel(k, op))
				continue
			}
			if seq := k.variants[op][backends.VariantSequential].lookup(dtype); seq != nil {
				k.register(op, backends.VariantAccelerator, dtype, seq)
			}
		}
	}
}

// promotedF16Kernel runs an elementwise op on Float16 operands by promoting
// them to float32 temporaries, running the single-precision sequential body,
// and narrowing the result back. This is the promotion path for variants
// with no native half-precision routine.
func promotedF16Kernel(table *kernelTable, op backends.OpType) kernelFn {
	return func(e *Engine, t *task) error {
		inner := table.variants[op][backends.VariantSequential].lookup(dtypes.Float32)
		if inner == nil {
			return numerr.Typef("no single-precision body to promote %s[%s] onto", op, dtypes.Float16)
		}

		var temps []*Buffer
		defer func() {
			for _, tmp := range temps {
				e.putBuffer(tmp)
			}
		}()

		inputs := make([]*Buffer, len(t.inputs))
		operands := make([]backends.Operand, len(t.inputs))
		for i := range t.inputs {
			_, tmp := promoteToFloat32(e, t.input(i), t.inputs[i])
			temps = append(temps, tmp)
			inputs[i] = tmp
			operands[i] = backends.Operand{
				Buffer: tmp,
				Shape:  shapes.Shape{DType: dtypes.Float32, Dimensions: t.input(i).Shape.Dimensions},
			}
		}
		outShape := t.outShape()
		wideOut := e.getBuffer(dtypes.Float32, outShape.Size())
		temps = append(temps, wideOut)
		wideSub := &backends.Submission{
			Op:      op,
			Variant: backends.VariantSequential,
			Inputs:  operands,
			Output: backends.Operand{
				Buffer: wideOut,
				Shape:  shapes.Shape{DType: dtypes.Float32, Dimensions: outShape.Dimensions},
			},
			Attrs: t.sub.Attrs,
		}
		wideTask := &task{
			sub:     wideSub,
			inputs:  inputs,
			output:  wideOut,
			variant: backends.VariantSequential,
		}
		if err := inner(e, wideTask); err != nil {
			return err
		}

		src := wideOut.flat.([]float32)
		dst := t.output.flat.([]float16.Float16)
		if isContiguous(t.sub.Output, outShape) {
			for i, v := range src {
				dst[i] = float16.Fromfloat32(v)
			}
			return nil
		}
		it := newOperandIterator(t.sub.Output, outShape, 0)
		for _, v := range src {
			dst[it.Next()] = float16.Fromfloat32(v)
		}
		return nil
	}
}
