package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
	"k8s.io/klog/v2"
)

// MaxDTypes bounds the dtype tag values used to index kernel tables.
const MaxDTypes = 32

// kernelFn is one kernel body, fully specialized for an (operation, element
// type, execution variant) key. Bodies are stateless: everything they need
// arrives through the task.
type kernelFn func(e *Engine, t *task) error

// dtypeDispatch is the type dispatcher for one (operation, variant) pair: a
// fixed-size function table indexed by the dtype tag. A nil entry means "no
// body for this tag"; there is deliberately no default routing -- an
// unregistered tag is a TypeError, never silently sent elsewhere.
type dtypeDispatch struct {
	fnTable [MaxDTypes]kernelFn
}

// register a body for a dtype. Overwrites any previous registration; a
// dtype tag outside the table bounds is a registration-time bug.
func (d *dtypeDispatch) register(dtype dtypes.DType, fn kernelFn) {
	if dtype >= MaxDTypes {
		panic("taskgo: dtype " + dtype.String() + " out of kernel-table bounds")
	}
	d.fnTable[dtype] = fn
}

func (d *dtypeDispatch) lookup(dtype dtypes.DType) kernelFn {
	if d == nil || dtype >= MaxDTypes {
		return nil
	}
	return d.fnTable[dtype]
}

// kernelTable is the variant dispatcher's backing store: per operation and
// variant, a type dispatcher.
type kernelTable struct {
	variants [backends.OpTypeLast][backends.NumVariants]*dtypeDispatch
}

// register a kernel body under its (operation, variant, dtype) key.
func (k *kernelTable) register(op backends.OpType, variant backends.Variant, dtype dtypes.DType, fn kernelFn) {
	dispatch := k.variants[op][variant]
	if dispatch == nil {
		dispatch = &dtypeDispatch{}
		k.variants[op][variant] = dispatch
	}
	dispatch.register(dtype, fn)
}

// selectKernel resolves (op, dtype, requested variant) to a kernel body,
// applying the fallback policy: the requested variant first, then each
// cheaper variant down to sequential. Not every combination has a body for
// every variant; a missing body degrades transparently rather than refusing
// the operation.
//
// The returned variant is the one actually selected.
func (k *kernelTable) selectKernel(op backends.OpType, dtype dtypes.DType, requested backends.Variant) (kernelFn, backends.Variant, error) {
	if err := backends.CheckOperation(op, dtype); err != nil {
		return nil, 0, err
	}
	for _, variant := range requested.FallbackOrder() {
		if fn := k.variants[op][variant].lookup(dtype); fn != nil {
			if variant != requested && klog.V(2).Enabled() {
				klog.Infof("%s: %s[%s]: no %s body, falling back to %s",
					EngineName, op, dtype, requested, variant)
			}
			return fn, variant, nil
		}
	}
	// CheckOperation passed, so the startup verification guarantees a
	// sequential body; reaching this point means the table was corrupted.
	return nil, 0, numerr.Typef("no kernel body registered for %s[%s] in any variant", op, dtype)
}

// verifyComplete checks that every (operation, dtype) pair the capabilities
// claim has at least a sequential kernel body. Called once from New: adding
// an element type or operation without registering its kernels fails engine
// construction, not a later dispatch.
func (k *kernelTable) verifyComplete(capabilities backends.Capabilities) error {
	for op, opSupported := range capabilities.Operations {
		if !opSupported {
			continue
		}
		for _, dtype := range shapes.SupportedDTypes() {
			if !capabilities.DTypes[dtype] || !op.SupportsDType(dtype) {
				continue
			}
			if k.variants[op][backends.VariantSequential].lookup(dtype) == nil {
				return numerr.Preconditionf(
					"kernel table incomplete: %s[%s] has no sequential body; "+
						"every supported (operation, dtype) pair requires one", op, dtype)
			}
		}
	}
	return nil
}
