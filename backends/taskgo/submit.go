package taskgo

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/google/uuid"
	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// task is a validated submission with its operand buffers resolved. It is
// what kernel bodies receive; they read everything through it and keep no
// state of their own.
type task struct {
	sub     *backends.Submission
	inputs  []*Buffer
	output  *Buffer
	aggs    *Buffer // Scan aggregates, nil unless requested.
	variant backends.Variant
}

// input returns the i-th input operand descriptor.
func (t *task) input(i int) backends.Operand { return t.sub.Inputs[i] }

// outShape is the logical output shape.
func (t *task) outShape() shapes.Shape { return t.sub.Output.Shape }

// Submit executes one unit of work. See backends.Backend.Submit for the
// contract; validation failures surface before anything is written, so a
// failed call leaves no partial state in the output.
func (e *Engine) Submit(sub *backends.Submission) error {
	t, fn, err := e.validateSubmission(sub)
	if err != nil {
		return err
	}
	if sub.ID == uuid.Nil {
		sub.ID = uuid.New()
	}
	if klog.V(2).Enabled() {
		klog.Infof("%s: submit %s: op=%s dtype=%s variant=%s(requested %s) out=%s",
			EngineName, sub.ID, sub.Op, dispatchDType(sub), t.variant, sub.Variant, sub.Output.Shape)
	}

	if t.variant == backends.VariantAccelerator {
		return e.submitAsync(fn, t)
	}

	// Sequential and parallel-loop variants run synchronously-to-completion
	// on the submitting goroutine (plus workers).
	if err := e.waitOperands(t, nil); err != nil {
		return err
	}
	return e.executeTask(fn, t)
}

// submitAsync enqueues the task on the accelerator device: exactly one
// enqueue per logical operation, completion observable through the fences
// recorded on the operands. The engine, not the caller, orders dependent
// submissions: the queued work first waits the fences its operands carried
// at submission time.
func (e *Engine) submitAsync(fn kernelFn, t *task) error {
	f := newFence()
	previous := make([]*fence, 0, len(t.inputs)+2)
	for _, buffer := range t.operandBuffers() {
		buffer.pendingMu.Lock()
		if buffer.pending != nil {
			previous = append(previous, buffer.pending)
		}
		buffer.pending = f
		buffer.pendingMu.Unlock()
	}
	e.device.enqueue(deviceWork{
		fence: f,
		run: func() error {
			for _, dep := range previous {
				if err := dep.wait(); err != nil {
					return err
				}
			}
			return e.executeTask(fn, t)
		},
	})
	return nil
}

// waitOperands blocks until pending asynchronous writes on the task's
// operands (except skip) have completed.
func (e *Engine) waitOperands(t *task, skip *fence) error {
	for _, buffer := range t.operandBuffers() {
		buffer.pendingMu.Lock()
		f := buffer.pending
		buffer.pendingMu.Unlock()
		if f == nil || f == skip {
			continue
		}
		if err := f.wait(); err != nil {
			return err
		}
	}
	return nil
}

// operandBuffers returns the distinct buffers the task touches.
func (t *task) operandBuffers() []*Buffer {
	buffers := make([]*Buffer, 0, len(t.inputs)+2)
	seen := func(b *Buffer) bool {
		for _, other := range buffers {
			if other == b {
				return true
			}
		}
		return false
	}
	for _, b := range t.inputs {
		if !seen(b) {
			buffers = append(buffers, b)
		}
	}
	if !seen(t.output) {
		buffers = append(buffers, t.output)
	}
	if t.aggs != nil && !seen(t.aggs) {
		buffers = append(buffers, t.aggs)
	}
	return buffers
}

// executeTask runs the kernel body with the proper buffer acquisition:
// map-for-write on the outputs, map-for-read on the inputs, all released on
// every exit path. Inputs aliasing an output are covered by the write
// acquisition.
func (e *Engine) executeTask(fn kernelFn, t *task) error {
	t.output.mu.Lock()
	defer t.output.mu.Unlock()
	if t.aggs != nil && t.aggs != t.output {
		t.aggs.mu.Lock()
		defer t.aggs.mu.Unlock()
	}
	locked := []*Buffer{t.output, t.aggs}
	for _, input := range t.inputs {
		alreadyLocked := false
		for _, other := range locked {
			if input == other {
				alreadyLocked = true
				break
			}
		}
		if alreadyLocked {
			continue
		}
		locked = append(locked, input)
		input.mu.RLock()
		defer input.mu.RUnlock()
	}

	if err := fn(e, t); err != nil {
		return errors.WithMessagef(err, "while executing %s", t.sub.Op)
	}
	return nil
}

// dispatchDType is the element type the kernel table is indexed with:
// structural operations dispatch on the output dtype (they create data;
// ConvertDType kernels handle the input dtype internally), everything else
// on the first input's dtype.
func dispatchDType(sub *backends.Submission) dtypes.DType {
	if sub.Op.Family() == backends.FamilyStructural {
		return sub.Output.Shape.DType
	}
	if len(sub.Inputs) > 0 {
		return sub.Inputs[0].Shape.DType
	}
	return sub.Output.Shape.DType
}

// checkOperand validates one operand descriptor against its buffer.
func (e *Engine) checkOperand(operand backends.Operand, what string) (*Buffer, error) {
	if operand.Buffer == nil {
		return nil, numerr.Preconditionf("submission is missing its required %s buffer", what)
	}
	buffer, err := e.checkBuffer(operand.Buffer)
	if err != nil {
		return nil, err
	}
	if !operand.Shape.Ok() {
		return nil, numerr.Preconditionf("%s operand has an invalid shape", what)
	}
	if operand.Shape.DType != buffer.shape.DType {
		return nil, numerr.Typef("%s operand dtype %s does not match its buffer dtype %s",
			what, operand.Shape.DType, buffer.shape.DType)
	}
	if operand.Strides != nil && len(operand.Strides) != operand.Shape.Rank() {
		return nil, numerr.Preconditionf("%s operand has %d strides for rank %d",
			what, len(operand.Strides), operand.Shape.Rank())
	}
	for axis, stride := range operand.Strides {
		// Operands address forward from the buffer's first element; there is
		// no base offset that would make a negative stride reachable.
		if stride < 0 {
			return nil, numerr.Preconditionf("%s operand has negative stride %d on axis %d",
				what, stride, axis)
		}
	}
	if operand.Shape.Size() > 0 && maxFlatIndex(operand) >= buffer.shape.Size() {
		return nil, numerr.Shapef("%s operand %s (strides %v) overflows its buffer of %d elements",
			what, operand.Shape, operand.Strides, buffer.shape.Size())
	}
	return buffer, nil
}

// validateSubmission checks the whole submission -- arity, element types,
// shape arithmetic -- and resolves the kernel body. A mismatch here aborts
// the operation before any write happens.
func (e *Engine) validateSubmission(sub *backends.Submission) (*task, kernelFn, error) {
	if sub == nil {
		return nil, nil, numerr.Preconditionf("nil submission")
	}
	if sub.Op <= backends.OpTypeInvalid || sub.Op >= backends.OpTypeLast {
		return nil, nil, numerr.Preconditionf("invalid operation code %d", sub.Op)
	}
	info := sub.Op.Info()
	if len(sub.Inputs) != info.NumInputs {
		return nil, nil, numerr.Preconditionf("%s takes %d input(s), got %d",
			sub.Op, info.NumInputs, len(sub.Inputs))
	}
	if sub.Variant < backends.VariantSequential || sub.Variant >= backends.NumVariants {
		return nil, nil, numerr.Preconditionf("invalid execution variant %d", sub.Variant)
	}

	t := &task{sub: sub, inputs: make([]*Buffer, len(sub.Inputs))}
	var err error
	t.output, err = e.checkOperand(sub.Output, "output")
	if err != nil {
		return nil, nil, err
	}
	for i, input := range sub.Inputs {
		t.inputs[i], err = e.checkOperand(input, "input")
		if err != nil {
			return nil, nil, err
		}
	}

	if err := e.validateShapes(sub); err != nil {
		return nil, nil, err
	}

	// Elementwise kernels write through the output strides; every other
	// family writes natural row-major order.
	switch sub.Op.Family() {
	case backends.FamilyUnary, backends.FamilyBinary:
	default:
		if !isContiguous(sub.Output, sub.Output.Shape) {
			return nil, nil, numerr.Preconditionf("%s requires a contiguous output operand", sub.Op)
		}
	}

	if sub.Op.Family() == backends.FamilyScan && sub.Aggregates.Buffer != nil {
		t.aggs, err = e.checkOperand(sub.Aggregates, "aggregates")
		if err != nil {
			return nil, nil, err
		}
		if !isContiguous(sub.Aggregates, sub.Aggregates.Shape) {
			return nil, nil, numerr.Preconditionf("%s requires a contiguous aggregates operand", sub.Op)
		}
	}

	fn, variant, err := e.kernels.selectKernel(sub.Op, dispatchDType(sub), sub.Variant)
	if err != nil {
		return nil, nil, err
	}
	t.variant = variant
	return t, fn, nil
}

// validateShapes applies the per-family shape arithmetic.
func (e *Engine) validateShapes(sub *backends.Submission) error {
	out := sub.Output.Shape
	switch sub.Op.Family() {
	case backends.FamilyUnary:
		in := sub.Inputs[0].Shape
		if !in.EqualDimensions(out) {
			return numerr.Shapef("%s: input shape %s does not match output shape %s", sub.Op, in, out)
		}
		if in.DType != out.DType {
			return numerr.Typef("%s: input dtype %s does not match output dtype %s", sub.Op, in.DType, out.DType)
		}

	case backends.FamilyBinary:
		lhs, rhs := sub.Inputs[0].Shape, sub.Inputs[1].Shape
		if lhs.DType != rhs.DType {
			return numerr.Typef("%s: operand dtypes %s and %s differ; promote before submission",
				sub.Op, lhs.DType, rhs.DType)
		}
		broadcast, err := shapes.BroadcastShapes(lhs, rhs)
		if err != nil {
			return err
		}
		if !broadcast.EqualDimensions(out) {
			return numerr.Shapef("%s: broadcast of %s and %s is %s, not output shape %s",
				sub.Op, lhs, rhs, broadcast, out)
		}

	case backends.FamilyReduction:
		if out.Rank() != 0 {
			return numerr.Shapef("%s reduces to a singleton, output shape %s has rank %d",
				sub.Op, out, out.Rank())
		}
		if sub.Inputs[0].Shape.DType != out.DType {
			return numerr.Typef("%s: input dtype %s does not match output dtype %s",
				sub.Op, sub.Inputs[0].Shape.DType, out.DType)
		}

	case backends.FamilyScan:
		in := sub.Inputs[0].Shape
		if in.Rank() != 1 {
			return numerr.Shapef("%s operates on rank-1 arrays, got %s", sub.Op, in)
		}
		if !in.EqualDimensions(out) || in.DType != out.DType {
			return numerr.Shapef("%s: output shape %s must equal input shape %s", sub.Op, out, in)
		}
		if len(sub.Attrs.Partitions) > 0 {
			total := 0
			for i, partition := range sub.Attrs.Partitions {
				if partition < 0 {
					return numerr.Preconditionf("%s: partition #%d has negative length", sub.Op, i)
				}
				total += partition
			}
			if total != in.Size() {
				return numerr.Shapef("%s: partitions sum to %d, input has %d elements",
					sub.Op, total, in.Size())
			}
			if sub.Aggregates.Buffer != nil {
				aggs := sub.Aggregates.Shape
				if aggs.Rank() != 1 || aggs.Dimensions[0] != len(sub.Attrs.Partitions) || aggs.DType != in.DType {
					return numerr.Shapef("%s: aggregates shape %s, want (%s)[%d]",
						sub.Op, aggs, in.DType, len(sub.Attrs.Partitions))
				}
			}
		} else if sub.Aggregates.Buffer != nil {
			return numerr.Preconditionf("%s: aggregates supplied without explicit partitions", sub.Op)
		}

	case backends.FamilyLinalg:
		if err := validateLinalgShapes(sub); err != nil {
			return err
		}

	case backends.FamilyStructural:
		return validateStructuralShapes(sub)
	}
	return nil
}

func validateLinalgShapes(sub *backends.Submission) error {
	out := sub.Output.Shape
	switch sub.Op {
	case backends.OpTypeMatMul:
		lhs, rhs := sub.Inputs[0].Shape, sub.Inputs[1].Shape
		if lhs.Rank() != 2 || rhs.Rank() != 2 {
			return numerr.Shapef("MatMul requires rank-2 operands, got %s and %s", lhs, rhs)
		}
		if lhs.Dimensions[1] != rhs.Dimensions[0] {
			return numerr.Shapef("MatMul inner dimensions do not match: %s x %s", lhs, rhs)
		}
		if lhs.DType != rhs.DType {
			return numerr.Typef("MatMul operand dtypes %s and %s differ", lhs.DType, rhs.DType)
		}
		want := shapes.Make(lhs.DType, lhs.Dimensions[0], rhs.Dimensions[1])
		if !out.Equal(want) {
			return numerr.Shapef("MatMul of %s x %s produces %s, output is %s", lhs, rhs, want, out)
		}
	case backends.OpTypeCholesky:
		in := sub.Inputs[0].Shape
		if in.Rank() != 2 || in.Dimensions[0] != in.Dimensions[1] {
			return numerr.Shapef("Cholesky requires a square rank-2 matrix, got %s", in)
		}
		if !out.Equal(in) {
			return numerr.Shapef("Cholesky output shape %s must equal input shape %s", out, in)
		}
	}
	return nil
}

func validateStructuralShapes(sub *backends.Submission) error {
	out := sub.Output.Shape
	switch sub.Op {
	case backends.OpTypeFill, backends.OpTypeRandomUniform:
		// Any output shape.
	case backends.OpTypeEye:
		if out.Rank() != 2 {
			return numerr.Shapef("Eye produces a rank-2 matrix, output shape is %s", out)
		}
	case backends.OpTypeTril, backends.OpTypeTriu:
		in := sub.Inputs[0].Shape
		if out.Rank() < 2 {
			return numerr.Shapef("%s requires a rank >= 2 output, got %s", sub.Op, out)
		}
		if in.DType != out.DType {
			return numerr.Typef("%s: input dtype %s does not match output dtype %s", sub.Op, in.DType, out.DType)
		}
		// The input broadcasts to the output (rank-1 inputs become square
		// matrices by broadcasting across rows).
		broadcast, err := shapes.BroadcastShapes(in, out)
		if err != nil {
			return err
		}
		if !broadcast.EqualDimensions(out) {
			return numerr.Shapef("%s: input shape %s does not broadcast to output shape %s", sub.Op, in, out)
		}
	case backends.OpTypeConvertDType:
		in := sub.Inputs[0].Shape
		if !in.EqualDimensions(out) {
			return numerr.Shapef("ConvertDType: output shape %s must have input dimensions %s", out, in)
		}
		if !shapes.SupportedDType(in.DType) {
			return numerr.Typef("ConvertDType: input dtype %s is not supported", in.DType)
		}
	}
	return nil
}
