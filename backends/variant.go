package backends

// Variant is the execution strategy a kernel body is specialized for.
//
// The order of the constants is the degradation order: when the requested
// variant has no kernel body for a given (operation, element type), the
// dispatcher falls back transparently towards VariantSequential --
// correctness over strict variant adherence. A sequential body is mandatory
// for every supported (operation, element type) pair, so fallback always
// terminates.
type Variant int

const (
	// VariantSequential runs the kernel on the submitting worker, in one
	// goroutine.
	VariantSequential Variant = iota

	// VariantParallelLoop partitions the iteration space into disjoint
	// sub-ranges, one per worker; workers never write overlapping output
	// regions.
	VariantParallelLoop

	// VariantAccelerator submits to the asynchronous device queue.
	// Completion is observable via Backend.Wait; dependency tracking across
	// submissions is the engine's job.
	VariantAccelerator

	// NumVariants is a sentinel, keep it last.
	NumVariants
)

func (v Variant) String() string {
	switch v {
	case VariantSequential:
		return "sequential"
	case VariantParallelLoop:
		return "parallel-loop"
	case VariantAccelerator:
		return "accelerator"
	}
	return "invalid-variant"
}

// FallbackOrder returns the variants to try, most preferred first: the
// requested variant, then each cheaper variant down to sequential. E.g. for
// VariantAccelerator it returns [accelerator, parallel-loop, sequential].
func (v Variant) FallbackOrder() []Variant {
	order := make([]Variant, 0, NumVariants)
	for candidate := v; candidate >= VariantSequential; candidate-- {
		order = append(order, candidate)
	}
	return order
}
