package taskgo

import (
	"runtime"
	"sync"

	"github.com/x448/float16"
	"golang.org/x/exp/constraints"
)

// podNumeric covers the Go plain-old-data numeric types that kernels can
// operate on natively.
type podNumeric interface {
	constraints.Integer | constraints.Float
}

// podSigned are the types where unary minus means negation (not wraparound).
type podSigned interface {
	constraints.Signed | constraints.Float
}

// numeric additionally admits the complex types; +, -, * and / work for the
// whole set.
type numeric interface {
	constraints.Integer | constraints.Float | constraints.Complex
}

// f16Unary lifts a float32 function to Float16 operands: half-precision
// arithmetic goes through single precision, as there is no native Go
// float16.
func f16Unary(fn func(float32) float32) func(float16.Float16) float16.Float16 {
	return func(v float16.Float16) float16.Float16 {
		return float16.Fromfloat32(fn(v.Float32()))
	}
}

// f16Binary lifts a float32 binary function to Float16 operands.
func f16Binary(fn func(a, b float32) float32) func(a, b float16.Float16) float16.Float16 {
	return func(a, b float16.Float16) float16.Float16 {
		return float16.Fromfloat32(fn(a.Float32(), b.Float32()))
	}
}

func absolute[T podSigned](v T) T {
	if v < 0 {
		return -v
	}
	return v
}

// fmax propagates NaN, like its NumPy counterpart: the v != v comparison is
// the NaN test.
func fmax[T constraints.Float](a, b T) T {
	if a != a {
		return a
	}
	if b != b {
		return b
	}
	if a > b {
		return a
	}
	return b
}

func fmin[T constraints.Float](a, b T) T {
	if a != a {
		return a
	}
	if b != b {
		return b
	}
	if a < b {
		return a
	}
	return b
}

func omax[T constraints.Integer](a, b T) T {
	if a > b {
		return a
	}
	return b
}

func omin[T constraints.Integer](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// minParallelChunk is the smallest per-worker sub-range worth the
// goroutine overhead.
const minParallelChunk = 1024

// splitRange partitions [0, size) into roughly equal disjoint sub-ranges,
// at most one per available worker. It always returns at least one range,
// possibly empty.
func (e *Engine) splitRange(size int) [][2]int {
	workers := e.workers.MaxParallelism()
	if workers < 0 {
		workers = runtime.NumCPU()
	}
	if workers < 1 {
		workers = 1
	}
	if maxUseful := (size + minParallelChunk - 1) / minParallelChunk; workers > maxUseful {
		workers = maxUseful
	}
	if workers < 1 {
		workers = 1
	}
	ranges := make([][2]int, 0, workers)
	chunk, remainder := size/workers, size%workers
	from := 0
	for i := 0; i < workers; i++ {
		to := from + chunk
		if i < remainder {
			to++
		}
		ranges = append(ranges, [2]int{from, to})
		from = to
	}
	return ranges
}

// runRanges executes fn once per sub-range, in parallel when workers are
// available, inline otherwise. The sub-ranges are disjoint, so workers never
// write overlapping output regions and no locking is needed in the bodies.
func (e *Engine) runRanges(ranges [][2]int, fn func(part, from, to int)) {
	if len(ranges) == 1 {
		fn(0, ranges[0][0], ranges[0][1])
		return
	}
	var wg sync.WaitGroup
	wg.Add(len(ranges))
	for part, r := range ranges {
		work := func() {
			defer wg.Done()
			fn(part, r[0], r[1])
		}
		if !e.workers.StartIfAvailable(work) {
			work()
		}
	}
	wg.Wait()
}

// pinnedNumericCall runs fn while holding the engine's single-slot numeric
// gate. Kernels invoked from an already-parallelized outer context use it
// around calls into the external numeric library, pinning the library's
// effective thread count to one so it cannot oversubscribe the workers
// pool.
func (e *Engine) pinnedNumericCall(fn func() error) error {
	e.numericGate <- struct{}{}
	defer func() { <-e.numericGate }()
	return fn()
}
