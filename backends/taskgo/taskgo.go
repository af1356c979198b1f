// Package taskgo implements the in-process, pure-Go execution engine for
// numforge arrays.
//
// The engine resolves each submission -- a (operation, element type,
// execution variant) unit of work -- to a kernel body through two levels of
// dispatch: a type dispatcher (fixed-size function table indexed by the
// dtype tag, exhaustively populated for the closed supported set) and a
// variant dispatcher (per-operation table over sequential, parallel-loop and
// accelerator bodies, with a fixed degrade-down fallback order).
//
// Kernel registration happens once, explicitly and in a fixed order, inside
// New; after registration the engine verifies that every supported
// (operation, element type) pair has at least a sequential body, so a gap
// fails at construction time rather than at some later dispatch.
package taskgo

import (
	"math/rand/v2"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/shapes"
	"k8s.io/klog/v2"
)

// EngineName to identify this engine in logs and errors.
const EngineName = "taskgo"

// Capabilities of the taskgo engine: every operation in the registry, over
// the whole supported element-type set.
var Capabilities = backends.Capabilities{
	Operations: func() map[backends.OpType]bool {
		ops := make(map[backends.OpType]bool)
		for op := backends.OpTypeInvalid + 1; op < backends.OpTypeLast; op++ {
			ops[op] = true
		}
		return ops
	}(),
	DTypes: func() map[dtypes.DType]bool {
		supported := make(map[dtypes.DType]bool)
		for _, dtype := range shapes.SupportedDTypes() {
			supported[dtype] = true
		}
		return supported
	}(),
}

// Engine is the pure-Go execution engine. It owns all buffer storage and a
// pool of workers; see package documentation for the dispatch model.
//
// Create it with New and dispose of it with Finalize.
type Engine struct {
	workers workersPool
	kernels kernelTable
	device  *device

	// bufferPools maps bufferPoolKey to *sync.Pool of *Buffer.
	bufferPools sync.Map

	// pooledBytes tracks the total storage handed out, for logging only.
	pooledBytes int64

	// numericGate serializes calls into the external numeric library when
	// they happen inside an already-parallelized context: the library's
	// effective thread count is pinned to one, to avoid oversubscribing the
	// workers pool.
	numericGate chan struct{}

	rngMu sync.Mutex
	rng   *rand.Rand
}

var _ backends.Backend = (*Engine)(nil)

// Option configures the engine at construction.
type Option func(*config)

type config struct {
	maxParallelism int
	queueDepth     int
	seed           uint64
}

// WithMaxParallelism sets the soft limit of parallel work. Zero disables
// parallelism (parallel-loop submissions degrade to sequential execution),
// negative means unlimited. The default is the number of CPUs.
func WithMaxParallelism(n int) Option {
	return func(c *config) { c.maxParallelism = n }
}

// WithQueueDepth sets the initial capacity of the accelerator submission
// queue.
func WithQueueDepth(n int) Option {
	return func(c *config) { c.queueDepth = n }
}

// WithSeed fixes the seed used by RandomUniform, for reproducible tests.
func WithSeed(seed uint64) Option {
	return func(c *config) { c.seed = seed }
}

// New creates an Engine: it builds the kernel table with one explicit,
// ordered registration pass, verifies the table is complete for the
// engine's capabilities, and starts the accelerator device loop.
func New(options ...Option) (*Engine, error) {
	cfg := &config{maxParallelism: -2, queueDepth: 16, seed: 0}
	for _, option := range options {
		option(cfg)
	}

	e := &Engine{
		numericGate: make(chan struct{}, 1),
		rng:         rand.New(rand.NewPCG(cfg.seed, cfg.seed^0x9e3779b97f4a7c15)),
	}
	e.workers.Initialize()
	if cfg.maxParallelism != -2 {
		e.workers.SetMaxParallelism(cfg.maxParallelism)
	}

	registerAllKernels(&e.kernels)
	if err := e.kernels.verifyComplete(Capabilities); err != nil {
		return nil, err
	}
	e.device = newDevice(e, cfg.queueDepth)

	klog.V(1).Infof("%s: engine created, %d operations x %d dtypes, max parallelism %d",
		EngineName, len(Capabilities.Operations), len(Capabilities.DTypes), e.workers.MaxParallelism())
	return e, nil
}

// Name returns the engine's short name.
func (e *Engine) Name() string { return EngineName }

// Description is a longer description of the engine, for pretty-printing.
func (e *Engine) Description() string {
	return "NumForge pure-Go task engine"
}

// String implements fmt.Stringer.
func (e *Engine) String() string { return EngineName }

// Capabilities returns the set of operations and element types the engine
// supports.
func (e *Engine) Capabilities() backends.Capabilities {
	return Capabilities.Clone()
}

// Finalize drains the accelerator queue and releases engine resources. The
// engine must not be used afterwards.
func (e *Engine) Finalize() {
	e.device.shutdown()
	e.bufferPools.Clear()
	klog.V(1).Infof("%s: engine finalized, %s of pooled storage dropped",
		EngineName, humanize.Bytes(uint64(max(e.pooledBytes, 0))))
}
