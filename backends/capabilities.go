package backends

import (
	"github.com/gomlx/gopjrt/dtypes"
)

// Capabilities describe what an engine can execute: the operations it
// implements and the element types it stores.
type Capabilities struct {
	// Operations supported by the engine.
	Operations map[OpType]bool

	// DTypes (element types) supported by the engine.
	DTypes map[dtypes.DType]bool
}

// Supports returns whether the engine implements op for dtype: the engine
// must support both, and the operation registry must allow the combination.
func (c Capabilities) Supports(op OpType, dtype dtypes.DType) bool {
	return c.Operations[op] && c.DTypes[dtype] && op.SupportsDType(dtype)
}

// Clone returns a deep copy of the capabilities.
func (c Capabilities) Clone() Capabilities {
	c2 := Capabilities{
		Operations: make(map[OpType]bool, len(c.Operations)),
		DTypes:     make(map[dtypes.DType]bool, len(c.DTypes)),
	}
	for op, supported := range c.Operations {
		c2.Operations[op] = supported
	}
	for dtype, supported := range c.DTypes {
		c2.DTypes[dtype] = supported
	}
	return c2
}
