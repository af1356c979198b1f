/*
 *	Copyright 2024 The NumForge Authors
 *
 *	Licensed under the Apache License, Version 2.0 (the "License");
 *	you may not use this file except in compliance with the License.
 *	You may obtain a copy of the License at
 *
 *	http://www.apache.org/licenses/LICENSE-2.0
 *
 *	Unless required by applicable law or agreed to in writing, software
 *	distributed under the License is distributed on an "AS IS" BASIS,
 *	WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *	See the License for the specific language governing permissions and
 *	limitations under the License.
 */

// Package arrays is the user-facing façade over the execution engines: typed
// n-dimensional array handles, factories, and the NumPy-style operations on
// them.
//
// An Array owns one reference to an engine buffer. All validation -- shape
// arithmetic, element-type admission, promotion -- happens here or in the
// engine before anything is written, so a failed operation never leaves a
// partially written output behind.
package arrays

import (
	"reflect"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

// Context binds a backend and the execution variant used for the
// submissions it creates. Contexts are cheap values; use WithVariant to
// derive one with a different variant.
type Context struct {
	backend backends.Backend
	variant backends.Variant
}

// NewContext creates a Context submitting parallel-loop work by default.
func NewContext(backend backends.Backend) *Context {
	if backend == nil {
		exceptions.Panicf("arrays.NewContext: nil backend")
	}
	return &Context{backend: backend, variant: backends.VariantParallelLoop}
}

// WithVariant derives a Context requesting the given execution variant.
// Engines degrade a variant they have no kernel body for, so this is a
// request, not a guarantee.
func (c *Context) WithVariant(variant backends.Variant) *Context {
	derived := *c
	derived.variant = variant
	return &derived
}

// Backend returns the backend this context submits to.
func (c *Context) Backend() backends.Backend { return c.backend }

// Array is a handle on an engine buffer plus its logical shape. It holds one
// reference on the buffer; Release returns it.
type Array struct {
	ctx    *Context
	buffer backends.Buffer
	shape  shapes.Shape
}

// Shape of the array.
func (a *Array) Shape() shapes.Shape { return a.shape }

// DType of the array's elements.
func (a *Array) DType() dtypes.DType { return a.shape.DType }

// Rank of the array.
func (a *Array) Rank() int { return a.shape.Rank() }

// Size is the number of elements.
func (a *Array) Size() int { return a.shape.Size() }

// Release drops the handle's reference on its buffer. The array must not be
// used afterwards.
func (a *Array) Release() error {
	if a == nil || a.buffer == nil {
		return nil
	}
	err := a.ctx.backend.BufferRelease(a.buffer)
	a.buffer = nil
	return err
}

// Wait blocks until pending asynchronous work writing this array completes,
// returning its error, if any. Only accelerator submissions are
// asynchronous.
func (a *Array) Wait() error {
	return a.ctx.backend.Wait(a.buffer)
}

// ConstFlatData calls accessFn with the array's flat data for reading; the
// data must not escape accessFn.
func (a *Array) ConstFlatData(accessFn func(flat any)) error {
	return a.ctx.backend.ConstFlatData(a.buffer, accessFn)
}

// FlatCopy returns a copy of the flat data, as a slice of the dtype's Go
// type.
func (a *Array) FlatCopy() (any, error) {
	var flatCopy any
	err := a.ctx.backend.ConstFlatData(a.buffer, func(flat any) {
		source := reflect.ValueOf(flat)
		target := reflect.MakeSlice(source.Type(), source.Len(), source.Len())
		reflect.Copy(target, source)
		flatCopy = target.Interface()
	})
	if err != nil {
		return nil, err
	}
	return flatCopy, nil
}

// Value returns the single element of a size-1 array.
func (a *Array) Value() (any, error) {
	if a.Size() != 1 {
		return nil, numerr.Preconditionf("Value requires a single-element array, shape is %s", a.shape)
	}
	var value any
	err := a.ctx.backend.ConstFlatData(a.buffer, func(flat any) {
		value = reflect.ValueOf(flat).Index(0).Interface()
	})
	if err != nil {
		return nil, err
	}
	return value, nil
}

// operand is the submission descriptor for the array. Façade arrays are
// always contiguous, so strides are left nil.
func (a *Array) operand() backends.Operand {
	return backends.Operand{Buffer: a.buffer, Shape: a.shape}
}

// newArray allocates a zero-initialized array of the given shape.
func (c *Context) newArray(shape shapes.Shape) (*Array, error) {
	buffer, err := c.backend.NewBuffer(shape)
	if err != nil {
		return nil, err
	}
	return &Array{ctx: c, buffer: buffer, shape: shape.Clone()}, nil
}

// submit builds and submits one operation, releasing nothing: the caller
// owns cleanup on error.
func (c *Context) submit(op backends.OpType, inputs []*Array, output *Array, aggregates *Array, attrs backends.Attributes) error {
	sub := &backends.Submission{
		Op:      op,
		Variant: c.variant,
		Inputs:  make([]backends.Operand, len(inputs)),
		Output:  output.operand(),
		Attrs:   attrs,
	}
	for i, input := range inputs {
		sub.Inputs[i] = input.operand()
	}
	if aggregates != nil {
		sub.Aggregates = aggregates.operand()
	}
	return c.backend.Submit(sub)
}

// FromFlat creates an array from a flat slice in row-major order. The slice
// must be of the Go type corresponding to dtype and its length must match
// the product of dims. The data is copied.
func (c *Context) FromFlat(dtype dtypes.DType, flat any, dims ...int) (*Array, error) {
	if !shapes.SupportedDType(dtype) {
		return nil, numerr.Typef("FromFlat: dtype %s is not in the supported element-type set", dtype)
	}
	value := reflect.ValueOf(flat)
	if flat == nil || value.Kind() != reflect.Slice || value.Type().Elem() != dtype.GoType() {
		return nil, numerr.Typef("FromFlat: flat data must be a []%s slice for dtype %s, got %T",
			dtype.GoType(), dtype, flat)
	}
	shape := shapes.Make(dtype, dims...)
	if value.Len() != shape.Size() {
		return nil, numerr.Shapef("FromFlat: %d elements for shape %s (%d elements)",
			value.Len(), shape, shape.Size())
	}
	a, err := c.newArray(shape)
	if err != nil {
		return nil, err
	}
	err = c.backend.MutableFlatData(a.buffer, func(dst any) {
		reflect.Copy(reflect.ValueOf(dst), value)
	})
	if err != nil {
		_ = a.Release()
		return nil, err
	}
	return a, nil
}

// FromValue creates a scalar (rank-0) array from a Go value; the dtype is
// inferred from the value's type.
func (c *Context) FromValue(value any) (*Array, error) {
	if value == nil {
		return nil, numerr.Typef("FromValue: nil value")
	}
	dtype := dtypes.FromGoType(reflect.TypeOf(value))
	if dtype == dtypes.InvalidDType || !shapes.SupportedDType(dtype) {
		return nil, numerr.Typef("FromValue: unsupported value type %T", value)
	}
	a, err := c.newArray(shapes.Make(dtype))
	if err != nil {
		return nil, err
	}
	err = c.backend.MutableFlatData(a.buffer, func(dst any) {
		reflect.ValueOf(dst).Index(0).Set(reflect.ValueOf(value))
	})
	if err != nil {
		_ = a.Release()
		return nil, err
	}
	return a, nil
}

// Zeros creates a zero-valued array.
func (c *Context) Zeros(dtype dtypes.DType, dims ...int) (*Array, error) {
	if !shapes.SupportedDType(dtype) {
		return nil, numerr.Typef("Zeros: dtype %s is not in the supported element-type set", dtype)
	}
	return c.newArray(shapes.Make(dtype, dims...))
}

// Ones creates an array filled with ones.
func (c *Context) Ones(dtype dtypes.DType, dims ...int) (*Array, error) {
	if dtype == dtypes.Bool || !shapes.SupportedDType(dtype) {
		return nil, numerr.Typef("Ones: dtype %s has no one value", dtype)
	}
	return c.Full(oneValueOf(dtype), dims...)
}

// Full creates an array filled with the given value; the dtype is inferred
// from the value's type.
func (c *Context) Full(value any, dims ...int) (*Array, error) {
	if value == nil {
		return nil, numerr.Typef("Full: nil fill value")
	}
	dtype := dtypes.FromGoType(reflect.TypeOf(value))
	if dtype == dtypes.InvalidDType || !shapes.SupportedDType(dtype) {
		return nil, numerr.Typef("Full: unsupported fill value type %T", value)
	}
	a, err := c.newArray(shapes.Make(dtype, dims...))
	if err != nil {
		return nil, err
	}
	err = c.submit(backends.OpTypeFill, nil, a, nil, backends.Attributes{FillValue: value})
	if err != nil {
		_ = a.Release()
		return nil, err
	}
	return a, nil
}

// Eye creates the [rows, cols] matrix with ones on the k-th diagonal
// (positive k above the main diagonal) and zeros elsewhere.
func (c *Context) Eye(dtype dtypes.DType, rows, cols, k int) (*Array, error) {
	a, err := c.newArray(shapes.Make(dtype, rows, cols))
	if err != nil {
		return nil, err
	}
	err = c.submit(backends.OpTypeEye, nil, a, nil, backends.Attributes{DiagonalOffset: k})
	if err != nil {
		_ = a.Release()
		return nil, err
	}
	return a, nil
}

// RandomUniform creates an array of uniform draws from [0, 1) using the
// engine's seeded stream. Float dtypes only.
func (c *Context) RandomUniform(dtype dtypes.DType, dims ...int) (*Array, error) {
	return c.randomUniform(dtype, 0, dims)
}

// RandomUniformSeeded is RandomUniform with an explicit non-zero seed,
// making the draw reproducible independently of the engine's stream.
func (c *Context) RandomUniformSeeded(dtype dtypes.DType, seed uint64, dims ...int) (*Array, error) {
	if seed == 0 {
		return nil, numerr.Preconditionf("RandomUniformSeeded: seed must be non-zero")
	}
	return c.randomUniform(dtype, seed, dims)
}

func (c *Context) randomUniform(dtype dtypes.DType, seed uint64, dims []int) (*Array, error) {
	a, err := c.newArray(shapes.Make(dtype, dims...))
	if err != nil {
		return nil, err
	}
	err = c.submit(backends.OpTypeRandomUniform, nil, a, nil, backends.Attributes{Seed: seed})
	if err != nil {
		_ = a.Release()
		return nil, err
	}
	return a, nil
}

// oneValueOf returns the Go value 1 for a numeric dtype.
func oneValueOf(dtype dtypes.DType) any {
	if dtype == dtypes.Float16 {
		return float16.Fromfloat32(1)
	}
	one := reflect.New(dtype.GoType()).Elem()
	switch {
	case dtype.IsComplex():
		one.SetComplex(1)
	case dtype.IsFloat():
		one.SetFloat(1)
	case dtype.IsUnsigned():
		one.SetUint(1)
	default:
		one.SetInt(1)
	}
	return one.Interface()
}
