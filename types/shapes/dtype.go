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

package shapes

import (
	"slices"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/numforge/numforge/types/numerr"
)

// supportedDTypes is the closed set of element types numforge arrays can
// hold. The dtypes enumeration contains more tags (e.g. BFloat16, sub-byte
// ints); anything outside this list fails dispatch with a TypeError.
var supportedDTypes = []dtypes.DType{
	dtypes.Bool,
	dtypes.Int8, dtypes.Int16, dtypes.Int32, dtypes.Int64,
	dtypes.Uint8, dtypes.Uint16, dtypes.Uint32, dtypes.Uint64,
	dtypes.Float16, dtypes.Float32, dtypes.Float64,
	dtypes.Complex64, dtypes.Complex128,
}

// SupportedDTypes returns the closed set of element types numforge supports,
// in a fixed order. The returned slice is a copy and can be modified.
func SupportedDTypes() []dtypes.DType {
	return slices.Clone(supportedDTypes)
}

// SupportedDType returns whether dtype belongs to the closed set of element
// types numforge arrays can hold.
func SupportedDType(dtype dtypes.DType) bool {
	return slices.Contains(supportedDTypes, dtype)
}

// dtypeKind orders element types by "kind" for promotion purposes.
type dtypeKind int

const (
	kindInvalid dtypeKind = iota
	kindBool
	kindUint
	kindInt
	kindFloat
	kindComplex
)

func kindOf(dtype dtypes.DType) dtypeKind {
	switch {
	case dtype == dtypes.Bool:
		return kindBool
	case dtype.IsComplex():
		return kindComplex
	case dtype.IsFloat():
		return kindFloat
	case dtype.IsUnsigned():
		return kindUint
	case dtype.IsInt():
		return kindInt
	}
	return kindInvalid
}

func floatForBits(bits int) dtypes.DType {
	switch {
	case bits <= 16:
		return dtypes.Float16
	case bits <= 32:
		return dtypes.Float32
	}
	return dtypes.Float64
}

func intForBits(bits int) dtypes.DType {
	switch {
	case bits <= 8:
		return dtypes.Int8
	case bits <= 16:
		return dtypes.Int16
	case bits <= 32:
		return dtypes.Int32
	}
	return dtypes.Int64
}

// PromoteDTypes returns the element type that can represent the values of
// both inputs, following the NumPy kind/width ladder:
//
//   - Equal types promote to themselves; Bool promotes to the other type.
//   - Same-kind types promote to the wider of the two.
//   - Signed × unsigned: the signed type wide enough to hold the unsigned
//     one; Uint64 mixed with any signed integer promotes to Float64, since
//     no integer type holds both.
//   - Integer × float promotes to a float at least as wide as the float
//     operand, widened until the integer fits: Int8 × Float16 gives Float16,
//     Int16 × Float16 gives Float32, and any 32/64-bit integer against a
//     half or single float gives Float64.
//   - Anything × complex gives a complex wide enough for both.
//
// The result is never narrower than either input: output element types are
// never implicitly narrowed.
func PromoteDTypes(a, b dtypes.DType) (dtypes.DType, error) {
	for _, dtype := range [2]dtypes.DType{a, b} {
		if !SupportedDType(dtype) {
			return dtypes.InvalidDType, numerr.Typef("dtype %s is not in the supported element-type set", dtype)
		}
	}
	if a == b {
		return a, nil
	}
	kindA, kindB := kindOf(a), kindOf(b)
	// Order so that kindA <= kindB, with ties broken by size.
	if kindA > kindB || (kindA == kindB && a.Size() > b.Size()) {
		a, b = b, a
		kindA, kindB = kindB, kindA
	}
	bitsA, bitsB := a.Size()*8, b.Size()*8

	switch kindB {
	case kindBool:
		return b, nil // Both bool (a == b was handled above).

	case kindUint, kindInt:
		if kindA == kindBool || kindA == kindB {
			return b, nil
		}
		// Signed × unsigned.
		unsigned, signed := a, b
		if kindA == kindInt {
			unsigned, signed = b, a
		}
		if unsigned == dtypes.Uint64 {
			// No signed integer holds Uint64.
			return dtypes.Float64, nil
		}
		return intForBits(max(signed.Size()*8, unsigned.Size()*16)), nil

	case kindFloat:
		if kindA == kindBool || kindA == kindFloat {
			return b, nil
		}
		// Integer × float: floats of less than 64 bits cannot hold 32/64-bit
		// integers exactly, NumPy widens all the way to Float64 in that case.
		if bitsA >= 32 {
			return dtypes.Float64, nil
		}
		return floatForBits(max(bitsB, bitsA*2)), nil

	case kindComplex:
		switch kindA {
		case kindBool:
			return b, nil
		case kindComplex:
			return b, nil
		case kindFloat:
			if bitsA > 32 { // Complex64 holds two Float32.
				return dtypes.Complex128, nil
			}
			return b, nil
		default: // Integers.
			if bitsA >= 32 {
				return dtypes.Complex128, nil
			}
			return b, nil
		}
	}
	return dtypes.InvalidDType, numerr.Typef("cannot promote dtypes %s and %s", a, b)
}

// CanConvertWithoutNarrowing reports whether values of dtype from can be
// stored as dtype to without losing range or precision class. It is used to
// refuse implicit narrowing into explicitly supplied output arrays.
func CanConvertWithoutNarrowing(from, to dtypes.DType) bool {
	promoted, err := PromoteDTypes(from, to)
	if err != nil {
		return false
	}
	return promoted == to
}
