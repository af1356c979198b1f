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

package arrays

import (
	"sort"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/x448/float16"

	"github.com/numforge/numforge/backends"
	"github.com/numforge/numforge/types/numerr"
)

// ScanFixup completes a scan from LocalScan results: it applies the
// exclusive prefix of the per-partition aggregates to each partition's local
// scan, reconstructing the full inclusive scan. This is the driver-side
// global phase that LocalScan leaves out.
func ScanFixup(op backends.OpType, scanned, aggregates *Array, partitions []int) (*Array, error) {
	mustFamily(op, backends.FamilyScan)
	mustArray(scanned, "scanned")
	mustArray(aggregates, "aggregates")
	if scanned.Rank() != 1 {
		return nil, numerr.Shapef("ScanFixup operates on rank-1 arrays, got %s", scanned.shape)
	}
	if scanned.DType() != aggregates.DType() {
		return nil, numerr.Typef("ScanFixup: scanned dtype %s does not match aggregates dtype %s",
			scanned.DType(), aggregates.DType())
	}
	if aggregates.Size() != len(partitions) {
		return nil, numerr.Shapef("ScanFixup: %d aggregates for %d partitions",
			aggregates.Size(), len(partitions))
	}
	total := 0
	for i, partition := range partitions {
		if partition < 0 {
			return nil, numerr.Preconditionf("ScanFixup: partition #%d has negative length", i)
		}
		total += partition
	}
	if total != scanned.Size() {
		return nil, numerr.Shapef("ScanFixup: partitions sum to %d, scanned array has %d elements",
			total, scanned.Size())
	}

	var fixed any
	var innerErr error
	err := scanned.ConstFlatData(func(flat any) {
		innerErr = aggregates.ConstFlatData(func(aggsFlat any) {
			fixed = fixupFlat(op, flat, aggsFlat, partitions)
		})
	})
	if err == nil {
		err = innerErr
	}
	if err != nil {
		return nil, err
	}
	if fixed == nil {
		return nil, numerr.Typef("ScanFixup: unhandled element type %s", scanned.DType())
	}
	return scanned.ctx.FromFlat(scanned.DType(), fixed, scanned.Size())
}

func combineAdd[T numeric](a, b T) T { return a + b }
func combineMul[T numeric](a, b T) T { return a * b }

// numeric mirrors the kernel-side constraint for the host-side fix-up.
type numeric interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64 | ~complex64 | ~complex128
}

func combineFor[T numeric](op backends.OpType) func(a, b T) T {
	if op == backends.OpTypeCumProd {
		return combineMul[T]
	}
	return combineAdd[T]
}

func combineF16For(op backends.OpType) func(a, b float16.Float16) float16.Float16 {
	inner := combineFor[float32](op)
	return func(a, b float16.Float16) float16.Float16 {
		return float16.Fromfloat32(inner(a.Float32(), b.Float32()))
	}
}

func fixupSlice[T any](scanned, aggregates []T, partitions []int, combine func(a, b T) T) []T {
	out := make([]T, len(scanned))
	copy(out, scanned)
	if len(partitions) == 0 {
		return out
	}
	from := partitions[0]
	prefix := aggregates[0]
	for p := 1; p < len(partitions); p++ {
		for i := from; i < from+partitions[p]; i++ {
			out[i] = combine(prefix, out[i])
		}
		prefix = combine(prefix, aggregates[p])
		from += partitions[p]
	}
	return out
}

func fixupFlat(op backends.OpType, scanned, aggregates any, partitions []int) any {
	switch data := scanned.(type) {
	case []int8:
		return fixupSlice(data, aggregates.([]int8), partitions, combineFor[int8](op))
	case []int16:
		return fixupSlice(data, aggregates.([]int16), partitions, combineFor[int16](op))
	case []int32:
		return fixupSlice(data, aggregates.([]int32), partitions, combineFor[int32](op))
	case []int64:
		return fixupSlice(data, aggregates.([]int64), partitions, combineFor[int64](op))
	case []uint8:
		return fixupSlice(data, aggregates.([]uint8), partitions, combineFor[uint8](op))
	case []uint16:
		return fixupSlice(data, aggregates.([]uint16), partitions, combineFor[uint16](op))
	case []uint32:
		return fixupSlice(data, aggregates.([]uint32), partitions, combineFor[uint32](op))
	case []uint64:
		return fixupSlice(data, aggregates.([]uint64), partitions, combineFor[uint64](op))
	case []float16.Float16:
		return fixupSlice(data, aggregates.([]float16.Float16), partitions, combineF16For(op))
	case []float32:
		return fixupSlice(data, aggregates.([]float32), partitions, combineFor[float32](op))
	case []float64:
		return fixupSlice(data, aggregates.([]float64), partitions, combineFor[float64](op))
	case []complex64:
		return fixupSlice(data, aggregates.([]complex64), partitions, combineFor[complex64](op))
	case []complex128:
		return fixupSlice(data, aggregates.([]complex128), partitions, combineFor[complex128](op))
	}
	return nil
}

// Unique returns the sorted distinct values of the array as a rank-1 array.
// Floats sort NaN last and keep at most one NaN; complex values sort
// lexicographically by (real, imag).
func (a *Array) Unique() (*Array, error) {
	mustArray(a, "operand")
	var unique any
	err := a.ConstFlatData(func(flat any) {
		unique = uniqueFlat(flat)
	})
	if err != nil {
		return nil, err
	}
	if unique == nil {
		return nil, numerr.Typef("Unique: unhandled element type %s", a.DType())
	}
	return a.ctx.FromFlat(a.DType(), unique, sliceLen(unique))
}

// Nonzero returns the row-major flat indices of the nonzero (or true)
// elements, as a rank-1 Int64 array.
func (a *Array) Nonzero() (*Array, error) {
	mustArray(a, "operand")
	var indices []int64
	err := a.ConstFlatData(func(flat any) {
		indices = nonzeroIndices(flat)
	})
	if err != nil {
		return nil, err
	}
	if indices == nil {
		return nil, numerr.Typef("Nonzero: unhandled element type %s", a.DType())
	}
	return a.ctx.FromFlat(dtypes.Int64, indices, len(indices))
}

func sliceLen(flat any) int {
	switch data := flat.(type) {
	case []bool:
		return len(data)
	case []int8:
		return len(data)
	case []int16:
		return len(data)
	case []int32:
		return len(data)
	case []int64:
		return len(data)
	case []uint8:
		return len(data)
	case []uint16:
		return len(data)
	case []uint32:
		return len(data)
	case []uint64:
		return len(data)
	case []float16.Float16:
		return len(data)
	case []float32:
		return len(data)
	case []float64:
		return len(data)
	case []complex64:
		return len(data)
	case []complex128:
		return len(data)
	}
	return 0
}

func uniqueOrdered[T ordered](data []T) []T {
	out := make([]T, len(data))
	copy(out, data)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return compact(out, func(a, b T) bool { return a == b })
}

// uniqueFloats sorts NaN last and collapses all NaNs into one.
func uniqueFloats[T ~float32 | ~float64](data []T) []T {
	out := make([]T, len(data))
	copy(out, data)
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a != a {
			return false
		}
		if b != b {
			return true
		}
		return a < b
	})
	return compact(out, func(a, b T) bool { return a == b || (a != a && b != b) })
}

func uniqueComplex[T ~complex64 | ~complex128](data []T) []T {
	out := make([]T, len(data))
	copy(out, data)
	sort.Slice(out, func(i, j int) bool {
		a, b := complex128(out[i]), complex128(out[j])
		if real(a) != real(b) {
			return real(a) < real(b)
		}
		return imag(a) < imag(b)
	})
	return compact(out, func(a, b T) bool { return a == b })
}

func compact[T any](sorted []T, eq func(a, b T) bool) []T {
	if len(sorted) == 0 {
		return sorted
	}
	kept := sorted[:1]
	for _, v := range sorted[1:] {
		if !eq(kept[len(kept)-1], v) {
			kept = append(kept, v)
		}
	}
	return kept
}

type ordered interface {
	~int8 | ~int16 | ~int32 | ~int64 |
		~uint8 | ~uint16 | ~uint32 | ~uint64 |
		~float32 | ~float64
}

func uniqueFlat(flat any) any {
	switch data := flat.(type) {
	case []bool:
		var sawFalse, sawTrue bool
		for _, v := range data {
			sawFalse = sawFalse || !v
			sawTrue = sawTrue || v
		}
		out := make([]bool, 0, 2)
		if sawFalse {
			out = append(out, false)
		}
		if sawTrue {
			out = append(out, true)
		}
		return out
	case []int8:
		return uniqueOrdered(data)
	case []int16:
		return uniqueOrdered(data)
	case []int32:
		return uniqueOrdered(data)
	case []int64:
		return uniqueOrdered(data)
	case []uint8:
		return uniqueOrdered(data)
	case []uint16:
		return uniqueOrdered(data)
	case []uint32:
		return uniqueOrdered(data)
	case []uint64:
		return uniqueOrdered(data)
	case []float16.Float16:
		widened := make([]float32, len(data))
		for i, v := range data {
			widened[i] = v.Float32()
		}
		uniqueWide := uniqueFloats(widened)
		out := make([]float16.Float16, len(uniqueWide))
		for i, v := range uniqueWide {
			out[i] = float16.Fromfloat32(v)
		}
		return out
	case []float32:
		return uniqueFloats(data)
	case []float64:
		return uniqueFloats(data)
	case []complex64:
		return uniqueComplex(data)
	case []complex128:
		return uniqueComplex(data)
	}
	return nil
}

func nonzeroOf[T numeric](data []T) []int64 {
	indices := make([]int64, 0)
	for i, v := range data {
		if v != 0 {
			indices = append(indices, int64(i))
		}
	}
	return indices
}

func nonzeroIndices(flat any) []int64 {
	switch data := flat.(type) {
	case []bool:
		indices := make([]int64, 0)
		for i, v := range data {
			if v {
				indices = append(indices, int64(i))
			}
		}
		return indices
	case []int8:
		return nonzeroOf(data)
	case []int16:
		return nonzeroOf(data)
	case []int32:
		return nonzeroOf(data)
	case []int64:
		return nonzeroOf(data)
	case []uint8:
		return nonzeroOf(data)
	case []uint16:
		return nonzeroOf(data)
	case []uint32:
		return nonzeroOf(data)
	case []uint64:
		return nonzeroOf(data)
	case []float16.Float16:
		indices := make([]int64, 0)
		for i, v := range data {
			if v.Float32() != 0 {
				indices = append(indices, int64(i))
			}
		}
		return indices
	case []float32:
		return nonzeroOf(data)
	case []float64:
		return nonzeroOf(data)
	case []complex64:
		return nonzeroOf(data)
	case []complex128:
		return nonzeroOf(data)
	}
	return nil
}
