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
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numforge/numforge/types/numerr"
)

func TestBroadcastShapes(t *testing.T) {
	testCases := []struct {
		name   string
		inputs []Shape
		want   []int
	}{
		{"trailing alignment", []Shape{Make(dtypes.Float32, 2, 3), Make(dtypes.Float32, 3)}, []int{2, 3}},
		{"stretch size-1 axis", []Shape{Make(dtypes.Float32, 2, 3), Make(dtypes.Float32, 2, 1)}, []int{2, 3}},
		{"scalar against matrix", []Shape{Scalar[float32](), Make(dtypes.Float32, 4, 5)}, []int{4, 5}},
		{"single input", []Shape{Make(dtypes.Int32, 7)}, []int{7}},
		{"both stretch", []Shape{Make(dtypes.Int64, 3, 1), Make(dtypes.Int64, 1, 4)}, []int{3, 4}},
		{"three inputs", []Shape{Make(dtypes.Float64, 1, 3), Make(dtypes.Float64, 2, 1), Make(dtypes.Float64, 3)}, []int{2, 3}},
		{"zero dim against one", []Shape{Make(dtypes.Float32, 2, 0), Make(dtypes.Float32, 2, 1)}, []int{2, 0}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			output, err := BroadcastShapes(testCase.inputs...)
			require.NoError(t, err)
			assert.Equal(t, testCase.want, output.Dimensions)
		})
	}
}

func TestBroadcastShapesConflicts(t *testing.T) {
	testCases := []struct {
		name   string
		inputs []Shape
	}{
		{"mismatched leading dim", []Shape{Make(dtypes.Float32, 2, 3), Make(dtypes.Float32, 4, 3)}},
		{"mismatched trailing dim", []Shape{Make(dtypes.Float32, 2, 3), Make(dtypes.Float32, 2, 4)}},
		{"zero against non-one", []Shape{Make(dtypes.Float32, 0), Make(dtypes.Float32, 3)}},
	}
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			_, err := BroadcastShapes(testCase.inputs...)
			require.Error(t, err)
			assert.True(t, numerr.IsShape(err), "want ShapeError, got %v", err)
			// The error names both conflicting shapes and the axis.
			assert.Contains(t, err.Error(), "axis")
			assert.Contains(t, err.Error(), testCase.inputs[0].String())
			assert.Contains(t, err.Error(), testCase.inputs[1].String())
		})
	}
}

func TestBroadcastShapesPromotesDType(t *testing.T) {
	output, err := BroadcastShapes(Make(dtypes.Float32, 2, 3), Make(dtypes.Int32, 3))
	require.NoError(t, err)
	// Float32 cannot hold every Int32 exactly.
	assert.Equal(t, dtypes.Float64, output.DType)

	output, err = BroadcastShapes(Make(dtypes.Int8, 2), Make(dtypes.Float16, 2))
	require.NoError(t, err)
	assert.Equal(t, dtypes.Float16, output.DType)
}

func TestBroadcastShapesEmptyListPanics(t *testing.T) {
	require.Panics(t, func() { _, _ = BroadcastShapes() })
}
