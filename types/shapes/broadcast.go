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
	"github.com/gomlx/exceptions"
	"github.com/numforge/numforge/types/numerr"
)

// BroadcastShapes resolves the output shape of combining the given input
// shapes under broadcasting rules: dimensions are aligned at the trailing
// axes and walked right-to-left; a size-1 dimension stretches to match the
// other inputs; rank-0 (scalar) inputs broadcast against anything.
//
// Two inputs with different non-1 dimensions at the same aligned position
// are incompatible and produce a ShapeError naming both conflicting shapes.
// A dimension of size 0 is compatible only with 1 or another 0 at the same
// position.
//
// The output DType is the promotion (see PromoteDTypes) of the input DTypes.
//
// An empty input list is a caller bug and panics; callers always know
// statically how many operands they have.
func BroadcastShapes(inputs ...Shape) (Shape, error) {
	if len(inputs) == 0 {
		exceptions.Panicf("BroadcastShapes requires at least one shape, got none")
	}

	rank := 0
	for _, input := range inputs {
		rank = max(rank, input.Rank())
	}

	output := Shape{DType: inputs[0].DType, Dimensions: make([]int, rank)}
	for axis := range output.Dimensions {
		output.Dimensions[axis] = 1
	}
	// setBy records which input fixed each (non-1) output dimension, for
	// error reporting.
	setBy := make([]int, rank)

	for inputIdx, input := range inputs {
		if inputIdx > 0 {
			promoted, err := PromoteDTypes(output.DType, input.DType)
			if err != nil {
				return Invalid(), err
			}
			output.DType = promoted
		}
		// Align input dimensions to the trailing axes of the output.
		shift := rank - input.Rank()
		for inputAxis := input.Rank() - 1; inputAxis >= 0; inputAxis-- {
			axis := inputAxis + shift
			inputDim := input.Dimensions[inputAxis]
			outputDim := output.Dimensions[axis]
			switch {
			case inputDim == 1:
				// Stretchable, adopts whatever the other inputs set.
			case outputDim == 1:
				output.Dimensions[axis] = inputDim
				setBy[axis] = inputIdx
			case inputDim != outputDim:
				return Invalid(), numerr.Shapef(
					"cannot broadcast shape %s with shape %s: dimensions %d and %d conflict at axis %d (from the end)",
					inputs[setBy[axis]], input, outputDim, inputDim, rank-axis)
			}
		}
	}
	return output, nil
}
