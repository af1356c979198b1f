package backends

import (
	"testing"

	"github.com/gomlx/gopjrt/dtypes"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

func TestOpTypeRegistryComplete(t *testing.T) {
	for op := OpTypeInvalid + 1; op < OpTypeLast; op++ {
		info := op.Info()
		assert.NotEqual(t, FamilyInvalid, info.Family, "op %s", op)
		assert.Equal(t, op, info.Type)
	}
}

func TestOpTypeFamilies(t *testing.T) {
	testCases := []struct {
		op     OpType
		family OpFamily
		inputs int
	}{
		{OpTypeNeg, FamilyUnary, 1},
		{OpTypeAdd, FamilyBinary, 2},
		{OpTypeReduceSum, FamilyReduction, 1},
		{OpTypeCumSum, FamilyScan, 1},
		{OpTypeMatMul, FamilyLinalg, 2},
		{OpTypeCholesky, FamilyLinalg, 1},
		{OpTypeFill, FamilyStructural, 0},
		{OpTypeConvertDType, FamilyStructural, 1},
	}
	for _, testCase := range testCases {
		assert.Equal(t, testCase.family, testCase.op.Family(), "op %s", testCase.op)
		assert.Equal(t, testCase.inputs, testCase.op.Info().NumInputs, "op %s", testCase.op)
	}
}

func TestSupportsDType(t *testing.T) {
	// Arithmetic excludes bool; division is float/complex only; comparisons
	// exclude complex (no total order); Cholesky is restricted to an explicit
	// list.
	assert.True(t, OpTypeAdd.SupportsDType(dtypes.Int32))
	assert.False(t, OpTypeAdd.SupportsDType(dtypes.Bool))
	assert.True(t, OpTypeDiv.SupportsDType(dtypes.Complex64))
	assert.False(t, OpTypeDiv.SupportsDType(dtypes.Int32))
	assert.False(t, OpTypeMaximum.SupportsDType(dtypes.Complex64))
	assert.True(t, OpTypeCholesky.SupportsDType(dtypes.Float64))
	assert.False(t, OpTypeCholesky.SupportsDType(dtypes.Float16))
	assert.True(t, OpTypeCopy.SupportsDType(dtypes.Bool))

	// Outside the closed supported set nothing is admitted, whatever the
	// class mask says.
	for op := OpTypeInvalid + 1; op < OpTypeLast; op++ {
		assert.False(t, op.SupportsDType(dtypes.BFloat16), "op %s", op)
	}
}

func TestCheckOperation(t *testing.T) {
	require.NoError(t, CheckOperation(OpTypeAdd, dtypes.Float32))

	err := CheckOperation(OpTypeAdd, dtypes.BFloat16)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	err = CheckOperation(OpTypeDiv, dtypes.Int64)
	require.Error(t, err)
	assert.True(t, numerr.IsType(err))

	err = CheckOperation(OpType(999), dtypes.Float32)
	require.Error(t, err)
	assert.True(t, numerr.IsPrecondition(err))
}

func TestOpTypeStrings(t *testing.T) {
	assert.Equal(t, "Add", OpTypeAdd.String())
	assert.Equal(t, "ConvertDType", OpTypeConvertDType.String())
	parsed, err := OpTypeString("ReduceMax")
	require.NoError(t, err)
	assert.Equal(t, OpTypeReduceMax, parsed)
}

func TestFallbackOrder(t *testing.T) {
	assert.Equal(t,
		[]Variant{VariantAccelerator, VariantParallelLoop, VariantSequential},
		VariantAccelerator.FallbackOrder())
	assert.Equal(t,
		[]Variant{VariantParallelLoop, VariantSequential},
		VariantParallelLoop.FallbackOrder())
	assert.Equal(t,
		[]Variant{VariantSequential},
		VariantSequential.FallbackOrder())
}

func TestCapabilitiesSupports(t *testing.T) {
	capabilities := Capabilities{
		Operations: map[OpType]bool{OpTypeAdd: true},
		DTypes:     map[dtypes.DType]bool{dtypes.Float32: true},
	}
	assert.True(t, capabilities.Supports(OpTypeAdd, dtypes.Float32))
	assert.False(t, capabilities.Supports(OpTypeAdd, dtypes.Float64))
	assert.False(t, capabilities.Supports(OpTypeMul, dtypes.Float32))

	clone := capabilities.Clone()
	clone.Operations[OpTypeMul] = true
	assert.False(t, capabilities.Supports(OpTypeMul, dtypes.Float32))

	// Every shapes-supported dtype has a class, so ClassAll ops admit it.
	for _, dtype := range shapes.SupportedDTypes() {
		assert.True(t, OpTypeCopy.SupportsDType(dtype), "dtype %s", dtype)
	}
}
