package backends

import (
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/numforge/numforge/types/numerr"
	"github.com/numforge/numforge/types/shapes"
)

// OpType is the closed enumeration of logical operations an engine can be
// asked to execute. Operations are grouped into families; the family decides
// the kernel-body contract (see package backends/taskgo).
type OpType int

//go:generate go tool enumer -type=OpType -trimprefix=OpType -output=gen_optype_enumer.go optype.go

const (
	OpTypeInvalid OpType = iota

	// Elementwise unary operations.

	OpTypeCopy
	OpTypeNeg
	OpTypeAbs
	OpTypeSqrt
	OpTypeExp
	OpTypeLog

	// Elementwise binary operations.

	OpTypeAdd
	OpTypeSub
	OpTypeMul
	OpTypeDiv
	OpTypeMaximum
	OpTypeMinimum

	// Reductions to a singleton.

	OpTypeReduceSum
	OpTypeReduceProd
	OpTypeReduceMax
	OpTypeReduceMin

	// Running accumulations (scans).

	OpTypeCumSum
	OpTypeCumProd

	// Linear algebra.

	OpTypeMatMul
	OpTypeCholesky

	// Structural / creation operations.

	OpTypeFill
	OpTypeEye
	OpTypeRandomUniform
	OpTypeTril
	OpTypeTriu
	OpTypeConvertDType

	// OpTypeLast is a sentinel, keep it last.
	OpTypeLast
)

// OpFamily groups operations that share a kernel-body contract.
type OpFamily int

const (
	FamilyInvalid OpFamily = iota
	FamilyUnary
	FamilyBinary
	FamilyReduction
	FamilyScan
	FamilyLinalg
	FamilyStructural
)

//go:generate go tool enumer -type=OpFamily -trimprefix=Family -output=gen_opfamily_enumer.go optype.go

// DTypeClass is a bitmask of element-type kinds an operation accepts.
type DTypeClass uint8

const (
	ClassBool DTypeClass = 1 << iota
	ClassInt
	ClassUint
	ClassFloat
	ClassComplex

	// ClassNumeric accepts every kind that supports arithmetic.
	ClassNumeric = ClassInt | ClassUint | ClassFloat | ClassComplex

	// ClassRealNumeric accepts the kinds with a total order.
	ClassRealNumeric = ClassInt | ClassUint | ClassFloat

	// ClassAll accepts the whole supported set.
	ClassAll = ClassBool | ClassNumeric
)

// classOf maps a dtype to its DTypeClass bit.
func classOf(dtype dtypes.DType) DTypeClass {
	switch {
	case dtype == dtypes.Bool:
		return ClassBool
	case dtype.IsComplex():
		return ClassComplex
	case dtype.IsFloat():
		return ClassFloat
	case dtype.IsUnsigned():
		return ClassUint
	case dtype.IsInt():
		return ClassInt
	}
	return 0
}

// OpInfo is the registry entry for an operation: its family, arity and
// element-type constraints.
type OpInfo struct {
	Type      OpType
	Family    OpFamily
	NumInputs int

	// DTypes is the accepted element-type classes.
	DTypes DTypeClass

	// Only, when non-empty, further restricts the accepted dtypes to an
	// explicit list (e.g. Cholesky only factors Float32/Float64).
	Only []dtypes.DType
}

// opInfos is the operation registry. Every OpType must have an entry; this
// is checked at package initialization so a new OpType fails loudly until
// registered here.
var opInfos = [OpTypeLast]OpInfo{
	OpTypeCopy: {Family: FamilyUnary, NumInputs: 1, DTypes: ClassAll},
	OpTypeNeg:  {Family: FamilyUnary, NumInputs: 1, DTypes: ClassNumeric},
	OpTypeAbs:  {Family: FamilyUnary, NumInputs: 1, DTypes: ClassRealNumeric},
	OpTypeSqrt: {Family: FamilyUnary, NumInputs: 1, DTypes: ClassFloat},
	OpTypeExp:  {Family: FamilyUnary, NumInputs: 1, DTypes: ClassFloat},
	OpTypeLog:  {Family: FamilyUnary, NumInputs: 1, DTypes: ClassFloat},

	OpTypeAdd:     {Family: FamilyBinary, NumInputs: 2, DTypes: ClassNumeric},
	OpTypeSub:     {Family: FamilyBinary, NumInputs: 2, DTypes: ClassNumeric},
	OpTypeMul:     {Family: FamilyBinary, NumInputs: 2, DTypes: ClassNumeric},
	OpTypeDiv:     {Family: FamilyBinary, NumInputs: 2, DTypes: ClassFloat | ClassComplex},
	OpTypeMaximum: {Family: FamilyBinary, NumInputs: 2, DTypes: ClassRealNumeric},
	OpTypeMinimum: {Family: FamilyBinary, NumInputs: 2, DTypes: ClassRealNumeric},

	OpTypeReduceSum:  {Family: FamilyReduction, NumInputs: 1, DTypes: ClassNumeric},
	OpTypeReduceProd: {Family: FamilyReduction, NumInputs: 1, DTypes: ClassNumeric},
	OpTypeReduceMax:  {Family: FamilyReduction, NumInputs: 1, DTypes: ClassRealNumeric},
	OpTypeReduceMin:  {Family: FamilyReduction, NumInputs: 1, DTypes: ClassRealNumeric},

	OpTypeCumSum:  {Family: FamilyScan, NumInputs: 1, DTypes: ClassNumeric},
	OpTypeCumProd: {Family: FamilyScan, NumInputs: 1, DTypes: ClassNumeric},

	OpTypeMatMul: {Family: FamilyLinalg, NumInputs: 2, DTypes: ClassNumeric},
	OpTypeCholesky: {Family: FamilyLinalg, NumInputs: 1, DTypes: ClassFloat,
		Only: []dtypes.DType{dtypes.Float32, dtypes.Float64}},

	OpTypeFill: {Family: FamilyStructural, NumInputs: 0, DTypes: ClassAll},
	OpTypeEye:  {Family: FamilyStructural, NumInputs: 0, DTypes: ClassAll},
	OpTypeRandomUniform: {Family: FamilyStructural, NumInputs: 0, DTypes: ClassFloat,
		Only: []dtypes.DType{dtypes.Float16, dtypes.Float32, dtypes.Float64}},
	OpTypeTril:         {Family: FamilyStructural, NumInputs: 1, DTypes: ClassAll},
	OpTypeTriu:         {Family: FamilyStructural, NumInputs: 1, DTypes: ClassAll},
	OpTypeConvertDType: {Family: FamilyStructural, NumInputs: 1, DTypes: ClassAll},
}

func init() {
	// A new OpType without registry entry must fail at startup, not at some
	// later dispatch.
	for op := OpTypeInvalid + 1; op < OpTypeLast; op++ {
		if opInfos[op].Family == FamilyInvalid {
			panic("backends: OpType " + op.String() + " has no entry in the operation registry")
		}
		opInfos[op].Type = op
	}
}

// Info returns the registry entry for the operation. It panics on an
// out-of-range OpType, which is always a caller bug.
func (op OpType) Info() OpInfo {
	if op <= OpTypeInvalid || op >= OpTypeLast {
		panic("backends: Info called on invalid OpType")
	}
	return opInfos[op]
}

// Family returns the operation's family.
func (op OpType) Family() OpFamily { return op.Info().Family }

// SupportsDType returns whether the operation accepts the given element
// type.
func (op OpType) SupportsDType(dtype dtypes.DType) bool {
	if !shapes.SupportedDType(dtype) {
		return false
	}
	info := op.Info()
	if len(info.Only) > 0 {
		for _, allowed := range info.Only {
			if allowed == dtype {
				return true
			}
		}
		return false
	}
	return info.DTypes&classOf(dtype) != 0
}

// CheckOperation validates that op exists and accepts dtype, returning a
// TypeError otherwise.
func CheckOperation(op OpType, dtype dtypes.DType) error {
	if op <= OpTypeInvalid || op >= OpTypeLast {
		return numerr.Preconditionf("invalid operation code %d", op)
	}
	if !shapes.SupportedDType(dtype) {
		return numerr.Typef("dtype %s is not in the supported element-type set (operation %s)", dtype, op)
	}
	if !op.SupportsDType(dtype) {
		return numerr.Typef("operation %s does not support dtype %s", op, dtype)
	}
	return nil
}
