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

// Package numerr defines the error taxonomy used across numforge.
//
// All errors raised during validation, shape resolution and dispatch belong
// to one of four classes:
//
//   - ShapeError: broadcast-incompatible shapes, or wrong rank for an
//     operation that requires a specific rank.
//   - TypeError: unsupported element type for an operation, or a
//     non-primitive type where a primitive is required.
//   - ComputeError: numerical failure reported by a kernel or by the
//     external numeric library (e.g. a non-positive-definite input to a
//     Cholesky factorization).
//   - PreconditionError: missing required arguments, such as an absent
//     output handle where one is required.
//
// Errors are raised synchronously and propagate to the caller of the array
// API. They carry stack traces (github.com/pkg/errors) and can be matched
// with the Is* helpers, which unwrap through any amount of wrapping.
package numerr

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

// ShapeError indicates shapes that cannot be combined: broadcast conflicts
// or an operand of the wrong rank. The message always names the offending
// shapes.
type ShapeError struct {
	cause error
}

func (e *ShapeError) Error() string { return e.cause.Error() }

// Unwrap returns the underlying cause, which carries the stack trace.
func (e *ShapeError) Unwrap() error { return e.cause }

// Shapef creates a ShapeError with a formatted message and a stack trace.
func Shapef(format string, args ...any) error {
	return &ShapeError{cause: pkgerrors.Errorf(format, args...)}
}

// IsShape reports whether err is (or wraps) a ShapeError.
func IsShape(err error) bool {
	var target *ShapeError
	return errors.As(err, &target)
}

// TypeError indicates an element type that the operation does not support,
// or a type tag outside the closed supported set.
type TypeError struct {
	cause error
}

func (e *TypeError) Error() string { return e.cause.Error() }

func (e *TypeError) Unwrap() error { return e.cause }

// Typef creates a TypeError with a formatted message and a stack trace.
func Typef(format string, args ...any) error {
	return &TypeError{cause: pkgerrors.Errorf(format, args...)}
}

// IsType reports whether err is (or wraps) a TypeError.
func IsType(err error) bool {
	var target *TypeError
	return errors.As(err, &target)
}

// ComputeError indicates a numerical failure during kernel execution: the
// operation was valid, but the data made it fail (or the external numeric
// library returned a nonzero status). No usable output exists after a
// ComputeError.
type ComputeError struct {
	cause error
}

func (e *ComputeError) Error() string { return e.cause.Error() }

func (e *ComputeError) Unwrap() error { return e.cause }

// Computef creates a ComputeError with a formatted message and a stack trace.
func Computef(format string, args ...any) error {
	return &ComputeError{cause: pkgerrors.Errorf(format, args...)}
}

// IsCompute reports whether err is (or wraps) a ComputeError.
func IsCompute(err error) bool {
	var target *ComputeError
	return errors.As(err, &target)
}

// PreconditionError indicates a missing or malformed required argument.
type PreconditionError struct {
	cause error
}

func (e *PreconditionError) Error() string { return e.cause.Error() }

func (e *PreconditionError) Unwrap() error { return e.cause }

// Preconditionf creates a PreconditionError with a formatted message and a
// stack trace.
func Preconditionf(format string, args ...any) error {
	return &PreconditionError{cause: pkgerrors.Errorf(format, args...)}
}

// IsPrecondition reports whether err is (or wraps) a PreconditionError.
func IsPrecondition(err error) bool {
	var target *PreconditionError
	return errors.As(err, &target)
}
