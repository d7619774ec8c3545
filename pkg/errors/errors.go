// Package errors provides the error taxonomy shared by all estimators and
// engine components in this library.
//
// Two kinds of failures exist:
//
//   - Usage errors: predicting with an untrained model, mismatched dimensions,
//     malformed target encodings, out-of-range hyperparameters. These are
//     surfaced immediately to the caller as one of the typed errors below.
//   - Numerical degeneracies inside the split search are never surfaced as
//     errors; they are handled locally by deterministic fallback rules.
//
// All typed errors support Go 1.13+ error wrapping (errors.Is / errors.As)
// and carry stack traces via github.com/cockroachdb/errors.
package errors

import (
	"fmt"

	crdberrors "github.com/cockroachdb/errors"
)

// Sentinel errors for root-cause checks with errors.Is.
var (
	// ErrNotFitted indicates an operation that requires a trained model.
	ErrNotFitted = crdberrors.New("model is not fitted")
	// ErrEmptyData indicates an empty feature matrix or target vector.
	ErrEmptyData = crdberrors.New("empty data")
	// ErrDimensionMismatch indicates incompatible matrix/vector shapes.
	ErrDimensionMismatch = crdberrors.New("dimension mismatch")
	// ErrInvalidTarget indicates a target vector that violates the encoding
	// required by the selected likelihood family.
	ErrInvalidTarget = crdberrors.New("invalid target encoding")
	// ErrNotImplemented indicates a requested capability that does not exist.
	ErrNotImplemented = crdberrors.New("not implemented")
)

const prefix = "bayestree: "

// NotFittedError is returned when Predict, Score or a diagnostic accessor is
// called before Fit.
type NotFittedError struct {
	ModelName string
	Method    string
}

func (e *NotFittedError) Error() string {
	return fmt.Sprintf("%s%s.%s: model is not fitted, call Fit first", prefix, e.ModelName, e.Method)
}

func (e *NotFittedError) Unwrap() error { return ErrNotFitted }

// NewNotFittedError creates a NotFittedError for the given model and method.
func NewNotFittedError(modelName, method string) error {
	return &NotFittedError{ModelName: modelName, Method: method}
}

// DimensionError is returned when input shapes do not match what the model
// was trained with or what an operation requires.
type DimensionError struct {
	Op       string
	Expected int
	Got      int
	Axis     int
}

func (e *DimensionError) Error() string {
	return fmt.Sprintf("%s%s: dimension mismatch on axis %d: expected %d, got %d",
		prefix, e.Op, e.Axis, e.Expected, e.Got)
}

func (e *DimensionError) Unwrap() error { return ErrDimensionMismatch }

// NewDimensionError creates a DimensionError for operation op.
func NewDimensionError(op string, expected, got, axis int) error {
	return &DimensionError{Op: op, Expected: expected, Got: got, Axis: axis}
}

// ValueError is returned for invalid argument values (hyperparameters out of
// range, malformed targets, non-finite inputs).
type ValueError struct {
	Op      string
	Message string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("%s%s: %s", prefix, e.Op, e.Message)
}

// NewValueError creates a ValueError for operation op.
func NewValueError(op, message string) error {
	return &ValueError{Op: op, Message: message}
}

// ModelError wraps a lower-level failure with model operation context.
type ModelError struct {
	Op      string
	Message string
	Err     error
}

func (e *ModelError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s%s: %s", prefix, e.Op, e.Message)
	}
	return fmt.Sprintf("%s%s: %s: %v", prefix, e.Op, e.Message, e.Err)
}

func (e *ModelError) Unwrap() error { return e.Err }

// NewModelError creates a ModelError wrapping err with operation context.
func NewModelError(op, message string, err error) error {
	return &ModelError{Op: op, Message: message, Err: err}
}

// Recover converts a panic inside op into an error assigned to *errp.
// Intended for use as a deferred call at the top of exported entry points:
//
//	func (t *Classifier) Fit(X, y mat.Matrix) (err error) {
//		defer errors.Recover(&err, "Classifier.Fit")
//		...
//	}
func Recover(errp *error, op string) {
	if r := recover(); r != nil {
		*errp = crdberrors.Errorf("%s%s: panic: %v", prefix, op, r)
	}
}

// Wrap annotates err with a message, preserving the chain. Returns nil when
// err is nil.
func Wrap(err error, msg string) error { return crdberrors.Wrap(err, msg) }

// Wrapf annotates err with a formatted message, preserving the chain.
func Wrapf(err error, format string, args ...interface{}) error {
	return crdberrors.Wrapf(err, format, args...)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool { return crdberrors.Is(err, target) }

// As finds the first error in err's chain matching target's type.
func As(err error, target interface{}) bool { return crdberrors.As(err, target) }
