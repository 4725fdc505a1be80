package utils

import (
	stderrors "errors"

	"github.com/pkg/errors"
)

//ErrResource marks failures to acquire something the demo needs before it can run: a label file, a model, a camera
var ErrResource = stderrors.New("resource unavailable")

//ErrFormat marks malformed input data, such as a bad line in a label file
var ErrFormat = stderrors.New("malformed input")

//ErrDevice marks a capture or accelerator failure in the middle of the loop
var ErrDevice = stderrors.New("device failure")

//kindError attaches one of the error kinds above to a contextual error
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Unwrap() []error {
	return []error{e.kind, e.cause}
}

//Cause exposes the github.com/pkg/errors cause chain
func (e *kindError) Cause() error {
	return e.cause
}

func newKind(kind, cause error, format string, args ...interface{}) error {
	if cause == nil {
		cause = errors.Errorf(format, args...)
	} else {
		cause = errors.Wrapf(cause, format, args...)
	}
	return &kindError{kind: kind, cause: cause}
}

//ResourceError wraps cause (may be nil) with a message and classifies it as ErrResource
func ResourceError(cause error, format string, args ...interface{}) error {
	return newKind(ErrResource, cause, format, args...)
}

//FormatError wraps cause (may be nil) with a message and classifies it as ErrFormat
func FormatError(cause error, format string, args ...interface{}) error {
	return newKind(ErrFormat, cause, format, args...)
}

//DeviceError wraps cause (may be nil) with a message and classifies it as ErrDevice
func DeviceError(cause error, format string, args ...interface{}) error {
	return newKind(ErrDevice, cause, format, args...)
}

//Classified reports whether err already carries one of the error kinds
func Classified(err error) bool {
	return stderrors.Is(err, ErrResource) || stderrors.Is(err, ErrFormat) || stderrors.Is(err, ErrDevice)
}
