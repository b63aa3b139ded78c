// Package errcode defines the closed set of error codes surfaced by derived
// media resources. Every failure carries exactly one of these codes.
package errcode

import (
	"github.com/jmgilman/go/errors"
)

const (
	// InvalidArgument marks malformed or missing transformation parameters.
	InvalidArgument errors.ErrorCode = "INVALID_ARGUMENT"

	// UnsupportedType marks a mimetype that does not resolve to an image.
	UnsupportedType errors.ErrorCode = "UNSUPPORTED_TYPE"

	// AlreadyOpen marks an attempt to open an instance a second time.
	AlreadyOpen errors.ErrorCode = "ALREADY_OPEN"

	// NotOpen marks an operation issued before the instance was opened.
	NotOpen errors.ErrorCode = "NOT_OPEN"

	// SourceUnavailable marks an original resource that is missing or invalid.
	SourceUnavailable errors.ErrorCode = "SOURCE_UNAVAILABLE"

	// TransformUnsupported marks the absence of a capable image transformer.
	TransformUnsupported errors.ErrorCode = "TRANSFORM_UNSUPPORTED"

	// TransformFailed marks an error raised while executing a transformation.
	TransformFailed errors.ErrorCode = "TRANSFORM_FAILED"

	// CacheFailed marks an I/O failure of the cache store.
	CacheFailed errors.ErrorCode = "CACHE_FAILED"
)

// Is reports whether the outermost coded error in err's chain carries code.
func Is(err error, code errors.ErrorCode) bool {
	return err != nil && errors.GetCode(err) == code
}

// Of returns the code of err, or errors.CodeUnknown when it carries none.
func Of(err error) errors.ErrorCode {
	return errors.GetCode(err)
}
