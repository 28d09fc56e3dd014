package gameday

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorCode is the machine-readable classification of a domain failure.
type ErrorCode string

const (
	CodeBadRequest           ErrorCode = "BadRequest"
	CodeBadEdgeLabel         ErrorCode = "BadEdgeLabel"
	CodeBadCompoundKey       ErrorCode = "BadCompoundKey"
	CodeUnreachableByGraph   ErrorCode = "UnreachableByGraph"
	CodeUnreachableByRoutes  ErrorCode = "UnreachableByRoutes"
	CodeUnreachableAutoRoute ErrorCode = "UnreachableAutoRoute"
	CodeCycleDetected        ErrorCode = "CycleDetected"
	CodeRootMissing          ErrorCode = "RootMissing"
	CodeNotFound             ErrorCode = "NotFound"
	CodeStorageError         ErrorCode = "StorageError"
	CodeDeadline             ErrorCode = "Deadline"
	CodeMalformedSource      ErrorCode = "MalformedSource"
	CodeInternalInvariant    ErrorCode = "InternalInvariant"
)

// Error is the coded domain error. Fields carry contextual values (hop index,
// target type, collection name) for transport layers to render.
type Error struct {
	Code    ErrorCode
	Message string
	Fields  map[string]any
	cause   error
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, strings.Join(parts, " "))
}

func (e *Error) Unwrap() error { return e.cause }

// Is matches any *Error carrying the same code, so callers can compare with
// errors.Is(err, gameday.ErrCode(CodeRootMissing)).
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// ErrCode returns a bare sentinel for errors.Is comparisons by code.
func ErrCode(code ErrorCode) error { return &Error{Code: code} }

// NewError builds a coded error. Fields come as alternating key/value pairs.
func NewError(code ErrorCode, msg string, kv ...any) *Error {
	return &Error{Code: code, Message: msg, Fields: fieldsFromKV(kv)}
}

// WrapError attaches a cause to a coded error.
func WrapError(code ErrorCode, cause error, msg string, kv ...any) *Error {
	return &Error{Code: code, Message: msg, Fields: fieldsFromKV(kv), cause: cause}
}

// CodeOf extracts the error code, or empty for non-domain errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

func fieldsFromKV(kv []any) map[string]any {
	if len(kv) == 0 {
		return nil
	}
	m := make(map[string]any, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		k, ok := kv[i].(string)
		if !ok {
			k = fmt.Sprint(kv[i])
		}
		m[k] = kv[i+1]
	}
	return m
}

// ErrSkipRebuild is the sentinel a rebuild handler returns for resource types
// it does not support. The cascade orchestrator classifies the entry as
// skipped and moves on.
var ErrSkipRebuild = errors.New("rebuild not supported for resource type")
