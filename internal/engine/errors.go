package engine

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyOrUnreadable indicates a document with no usable text layer.
// Image-only scans hit this path routinely; it is an expected failure.
var ErrEmptyOrUnreadable = errors.New("document is empty or contains no extractable text")

// ErrSourceTooShort indicates source text below the minimum accepted length.
var ErrSourceTooShort = errors.New("source text is too short: at least 50 characters are required")

// ExtractionError wraps any failure from the text extraction boundary.
// Nothing from the extraction collaborator propagates past it untyped.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "extract text: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// InvokeKind classifies model invocation failures so operators can tell
// "add credits" apart from "try again in a minute".
type InvokeKind string

const (
	KindMissingCredentials InvokeKind = "missing_credentials"
	KindAuthInvalid        InvokeKind = "auth_invalid"
	KindQuotaExceeded      InvokeKind = "quota_exceeded"
	KindRateLimited        InvokeKind = "rate_limited"
	KindConnectionFailed   InvokeKind = "connection_failed"
	KindTimeout            InvokeKind = "timeout"
	KindTruncated          InvokeKind = "truncated"
	KindContentFiltered    InvokeKind = "content_filtered"
	KindNoChoices          InvokeKind = "no_choices"
	KindEmptyContent       InvokeKind = "empty_content"
	KindOther              InvokeKind = "other"
)

// InvokeError is a classified model invocation failure with guidance text.
type InvokeError struct {
	Kind    InvokeKind
	Message string
}

func (e *InvokeError) Error() string {
	return fmt.Sprintf("model invocation (%s): %s", e.Kind, e.Message)
}

// InvalidJSONError reports a model response that failed to parse as JSON.
// The parse error is carried verbatim; there is no silent fallback.
type InvalidJSONError struct {
	Err error
}

func (e *InvalidJSONError) Error() string {
	return "invalid JSON in model response: " + e.Err.Error()
}

func (e *InvalidJSONError) Unwrap() error { return e.Err }

// MissingFieldError reports a required key absent from the model response.
type MissingFieldError struct {
	Field string
}

func (e *MissingFieldError) Error() string {
	return "model response missing required field: " + e.Field
}

// FieldTooLongError reports a field exceeding its storage limit. The caller
// decides what to do; the pipeline never truncates silently.
type FieldTooLongError struct {
	Field  string
	Length int
	Limit  int
}

func (e *FieldTooLongError) Error() string {
	return fmt.Sprintf("field %q is %d characters, exceeding the %d character limit", e.Field, e.Length, e.Limit)
}

// RequiredFieldsError enumerates fields missing from an assembled record.
type RequiredFieldsError struct {
	Fields []string
}

func (e *RequiredFieldsError) Error() string {
	return "missing required fields: " + strings.Join(e.Fields, ", ")
}

// FileTooLargeError reports a single file over the per-file cap.
type FileTooLargeError struct {
	Filename string
	Size     int64
	Limit    int64
}

func (e *FileTooLargeError) Error() string {
	return fmt.Sprintf("file %q is %.2f MB, exceeding the %d MB per-file limit",
		e.Filename, float64(e.Size)/(1024*1024), e.Limit/(1024*1024))
}

// BatchTooLargeError reports a submission over the aggregate cap.
type BatchTooLargeError struct {
	Size  int64
	Limit int64
}

func (e *BatchTooLargeError) Error() string {
	return fmt.Sprintf("total upload size is %.2f MB, exceeding the %d MB batch limit",
		float64(e.Size)/(1024*1024), e.Limit/(1024*1024))
}

// DuplicateError reports a short-circuited single-file upload that matched an
// existing record.
type DuplicateError struct {
	Reason   string
	BriefID  string
	Filename string
}

func (e *DuplicateError) Error() string {
	return "duplicate detected: " + e.Reason
}
