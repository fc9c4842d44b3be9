// Package apperr classifies request failures into the client-facing error shape.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind discriminates user-facing errors. Both kinds render as 400.
type Kind int

const (
	KindBadRequest Kind = iota
	KindValidation
)

func (k Kind) String() string {
	if k == KindValidation {
		return "validation"
	}
	return "bad_request"
}

// FieldError names one malformed parameter.
type FieldError struct {
	Path   string
	Detail string
}

func (f FieldError) String() string {
	return f.Path + ": " + f.Detail
}

// ValidationError is returned by parameter extraction and declaration checks.
// It is the only error classified as KindValidation.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.String())
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

// Field builds a single-field validation error.
func Field(path, format string, args ...any) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Path: path, Detail: fmt.Sprintf(format, args...)}}}
}

// ServiceError is rendered as {short, long}; Kind stays server side.
type ServiceError struct {
	Kind  Kind   `json:"-"`
	Short string `json:"short"`
	Long  string `json:"long"`
}

func (e ServiceError) Error() string { return e.Long }

// HTTPStatus is 400 for every kind; no 5xx path exists at this layer.
func (e ServiceError) HTTPStatus() int {
	return http.StatusBadRequest
}

// Classify maps any failure to a ServiceError.
func Classify(err error) ServiceError {
	if err == nil {
		return ServiceError{Kind: KindBadRequest, Short: "bad_request", Long: "bad request"}
	}
	var se ServiceError
	if errors.As(err, &se) {
		return se
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ServiceError{
			Kind:  KindValidation,
			Short: "validation error",
			Long:  ve.Error(),
		}
	}
	return ServiceError{
		Kind:  KindBadRequest,
		Short: "bad_request",
		Long:  fmt.Sprintf("bad request, error: %s", err),
	}
}

// Merge combines validation errors, skipping nils. Returns nil when none remain.
func Merge(errs ...*ValidationError) *ValidationError {
	var out []FieldError
	for _, e := range errs {
		if e != nil {
			out = append(out, e.Fields...)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return &ValidationError{Fields: out}
}
