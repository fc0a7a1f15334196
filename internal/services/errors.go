package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrMissingInput  = errors.New("missing input")
	ErrExternalTool  = errors.New("external tool error")
	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

var markers = []error{
	ErrMissingInput,
	ErrExternalTool,
	ErrValidation,
	ErrConfiguration,
	ErrNotFound,
	ErrTransient,
}

// Wrap builds an error message that includes step context while tagging it with
// the provided marker for later classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, step, operation, message string, err error) error {
	detail := buildDetail(step, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify returns the marker attached to err, or ErrTransient when the error
// was not produced by Wrap.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, marker := range markers {
		if errors.Is(err, marker) {
			return marker
		}
	}
	return ErrTransient
}

// Details splits err into its marker text and the remaining detail so reports
// can print them in separate columns.
func Details(err error) (kind string, detail string) {
	if err == nil {
		return "", ""
	}
	marker := Classify(err)
	kind = marker.Error()
	detail = strings.TrimPrefix(err.Error(), kind+": ")
	return kind, detail
}

func buildDetail(step, operation, message string) string {
	parts := make([]string, 0, 3)
	if step = strings.TrimSpace(step); step != "" {
		parts = append(parts, step)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
