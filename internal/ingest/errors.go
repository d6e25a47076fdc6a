package ingest

import (
	"fmt"
	"strings"
)

// ErrorKind classifies a ParseError.
type ErrorKind string

const (
	// KindDetection means no format signature matched the input.
	KindDetection ErrorKind = "detection"
	// KindShape means the input does not fit the selected format's structure.
	KindShape ErrorKind = "shape"
	// KindParse means a parser failed on an input that passed shape validation.
	KindParse ErrorKind = "parse"
)

// ParseError is the single failure type returned by the orchestrator.
type ParseError struct {
	Kind      ErrorKind
	Format    Format
	Supported []Format
	Err       error
}

func (e *ParseError) Error() string {
	switch e.Kind {
	case KindDetection:
		names := make([]string, len(e.Supported))
		for i, f := range e.Supported {
			names[i] = string(f)
		}
		return "could not detect conversation format; supported formats: " + strings.Join(names, ", ")
	case KindShape:
		return fmt.Sprintf("input does not match the %s format", e.Format)
	default:
		if e.Err != nil {
			return fmt.Sprintf("parse %s: %v", e.Format, e.Err)
		}
		return fmt.Sprintf("parse %s failed", e.Format)
	}
}

func (e *ParseError) Unwrap() error { return e.Err }

func detectionError() *ParseError {
	supported := make([]Format, len(SupportedFormats))
	copy(supported, SupportedFormats)
	return &ParseError{Kind: KindDetection, Format: FormatUnknown, Supported: supported}
}

func shapeError(f Format) *ParseError {
	return &ParseError{Kind: KindShape, Format: f}
}

func parseFailure(f Format, err error) *ParseError {
	return &ParseError{Kind: KindParse, Format: f, Err: err}
}
