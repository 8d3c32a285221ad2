package types

import (
	"errors"
	"fmt"
)

var (
	ErrFormat = errors.New("format error")
	ErrValue  = errors.New("value error")
	ErrShape  = errors.New("shape error")
)

// FormatError reports a field table or array file that does not follow the
// expected on-disk layout.
type FormatError struct {
	Path    string
	Line    int // 1-based, zero when not tied to a line
	Columns int
	Msg     string
}

func (e *FormatError) Error() string {
	var loc = e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", e.Path, e.Line)
	}
	if e.Columns > 0 {
		return fmt.Sprintf("%s: %s (found %d columns)", loc, e.Msg, e.Columns)
	}
	return fmt.Sprintf("%s: %s", loc, e.Msg)
}

func (e *FormatError) Unwrap() error { return ErrFormat }

// ValueError reports an argument outside of its accepted set.
type ValueError struct {
	Name  string
	Value any
	Msg   string
}

func (e *ValueError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("invalid %s %v: %s", e.Name, e.Value, e.Msg)
	}
	return fmt.Sprintf("invalid %s %v", e.Name, e.Value)
}

func (e *ValueError) Unwrap() error { return ErrValue }

// ShapeError reports an array length that breaks the partition layout. Field
// and Partition are left empty/-1 when the violation is not tied to one.
type ShapeError struct {
	Field     string
	Partition int
	Expected  int
	Actual    int
	Msg       string
}

func (e *ShapeError) Error() string {
	var s = "shape mismatch"
	if e.Msg != "" {
		s = e.Msg
	}
	if e.Field != "" {
		s += fmt.Sprintf(", field %q", e.Field)
	}
	if e.Partition >= 0 {
		s += fmt.Sprintf(", partition %d", e.Partition)
	}
	return fmt.Sprintf("%s: expected %d, got %d", s, e.Expected, e.Actual)
}

func (e *ShapeError) Unwrap() error { return ErrShape }
