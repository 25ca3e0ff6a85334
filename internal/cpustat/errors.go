package cpustat

import (
	"errors"
	"fmt"
)

// Field identifies one token position of a per-core counter line.
type Field int

const (
	// FieldLabel is the leading core name token ("cpu0", "cpu1", ...).
	FieldLabel Field = iota
	FieldUser
	FieldNice
	FieldSystem
	FieldIdle
	FieldIOWait
	FieldIRQ
	FieldSoftIRQ
	FieldSteal
	FieldGuest
	FieldGuestNice
)

// fieldCount is the number of tokens a counter line must carry.
const fieldCount = int(FieldGuestNice) + 1

// String returns the human-readable field name used in diagnostics.
func (f Field) String() string {
	switch f {
	case FieldLabel:
		return "cpu name"
	case FieldUser:
		return "user"
	case FieldNice:
		return "nice"
	case FieldSystem:
		return "system"
	case FieldIdle:
		return "idle"
	case FieldIOWait:
		return "IO wait"
	case FieldIRQ:
		return "IRQ"
	case FieldSoftIRQ:
		return "soft IRQ"
	case FieldSteal:
		return "steal"
	case FieldGuest:
		return "guest"
	case FieldGuestNice:
		return "guest nice"
	default:
		return fmt.Sprintf("field(%d)", int(f))
	}
}

var (
	// ErrMissingField is wrapped by a FieldError when the line ends before the field.
	ErrMissingField = errors.New("missing field")

	// ErrNoCores is returned when a dump holds no per-core counter lines.
	ErrNoCores = errors.New("no CPU cores found")
)

// FieldError reports which counter of a line was absent or malformed.
type FieldError struct {
	Field Field
	Err   error
}

// Error implements the error interface.
func (e *FieldError) Error() string {
	if errors.Is(e.Err, ErrMissingField) {
		return fmt.Sprintf("%s: missing field", e.Field)
	}
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *FieldError) Unwrap() error {
	return e.Err
}

// ParseError locates a FieldError within a multi-line dump.
type ParseError struct {
	// Line is the 1-based line number of the offending record.
	Line int
	Err  error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *ParseError) Unwrap() error {
	return e.Err
}

// IndexError is returned by per-core queries for a core that does not exist.
type IndexError struct {
	Index int
	Count int
}

// Error implements the error interface.
func (e *IndexError) Error() string {
	return fmt.Sprintf("core index %d out of range [0, %d)", e.Index, e.Count)
}

// SourceError wraps a failure of the injected counter source.
type SourceError struct {
	Err error
}

// Error implements the error interface.
func (e *SourceError) Error() string {
	return fmt.Sprintf("reading counters: %v", e.Err)
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *SourceError) Unwrap() error {
	return e.Err
}

// FieldOf returns the field named by a FieldError anywhere in err's chain.
func FieldOf(err error) (Field, bool) {
	var fe *FieldError
	if errors.As(err, &fe) {
		return fe.Field, true
	}
	return 0, false
}
