package diag

import (
	"errors"
	"fmt"
)

// Severity orders diagnostics; only SevError rejects a generation.
type Severity uint8

const (
	SevInfo Severity = iota
	SevWarning
	SevError
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	}
	return "UNKNOWN"
}

// Subject locates a diagnostic: the symbol it is about and, when known, a
// syntax position inside that symbol's body. Files use their path as Symbol.
type Subject struct {
	Symbol      string
	Position    uint32
	HasPosition bool
}

// At builds a subject without a position.
func At(symbol string) Subject { return Subject{Symbol: symbol} }

// AtPosition builds a subject pointing into a body.
func AtPosition(symbol string, pos uint32) Subject {
	return Subject{Symbol: symbol, Position: pos, HasPosition: true}
}

func (s Subject) String() string {
	if s.HasPosition {
		return fmt.Sprintf("%s@%d", s.Symbol, s.Position)
	}
	return s.Symbol
}

type Note struct {
	Subject Subject
	Msg     string
}

type Diagnostic struct {
	Severity Severity
	Code     Code
	Message  string
	Primary  Subject
	Notes    []Note
}

// NewError builds an error diagnostic.
func NewError(code Code, primary Subject, msg string) Diagnostic {
	return Diagnostic{Severity: SevError, Code: code, Primary: primary, Message: msg}
}

// WithNote returns d with one more note.
func (d Diagnostic) WithNote(s Subject, msg string) Diagnostic {
	d.Notes = append(d.Notes, Note{Subject: s, Msg: msg})
	return d
}

func (d Diagnostic) Error() string {
	return fmt.Sprintf("%s %s: %s", d.Code.ID(), d.Primary, d.Message)
}

// Failure is an error that carries the diagnostic describing it. Cause, if
// set, is reachable through errors.Is and errors.As.
type Failure struct {
	Diagnostic
	Cause error
}

func (f *Failure) Unwrap() error { return f.Cause }

func (f *Failure) Diagnose() Diagnostic { return f.Diagnostic }

// Diagnoser is an error that can describe itself as a diagnostic.
type Diagnoser interface {
	error
	Diagnose() Diagnostic
}

// Errorf returns a Failure with a formatted message. A %w verb in format
// becomes the Failure's cause.
func Errorf(code Code, subject Subject, format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	return &Failure{Diagnostic: NewError(code, subject, err.Error()), Cause: errors.Unwrap(err)}
}

// Wrap attaches code and subject to err. Wrap(nil) is nil.
func Wrap(code Code, subject Subject, err error) error {
	if err == nil {
		return nil
	}
	return &Failure{Diagnostic: NewError(code, subject, err.Error()), Cause: err}
}

// As extracts the diagnostic carried by err.
func As(err error) (Diagnostic, bool) {
	var dg Diagnoser
	if errors.As(err, &dg) {
		return dg.Diagnose(), true
	}
	var d Diagnostic
	if errors.As(err, &d) {
		return d, true
	}
	return Diagnostic{}, false
}
