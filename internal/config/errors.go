package config

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a configuration failure.
type ErrorKind int

const (
	KindIO ErrorKind = iota
	KindSyntax
	KindSchema
	KindInvariant
)

func (k ErrorKind) String() string {
	switch k {
	case KindIO:
		return "io"
	case KindSyntax:
		return "syntax"
	case KindSchema:
		return "schema"
	case KindInvariant:
		return "invariant"
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Sentinels for errors.Is. Every error returned by Load matches exactly the
// sentinels of the kinds it carries.
var (
	ErrIO        = errors.New("config: io error")
	ErrSyntax    = errors.New("config: syntax error")
	ErrSchema    = errors.New("config: schema error")
	ErrInvariant = errors.New("config: invariant error")
)

func (k ErrorKind) sentinel() error {
	switch k {
	case KindIO:
		return ErrIO
	case KindSyntax:
		return ErrSyntax
	case KindSchema:
		return ErrSchema
	case KindInvariant:
		return ErrInvariant
	}
	return nil
}

// IOError reports a config file that could not be read.
type IOError struct {
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("cannot read config file %s: %v", e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

func (e *IOError) Is(target error) bool { return target == ErrIO }

// SyntaxError reports a document that is not well-formed. Line and Column
// are 1-based and zero when the parser does not expose a position.
type SyntaxError struct {
	Path   string
	Format string
	Line   int
	Column int
	Err    error
}

func (e *SyntaxError) Error() string {
	loc := e.Path
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d", loc, e.Line)
		if e.Column > 0 {
			loc = fmt.Sprintf("%s:%d", loc, e.Column)
		}
	}
	if loc == "" {
		return fmt.Sprintf("malformed %s document: %v", e.Format, e.Err)
	}
	return fmt.Sprintf("%s: malformed %s document: %v", loc, e.Format, e.Err)
}

func (e *SyntaxError) Unwrap() error { return e.Err }

func (e *SyntaxError) Is(target error) bool { return target == ErrSyntax }

// ValidationError is a single schema or invariant violation.
type ValidationError struct {
	Kind ErrorKind

	// Field is the dotted path of the offending value ("" for the document root)
	Field string

	// Invariant names the violated rule for KindInvariant errors
	Invariant string

	Message string
}

func (e *ValidationError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Invariant != "" {
		fmt.Fprintf(&sb, " [%s]", e.Invariant)
	}
	if e.Field != "" {
		fmt.Fprintf(&sb, " error on field '%s': %s", e.Field, e.Message)
	} else {
		fmt.Fprintf(&sb, " error: %s", e.Message)
	}
	return sb.String()
}

func (e *ValidationError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// ValidationErrors collects every violation found in a document.
type ValidationErrors struct {
	Errors []*ValidationError
}

func (e *ValidationErrors) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// Is reports whether any collected violation matches target.
func (e *ValidationErrors) Is(target error) bool {
	for _, err := range e.Errors {
		if err.Is(target) {
			return true
		}
	}
	return false
}

// Add adds a schema error to the collection.
func (e *ValidationErrors) Add(field, message string) {
	e.Errors = append(e.Errors, &ValidationError{Kind: KindSchema, Field: field, Message: message})
}

// AddInvariant adds an invariant violation to the collection.
func (e *ValidationErrors) AddInvariant(field, invariant, message string) {
	e.Errors = append(e.Errors, &ValidationError{
		Kind:      KindInvariant,
		Field:     field,
		Invariant: invariant,
		Message:   message,
	})
}

// HasErrors returns true if there are any errors.
func (e *ValidationErrors) HasErrors() bool {
	return len(e.Errors) > 0
}

// ByKind returns the collected errors of one kind.
func (e *ValidationErrors) ByKind(kind ErrorKind) []*ValidationError {
	var out []*ValidationError
	for _, err := range e.Errors {
		if err.Kind == kind {
			out = append(out, err)
		}
	}
	return out
}

// Kind returns the kind of err as reported by Load or Validate. Collections
// report the kind of their first error.
func Kind(err error) (ErrorKind, bool) {
	var ioErr *IOError
	var syntaxErr *SyntaxError
	var verrs *ValidationErrors
	var verr *ValidationError

	switch {
	case errors.As(err, &ioErr):
		return KindIO, true
	case errors.As(err, &syntaxErr):
		return KindSyntax, true
	case errors.As(err, &verrs) && verrs.HasErrors():
		return verrs.Errors[0].Kind, true
	case errors.As(err, &verr):
		return verr.Kind, true
	}
	return 0, false
}

// Names of the cross-field rules reported in ValidationError.Invariant.
const (
	InvariantRatio         = "train_val_test_ratio"
	InvariantRangeOrder    = "param_range_order"
	InvariantDensity       = "density_range"
	InvariantExposureBias  = "exposure_bias_positive"
	InvariantSearchVariant = "search_params_variant"
)
