package jsonschema

import (
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Violation is a single leaf failure reported by the schema validator.
type Violation struct {
	// InstanceLocation is the JSON pointer of the offending value ("" for the root)
	InstanceLocation string

	// Keyword is the schema keyword that failed (e.g. "required", "enum", "type")
	Keyword string

	// Message is the validator's description of the failure
	Message string
}

// Error implements the error interface for Violation
func (v Violation) Error() string {
	if v.InstanceLocation == "" {
		return v.Message
	}
	return fmt.Sprintf("%s: %s", v.InstanceLocation, v.Message)
}

// ValidationErrors represents a collection of validation errors
type ValidationErrors []Violation

// Error implements the error interface for ValidationErrors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, err := range ve {
		if i > 0 {
			sb.WriteString("; ")
		}
		sb.WriteString(err.Error())
	}
	return sb.String()
}

// Schema is a compiled JSON Schema. It is safe for concurrent use.
type Schema struct {
	compiled *jsonschema.Schema
}

// Compile compiles a schema document registered under name.
func Compile(name, schemaStr string) (*Schema, error) {
	compiler := jsonschema.NewCompiler()

	if err := compiler.AddResource(name, strings.NewReader(schemaStr)); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}

	return &Schema{compiled: compiled}, nil
}

// MustCompile is like Compile but panics if the schema cannot be compiled.
func MustCompile(name, schemaStr string) *Schema {
	s, err := Compile(name, schemaStr)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate validates a decoded value against the schema and returns every
// leaf violation. The value must use the shapes produced by encoding/json:
// map[string]interface{}, []interface{}, string, bool, nil, float64 or
// json.Number.
func (s *Schema) Validate(v interface{}) ValidationErrors {
	err := s.compiled.Validate(v)
	if err == nil {
		return nil
	}

	if validationErr, ok := err.(*jsonschema.ValidationError); ok {
		return extractViolations(validationErr)
	}
	return ValidationErrors{{Message: err.Error()}}
}

// extractViolations flattens the cause tree, keeping only leaves. Inner
// nodes only summarize their children.
func extractViolations(err *jsonschema.ValidationError) ValidationErrors {
	if len(err.Causes) == 0 {
		return ValidationErrors{{
			InstanceLocation: err.InstanceLocation,
			Keyword:          lastSegment(err.KeywordLocation),
			Message:          err.Message,
		}}
	}

	var violations ValidationErrors
	for _, cause := range err.Causes {
		violations = append(violations, extractViolations(cause)...)
	}
	return violations
}

func lastSegment(pointer string) string {
	if i := strings.LastIndex(pointer, "/"); i >= 0 {
		return pointer[i+1:]
	}
	return pointer
}

// SplitPointer splits a JSON pointer into its unescaped reference tokens.
func SplitPointer(pointer string) []string {
	pointer = strings.TrimPrefix(pointer, "/")
	if pointer == "" {
		return nil
	}

	tokens := strings.Split(pointer, "/")
	for i, tok := range tokens {
		tok = strings.ReplaceAll(tok, "~1", "/")
		tokens[i] = strings.ReplaceAll(tok, "~0", "~")
	}
	return tokens
}
