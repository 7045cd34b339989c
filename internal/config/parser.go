package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a supported document syntax.
type Format string

const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatTOML Format = "toml"
)

// FormatOf picks the document format from the file extension:
//   - .json -> JSON
//   - .toml -> TOML
//   - .yaml, .yml, anything else -> YAML
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".toml":
		return FormatTOML
	}
	return FormatYAML
}

// Parse decodes a document into a generic key-value tree. The format is
// determined by the extension of path, defaulting to YAML.
//
// Malformed input is reported as a *SyntaxError.
func Parse(data []byte, path string) (interface{}, error) {
	format := FormatOf(path)

	var tree interface{}
	var err error
	switch format {
	case FormatJSON:
		tree, err = parseJSON(data)
	case FormatTOML:
		var doc map[string]interface{}
		err = toml.Unmarshal(data, &doc)
		tree = doc
	default:
		tree, err = parseYAML(data)
	}

	if err != nil {
		return nil, newSyntaxError(path, format, data, err)
	}
	return tree, nil
}

func parseJSON(data []byte) (interface{}, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty document")
		}
		return nil, err
	}

	// Anything after the first value is an error.
	offset := dec.InputOffset()
	var extra interface{}
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, &trailingDataError{offset: offset}
	}
	return tree, nil
}

func parseYAML(data []byte) (interface{}, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var tree interface{}
	if err := dec.Decode(&tree); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}

	// A config file holds a single document.
	var extra yaml.Node
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		if err != nil {
			return nil, err
		}
		return nil, &extraDocumentError{line: extra.Line}
	}
	return tree, nil
}

type extraDocumentError struct {
	line int
}

func (e *extraDocumentError) Error() string {
	return fmt.Sprintf("unexpected second document at line %d", e.line)
}

type trailingDataError struct {
	offset int64
}

func (e *trailingDataError) Error() string {
	return "unexpected data after top-level value"
}

var yamlLinePattern = regexp.MustCompile(`line (\d+)`)

func newSyntaxError(path string, format Format, data []byte, err error) *SyntaxError {
	syntaxErr := &SyntaxError{Path: path, Format: string(format), Err: err}

	var jsonErr *json.SyntaxError
	var trailingErr *trailingDataError
	var tomlErr *toml.DecodeError
	var extraErr *extraDocumentError
	switch {
	case errors.As(err, &jsonErr):
		syntaxErr.Line, syntaxErr.Column = lineColumn(data, jsonErr.Offset)
	case errors.As(err, &trailingErr):
		syntaxErr.Line, syntaxErr.Column = lineColumn(data, trailingErr.offset)
	case errors.Is(err, io.ErrUnexpectedEOF) && format == FormatJSON:
		syntaxErr.Line, syntaxErr.Column = lineColumn(data, int64(len(data)))
	case errors.As(err, &tomlErr):
		syntaxErr.Line, syntaxErr.Column = tomlErr.Position()
	case errors.As(err, &extraErr):
		syntaxErr.Line = extraErr.line
	default:
		if m := yamlLinePattern.FindStringSubmatch(err.Error()); m != nil {
			syntaxErr.Line, _ = strconv.Atoi(m[1])
		}
	}
	return syntaxErr
}

// lineColumn converts a byte offset into a 1-based line and column.
func lineColumn(data []byte, offset int64) (int, int) {
	if offset > int64(len(data)) {
		offset = int64(len(data))
	}
	before := data[:offset]
	line := bytes.Count(before, []byte("\n")) + 1
	column := int(offset) - bytes.LastIndexByte(before, '\n')
	return line, column
}
