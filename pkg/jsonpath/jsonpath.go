package jsonpath

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Query selects a value from a JSON document.
//
// Paths may be written JSONPath style ($.lr.MF.IPS, $['tables'].user,
// $.data_logging_settings.train_val_test_ratio[0]) or directly in gjson
// syntax (lr.MF.IPS).
func Query(json []byte, path string) (gjson.Result, error) {
	if len(json) == 0 {
		return gjson.Result{}, fmt.Errorf("empty JSON document")
	}
	if !gjson.ValidBytes(json) {
		return gjson.Result{}, fmt.Errorf("invalid JSON document")
	}
	if path == "" {
		return gjson.Result{}, fmt.Errorf("empty path expression")
	}

	result := gjson.GetBytes(json, ToGjsonPath(path))
	if !result.Exists() {
		return gjson.Result{}, fmt.Errorf("path not found: %s", path)
	}
	return result, nil
}

// Extract returns the selected value as a string. Objects and arrays are
// returned as raw JSON, null as "null".
func Extract(json []byte, path string) (string, error) {
	result, err := Query(json, path)
	if err != nil {
		return "", err
	}
	if result.Type == gjson.Null {
		return "null", nil
	}
	if result.IsObject() || result.IsArray() {
		return result.Raw, nil
	}
	return result.String(), nil
}

var (
	quotedBracket = regexp.MustCompile(`\[['"]([^'"]*)['"]\]`)
	indexBracket  = regexp.MustCompile(`\[(\d+)\]`)
)

// ToGjsonPath converts a JSONPath expression to gjson path syntax.
func ToGjsonPath(path string) string {
	path = strings.TrimPrefix(path, "$")
	if path == "" {
		return "@this"
	}

	path = quotedBracket.ReplaceAllString(path, ".$1")
	path = indexBracket.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}
