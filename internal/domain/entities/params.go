// Package entities defines core domain models and data structures.
package entities

import (
	"fmt"
	"strconv"
)

// Recognized run parameter names
const (
	ParamGenomes       = "genomes"
	ParamDatabase      = "database"
	ParamVirome        = "virome"
	ParamDiamond       = "diamond"
	ParamKeepDB        = "keep_db"
	ParamNoC           = "no_c"
	ParamWorkspaceName = "workspace_name"
)

// BooleanParams lists the switch parameters in the order their flags are emitted.
// A switch is enabled when its value is 0.
var BooleanParams = []string{ParamVirome, ParamDiamond, ParamKeepDB, ParamNoC}

// RunParameters is the read-only parameter record of a single run
type RunParameters struct {
	values map[string]interface{}
}

// NewRunParameters copies values into a new parameter record
func NewRunParameters(values map[string]interface{}) *RunParameters {
	copied := make(map[string]interface{}, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &RunParameters{values: copied}
}

// With returns a copy of p with key set to value
func (p *RunParameters) With(key string, value interface{}) *RunParameters {
	var values map[string]interface{}
	if p != nil {
		values = p.values
	}
	next := NewRunParameters(values)
	next.values[key] = value
	return next
}

// Has reports whether key is present, even with an empty value
func (p *RunParameters) Has(key string) bool {
	if p == nil {
		return false
	}
	_, ok := p.values[key]
	return ok
}

// Value returns the raw value stored under key
func (p *RunParameters) Value(key string) (interface{}, bool) {
	if p == nil {
		return nil, false
	}
	v, ok := p.values[key]
	return v, ok
}

// String returns the value under key rendered as a string.
// Integral floats (as produced by JSON decoding) are rendered without a fraction.
func (p *RunParameters) String(key string) (string, bool) {
	v, ok := p.Value(key)
	if !ok || v == nil {
		return "", ok
	}
	return scalarString(v), true
}

// IsOff reports whether the value under key equals the sentinel 0.
// false compares equal to 0; missing keys and other values are never off.
func (p *RunParameters) IsOff(key string) bool {
	v, ok := p.Value(key)
	if !ok {
		return false
	}

	switch n := v.(type) {
	case bool:
		return !n
	case int:
		return n == 0
	case int64:
		return n == 0
	case float64:
		return n == 0
	default:
		return false
	}
}

// WorkspaceName returns the target workspace, empty when not provided
func (p *RunParameters) WorkspaceName() string {
	name, _ := p.String(ParamWorkspaceName)
	return name
}

func scalarString(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(s), 'f', -1, 32)
	default:
		return fmt.Sprint(v)
	}
}
