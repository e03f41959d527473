// Package yaml reads run parameter documents written as YAML or JSON.
package yaml

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ochairo/virsorter-runner/internal/domain/entities"
)

// Job input documents wrap the method arguments in a positional list
const envelopeKey = "params"

// ParamsParser parses run parameter files
type ParamsParser struct{}

// NewParamsParser creates a new parameter parser
func NewParamsParser() *ParamsParser {
	return &ParamsParser{}
}

// ParseFile parses a parameter file into RunParameters
func (p *ParamsParser) ParseFile(filePath string) (*entities.RunParameters, error) {
	//nolint:gosec // G304: filePath is the job input document given on the command line
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filePath, err)
	}

	params, err := p.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filePath, err)
	}
	return params, nil
}

// Parse accepts either a bare mapping of parameters or a job document whose
// "params" entry is a list holding that mapping as its first element
func (p *ParamsParser) Parse(data []byte) (*entities.RunParameters, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("empty parameter document")
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal parameters: %w", err)
	}
	if doc == nil {
		return nil, fmt.Errorf("parameter document is not a mapping")
	}

	values, err := unwrapEnvelope(doc)
	if err != nil {
		return nil, err
	}
	return entities.NewRunParameters(values), nil
}

func unwrapEnvelope(doc map[string]interface{}) (map[string]interface{}, error) {
	wrapped, ok := doc[envelopeKey]
	if !ok {
		return doc, nil
	}

	switch v := wrapped.(type) {
	case []interface{}:
		if len(v) == 0 {
			return nil, fmt.Errorf("%q list is empty", envelopeKey)
		}
		first, ok := v[0].(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%q[0] is not a mapping", envelopeKey)
		}
		return first, nil
	case map[string]interface{}:
		return v, nil
	default:
		return nil, fmt.Errorf("%q must be a list or a mapping", envelopeKey)
	}
}
