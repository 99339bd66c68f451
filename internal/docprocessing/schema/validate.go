package schema

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// ErrSchemaValidation is returned when a model response is not valid JSON or
// does not conform to the extraction schema.
var ErrSchemaValidation = errors.New("schema validation failed")

const schemaURL = "medical_extraction.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		b, err := json.Marshal(Build())
		if err != nil {
			compileErr = fmt.Errorf("marshal schema: %w", err)
			return
		}
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft2020
		compiler.AssertFormat = true
		if err := compiler.AddResource(schemaURL, bytes.NewReader(b)); err != nil {
			compileErr = fmt.Errorf("add schema: %w", err)
			return
		}
		compiled, compileErr = compiler.Compile(schemaURL)
		if compileErr != nil {
			compileErr = fmt.Errorf("compile schema: %w", compileErr)
		}
	})
	return compiled, compileErr
}

// Parse validates raw model output against the extraction schema and decodes
// it into typed records with defaults applied. Unknown fields are ignored.
func Parse(raw string) (*MedicalExtraction, error) {
	schema, err := compiledSchema()
	if err != nil {
		return nil, err
	}

	body := []byte(stripFence(raw))

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: response is not valid JSON: %v", ErrSchemaValidation, err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}

	// The schema accepts 36.0 as an integer; encoding/json does not.
	body, err = json.Marshal(integralNumbers(doc))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}

	var out MedicalExtraction
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return &out, nil
}

// integralNumbers rewrites numbers with no fractional part, such as 36.0 or
// 4e1, in integer form. Other values are returned unchanged.
func integralNumbers(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			t[k] = integralNumbers(e)
		}
	case []any:
		for i, e := range t {
			t[i] = integralNumbers(e)
		}
	case json.Number:
		if !strings.ContainsAny(string(t), ".eE") {
			return t
		}
		f, err := t.Float64()
		if err != nil || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
			return t
		}
		return json.Number(strconv.FormatInt(int64(f), 10))
	}
	return v
}

// stripFence removes a surrounding ```json fence if the model added one.
func stripFence(raw string) string {
	s := strings.TrimSpace(raw)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
