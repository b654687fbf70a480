// Package configschema validates a campaign manifest — the document naming
// the target binary, its argument template, the format plug-in, and the
// seed corpus — against a JSON Schema before the engine trusts any of it.
// The flat Config record (corpus size, generation size, operator
// probabilities...) validates itself with plain range checks in package
// config; this schema is for the richer, user-authored manifest where
// free-form mistakes (a missing seeds array, a non-string target path) are
// better caught with a declarative schema than a hand-written checker.
package configschema

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const manifestSchemaJSON = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["target", "format", "seeds"],
  "properties": {
    "target": {
      "type": "object",
      "required": ["path", "args"],
      "properties": {
        "path": {"type": "string", "minLength": 1},
        "args": {"type": "array", "items": {"type": "string"}}
      }
    },
    "format": {"type": "string", "minLength": 1},
    "seeds": {
      "type": "array",
      "minItems": 1,
      "items": {"type": "string", "minLength": 1}
    },
    "run_dir": {"type": "string"}
  }
}`

var compiled *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("manifest.json", bytes.NewReader([]byte(manifestSchemaJSON))); err != nil {
		panic(fmt.Sprintf("configschema: invalid embedded schema: %v", err))
	}
	schema, err := compiler.Compile("manifest.json")
	if err != nil {
		panic(fmt.Sprintf("configschema: failed to compile embedded schema: %v", err))
	}
	compiled = schema
}

// Manifest is a campaign manifest once it has passed schema validation.
type Manifest struct {
	Target struct {
		Path string   `json:"path"`
		Args []string `json:"args"`
	} `json:"target"`
	Format string   `json:"format"`
	Seeds  []string `json:"seeds"`
	RunDir string   `json:"run_dir"`
}

// Validate parses and validates data against the manifest schema,
// returning the decoded Manifest on success.
func Validate(data []byte) (*Manifest, error) {
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return nil, fmt.Errorf("manifest is not valid JSON: %w", err)
	}
	if err := compiled.Validate(generic); err != nil {
		return nil, fmt.Errorf("manifest failed schema validation: %w", err)
	}
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest decode: %w", err)
	}
	return &m, nil
}
