package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// Schema is the JSON Schema every config file must satisfy before it is
// parsed.
const Schema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "name": { "type": "string" },
    "documents": { "type": "integer", "minimum": 0 },
    "partition": { "enum": ["lossy", "strict"] },
    "threads": { "type": "integer", "minimum": 1 },
    "stores": { "type": "integer", "minimum": 1 },
    "defaultBackend": { "type": "string", "minLength": 1 },
    "barrier": {
      "type": "object",
      "additionalProperties": false,
      "properties": {
        "timeout": { "type": "string" }
      }
    },
    "backends": {
      "type": "object",
      "additionalProperties": {
        "type": "object",
        "additionalProperties": false,
        "required": ["driver"],
        "properties": {
          "driver": { "enum": ["memory", "sqlite", "postgres"] },
          "dsn": { "type": "string" }
        }
      }
    },
    "variables": {
      "type": "object",
      "additionalProperties": { "type": "string" }
    },
    "scenarios": {
      "type": "array",
      "items": {
        "type": "object",
        "additionalProperties": false,
        "required": ["name", "workers", "stores", "mode"],
        "properties": {
          "name": { "type": "string", "minLength": 1 },
          "workers": { "type": "integer", "minimum": 1 },
          "stores": { "type": "integer", "minimum": 1 },
          "mode": {
            "enum": [
              "per-item-commit",
              "batch-commit-at-end",
              "bulk-streaming",
              "per-item-two-phase-commit",
              "async-fire-and-forget"
            ]
          }
        }
      }
    }
  }
}`

var compiledSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", strings.NewReader(Schema)); err != nil {
		panic(fmt.Sprintf("invalid config schema: %v", err))
	}
	compiledSchema = compiler.MustCompile("schema.json")
}

// ValidateSchema checks raw config data against Schema. The format follows
// the same extension rules as ParseConfig. Schema violations are returned as
// *ValidationErrors, one entry per failing location.
func ValidateSchema(data []byte, path string) error {
	doc, err := toJSONDocument(data, path)
	if err != nil {
		return err
	}

	err = compiledSchema.Validate(doc)
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return fmt.Errorf("schema validation failed: %w", err)
	}

	errs := &ValidationErrors{}
	collectSchemaErrors(verr, errs)
	if !errs.HasErrors() {
		errs.Add("", verr.Error())
	}
	return errs
}

// collectSchemaErrors flattens the leaf causes of a schema error.
func collectSchemaErrors(err *jsonschema.ValidationError, errs *ValidationErrors) {
	if len(err.Causes) == 0 {
		errs.Add(err.InstanceLocation, err.Message)
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, errs)
	}
}

// toJSONDocument decodes data into the generic form the schema validator
// expects. YAML is round-tripped through encoding/json so that numbers and
// maps have JSON types.
func toJSONDocument(data []byte, path string) (interface{}, error) {
	raw := data
	if strings.ToLower(filepath.Ext(path)) != ".json" {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
		if doc == nil {
			doc = map[string]interface{}{}
		}
		b, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("config is not representable as JSON: %w", err)
		}
		raw = b
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse JSON config: %w", err)
	}
	return doc, nil
}
