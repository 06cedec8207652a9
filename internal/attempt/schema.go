package attempt

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const wireSchemaURL = "schema://attempt.wire.json"

// wireSchemaJSON is the minimal shape every pushed or imported record must have.
const wireSchemaJSON = `{
  "type": "object",
  "required": ["id", "ts", "baseId", "kind", "sections"],
  "properties": {
    "id":     {"type": "string", "minLength": 1},
    "ts":     {"type": "number", "exclusiveMinimum": 0},
    "baseId": {"type": "string", "minLength": 1},
    "kind":   {"type": "string", "minLength": 1},
    "mode":   {"type": "string"},
    "updatedAt": {"type": "number", "minimum": 0},
    "sections": {
      "type": "object",
      "properties": {
        "rw":   {"$ref": "#/$defs/tally"},
        "math": {"$ref": "#/$defs/tally"}
      }
    },
    "skills": {
      "type": "object",
      "additionalProperties": {"$ref": "#/$defs/tally"}
    }
  },
  "$defs": {
    "tally": {
      "type": "object",
      "properties": {
        "correct": {"type": "integer", "minimum": 0},
        "total":   {"type": "integer", "minimum": 0}
      }
    }
  }
}`

var (
	wireOnce   sync.Once
	wireSchema *jsonschema.Schema
	wireErr    error
)

func compiledWireSchema() (*jsonschema.Schema, error) {
	wireOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(wireSchemaJSON), &def); err != nil {
			wireErr = fmt.Errorf("parse wire schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(wireSchemaURL, def); err != nil {
			wireErr = fmt.Errorf("add resource: %w", err)
			return
		}
		wireSchema, wireErr = c.Compile(wireSchemaURL)
	})
	return wireSchema, wireErr
}

// ValidateWire checks one raw record against the wire schema. Failures wrap
// ErrMalformed.
func ValidateWire(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return ValidateValue(v)
}

// ValidateValue is ValidateWire for an already decoded value.
func ValidateValue(v any) error {
	s, err := compiledWireSchema()
	if err != nil {
		return err
	}
	if err := s.Validate(v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return nil
}
