// Package schemas holds the JSON Schema documents for turnkernel wire
// contracts and validates raw payloads against them before decoding.
package schemas

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Mindburn-Labs/turnkernel/pkg/contracts"
)

// TurnSchemaURL is the $id of the embedded turn schema.
const TurnSchemaURL = "https://turnkernel.schemas.local/turn.schema.json"

//go:embed turn.schema.json
var turnSchema []byte

var compileTurn = sync.OnceValues(func() (*jsonschema.Schema, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(TurnSchemaURL, bytes.NewReader(turnSchema)); err != nil {
		return nil, fmt.Errorf("schemas: load turn schema: %w", err)
	}
	s, err := c.Compile(TurnSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("schemas: compile turn schema: %w", err)
	}
	return s, nil
})

// TurnSchema returns the raw embedded turn schema.
func TurnSchema() []byte { return bytes.Clone(turnSchema) }

// ValidateTurn checks raw against the turn schema. Violations come back as
// contracts.ValidationErrors keyed by JSON pointer; malformed JSON is a
// single INVALID_VALUE failure at the document root.
func ValidateTurn(raw []byte) error {
	s, err := compileTurn()
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return contracts.ValidationErrors{{Field: "/", Code: contracts.CodeInvalidValue, Message: fmt.Sprintf("malformed JSON: %v", err)}}
	}
	if dec.More() {
		return contracts.ValidationErrors{{Field: "/", Code: contracts.CodeInvalidValue, Message: "trailing data after document"}}
	}

	if err := s.Validate(doc); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return flatten(ve)
		}
		return fmt.Errorf("schemas: validate turn: %w", err)
	}
	return nil
}

// flatten collects the leaf causes of ve, which carry the specific keyword
// that failed.
func flatten(ve *jsonschema.ValidationError) contracts.ValidationErrors {
	var out contracts.ValidationErrors
	var walk func(e *jsonschema.ValidationError)
	walk = func(e *jsonschema.ValidationError) {
		if len(e.Causes) == 0 {
			field := e.InstanceLocation
			if field == "" {
				field = "/"
			}
			out = append(out, contracts.ValidationError{
				Field:   field,
				Code:    codeFor(e.KeywordLocation),
				Message: e.Message,
			})
			return
		}
		for _, c := range e.Causes {
			walk(c)
		}
	}
	walk(ve)
	return out
}

func codeFor(keywordLocation string) string {
	kw := keywordLocation[strings.LastIndex(keywordLocation, "/")+1:]
	switch kw {
	case "required", "minLength":
		return contracts.CodeRequired
	case "maxLength":
		return contracts.CodeTooLong
	case "minimum", "maximum", "maxItems", "maxProperties":
		return contracts.CodeOutOfRange
	case "additionalProperties", "not":
		return contracts.CodeForbidden
	default:
		return contracts.CodeInvalidValue
	}
}
