// Package contract validates capability request bodies against JSON
// schemas derived from the wire types before anything else sees them.
package contract

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"

	"gwgp-assistant-backend/internal/types"
)

// ErrInvalid wraps every decoding or validation failure.
var ErrInvalid = errors.New("invalid request")

const dataURIPattern = `^data:[^,;]+/[^,;]+(;[^,;]+)*;base64,`

// Schema decodes and validates one request type.
type Schema[T any] struct {
	schema   *jsonschema.Schema
	resolved *jsonschema.Resolved
}

// New infers the schema for T, lets refine tighten it, and resolves it.
func New[T any](refine func(*jsonschema.Schema)) (*Schema[T], error) {
	s, err := jsonschema.For[T](nil)
	if err != nil {
		return nil, fmt.Errorf("infer schema: %w", err)
	}
	if refine != nil {
		refine(s)
	}
	resolved, err := s.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve schema: %w", err)
	}
	return &Schema[T]{schema: s, resolved: resolved}, nil
}

// MustNew is New for package-level schemas.
func MustNew[T any](refine func(*jsonschema.Schema)) *Schema[T] {
	s, err := New[T](refine)
	if err != nil {
		panic(err)
	}
	return s
}

// JSONSchema exposes the underlying schema (tool declarations reuse it).
func (s *Schema[T]) JSONSchema() *jsonschema.Schema { return s.schema }

// Decode validates raw JSON and unmarshals it into T.
func (s *Schema[T]) Decode(raw []byte) (T, error) {
	var zero T
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return zero, fmt.Errorf("%w: malformed JSON: %v", ErrInvalid, err)
	}
	if err := s.resolved.Validate(instance); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return out, nil
}

func minLen(n int) *int { return &n }

func prop(s *jsonschema.Schema, path ...string) *jsonschema.Schema {
	for _, p := range path {
		if s == nil || s.Properties == nil {
			return nil
		}
		s = s.Properties[p]
	}
	return s
}

// Request schemas for every capability endpoint.
var (
	Answer = MustNew[types.AnswerRequest](func(s *jsonschema.Schema) {
		if p := prop(s, "media", "dataUri"); p != nil {
			p.Pattern = dataURIPattern
		}
		if p := prop(s, "media", "type"); p != nil {
			p.Enum = []any{string(types.MediaImage), string(types.MediaVideo)}
		}
	})

	EditImage = MustNew[types.EditImageRequest](func(s *jsonschema.Schema) {
		prop(s, "photoDataUri").Pattern = `^data:image/[^,;]+(;[^,;]+)*;base64,`
		prop(s, "prompt").MinLength = minLen(1)
	})

	Speech = MustNew[types.SpeechRequest](func(s *jsonschema.Schema) {
		prop(s, "text").MinLength = minLen(1)
	})

	Video = MustNew[types.VideoRequest](func(s *jsonschema.Schema) {
		prop(s, "prompt").MinLength = minLen(1)
	})

	Search = MustNew[types.SearchRequest](func(s *jsonschema.Schema) {
		prop(s, "query").MinLength = minLen(1)
	})

	VoiceTurn = MustNew[types.VoiceTurnRequest](func(s *jsonschema.Schema) {
		prop(s, "text").MinLength = minLen(1)
	})
)
