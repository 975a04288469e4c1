package jsonschema

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/goccy/go-json"
)

// ErrUnsupportedType is returned for type declarations outside the modeled subset.
var ErrUnsupportedType = errors.New("unsupported JSON-Schema type")

type rawRoot struct {
	Schema string                     `json:"$schema"`
	Defs   map[string]json.RawMessage `json:"$defs"`
}

type rawType struct {
	Type                 *string                    `json:"type"`
	Items                json.RawMessage            `json:"items"`
	Properties           map[string]json.RawMessage `json:"properties"`
	Required             []string                   `json:"required"`
	AdditionalProperties *bool                      `json:"additionalProperties"`
	Enum                 []string                   `json:"enum"`
	Format               string                     `json:"format"`
	Const                *string                    `json:"const"`
	AnyOf                []json.RawMessage          `json:"anyOf"`
	OneOf                []json.RawMessage          `json:"oneOf"`
	Ref                  *string                    `json:"$ref"`
}

type rawDefinition struct {
	ID    string `json:"$id"`
	Title string `json:"title"`
}

// ParseFile reads and parses a schema document from path.
func ParseFile(path string) (*Root, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Parse(f)
}

// Parse decodes a schema document.
func Parse(r io.Reader) (*Root, error) {
	var raw rawRoot
	if err := json.NewDecoder(r).Decode(&raw); err != nil {
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}

	root := &Root{
		Schema: raw.Schema,
		Defs:   make(map[string]Definition, len(raw.Defs)),
	}
	for name, msg := range raw.Defs {
		def, err := parseDefinition(msg)
		if err != nil {
			return nil, fmt.Errorf("definition %q: %w", name, err)
		}
		root.Defs[name] = def
	}
	return root, nil
}

func parseDefinition(msg json.RawMessage) (Definition, error) {
	var head rawDefinition
	if err := json.Unmarshal(msg, &head); err != nil {
		return Definition{}, err
	}
	ty, err := parseType(msg)
	if err != nil {
		return Definition{}, err
	}
	return Definition{ID: head.ID, Title: head.Title, Type: ty}, nil
}

// ParseType decodes a single type declaration.
func ParseType(data []byte) (Type, error) {
	return parseType(data)
}

func parseType(msg json.RawMessage) (Type, error) {
	var raw rawType
	if err := json.Unmarshal(msg, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedType, err)
	}

	switch {
	case raw.Type != nil:
		return parseConcrete(&raw)
	case raw.AnyOf != nil:
		types, err := parseTypes(raw.AnyOf)
		if err != nil {
			return nil, err
		}
		return AnyOf{Types: types}, nil
	case raw.OneOf != nil:
		types, err := parseTypes(raw.OneOf)
		if err != nil {
			return nil, err
		}
		return OneOf{Types: types}, nil
	case raw.Ref != nil:
		return Ref{Ref: *raw.Ref}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, msg)
	}
}

func parseConcrete(raw *rawType) (Type, error) {
	switch *raw.Type {
	case "array":
		if raw.Items == nil {
			return nil, fmt.Errorf("%w: array without items", ErrUnsupportedType)
		}
		items, err := parseType(raw.Items)
		if err != nil {
			return nil, err
		}
		return Array{Items: items}, nil
	case "object":
		obj := Object{
			Properties: make(map[string]Type, len(raw.Properties)),
			Required:   raw.Required,
		}
		if raw.AdditionalProperties != nil {
			obj.AdditionalProperties = *raw.AdditionalProperties
		}
		for name, msg := range raw.Properties {
			t, err := parseType(msg)
			if err != nil {
				return nil, fmt.Errorf("property %q: %w", name, err)
			}
			obj.Properties[name] = t
		}
		return obj, nil
	case "string":
		return String{Enum: raw.Enum, Format: raw.Format, Const: raw.Const}, nil
	case "null":
		return Null{}, nil
	case "boolean":
		return Boolean{}, nil
	case "number":
		return Number{}, nil
	case "integer":
		return Integer{}, nil
	default:
		return nil, fmt.Errorf("%w: type %q", ErrUnsupportedType, *raw.Type)
	}
}

func parseTypes(msgs []json.RawMessage) ([]Type, error) {
	types := make([]Type, 0, len(msgs))
	for _, msg := range msgs {
		t, err := parseType(msg)
		if err != nil {
			return nil, err
		}
		types = append(types, t)
	}
	return types, nil
}
