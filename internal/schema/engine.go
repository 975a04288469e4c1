package schema

import (
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/leapstack-labs/sysmlsql/pkg/core"
	"github.com/leapstack-labs/sysmlsql/pkg/jsonschema"
)

// Result is the outcome of schema inference.
type Result struct {
	// Representations maps every stored property to its fused representation.
	Representations map[string]Representation
	// Problems lists the properties left out of the schema.
	Problems []Problem
	DDL      string
}

// Engine infers relational schemas from JSON-Schema documents.
type Engine struct {
	logger *slog.Logger
}

// NewEngine creates an engine. A nil logger discards output.
func NewEngine(logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Engine{logger: logger}
}

type collector struct {
	candidates map[string][]Representation
	problems   []Problem
}

func (c *collector) add(name string, r Representation) {
	if !slices.Contains(c.candidates[name], r) {
		c.candidates[name] = append(c.candidates[name], r)
	}
}

// Infer classifies and fuses all properties of root and renders the DDL.
func (e *Engine) Infer(root *jsonschema.Root) (*Result, error) {
	start := time.Now()
	e.logger.Debug("processing schema", slog.Int("definitions", len(root.Defs)))

	c := &collector{candidates: make(map[string][]Representation)}
	for _, defName := range root.DefinitionNames() {
		e.logger.Debug("processing definition", slog.String("definition", defName))
		if err := c.definition(defName, root.Defs[defName].Type); err != nil {
			return nil, err
		}
	}

	fused, err := e.fuse(c.candidates)
	if err != nil {
		return nil, err
	}
	if err := forcePolymorphic(fused); err != nil {
		return nil, err
	}

	ddl, err := RenderDDL(fused)
	if err != nil {
		return nil, err
	}

	for _, p := range c.problems {
		e.logger.Debug("property without representation", slog.String("problem", p.String()))
	}
	e.logger.Debug("schema conversion finished", slog.Duration("took", time.Since(start)))
	e.logger.Debug("generated SQL schema", slog.Int("bytes", len(ddl)))

	return &Result{Representations: fused, Problems: c.problems, DDL: ddl}, nil
}

func (c *collector) definition(defName string, t jsonschema.Type) error {
	switch ty := t.(type) {
	case jsonschema.Object:
		return c.properties(defName, ty)
	case jsonschema.String:
		c.problems = append(c.problems, Problem{Definition: defName, Type: ty, Reason: "string definition"})
		return nil
	case jsonschema.AnyOf:
		return c.union(defName, ty.Types)
	case jsonschema.OneOf:
		return c.union(defName, ty.Types)
	default:
		return fmt.Errorf("%w: %s is %s", ErrUnsupportedDefinition, defName, t)
	}
}

func (c *collector) union(defName string, members []jsonschema.Type) error {
	for _, member := range members {
		switch m := member.(type) {
		case jsonschema.Object:
			if err := c.properties(defName, m); err != nil {
				return err
			}
		case jsonschema.Ref:
			// references contribute no properties of their own
		default:
			return fmt.Errorf("%w: union member of %s is %s", ErrUnsupportedDefinition, defName, member)
		}
	}
	return nil
}

func (c *collector) properties(defName string, obj jsonschema.Object) error {
	for _, name := range obj.PropertyNames() {
		prop := obj.Properties[name]
		r, err := Classify(name, prop)
		if err != nil {
			c.problems = append(c.problems, Problem{Definition: defName, Property: name, Type: prop, Reason: err.Error()})
			continue
		}
		if name == core.IDProperty {
			if err := checkPrimaryKey(r); err != nil {
				return fmt.Errorf("definition %s: %w", defName, err)
			}
		}
		c.add(name, r)
	}
	return nil
}

func checkPrimaryKey(r Representation) error {
	col, ok := r.(Column)
	switch {
	case !ok:
		return fmt.Errorf("%w: %q must resolve to a column, got %s", ErrPrimaryKey, core.IDProperty, r)
	case !col.Unique:
		return fmt.Errorf("%w: %q must be unique", ErrPrimaryKey, core.IDProperty)
	case col.ForeignKey:
		return fmt.Errorf("%w: %q must not be a foreign key", ErrPrimaryKey, core.IDProperty)
	case col.Nullable:
		return fmt.Errorf("%w: %q must not allow null values", ErrPrimaryKey, core.IDProperty)
	}
	return nil
}

func (e *Engine) fuse(candidates map[string][]Representation) (map[string]Representation, error) {
	e.logger.Info("fusing polymorphic SQL representations")

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	slices.Sort(names)

	fused := make(map[string]Representation, len(names))
	for _, name := range names {
		if core.IsPolymorphic(name) {
			continue
		}
		reprs := slices.Clone(candidates[name])
		slices.SortFunc(reprs, compareRepresentations)
		if len(reprs) > 1 {
			e.logger.Debug("conflicting definitions for column", slog.String("column", name), slog.Any("representations", reprs))
		}
		r, err := FuseAll(name, reprs)
		if err != nil {
			return nil, err
		}
		fused[name] = r
	}

	if _, ok := fused[core.IDProperty]; !ok {
		return nil, fmt.Errorf("%w: no definition declares %q", ErrPrimaryKey, core.IDProperty)
	}
	return fused, nil
}

// forcePolymorphic stores every polymorphic property as a generic nullable column.
func forcePolymorphic(fused map[string]Representation) error {
	for _, name := range core.PolymorphicProperties() {
		if existing, ok := fused[name]; ok {
			return fmt.Errorf("there was already a representation for the polymorphic property %q: %s", name, existing)
		}
		fused[name] = Column{Nullable: true, Type: "ANY"}
	}
	return nil
}
