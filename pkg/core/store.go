package core

import "slices"

// Table and column names shared by the schema generator, the importer and the
// query commands.
const (
	ElementsTable           = "elements"
	RelationsTable          = "relations"
	ExtendedPropertiesTable = "extended_properties"

	// IDProperty is both the element identity attribute and the primary key
	// column of the elements table.
	IDProperty = "@id"

	RelationNameColumn   = "name"
	RelationOriginColumn = "origin_id"
	RelationTargetColumn = "target_id"
)

// polymorphicProperties may hold either a literal or a reference to another
// element depending on the element that carries them.
var polymorphicProperties = []string{"value"}

// PolymorphicProperties returns the property names that are stored both as a
// generic nullable column and as relations.
func PolymorphicProperties() []string {
	return slices.Clone(polymorphicProperties)
}

// IsPolymorphic reports whether name is a polymorphic property.
func IsPolymorphic(name string) bool {
	return slices.Contains(polymorphicProperties, name)
}

// Relation is a named, directed edge between two elements.
type Relation struct {
	Name     string
	OriginID string
	TargetID string
}

// ExtendedProperty is a single 1:n scalar fact attached to an element.
type ExtendedProperty struct {
	ElementID string
	Property  string
	Value     string
}
