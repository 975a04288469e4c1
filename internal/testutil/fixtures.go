package testutil

// MinimalSchema declares an element with a uuid @id, a name and an owner
// reference.
const MinimalSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "Identified": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/Identified",
      "title": "Identified",
      "type": "object",
      "properties": {
        "@id": {"type": "string", "format": "uuid"}
      },
      "required": ["@id"]
    },
    "Element": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/Element",
      "title": "Element",
      "type": "object",
      "properties": {
        "@id": {"type": "string", "format": "uuid"},
        "name": {"type": "string"},
        "owner": {"$ref": "https://www.omg.org/spec/SysML/2.0/API/Identified"}
      },
      "required": ["@id"]
    }
  }
}`

// RichSchema exercises every representation: enum, const and nullable
// columns, booleans, numbers, relations, relation lists, extended properties
// and the polymorphic value property.
const RichSchema = `{
  "$schema": "https://json-schema.org/draft/2020-12/schema",
  "$defs": {
    "Element": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/Element",
      "type": "object",
      "properties": {
        "@id": {"type": "string", "format": "uuid"},
        "@type": {"type": "string", "const": "Element"},
        "name": {"oneOf": [{"type": "string"}, {"type": "null"}]},
        "declaredName": {"oneOf": [{"type": "string"}, {"type": "null"}]},
        "isLibraryElement": {"oneOf": [{"type": "boolean"}, {"type": "null"}]},
        "visibility": {"type": "string", "enum": ["public", "private", "protected"]},
        "owner": {"oneOf": [{"$ref": "https://www.omg.org/spec/SysML/2.0/API/Identified"}, {"type": "null"}]},
        "ownedElement": {"type": "array", "items": {"$ref": "https://www.omg.org/spec/SysML/2.0/API/Identified"}},
        "aliasIds": {"type": "array", "items": {"type": "string"}},
        "value": {"oneOf": [{"$ref": "https://www.omg.org/spec/SysML/2.0/API/Identified"}, {"type": "null"}]}
      }
    },
    "LiteralInteger": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/LiteralInteger",
      "type": "object",
      "properties": {
        "@id": {"type": "string", "format": "uuid"},
        "@type": {"type": "string", "const": "LiteralInteger"},
        "name": {"type": "string"},
        "count": {"oneOf": [{"type": "integer"}, {"type": "null"}]},
        "weight": {"oneOf": [{"type": "number"}, {"type": "null"}]},
        "value": {"oneOf": [{"type": "integer"}, {"type": "null"}]}
      }
    },
    "VisibilityKind": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/VisibilityKind",
      "type": "string",
      "enum": ["public", "private", "protected"]
    },
    "AnyElement": {
      "$id": "https://www.omg.org/spec/SysML/2.0/API/AnyElement",
      "anyOf": [
        {"$ref": "https://www.omg.org/spec/SysML/2.0/API/Element"},
        {"type": "object", "properties": {"@id": {"type": "string", "format": "uuid"}, "shortName": {"anyOf": [{"type": "string"}, {"type": "null"}]}, "tags": {"type": "object", "properties": {}}}}
      ]
    }
  }
}`
