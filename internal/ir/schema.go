package ir

import "fmt"

// PropertyValueType is the value type a property type accepts.
type PropertyValueType string

const (
	PropertyText    PropertyValueType = "text"
	PropertyNumber  PropertyValueType = "number"
	PropertyBoolean PropertyValueType = "boolean"
	PropertyObject  PropertyValueType = "object"
	PropertyList    PropertyValueType = "list"
)

// Valid reports whether t is a known value type.
func (t PropertyValueType) Valid() bool {
	switch t {
	case PropertyText, PropertyNumber, PropertyBoolean, PropertyObject, PropertyList:
		return true
	}
	return false
}

// Accepts reports whether v conforms to the value type. Null is never
// accepted; absent properties are expressed by omission.
func (t PropertyValueType) Accepts(v Value) bool {
	switch t {
	case PropertyText:
		_, ok := v.(String)
		return ok
	case PropertyNumber:
		_, ok := v.(Int)
		return ok
	case PropertyBoolean:
		_, ok := v.(Bool)
		return ok
	case PropertyObject:
		_, ok := v.(Object)
		return ok
	case PropertyList:
		_, ok := v.(Array)
		return ok
	}
	return false
}

// PropertySchema describes one property of an entity type.
type PropertySchema struct {
	Title string            `json:"title,omitempty"`
	Type  PropertyValueType `json:"type"`
}

// EntityTypeSchema is the resolved schema of an entity type.
// Properties is keyed by property base URL (with trailing "/").
type EntityTypeSchema struct {
	ID          VersionedURL               `json:"$id"`
	Title       string                     `json:"title"`
	Description string                     `json:"description,omitempty"`
	Properties  map[BaseURL]PropertySchema `json:"properties"`
	Required    []BaseURL                  `json:"required,omitempty"`
	IsLink      bool                       `json:"isLink"`
}

// Validate checks the schema is structurally well formed.
func (s *EntityTypeSchema) Validate() error {
	if !s.ID.Valid() {
		return fmt.Errorf("entity type %q: invalid versioned url", s.ID)
	}
	for key, prop := range s.Properties {
		if key == "" {
			return fmt.Errorf("entity type %q: empty property key", s.ID)
		}
		if !prop.Type.Valid() {
			return fmt.Errorf("entity type %q: property %q has unknown type %q", s.ID, key, prop.Type)
		}
	}
	for _, req := range s.Required {
		if _, ok := s.Properties[req]; !ok {
			return fmt.Errorf("entity type %q: required property %q is not declared", s.ID, req)
		}
	}
	return nil
}
