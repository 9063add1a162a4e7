package registry

import (
	"fmt"
	"strings"
)

// FieldType is the declared type of a schema field.
type FieldType string

const (
	FieldTypeString  FieldType = "string"
	FieldTypeNumber  FieldType = "number"
	FieldTypeDate    FieldType = "date"
	FieldTypeBoolean FieldType = "boolean"
)

// SchemaField is one declared column of a data source.
type SchemaField struct {
	Name        string    `json:"name"`
	DisplayName string    `json:"displayName"`
	Type        FieldType `json:"type"`
	Required    bool      `json:"required"`
	Format      string    `json:"format,omitempty"`
	Description string    `json:"description,omitempty"`
}

// SchemaDefinition is the declared field layout for a data source. It is
// owned by its DataSource and mutated as a whole unit on save.
type SchemaDefinition struct {
	Fields     []SchemaField `json:"fields"`
	DateFormat string        `json:"dateFormat"`
	// DefaultMappings maps standard field name -> the source's custom
	// column header name.
	DefaultMappings map[string]string `json:"defaultMappings"`
	RequiredFields  []string          `json:"requiredFields"`
}

// DataSource is a named external feed definition.
type DataSource struct {
	ID               string            `json:"id"`
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	SchemaDefinition *SchemaDefinition `json:"schemaDefinition,omitempty"`
	CreatedAt        int64             `json:"created_at"`
	UpdatedAt        int64             `json:"updated_at"`
}

// CreateRequest is the create/update payload. SchemaDefinition is
// round-tripped verbatim by the backend.
type CreateRequest struct {
	Name             string            `json:"name"`
	Description      string            `json:"description"`
	SchemaDefinition *SchemaDefinition `json:"schemaDefinition,omitempty"`
}

// ValidateSchema checks a schema before save: field names must be non-empty
// and unique, and every required-field entry must name a declared field. The
// backend accepts inconsistent schemas, so this is the only gate.
func ValidateSchema(s *SchemaDefinition) error {
	if s == nil {
		return nil
	}
	seen := make(map[string]bool, len(s.Fields))
	for i, f := range s.Fields {
		name := strings.TrimSpace(f.Name)
		if name == "" {
			return fmt.Errorf("field %d: name is required", i+1)
		}
		if seen[name] {
			return fmt.Errorf("field %q declared more than once", name)
		}
		seen[name] = true
		switch f.Type {
		case FieldTypeString, FieldTypeNumber, FieldTypeDate, FieldTypeBoolean:
		default:
			return fmt.Errorf("field %q: unknown type %q", name, f.Type)
		}
	}
	for _, r := range s.RequiredFields {
		if !seen[r] {
			return fmt.Errorf("required field %q is not declared in fields", r)
		}
	}
	return nil
}
