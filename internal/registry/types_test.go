package registry

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidateSchema(t *testing.T) {
	t.Parallel()

	t.Run("nil schema is fine", func(t *testing.T) {
		require.NoError(t, ValidateSchema(nil))
	})

	t.Run("valid", func(t *testing.T) {
		s := &SchemaDefinition{
			Fields: []SchemaField{
				{Name: "date", Type: FieldTypeDate},
				{Name: "amount", Type: FieldTypeNumber},
				{Name: "description", Type: FieldTypeString},
			},
			RequiredFields: []string{"date", "amount"},
		}
		require.NoError(t, ValidateSchema(s))
	})

	t.Run("empty field name", func(t *testing.T) {
		s := &SchemaDefinition{Fields: []SchemaField{{Name: "  ", Type: FieldTypeString}}}
		require.Error(t, ValidateSchema(s))
	})

	t.Run("duplicate field name", func(t *testing.T) {
		s := &SchemaDefinition{Fields: []SchemaField{
			{Name: "date", Type: FieldTypeDate},
			{Name: "date", Type: FieldTypeString},
		}}
		require.Error(t, ValidateSchema(s))
	})

	t.Run("unknown type", func(t *testing.T) {
		s := &SchemaDefinition{Fields: []SchemaField{{Name: "x", Type: FieldType("blob")}}}
		require.Error(t, ValidateSchema(s))
	})

	t.Run("required field not declared", func(t *testing.T) {
		s := &SchemaDefinition{
			Fields:         []SchemaField{{Name: "date", Type: FieldTypeDate}},
			RequiredFields: []string{"date", "amount"},
		}
		err := ValidateSchema(s)
		require.Error(t, err)
		require.Contains(t, err.Error(), "amount")
	})
}
