package schema_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/fhirsql/pkg/schema"
)

func TestDefaultRegistry(t *testing.T) {
	reg, err := schema.Default()
	require.NoError(t, err)

	t.Run("repeating element", func(t *testing.T) {
		el, ok := reg.Element("Patient", "name")
		require.True(t, ok)
		assert.Equal(t, "HumanName", el.Type)
		assert.True(t, el.Array)
	})

	t.Run("single element", func(t *testing.T) {
		el, ok := reg.Element("Patient", "birthDate")
		require.True(t, ok)
		assert.Equal(t, "date", el.Type)
		assert.False(t, el.Array)
	})

	t.Run("datatype element", func(t *testing.T) {
		el, ok := reg.Element("HumanName", "given")
		require.True(t, ok)
		assert.Equal(t, "string", el.Type)
		assert.True(t, el.Array)
	})

	t.Run("choice element", func(t *testing.T) {
		el, ok := reg.Element("Observation", "value")
		require.True(t, ok)
		require.True(t, el.IsChoice())
		field, ok := el.ChoiceField("Quantity")
		require.True(t, ok)
		assert.Equal(t, "valueQuantity", field)
		field, ok = el.ChoiceField("System.DateTime")
		require.True(t, ok)
		assert.Equal(t, "valueDateTime", field)
		_, ok = el.ChoiceField("Attachment")
		assert.False(t, ok)
	})

	t.Run("unknown element", func(t *testing.T) {
		_, ok := reg.Element("Patient", "favouriteColour")
		assert.False(t, ok)
		_, ok = reg.Element("Spaceship", "name")
		assert.False(t, ok)
	})

	t.Run("resources", func(t *testing.T) {
		assert.True(t, reg.IsResource("Patient"))
		assert.False(t, reg.IsResource("HumanName"))
		assert.Contains(t, reg.Resources(), "Observation")
	})

	t.Run("types", func(t *testing.T) {
		assert.True(t, reg.HasType("HumanName"))
		assert.True(t, reg.HasType("FHIR.Quantity"))
		assert.True(t, reg.HasType("Patient"))
		assert.False(t, reg.HasType("string"))
		assert.False(t, reg.HasType("Spaceship"))
	})
}

func TestLoadRejectsBadDefinitions(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"choice without types", "types:\n  Patient:\n    value[x]: []\n"},
		{"resource without type", "resources: [Patient]\ntypes: {}\n"},
		{"empty type", "types:\n  Patient:\n    name: \"[]\"\n"},
		{"not yaml", "types: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := schema.Load([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		typeName string
		want     schema.Category
	}{
		{"string", schema.CategoryText},
		{"System.String", schema.CategoryText},
		{"positiveInt", schema.CategoryNumeric},
		{"decimal", schema.CategoryNumeric},
		{"boolean", schema.CategoryBoolean},
		{"date", schema.CategoryDate},
		{"instant", schema.CategoryDateTime},
		{"FHIR.dateTime", schema.CategoryDateTime},
		{"time", schema.CategoryTime},
		{"HumanName", schema.CategoryComplex},
		{"", schema.CategoryUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.typeName, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.Classify(tt.typeName))
		})
	}
}

func TestTableName(t *testing.T) {
	for in, want := range map[string]string{
		"Patient":           "patient",
		"MedicationRequest": "medicationrequest",
		"observation":       "observation",
	} {
		assert.Equal(t, want, schema.TableName(in), in)
	}
}
