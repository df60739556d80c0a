package compiler_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/fhirsql/pkg/compiler"
	"github.com/pthm/fhirsql/pkg/dialect/sqlite"
	"github.com/pthm/fhirsql/pkg/parser"
	"github.com/pthm/fhirsql/pkg/schema"
)

func TestStages(t *testing.T) {
	d := sqlite.New()
	reg, err := schema.Default()
	require.NoError(t, err)
	root, err := parser.Parse("Patient.name.given")
	require.NoError(t, err)

	tr := compiler.NewTranslator(d, reg, compiler.TranslatorOptions{ResourceType: "Patient"})
	frags, err := tr.Translate(root)
	require.NoError(t, err)
	require.NotEmpty(t, frags)
	assert.Equal(t, "patient", tr.BaseTable())

	blocks, err := compiler.NewBuilder(d).Build(frags, tr.BaseTable())
	require.NoError(t, err)
	require.Len(t, blocks, len(frags))
	assert.Equal(t, compiler.BlockName(0), blocks[0].Name)

	sql, err := compiler.Assemble(blocks)
	require.NoError(t, err)
	assert.Contains(t, sql, compiler.BlockName(0)+" AS (")
}
