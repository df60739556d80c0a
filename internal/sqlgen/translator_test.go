package sqlgen

import (
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/fhirsql/pkg/ast"
	"github.com/pthm/fhirsql/pkg/dialect"
	"github.com/pthm/fhirsql/pkg/dialect/postgres"
	"github.com/pthm/fhirsql/pkg/dialect/sqlite"
	"github.com/pthm/fhirsql/pkg/schema"
)

func newTranslator(t *testing.T, d dialect.Dialect, resource string) *Translator {
	t.Helper()
	reg, err := schema.Default()
	require.NoError(t, err)
	return NewTranslator(d, reg, TranslatorOptions{ResourceType: resource})
}

func translate(t *testing.T, resource string, root ast.Node) []Fragment {
	t.Helper()
	frags, err := newTranslator(t, sqlite.New(), resource).Translate(root)
	require.NoError(t, err)
	require.NotEmpty(t, frags)
	return frags
}

// resultExpr returns the expression of the final fragment.
func resultExpr(t *testing.T, resource string, root ast.Node) string {
	t.Helper()
	frags := translate(t, resource, root)
	return frags[len(frags)-1].Expression
}

func compileSQL(t *testing.T, d dialect.Dialect, resource string, root ast.Node) string {
	t.Helper()
	tr := newTranslator(t, d, resource)
	frags, err := tr.Translate(root)
	require.NoError(t, err)
	blocks, err := NewBuilder(d).Build(frags, tr.BaseTable())
	require.NoError(t, err)
	sql, err := Assemble(blocks)
	require.NoError(t, err)
	return sql
}

func TestTranslateSpineUnnest(t *testing.T) {
	frags := translate(t, "Patient", ast.Path("Patient", "name", "given"))
	require.Len(t, frags, 3)

	assert.True(t, frags[0].RequiresUnnest)
	assert.Equal(t, "patient", frags[0].Source)
	assert.Equal(t, "json_extract(patient.resource, '$.name')", frags[0].Metadata[MetaArrayColumn])
	assert.Equal(t, "patient.id", frags[0].Metadata[MetaIDColumn])
	assert.Equal(t, "item", frags[0].Metadata[MetaResultAlias])
	assert.Empty(t, frags[0].Dependencies)

	assert.True(t, frags[1].RequiresUnnest)
	assert.Equal(t, "cte_1", frags[1].Source)
	assert.Equal(t, "json_extract(cte_1.item, '$.given')", frags[1].Metadata[MetaArrayColumn])
	assert.Equal(t, "cte_1.id", frags[1].Metadata[MetaIDColumn])
	assert.Equal(t, []string{"cte_1"}, frags[1].Dependencies)

	assert.False(t, frags[2].RequiresUnnest)
	assert.False(t, frags[2].IsAggregate)
	assert.Equal(t, "cte_2", frags[2].Source)
	assert.Equal(t, "cte_2.item", frags[2].Expression)
	assert.Equal(t, "result", frags[2].Metadata[MetaResultAlias])
	assert.Equal(t, []string{"cte_1", "cte_2"}, frags[2].Dependencies)
}

func TestCompileSpineUnnest(t *testing.T) {
	tests := []struct {
		name    string
		dialect dialect.Dialect
		want    string
	}{
		{
			name:    "sqlite",
			dialect: sqlite.New(),
			want: `WITH cte_1 AS (
    SELECT patient.id, item.value AS item
    FROM patient, json_each(json_extract(patient.resource, '$.name')) AS item
),
cte_2 AS (
    SELECT cte_1.id, item.value AS item
    FROM cte_1, json_each(json_extract(cte_1.item, '$.given')) AS item
),
cte_3 AS (
    SELECT cte_2.id, cte_2.item AS result
    FROM cte_2
)
SELECT * FROM cte_3;`,
		},
		{
			name:    "postgres",
			dialect: postgres.New(),
			want: `WITH cte_1 AS (
    SELECT patient.id, item.value AS item
    FROM patient, LATERAL jsonb_array_elements(patient.resource->'name') AS item(value)
),
cte_2 AS (
    SELECT cte_1.id, item.value AS item
    FROM cte_1, LATERAL jsonb_array_elements(cte_1.item->'given') AS item(value)
),
cte_3 AS (
    SELECT cte_2.id, (cte_2.item #>> '{}') AS result
    FROM cte_2
)
SELECT * FROM cte_3;`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := compileSQL(t, tt.dialect, "Patient", ast.Path("Patient", "name", "given"))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTranslateDeterministic(t *testing.T) {
	root := ast.Call(
		ast.Path("Patient", "name"),
		"where",
		ast.Binary("and",
			ast.Binary("=", ast.Ident("use"), ast.Str("official")),
			&ast.Aggregation{Func: "exists", Target: ast.Ident("given")},
		),
	)
	tr := newTranslator(t, sqlite.New(), "Patient")
	first, err := tr.Translate(root)
	require.NoError(t, err)
	first = cloneAll(first)

	for range 5 {
		again, err := tr.Translate(root)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestTranslateConcurrentTranslators(t *testing.T) {
	reg, err := schema.Default()
	require.NoError(t, err)
	root := &ast.Aggregation{Func: "count", Target: ast.Path("Patient", "name", "given")}

	want, err := NewTranslator(sqlite.New(), reg, TranslatorOptions{ResourceType: "Patient"}).Translate(root)
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make([][]Fragment, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tr := NewTranslator(sqlite.New(), reg, TranslatorOptions{ResourceType: "Patient"})
			results[i], _ = tr.Translate(root)
		}()
	}
	wg.Wait()
	for _, got := range results {
		assert.Equal(t, want, got)
	}
}

func cloneAll(frags []Fragment) []Fragment {
	out := make([]Fragment, len(frags))
	for i, f := range frags {
		out[i] = f.Clone()
	}
	return out
}

func TestTranslateWhereAtSpine(t *testing.T) {
	root := ast.Call(ast.Path("Patient", "name"), "where", ast.Binary("=", ast.Ident("use"), ast.Str("official")))
	frags := translate(t, "Patient", root)
	require.Len(t, frags, 3)

	filter := frags[1]
	assert.False(t, filter.RequiresUnnest)
	assert.Equal(t, "cte_1", filter.Source)
	assert.Equal(t, "cte_1.item", filter.Expression)
	assert.Equal(t, "json_extract(cte_1.item, '$.use') = 'official'", filter.Metadata[MetaFilter])
	assert.Equal(t, []string{"cte_1"}, filter.Dependencies)

	assert.Equal(t, "cte_2.item", frags[2].Expression)
	assert.Equal(t, []string{"cte_1", "cte_2"}, frags[2].Dependencies)
}

func TestTranslateCriteriaStayInline(t *testing.T) {
	root := ast.Call(ast.Ident("Patient"), "where", &ast.Aggregation{Func: "exists", Target: ast.Path("name", "given")})
	frags := translate(t, "Patient", root)
	require.Len(t, frags, 2)

	for _, f := range frags {
		assert.False(t, f.RequiresUnnest, "criteria must not emit unnest blocks")
	}
	assert.Equal(t, "patient", frags[0].Source)
	assert.Equal(t,
		"EXISTS (SELECT 1 FROM json_each(json_extract(patient.resource, '$.name')) AS c1, "+
			"json_each(json_extract(c1.value, '$.given')) AS c2 WHERE c2.value IS NOT NULL)",
		frags[0].Metadata[MetaFilter])
}

func TestTranslateAggregates(t *testing.T) {
	tests := []struct {
		name string
		root ast.Node
		want string
	}{
		{
			name: "count over block chain",
			root: &ast.Aggregation{Func: "count", Target: ast.Path("Patient", "name")},
			want: "(SELECT COUNT(cte_1.item) FROM cte_1 WHERE cte_1.id = patient.id)",
		},
		{
			name: "exists with criteria",
			root: &ast.Aggregation{
				Func:     "exists",
				Target:   ast.Path("Patient", "name"),
				Criteria: ast.Binary("=", ast.Ident("family"), ast.Str("Smith")),
			},
			want: "EXISTS (SELECT 1 FROM cte_1 WHERE (cte_1.id = patient.id AND cte_1.item IS NOT NULL AND " +
				"json_extract(cte_1.item, '$.family') = 'Smith'))",
		},
		{
			name: "exists on singleton",
			root: &ast.Aggregation{Func: "exists", Target: ast.Path("Patient", "birthDate")},
			want: "json_extract(patient.resource, '$.birthDate') IS NOT NULL",
		},
		{
			name: "count on singleton",
			root: &ast.Aggregation{Func: "count", Target: ast.Path("Patient", "gender")},
			want: "CASE WHEN json_extract(patient.resource, '$.gender') IS NULL THEN 0 ELSE 1 END",
		},
		{
			name: "empty over block chain",
			root: ast.Call(ast.Path("Patient", "telecom"), "empty"),
			want: "NOT EXISTS (SELECT 1 FROM cte_1 WHERE (cte_1.id = patient.id AND cte_1.item IS NOT NULL))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frags := translate(t, "Patient", tt.root)
			last := frags[len(frags)-1]
			assert.Equal(t, tt.want, last.Expression)
			assert.True(t, last.IsAggregate)
			assert.Equal(t, "patient", last.Source, "aggregates collapse back to one row per resource")
		})
	}
}

func TestTranslateMembership(t *testing.T) {
	root := ast.Binary("in", ast.Path("Patient", "gender"), ast.Binary("|", ast.Str("male"), ast.Str("female")))
	assert.Equal(t, "json_extract(patient.resource, '$.gender') IN ('male', 'female')", resultExpr(t, "Patient", root))
}

func TestTranslateNestedComparison(t *testing.T) {
	tests := []struct {
		name string
		root ast.Node
		want string
	}{
		{
			name: "comparison against literal",
			root: ast.Binary("=", ast.Binary("=", ast.Int(1), ast.Int(1)), ast.Bool(true)),
			want: "(1 = 1) = TRUE",
		},
		{
			name: "comparison on both sides",
			root: ast.Binary("!=", ast.Binary("<", ast.Int(1), ast.Int(2)), ast.Binary(">", ast.Int(3), ast.Int(4))),
			want: "(1 < 2) <> (3 > 4)",
		},
		{
			name: "negation",
			root: ast.Binary("=", ast.Call(ast.Binary("=", ast.Int(1), ast.Int(1)), "not"), ast.Bool(false)),
			want: "(NOT (1 = 1)) = FALSE",
		},
		{
			name: "plain literals stay bare",
			root: ast.Binary("=", ast.Bool(true), ast.Bool(false)),
			want: "TRUE = FALSE",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultExpr(t, "Patient", tt.root))
		})
	}

	t.Run("postgres output", func(t *testing.T) {
		root := ast.Binary("=", ast.Binary("=", ast.Int(1), ast.Int(1)), ast.Bool(true))
		got := compileSQL(t, postgres.New(), "Patient", root)
		assert.Contains(t, got, "(1 = 1) = TRUE AS result")
	})
}

func TestTranslateTemporalComparison(t *testing.T) {
	t.Run("partial literal against column", func(t *testing.T) {
		got := resultExpr(t, "Patient", ast.Binary("<", ast.Path("Patient", "birthDate"), ast.Date("2020")))
		assert.True(t, strings.HasPrefix(got, "CASE WHEN "), got)
		assert.True(t, strings.HasSuffix(got, " ELSE NULL END"), got)
		assert.Contains(t, got, "'2020-01-01T00:00:00.000'")
		assert.Contains(t, got, "'2020-12-31T23:59:59.999'")
		assert.Contains(t, got, "WHEN LENGTH(json_extract(patient.resource, '$.birthDate')) = 4 THEN")
	})

	t.Run("exact literals compare directly", func(t *testing.T) {
		got := resultExpr(t, "Patient", ast.Binary("<", ast.Date("2020-01-01"), ast.Date("2020-02-01")))
		assert.Equal(t, "'2020-01-01T00:00:00.000' < '2020-02-01T00:00:00.000'", got)
	})

	t.Run("mixed precision literals", func(t *testing.T) {
		got := resultExpr(t, "Patient", ast.Binary("=", ast.Date("2020"), ast.Date("2020-06-15")))
		assert.Equal(t,
			"CASE WHEN ('2020-01-01T00:00:00.000' = '2020-06-15T00:00:00.000' AND '2020-12-31T23:59:59.999' = '2020-06-15T23:59:59.999') "+
				"THEN '2020-01-01T00:00:00.000' = '2020-06-15T00:00:00.000' "+
				"WHEN '2020-12-31T23:59:59.999' < '2020-06-15T00:00:00.000' THEN FALSE "+
				"WHEN '2020-06-15T23:59:59.999' < '2020-01-01T00:00:00.000' THEN FALSE ELSE NULL END",
			got)
	})
}

func TestTranslateLog(t *testing.T) {
	t.Run("natural log", func(t *testing.T) {
		got := resultExpr(t, "Patient", ast.Call(ast.Dec("2.5"), "ln"))
		assert.Equal(t, "ln(CASE WHEN 2.5 > 0 THEN 2.5 END)", got)
	})

	t.Run("change of base is guarded", func(t *testing.T) {
		got := resultExpr(t, "Patient", ast.Call(ast.Int(16), "log", ast.Int(2)))
		assert.True(t, strings.HasPrefix(got, "CASE WHEN (16 IS NULL OR 2 IS NULL) THEN NULL"), got)
		assert.Contains(t, got, "WHEN 16 <= 0 THEN NULL")
		assert.Contains(t, got, "WHEN (2 <= 0 OR 2 = 1) THEN NULL")
		assert.Contains(t, got, "NOT ((abs(16) <= 1.7976931348623157e308))")
		assert.True(t, strings.HasSuffix(got,
			"ELSE (ln(CASE WHEN 16 > 0 THEN 16 END) / NULLIF(ln(CASE WHEN 2 > 0 THEN 2 END), 0)) END"), got)
	})

	t.Run("redundant receiver argument is dropped", func(t *testing.T) {
		want := resultExpr(t, "Patient", ast.Call(ast.Int(16), "log", ast.Int(2)))
		got := resultExpr(t, "Patient", ast.Call(ast.Int(16), "log", ast.Int(16), ast.Int(2)))
		assert.Equal(t, want, got)
	})

	t.Run("drop applies to log only", func(t *testing.T) {
		_, err := newTranslator(t, sqlite.New(), "Patient").Translate(ast.Call(ast.Int(2), "power", ast.Int(2), ast.Int(3)))
		var argErr *ArgumentError
		require.ErrorAs(t, err, &argErr)
		assert.Equal(t, "power", argErr.Function)
	})
}

func TestTranslateMath(t *testing.T) {
	tests := []struct {
		name string
		root ast.Node
		want string
	}{
		{"abs", ast.Call(ast.Dec("-1.5"), "abs"), "abs(-1.5)"},
		{"sqrt guards negatives", ast.Call(ast.Int(4), "sqrt"), "sqrt(CASE WHEN 4 >= 0 THEN 4 END)"},
		{
			"power guards bases without a real result",
			ast.Call(ast.Int(2), "power", ast.Int(3)),
			"power(CASE WHEN (2 > 0 OR (2 = 0 AND 3 >= 0) OR (2 < 0 AND 3 = floor(3))) THEN 2 END, 3)",
		},
		{
			"negative base with fractional exponent",
			ast.Call(&ast.UnaryOp{Op: "-", Operand: ast.Int(8)}, "power", ast.Dec("0.5")),
			"power(CASE WHEN (-8 > 0 OR (-8 = 0 AND 0.5 >= 0) OR (-8 < 0 AND 0.5 = floor(0.5))) THEN -8 END, 0.5)",
		},
		{"division by zero is null", ast.Binary("/", ast.Int(1), ast.Int(0)), "(CAST(1 AS REAL) / NULLIF(0, 0))"},
		{"mod", ast.Binary("mod", ast.Int(7), ast.Int(2)), "mod(7, NULLIF(2, 0))"},
		{"decimal mod", ast.Binary("mod", ast.Dec("5.5"), ast.Int(2)), "mod(5.5, NULLIF(2, 0))"},
		{"negative literal", &ast.UnaryOp{Op: "-", Operand: ast.Int(5)}, "-5"},
		{"double negation", &ast.UnaryOp{Op: "-", Operand: &ast.UnaryOp{Op: "-", Operand: ast.Int(5)}}, "5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultExpr(t, "Patient", tt.root))
		})
	}
}

func TestTranslateChoiceTypes(t *testing.T) {
	t.Run("navigation coalesces every choice", func(t *testing.T) {
		got := resultExpr(t, "Observation", ast.Path("Observation", "value"))
		assert.True(t, strings.HasPrefix(got, "COALESCE(json_extract(observation.resource, '$.valueQuantity'), "), got)
		assert.Contains(t, got, "json_extract(observation.resource, '$.valuePeriod')")
	})

	t.Run("ofType selects one property", func(t *testing.T) {
		root := &ast.TypeOperation{Op: "ofType", Operand: ast.Path("Observation", "value"), TypeName: "Quantity"}
		got := resultExpr(t, "Observation", root)
		assert.Equal(t, "json_extract(observation.resource, '$.valueQuantity')", got)
	})

	t.Run("is tests the property", func(t *testing.T) {
		root := &ast.TypeOperation{Op: "is", Operand: ast.Path("Observation", "value"), TypeName: "FHIR.string"}
		got := resultExpr(t, "Observation", root)
		assert.True(t, strings.HasSuffix(got, "ELSE json_extract(observation.resource, '$.valueString') IS NOT NULL END"), got)
	})

	t.Run("quantity value compares numerically", func(t *testing.T) {
		root := ast.Binary(">",
			&ast.TypeOperation{Op: "as", Operand: ast.Path("Observation", "value"), TypeName: "Quantity"},
			ast.Int(5))
		got := resultExpr(t, "Observation", root)
		assert.Equal(t, "CAST(json_extract(json_extract(observation.resource, '$.valueQuantity'), '$.value') AS REAL) > 5", got)
	})

	t.Run("static type test", func(t *testing.T) {
		root := &ast.TypeOperation{Op: "is", Operand: ast.Path("Patient", "birthDate"), TypeName: "date"}
		got := resultExpr(t, "Patient", root)
		assert.Equal(t, "CASE WHEN json_extract(patient.resource, '$.birthDate') IS NULL THEN NULL ELSE TRUE END", got)
	})
}

func TestTranslateStringFunctions(t *testing.T) {
	tests := []struct {
		name string
		root ast.Node
		want string
	}{
		{
			name: "startsWith",
			root: ast.Call(ast.Path("Patient", "gender"), "startsWith", ast.Str("fe")),
			want: "SUBSTR(json_extract(patient.resource, '$.gender'), 1, LENGTH('fe')) = 'fe'",
		},
		{
			name: "upper",
			root: ast.Call(ast.Path("Patient", "gender"), "upper"),
			want: "UPPER(json_extract(patient.resource, '$.gender'))",
		},
		{
			name: "concatenation treats empty as empty string",
			root: ast.Binary("&", ast.Path("Patient", "gender"), ast.Str("!")),
			want: "(COALESCE(json_extract(patient.resource, '$.gender'), '') || COALESCE('!', ''))",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, resultExpr(t, "Patient", tt.root))
		})
	}
}

func TestTranslateErrors(t *testing.T) {
	tests := []struct {
		name     string
		resource string
		root     ast.Node
		sentinel error
		check    func(t *testing.T, err error)
	}{
		{
			name:     "unknown function",
			resource: "Patient",
			root:     ast.Call(ast.Path("Patient", "name"), "descendants"),
			sentinel: ErrUnsupportedOperation,
			check: func(t *testing.T, err error) {
				var e *UnsupportedOperationError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "function", e.Kind)
				assert.Equal(t, "descendants", e.Token)
			},
		},
		{
			name:     "unknown operator",
			resource: "Patient",
			root:     ast.Binary("~>", ast.Int(1), ast.Int(2)),
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "union outside in",
			resource: "Patient",
			root:     ast.Binary("|", ast.Int(1), ast.Int(2)),
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "unknown element on resource",
			resource: "Patient",
			root:     ast.Path("Patient", "colour"),
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "other resource type",
			resource: "Patient",
			root:     ast.Path("Observation", "status"),
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "unknown type name",
			resource: "Patient",
			root:     &ast.TypeOperation{Op: "is", Operand: ast.Path("Patient", "gender"), TypeName: "Spaceship"},
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "date arithmetic",
			resource: "Patient",
			root:     ast.Binary("+", ast.Path("Patient", "birthDate"), ast.Int(1)),
			sentinel: ErrUnsupportedOperation,
		},
		{
			name:     "where without criteria",
			resource: "Patient",
			root:     ast.Call(ast.Path("Patient", "name"), "where"),
			sentinel: ErrArgument,
			check: func(t *testing.T, err error) {
				var e *ArgumentError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "where", e.Function)
				assert.Equal(t, "1", e.Expected)
				assert.Equal(t, 0, e.Actual)
			},
		},
		{
			name:     "sqrt counts arguments without the receiver",
			resource: "Patient",
			root:     ast.Call(ast.Int(4), "sqrt", ast.Int(2)),
			sentinel: ErrArgument,
			check: func(t *testing.T, err error) {
				var e *ArgumentError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "sqrt", e.Function)
				assert.Equal(t, "0", e.Expected)
				assert.Equal(t, 1, e.Actual)
			},
		},
		{
			name:     "power without exponent",
			resource: "Patient",
			root:     ast.Call(ast.Int(2), "power"),
			sentinel: ErrArgument,
			check: func(t *testing.T, err error) {
				var e *ArgumentError
				require.ErrorAs(t, err, &e)
				assert.Equal(t, "1", e.Expected)
				assert.Equal(t, 0, e.Actual)
			},
		},
		{
			name:     "too many log arguments",
			resource: "Patient",
			root:     ast.Call(ast.Int(8), "log", ast.Int(2), ast.Int(3)),
			sentinel: ErrArgument,
		},
		{
			name:     "string with line break",
			resource: "Patient",
			root:     ast.Binary("=", ast.Path("Patient", "gender"), ast.Str("a\nb")),
			sentinel: ErrLiteral,
		},
		{
			name:     "malformed date",
			resource: "Patient",
			root:     ast.Binary("=", ast.Path("Patient", "birthDate"), ast.Date("2020-13")),
			sentinel: ErrLiteral,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ast.ErrMalformedTemporal)
			},
		},
		{
			name:     "malformed decimal",
			resource: "Patient",
			root:     ast.Binary("=", ast.Int(1), ast.Dec("1.2.3")),
			sentinel: ErrLiteral,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := newTranslator(t, sqlite.New(), tt.resource)
			frags, err := tr.Translate(tt.root)
			require.Error(t, err)
			assert.Nil(t, frags, "no partial output on failure")
			assert.True(t, errors.Is(err, tt.sentinel), "got %v", err)
			if tt.check != nil {
				tt.check(t, err)
			}
		})
	}
}

func TestLookupFunction(t *testing.T) {
	for i := range numFunctions {
		f := Function(i)
		got, ok := LookupFunction(f.String())
		require.True(t, ok, f.String())
		assert.Equal(t, f, got)
	}

	_, ok := LookupFunction("last")
	assert.False(t, ok)
	assert.True(t, FuncCount.IsAggregate())
	assert.False(t, FuncWhere.IsAggregate())
	assert.False(t, FuncLog.IsAggregate())
}
