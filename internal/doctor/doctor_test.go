package doctor

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/fhirsql/internal/testutil"
	"github.com/pthm/fhirsql/pkg/dialect/postgres"
	"github.com/pthm/fhirsql/pkg/dialect/sqlite"
	"github.com/pthm/fhirsql/pkg/loader"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		status Status
		str    string
		symbol string
	}{
		{StatusPass, "pass", "✓"},
		{StatusWarn, "warn", "⚠"},
		{StatusFail, "fail", "✗"},
		{Status(9), "unknown", "?"},
	}
	for _, tt := range tests {
		t.Run(tt.str, func(t *testing.T) {
			assert.Equal(t, tt.str, tt.status.String())
			assert.Equal(t, tt.symbol, tt.status.Symbol())
		})
	}
}

func TestReportCounts(t *testing.T) {
	var r Report
	r.AddCheck(CheckResult{Category: "A", Name: "one", Status: StatusPass})
	r.AddCheck(CheckResult{Category: "A", Name: "two", Status: StatusWarn})
	r.AddCheck(CheckResult{Category: "B", Name: "three", Status: StatusFail})

	assert.Equal(t, 1, r.Passed)
	assert.Equal(t, 1, r.Warnings)
	assert.Equal(t, 1, r.Errors)
	assert.True(t, r.HasErrors())

	c, ok := r.Check("A", "two")
	require.True(t, ok)
	assert.Equal(t, StatusWarn, c.Status)
	_, ok = r.Check("B", "one")
	assert.False(t, ok)
}

func TestReportPrint(t *testing.T) {
	var r Report
	r.AddCheck(CheckResult{Category: "Engine", Name: "json", Status: StatusPass, Message: "JSON ok", Details: "hidden unless verbose"})
	r.AddCheck(CheckResult{Category: "Resources", Name: "tables", Status: StatusWarn, Message: "No tables", FixHint: "load some"})

	var quiet bytes.Buffer
	r.Print(&quiet, false)
	assert.Contains(t, quiet.String(), "JSON ok")
	assert.Contains(t, quiet.String(), "Fix: load some")
	assert.NotContains(t, quiet.String(), "hidden unless verbose")
	assert.Contains(t, quiet.String(), "Summary: 1 passed, 1 warnings, 0 errors")
	assert.Less(t, strings.Index(quiet.String(), "Engine"), strings.Index(quiet.String(), "Resources"))

	var verbose bytes.Buffer
	r.Print(&verbose, true)
	assert.Contains(t, verbose.String(), "      hidden unless verbose")
}

func TestJSONProbeSQL(t *testing.T) {
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT CAST('{"a":[1,2,3]}' AS TEXT) AS doc) AS probe, json_each(json_extract(probe.doc, '$.a')) AS item`,
		New(nil, sqlite.New(), nil).jsonProbeSQL())
	assert.Equal(t,
		`SELECT COUNT(*) FROM (SELECT CAST('{"a":[1,2,3]}' AS JSONB) AS doc) AS probe, LATERAL jsonb_array_elements(probe.doc->'a') AS item(value)`,
		New(nil, postgres.New(), nil).jsonProbeSQL())
}

func TestRunEmptySQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	report, err := New(db, sqlite.New(), nil).Run(context.Background())
	require.NoError(t, err)

	expect := map[string]Status{
		"ping":     StatusPass,
		"json":     StatusPass,
		"tables":   StatusWarn,
		"loads":    StatusWarn,
		"evaluate": StatusWarn,
	}
	for _, c := range report.Checks {
		if want, ok := expect[c.Name]; ok {
			assert.Equal(t, want, c.Status, "%s: %s", c.Name, c.Message)
			delete(expect, c.Name)
		}
	}
	assert.Empty(t, expect, "checks not reported")
	assert.False(t, report.HasErrors())
}

func TestRunLoadedSQLite(t *testing.T) {
	db := testutil.SQLiteDB(t)
	fixtures := filepath.Join(t.TempDir(), "fixtures.ndjson")
	require.NoError(t, os.WriteFile(fixtures, []byte(testutil.Fixtures), 0o644))
	_, err := loader.LoadFiles(context.Background(), db, sqlite.New(), fixtures)
	require.NoError(t, err)

	report, err := New(db, sqlite.New(), nil).Run(context.Background())
	require.NoError(t, err)

	tables, ok := report.Check("Resources", "tables")
	require.True(t, ok)
	assert.Equal(t, StatusPass, tables.Status)
	assert.Contains(t, tables.Details, "patient (3)")
	assert.Contains(t, tables.Details, "observation (3)")

	loads, ok := report.Check("Resources", "loads")
	require.True(t, ok)
	assert.Equal(t, StatusPass, loads.Status)
	assert.Equal(t, "1 files loaded (6 resources)", loads.Message)

	eval, ok := report.Check("Compiler", "evaluate")
	require.True(t, ok)
	assert.Equal(t, StatusPass, eval.Status, eval.Details)
	assert.Equal(t, "Evaluated Observation.id over 3 resources", eval.Message)
}

func TestRunClosedDatabase(t *testing.T) {
	db := testutil.SQLiteDB(t)
	require.NoError(t, db.Close())

	report, err := New(db, sqlite.New(), nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, StatusFail, report.Checks[0].Status)
	assert.True(t, report.HasErrors())
}

func TestRunPostgres(t *testing.T) {
	db := testutil.PostgresDB(t)
	testutil.LoadFixtures(t, db, postgres.New())

	report, err := New(db, postgres.New(), nil).Run(context.Background())
	require.NoError(t, err)
	for _, c := range report.Checks {
		if c.Name == "loads" {
			continue
		}
		assert.Equal(t, StatusPass, c.Status, "%s/%s: %s %s", c.Category, c.Name, c.Message, c.Details)
	}
}
