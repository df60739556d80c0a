package loader_test

import (
	"bytes"
	"context"
	"database/sql"
	"sort"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pthm/fhirsql"
	"github.com/pthm/fhirsql/pkg/dialect/sqlite"
	"github.com/pthm/fhirsql/pkg/loader"
)

const patientsNDJSON = `{"resourceType":"Patient","id":"p1","name":[{"given":["Jane","Ann"]}]}
{"resourceType":"Patient","id":"p2","name":[{"given":["Bob"]}]}
{"resourceType":"Observation","id":"o1","status":"final"}
`

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func count(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

func resourceJSON(t *testing.T, db *sql.DB, table, id string) string {
	t.Helper()
	var doc string
	require.NoError(t, db.QueryRow("SELECT resource FROM "+table+" WHERE id = ?", id).Scan(&doc))
	return doc
}

func TestLoadCreatesTablesPerResourceType(t *testing.T) {
	db := openDB(t)
	l := loader.New(db, sqlite.New())

	stats, err := l.Load(context.Background(), strings.NewReader(patientsNDJSON), loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Resources)
	assert.Equal(t, map[string]int{"Patient": 2, "Observation": 1}, stats.ByType)
	assert.Equal(t, []string{"Observation", "Patient"}, stats.Types())

	assert.Equal(t, 2, count(t, db, "patient"))
	assert.Equal(t, 1, count(t, db, "observation"))
	assert.Equal(t, `{"resourceType":"Observation","id":"o1","status":"final"}`, resourceJSON(t, db, "observation", "o1"))
}

func TestLoadUpsertsByID(t *testing.T) {
	db := openDB(t)
	l := loader.New(db, sqlite.New())
	ctx := context.Background()

	_, err := l.Load(ctx, strings.NewReader(patientsNDJSON), loader.Options{})
	require.NoError(t, err)
	_, err = l.Load(ctx, strings.NewReader(`{"resourceType":"Patient","id":"p1","gender":"female"}`), loader.Options{})
	require.NoError(t, err)

	assert.Equal(t, 2, count(t, db, "patient"))
	assert.Equal(t, `{"resourceType":"Patient","id":"p1","gender":"female"}`, resourceJSON(t, db, "patient", "p1"))
}

func TestLoadRollsBackOnInvalidResource(t *testing.T) {
	db := openDB(t)
	l := loader.New(db, sqlite.New())

	input := `{"resourceType":"Patient","id":"p1"}
{"resourceType":"Patient"}
`
	_, err := l.Load(context.Background(), strings.NewReader(input), loader.Options{})
	require.ErrorIs(t, err, loader.ErrInvalidResource)

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'patient'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestLoadGenerateIDs(t *testing.T) {
	db := openDB(t)
	seq := 0
	l := loader.New(db, sqlite.New(), loader.WithIDGenerator(func() string {
		seq++
		return "gen-" + string(rune('0'+seq))
	}))

	input := `{"resourceType":"Patient"}
{"resourceType":"Patient","id":"p9"}
{"resourceType":"Patient"}
`
	stats, err := l.Load(context.Background(), strings.NewReader(input), loader.Options{GenerateIDs: true})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Resources)
	assert.Equal(t, 2, stats.GeneratedIDs)
	assert.Equal(t, `{"id":"gen-2","resourceType":"Patient"}`, resourceJSON(t, db, "patient", "gen-2"))
}

func TestLoadGenerateIDsDefaultsToUUIDv7(t *testing.T) {
	db := openDB(t)
	l := loader.New(db, sqlite.New())

	_, err := l.Load(context.Background(), strings.NewReader(`{"resourceType":"Patient"}`), loader.Options{GenerateIDs: true})
	require.NoError(t, err)

	var id string
	require.NoError(t, db.QueryRow("SELECT id FROM patient").Scan(&id))
	assert.Len(t, id, 36)
	assert.Equal(t, byte('7'), id[14], "version nibble")
}

func TestLoadFileSkipsUnchangedContent(t *testing.T) {
	db := openDB(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/data/patients.ndjson", []byte(patientsNDJSON), 0o644))
	l := loader.New(db, sqlite.New(), loader.WithFs(fs))
	ctx := context.Background()

	first, err := l.LoadFile(ctx, "/data/patients.ndjson", loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, first.Resources)
	assert.Equal(t, 0, first.SkippedFiles)

	second, err := l.LoadFile(ctx, "/data/patients.ndjson", loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 0, second.Resources)
	assert.Equal(t, 1, second.SkippedFiles)

	forced, err := l.LoadFile(ctx, "/data/patients.ndjson", loader.Options{Force: true})
	require.NoError(t, err)
	assert.Equal(t, 3, forced.Resources)

	var recorded int
	require.NoError(t, db.QueryRow("SELECT resources FROM fhirsql_loads WHERE checksum = ?",
		loader.Checksum([]byte(patientsNDJSON))).Scan(&recorded))
	assert.Equal(t, 3, recorded)
}

func TestLoadFilesWalksDirectories(t *testing.T) {
	db := openDB(t)
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/fhir/a.ndjson", []byte(patientsNDJSON), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/fhir/nested/b.json",
		[]byte(`{"resourceType":"Bundle","entry":[{"resource":{"resourceType":"Condition","id":"c1"}}]}`), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/fhir/README.md", []byte("# not a resource"), 0o644))
	l := loader.New(db, sqlite.New(), loader.WithFs(fs))

	stats, err := l.LoadFiles(context.Background(), []string{"/fhir"}, loader.Options{})
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Files)
	assert.Equal(t, 4, stats.Resources)
	assert.Equal(t, []string{"Condition", "Observation", "Patient"}, stats.Types())
}

func TestLoadFilesMissingPath(t *testing.T) {
	l := loader.New(openDB(t), sqlite.New(), loader.WithFs(afero.NewMemMapFs()))
	_, err := l.LoadFiles(context.Background(), []string{"/nope.ndjson"}, loader.Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/nope.ndjson")
}

func TestLoadDryRun(t *testing.T) {
	db := openDB(t)
	l := loader.New(db, sqlite.New())
	var buf bytes.Buffer

	stats, err := l.Load(context.Background(), strings.NewReader(patientsNDJSON), loader.Options{DryRun: &buf})
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Resources)

	script := buf.String()
	assert.Contains(t, script, "-- Dialect: sqlite")
	assert.Contains(t, script, `CREATE TABLE IF NOT EXISTS "patient" (`)
	assert.Contains(t, script, `CREATE TABLE IF NOT EXISTS "observation" (`)
	assert.Equal(t, 1, strings.Count(script, `CREATE TABLE IF NOT EXISTS "patient"`))
	assert.Contains(t, script, `VALUES ('p1', CAST('{"resourceType":"Patient"`)
	assert.Contains(t, script, "ON CONFLICT (id) DO UPDATE SET resource = excluded.resource;")
	assert.Contains(t, script, "-- 3 resources")

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table'`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestLoadedResourcesEvaluate(t *testing.T) {
	db := openDB(t)
	ctx := context.Background()
	_, err := loader.LoadReader(ctx, db, sqlite.New(), strings.NewReader(patientsNDJSON))
	require.NoError(t, err)

	c, err := fhirsql.New(sqlite.New())
	require.NoError(t, err)
	rows, err := c.Evaluate(ctx, db, "Patient.name.given")
	require.NoError(t, err)

	var got []string
	for _, r := range rows {
		require.NotNil(t, r.Result)
		got = append(got, r.ID+":"+*r.Result)
	}
	sort.Strings(got)
	assert.Equal(t, []string{"p1:Ann", "p1:Jane", "p2:Bob"}, got)
}
