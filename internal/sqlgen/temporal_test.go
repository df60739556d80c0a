package sqlgen

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
)

func TestStoredTemporalBounds(t *testing.T) {
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	eval := func(t *testing.T, e sqldsl.Expr) string {
		t.Helper()
		var out string
		require.NoError(t, db.QueryRowContext(context.Background(), "SELECT "+e.SQL()).Scan(&out))
		return out
	}

	tests := []struct {
		name       string
		stored     string
		clock      bool
		start, end string
	}{
		{"year", "2024", false, "2024-01-01T00:00:00.000", "2024-12-31T23:59:59.999"},
		{"date", "2024-05-01", false, "2024-05-01T00:00:00.000", "2024-05-01T23:59:59.999"},
		{"whole seconds", "2024-05-01T10:00:00Z", false, "2024-05-01T10:00:00.000", "2024-05-01T10:00:00.999"},
		{"offset without fraction", "2024-05-01T10:00:00+01:00", false, "2024-05-01T10:00:00.000", "2024-05-01T10:00:00.999"},
		{"milliseconds", "2024-05-01T10:00:00.250Z", false, "2024-05-01T10:00:00.250", "2024-05-01T10:00:00.250"},
		{"tenths", "2024-05-01T10:00:00.7+02:00", false, "2024-05-01T10:00:00.700", "2024-05-01T10:00:00.799"},
		{"hundredths", "2024-05-01T10:00:00.25-05:00", false, "2024-05-01T10:00:00.250", "2024-05-01T10:00:00.259"},
		{"microseconds", "2024-05-01T10:00:00.123456Z", false, "2024-05-01T10:00:00.123", "2024-05-01T10:00:00.123"},
		{"hour", "10", true, "10:00:00.000", "10:59:59.999"},
		{"time", "10:15:30", true, "10:15:30.000", "10:15:30.999"},
		{"time with fraction", "10:15:30.5", true, "10:15:30.500", "10:15:30.599"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bound := dateBound
			if tt.clock {
				bound = clockBound
			}
			s := sqldsl.Lit(tt.stored)
			assert.Equal(t, tt.start, eval(t, bound(s, false)))
			assert.Equal(t, tt.end, eval(t, bound(s, true)))
		})
	}
}
