package sqlgen

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextScoped(t *testing.T) {
	base := Context{Source: "patient", Focus: "patient.resource", IDColumn: "patient.id", ResourceType: "Patient"}

	t.Run("restores after success", func(t *testing.T) {
		ctx := base
		err := ctx.Scoped(func() error {
			ctx.Source = "cte_1"
			ctx.Depth = 3
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, base, ctx)
	})

	t.Run("restores after error", func(t *testing.T) {
		ctx := base
		boom := errors.New("boom")
		err := ctx.Scoped(func() error {
			ctx.Focus = "cte_2.item"
			return boom
		})
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, base, ctx)
	})

	t.Run("restores after panic", func(t *testing.T) {
		ctx := base
		assert.Panics(t, func() {
			_ = ctx.Scoped(func() error {
				ctx.IDColumn = "cte_9.id"
				panic("boom")
			})
		})
		assert.Equal(t, base, ctx)
	})

	t.Run("nested scopes", func(t *testing.T) {
		ctx := base
		_ = ctx.Scoped(func() error {
			ctx.Depth++
			_ = ctx.Scoped(func() error {
				ctx.Depth++
				assert.Equal(t, 2, ctx.Depth)
				return nil
			})
			assert.Equal(t, 1, ctx.Depth)
			return nil
		})
		assert.Equal(t, 0, ctx.Depth)
	})
}

func TestContextSnapshotRestore(t *testing.T) {
	ctx := Context{Source: "patient", Depth: 1}
	s := ctx.Snapshot()
	ctx.Source, ctx.Depth = "cte_4", 5
	ctx.Restore(s)
	assert.Equal(t, "patient", ctx.Source)
	assert.Equal(t, 1, ctx.Depth)
}

func TestFragmentClone(t *testing.T) {
	f := Fragment{
		Expression:   "x",
		Dependencies: []string{"cte_1"},
		Metadata:     map[string]string{MetaFilter: "TRUE"},
	}
	c := f.Clone()
	c.Dependencies[0] = "cte_9"
	c.Metadata[MetaFilter] = "FALSE"

	assert.Equal(t, "cte_1", f.Dependencies[0])
	assert.Equal(t, "TRUE", f.Meta(MetaFilter, ""))
	assert.Equal(t, "fallback", f.Meta(MetaArrayColumn, "fallback"))
	assert.Equal(t, "cte_12", BlockName(11))
}

func TestDepSet(t *testing.T) {
	d := depSet{"cte_1"}.with("cte_2", "", "cte_1", "cte_3")
	assert.Equal(t, depSet{"cte_1", "cte_2", "cte_3"}, d)
	assert.Equal(t, depSet{"cte_2", "cte_1"}, mergeDeps(depSet{"cte_2"}, nil, depSet{"cte_1", "cte_2"}))
}
