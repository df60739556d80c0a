package fhirsql_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pthm/fhirsql"
)

func TestCacheReusesPlans(t *testing.T) {
	cache := fhirsql.NewCache()
	c := newCompiler(t, fhirsql.WithCache(cache))

	first, err := c.PlanString("Patient.name.given")
	require.NoError(t, err)
	second, err := c.PlanString("Patient.name.given")
	require.NoError(t, err)
	assert.Same(t, first, second)
	assert.Equal(t, 1, cache.Size())

	_, err = c.PlanString("Patient.gender")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Size())

	cache.Clear()
	assert.Equal(t, 0, cache.Size())
}

func TestCacheStoresFailures(t *testing.T) {
	cache := fhirsql.NewCache()
	c := newCompiler(t, fhirsql.WithCache(cache))

	_, err := c.PlanString("Patient.name.")
	require.Error(t, err)
	assert.Equal(t, 1, cache.Size())

	p, err, ok := cache.Get(fhirsql.CacheKey{Dialect: "sqlite", Expression: "Patient.name."})
	require.True(t, ok)
	assert.Nil(t, p)
	assert.True(t, fhirsql.IsSyntaxErr(err))
}

func TestCacheKeyIncludesDialectAndResource(t *testing.T) {
	cache := fhirsql.NewCache()
	a := newCompiler(t, fhirsql.WithCache(cache))
	b := newCompiler(t, fhirsql.WithCache(cache), fhirsql.WithResourceType("Patient"))

	_, err := a.PlanString("Patient.gender")
	require.NoError(t, err)
	_, err = b.PlanString("Patient.gender")
	require.NoError(t, err)
	assert.Equal(t, 2, cache.Size())
}

func TestCacheTTL(t *testing.T) {
	cache := fhirsql.NewCache(fhirsql.WithTTL(time.Millisecond))
	key := fhirsql.CacheKey{Expression: "x"}
	cache.Set(key, &fhirsql.Plan{SQL: "SELECT 1"}, nil)

	_, _, ok := cache.Get(key)
	assert.True(t, ok)

	time.Sleep(5 * time.Millisecond)
	_, _, ok = cache.Get(key)
	assert.False(t, ok)
	assert.Equal(t, 0, cache.Size())
}

func TestCacheMaxEntries(t *testing.T) {
	cache := fhirsql.NewCache(fhirsql.WithMaxEntries(2))
	cache.Set(fhirsql.CacheKey{Expression: "a"}, nil, nil)
	cache.Set(fhirsql.CacheKey{Expression: "b"}, nil, nil)
	cache.Set(fhirsql.CacheKey{Expression: "a"}, nil, nil)
	assert.Equal(t, 2, cache.Size())

	cache.Set(fhirsql.CacheKey{Expression: "c"}, nil, nil)
	assert.Equal(t, 1, cache.Size())
	_, _, ok := cache.Get(fhirsql.CacheKey{Expression: "c"})
	assert.True(t, ok)
}
