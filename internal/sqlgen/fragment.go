package sqlgen

import (
	"maps"
	"slices"
	"strconv"
)

// Metadata keys understood by the builder.
const (
	// MetaArrayColumn is the JSON array expression an unnest block expands.
	MetaArrayColumn = "array_column"
	// MetaResultAlias is the output column name of a block.
	MetaResultAlias = "result_alias"
	// MetaIDColumn is the identity column carried through a block.
	MetaIDColumn = "id_column"
	// MetaFilter is an optional WHERE predicate of a simple block.
	MetaFilter = "filter"
)

const (
	defaultResultAlias = "result"
	defaultItemAlias   = "item"
	idColumnName       = "id"
)

// Fragment is one translated expression unit. Fragments are values: the
// translator never changes a fragment after appending it, and callers that
// want a modified copy use Clone.
type Fragment struct {
	Expression     string            `json:"expression"`
	Source         string            `json:"source,omitempty"`
	RequiresUnnest bool              `json:"requires_unnest,omitempty"`
	IsAggregate    bool              `json:"is_aggregate,omitempty"`
	Dependencies   []string          `json:"dependencies,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// Clone returns a deep copy of f.
func (f Fragment) Clone() Fragment {
	out := f
	out.Dependencies = slices.Clone(f.Dependencies)
	out.Metadata = maps.Clone(f.Metadata)
	return out
}

// Meta returns the metadata value for key, or def when unset or empty.
func (f Fragment) Meta(key, def string) string {
	if v := f.Metadata[key]; v != "" {
		return v
	}
	return def
}

// CTE is a named query block of the final statement.
type CTE struct {
	Name           string            `json:"name"`
	Query          string            `json:"query"`
	DependsOn      []string          `json:"depends_on,omitempty"`
	RequiresUnnest bool              `json:"requires_unnest,omitempty"`
	SourceFragment *Fragment         `json:"-"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// BlockName returns the name of the block built from the fragment at
// position index (0-based). The translator relies on this to reference
// blocks before the builder has produced them.
func BlockName(index int) string {
	return "cte_" + strconv.Itoa(index+1)
}

// depSet accumulates block names in first-seen order without duplicates.
type depSet []string

func (d depSet) with(names ...string) depSet {
	out := d
	for _, n := range names {
		if n != "" && !slices.Contains(out, n) {
			out = append(slices.Clip(out), n)
		}
	}
	return out
}

func mergeDeps(sets ...depSet) depSet {
	var out depSet
	for _, s := range sets {
		out = out.with(s...)
	}
	return out
}
