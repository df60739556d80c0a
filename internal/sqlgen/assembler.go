package sqlgen

import (
	"slices"

	"github.com/pthm/fhirsql/internal/sqlgen/sqldsl"
)

// Assemble orders blocks by their dependencies and renders one WITH
// statement that selects everything from the last block.
//
// Blocks are placed by repeatedly taking the first block, in input order,
// whose dependencies are all placed. The output is therefore a pure
// function of the input slice.
func Assemble(blocks []CTE) (string, error) {
	if err := validateBlocks(blocks); err != nil {
		return "", err
	}
	ordered, err := orderBlocks(blocks)
	if err != nil {
		return "", err
	}

	defs := make([]sqldsl.CTEDef, len(ordered))
	for i, b := range ordered {
		defs[i] = sqldsl.CTEDef{Name: b.Name, Query: sqldsl.Raw(b.Query)}
	}
	last := ordered[len(ordered)-1].Name
	stmt := sqldsl.WithCTE{
		CTEs:  defs,
		Query: sqldsl.Raw("SELECT * FROM " + last + ";"),
	}
	return stmt.SQL(), nil
}

func validateBlocks(blocks []CTE) error {
	if len(blocks) == 0 {
		return &AssemblyInputError{Index: -1, Reason: "no blocks to assemble"}
	}

	seen := make(map[string]bool, len(blocks))
	for i, b := range blocks {
		switch {
		case b.Name == "":
			return &AssemblyInputError{Index: i, Reason: "block has no name"}
		case !sqldsl.IsIdent(b.Name):
			return &AssemblyInputError{Index: i, Reason: "block name " + b.Name + " is not a valid identifier"}
		case b.Query == "":
			return &AssemblyInputError{Index: i, Reason: "block " + b.Name + " has no query"}
		case seen[b.Name]:
			return &DependencyError{Block: b.Name, Duplicate: b.Name}
		}
		seen[b.Name] = true
	}

	for _, b := range blocks {
		var missing []string
		for _, dep := range b.DependsOn {
			if !seen[dep] && !slices.Contains(missing, dep) {
				missing = append(missing, dep)
			}
		}
		if len(missing) > 0 {
			return &DependencyError{Block: b.Name, Missing: missing}
		}
	}
	return nil
}

// orderBlocks is Kahn's algorithm with ties broken by input position.
func orderBlocks(blocks []CTE) ([]CTE, error) {
	placed := make(map[string]bool, len(blocks))
	done := make([]bool, len(blocks))
	ordered := make([]CTE, 0, len(blocks))

	for len(ordered) < len(blocks) {
		next := -1
		for i, b := range blocks {
			if done[i] {
				continue
			}
			ready := true
			for _, dep := range b.DependsOn {
				if !placed[dep] {
					ready = false
					break
				}
			}
			if ready {
				next = i
				break
			}
		}
		if next < 0 {
			return nil, &DependencyError{Cycle: findCycle(blocks, done)}
		}
		done[next] = true
		placed[blocks[next].Name] = true
		ordered = append(ordered, blocks[next])
	}
	return ordered, nil
}

// findCycle walks unplaced dependencies from the first unplaced block
// until a block repeats. Every unplaced block has an unplaced dependency,
// so the walk always closes a cycle.
func findCycle(blocks []CTE, done []bool) []string {
	index := make(map[string]int, len(blocks))
	start := -1
	for i, b := range blocks {
		index[b.Name] = i
		if !done[i] && start < 0 {
			start = i
		}
	}

	var path []string
	pos := make(map[string]int)
	cur := start
	for {
		name := blocks[cur].Name
		if at, ok := pos[name]; ok {
			return append(slices.Clone(path[at:]), name)
		}
		pos[name] = len(path)
		path = append(path, name)
		for _, dep := range blocks[cur].DependsOn {
			if j := index[dep]; !done[j] {
				cur = j
				break
			}
		}
	}
}
