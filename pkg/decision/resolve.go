package decision

import (
	"fmt"
	"strings"

	"github.com/primis-cohort/internal/domain"
)

// Resolve orders tables so that every table comes after the groups it
// references. The order is stable: among tables that are ready, the one
// declared first goes first. A reference to an undefined group or a cycle is
// a configuration error.
func Resolve(tables []*Table) ([]*Table, error) {
	index := make(map[string]int, len(tables))
	for i, t := range tables {
		if _, dup := index[t.name]; dup {
			return nil, domain.NewConfigurationError(domain.ErrDuplicateGroup, t.name, "group is defined more than once")
		}
		index[t.name] = i
	}
	for _, t := range tables {
		for _, dep := range t.groups {
			if _, ok := index[dep]; !ok {
				return nil, domain.NewConfigurationError(domain.ErrUnknownGroup, t.name,
					fmt.Sprintf("references undefined group %s", dep))
			}
		}
	}

	done := make([]bool, len(tables))
	order := make([]*Table, 0, len(tables))
	for len(order) < len(tables) {
		progressed := false
		for i, t := range tables {
			if done[i] || !ready(t, index, done) {
				continue
			}
			done[i] = true
			order = append(order, t)
			progressed = true
			break
		}
		if !progressed {
			cycle := findCycle(tables, index, done)
			return nil, domain.NewConfigurationError(domain.ErrDependencyCycle, cycle[0],
				"dependency cycle: "+strings.Join(cycle, " -> "))
		}
	}
	return order, nil
}

func ready(t *Table, index map[string]int, done []bool) bool {
	for _, dep := range t.groups {
		if !done[index[dep]] {
			return false
		}
	}
	return true
}

// findCycle follows unresolved dependencies from the first unresolved table
// until a group repeats. Every unresolved table has an unresolved dependency,
// so the walk always closes.
func findCycle(tables []*Table, index map[string]int, done []bool) []string {
	start := -1
	for i := range tables {
		if !done[i] {
			start = i
			break
		}
	}

	seen := map[int]int{}
	var path []string
	for cur := start; ; {
		if at, ok := seen[cur]; ok {
			return append(path[at:], tables[cur].name)
		}
		seen[cur] = len(path)
		path = append(path, tables[cur].name)
		for _, dep := range tables[cur].groups {
			if j := index[dep]; !done[j] {
				cur = j
				break
			}
		}
	}
}
