package inmemdb

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/trezcool/eicr/core"
	"github.com/trezcool/eicr/core/inspection"
	"github.com/trezcool/eicr/core/observation"
	"github.com/trezcool/eicr/core/user"
)

// DB is an in-memory database, safe for concurrent use.
type DB struct {
	user        *userTable
	inspection  *inspectionTable
	observation *observationTable
}

type userTable struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

type inspectionTable struct {
	mutex sync.RWMutex
	table map[string]*inspection.Inspection
}

type observationTable struct {
	mutex sync.RWMutex
	table map[string]*observation.Observation
}

func NewDB() *DB {
	return &DB{
		user:        &userTable{table: make(map[string]*user.User)},
		inspection:  &inspectionTable{table: make(map[string]*inspection.Inspection)},
		observation: &observationTable{table: make(map[string]*observation.Observation)},
	}
}

// compareFunc returns a negative number when a sorts before b, a positive one when after and 0 when equal.
type compareFunc func(a, b int) int

func compareStrings(a, b string) int { return strings.Compare(a, b) }

func compareTimes(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareBools(a, b bool) int {
	switch {
	case a == b:
		return 0
	case !a:
		return -1
	}
	return 1
}

// sortByOrdering sorts n elements in place following the orderings; `column` maps a column to its compare func.
// Unknown columns are ignored.
func sortByOrdering(n int, swap func(i, j int), ordering []core.DBOrdering, column func(col string) compareFunc) {
	type key struct {
		cmp compareFunc
		asc bool
	}
	keys := make([]key, 0, len(ordering))
	for _, ord := range ordering {
		if cmp := column(ord.Field); cmp != nil {
			keys = append(keys, key{cmp: cmp, asc: ord.Ascending})
		}
	}
	if len(keys) == 0 {
		return
	}
	sort.Stable(sorter{n: n, swap: swap, less: func(i, j int) bool {
		for _, k := range keys {
			c := k.cmp(i, j)
			if c == 0 {
				continue
			}
			if k.asc {
				return c < 0
			}
			return c > 0
		}
		return false
	}})
}

type sorter struct {
	n    int
	swap func(i, j int)
	less func(i, j int) bool
}

func (s sorter) Len() int           { return s.n }
func (s sorter) Swap(i, j int)      { s.swap(i, j) }
func (s sorter) Less(i, j int) bool { return s.less(i, j) }

func containsFold(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
