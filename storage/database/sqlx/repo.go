package sqlxrepos

import (
	"strings"
	"time"

	"github.com/trezcool/eicr/core"
)

// dbTime normalises times to what the databases store: UTC, microsecond precision.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// orderBy renders an ORDER BY clause from whitelisted orderings, falling back to `fallback`.
func orderBy(ordering []core.DBOrdering, fallback string) string {
	if len(ordering) == 0 {
		return " ORDER BY " + fallback
	}
	orderList := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		orderList = append(orderList, ord.String())
	}
	return " ORDER BY " + strings.Join(orderList, ", ")
}

// where joins conditions with AND.
func where(conds []string) string {
	if len(conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(conds, " AND ")
}

// likeArg returns a case-insensitive LIKE pattern for `LOWER(col) LIKE ?`.
func likeArg(s string) string {
	r := strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)
	return "%" + r.Replace(strings.ToLower(s)) + "%"
}

const likeEscape = ` ESCAPE '\'`
