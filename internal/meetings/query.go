package meetings

import (
	"strconv"
	"strings"
)

// Query accumulates joins and conjunctive conditions for the meetings search.
// Conditions use `?` placeholders which are rebound to $n when the SQL is
// assembled. Filters that add joins can duplicate meeting rows, so counting
// uses DISTINCT and the page query groups by the primary key.
type Query struct {
	joins []string
	conds []string
	args  []any
}

// Filter is an independent predicate builder applied to a Query. Order of
// application does not affect correctness; all filters are conjunctive.
type Filter func(q *Query)

// NewQuery creates an empty query over the meetings table (aliased m).
func NewQuery() *Query {
	return &Query{}
}

// Apply folds the given filters onto the query and returns it.
func (q *Query) Apply(filters ...Filter) *Query {
	for _, f := range filters {
		if f != nil {
			f(q)
		}
	}
	return q
}

// Where appends a `?`-placeholder condition.
func (q *Query) Where(cond string, args ...any) {
	q.conds = append(q.conds, cond)
	q.args = append(q.args, args...)
}

// Join appends a join clause. Callers must alias joined tables uniquely.
func (q *Query) Join(join string) {
	q.joins = append(q.joins, join)
}

// CountSQL returns the distinct count statement and its args.
func (q *Query) CountSQL() (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT COUNT(DISTINCT m.id) FROM meetings m")
	q.writeJoins(&b)
	q.writeWhere(&b)
	return rebind(b.String()), q.args
}

// PageSQL returns the id-page statement ordered by orderBy with pagination.
// GROUP BY m.id de-duplicates rows introduced by join filters while keeping
// ordering expressions over meeting columns valid (PK functional dependency).
func (q *Query) PageSQL(orderBy string, limit, offset int) (string, []any) {
	var b strings.Builder
	b.WriteString("SELECT m.id FROM meetings m")
	q.writeJoins(&b)
	q.writeWhere(&b)
	b.WriteString(" GROUP BY m.id ORDER BY ")
	b.WriteString(orderBy)
	b.WriteString(" LIMIT ? OFFSET ?")
	args := append(append([]any{}, q.args...), limit, offset)
	return rebind(b.String()), args
}

func (q *Query) writeJoins(b *strings.Builder) {
	for _, j := range q.joins {
		b.WriteString(" ")
		b.WriteString(j)
	}
}

func (q *Query) writeWhere(b *strings.Builder) {
	if len(q.conds) == 0 {
		return
	}
	b.WriteString(" WHERE ")
	b.WriteString(strings.Join(q.conds, " AND "))
}

// rebind replaces each `?` with the positional $n placeholder pgx expects.
func rebind(sql string) string {
	var b strings.Builder
	n := 0
	for i := 0; i < len(sql); i++ {
		if sql[i] == '?' {
			n++
			b.WriteString("$")
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(sql[i])
	}
	return b.String()
}
