package meetings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "a = $1 AND b = $2", rebind("a = ? AND b = ?"))
	assert.Equal(t, "no placeholders", rebind("no placeholders"))
	assert.Equal(t, "$1 $2 $3", rebind("? ? ?"))
}

func TestCountSQL(t *testing.T) {
	q := NewQuery()
	q.Where("m.is_active")
	q.Where("m.is_public = ?", true)

	sql, args := q.CountSQL()
	assert.Equal(t, "SELECT COUNT(DISTINCT m.id) FROM meetings m WHERE m.is_active AND m.is_public = $1", sql)
	assert.Equal(t, []any{true}, args)
}

func TestCountSQLNoConditions(t *testing.T) {
	sql, args := NewQuery().CountSQL()
	assert.Equal(t, "SELECT COUNT(DISTINCT m.id) FROM meetings m", sql)
	assert.Empty(t, args)
}

func TestPageSQL(t *testing.T) {
	q := NewQuery()
	q.Join("JOIN meeting_tags mt ON mt.meeting_id = m.id")
	q.Where("mt.tag_id = ?", "x")

	sql, args := q.PageSQL("m.created_at DESC", 10, 20)
	assert.Equal(t,
		"SELECT m.id FROM meetings m JOIN meeting_tags mt ON mt.meeting_id = m.id WHERE mt.tag_id = $1 GROUP BY m.id ORDER BY m.created_at DESC LIMIT $2 OFFSET $3",
		sql)
	assert.Equal(t, []any{"x", 10, 20}, args)
}

func TestPageSQLDoesNotMutateArgs(t *testing.T) {
	q := NewQuery()
	q.Where("a = ?", 1)

	q.PageSQL("m.created_at DESC", 5, 0)
	_, args := q.CountSQL()
	assert.Equal(t, []any{1}, args)
}

func TestApplySkipsNilFilters(t *testing.T) {
	applied := false
	q := NewQuery().Apply(nil, func(q *Query) { applied = true }, nil)
	assert.True(t, applied)
	assert.NotNil(t, q)
}

func TestFilterOrderIndependence(t *testing.T) {
	tagFilter := func(q *Query) {
		q.Join("JOIN meeting_tags mt ON mt.meeting_id = m.id")
		q.Where("mt.tag_id = ?", "t")
	}
	publicFilter := func(q *Query) { q.Where("m.is_public = ?", true) }

	a := NewQuery().Apply(tagFilter, publicFilter)
	b := NewQuery().Apply(publicFilter, tagFilter)

	sqlA, argsA := a.CountSQL()
	sqlB, argsB := b.CountSQL()
	// Clause order differs but both carry the same joins and conditions.
	assert.NotEqual(t, sqlA, sqlB)
	assert.ElementsMatch(t, argsA, argsB)
	assert.ElementsMatch(t, a.conds, b.conds)
	assert.ElementsMatch(t, a.joins, b.joins)
}
