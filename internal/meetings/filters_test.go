package meetings

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCreatorNationality(t *testing.T) {
	tests := []struct {
		in   string
		want CreatorNationality
		ok   bool
	}{
		{"", NationalityAll, true},
		{"ALL", NationalityAll, true},
		{"korean", NationalityKorean, true},
		{"Foreigner", NationalityForeigner, true},
		{"MARTIAN", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseCreatorNationality(tt.in)
		assert.Equal(t, tt.ok, ok, tt.in)
		assert.Equal(t, tt.want, got, tt.in)
	}
}

func TestTopicCondition(t *testing.T) {
	id := uuid.New()
	assert.True(t, TopicCondition{}.IsZero())
	assert.False(t, Exact([]uuid.UUID{id}).IsZero())
	assert.False(t, ExactOrCustom(nil).IsZero())
	assert.True(t, ExactOrCustom([]uuid.UUID{id}).OrCustom)
	assert.False(t, Exact([]uuid.UUID{id}).OrCustom)
}

func TestWithTags(t *testing.T) {
	assert.Nil(t, WithTags(nil))

	id := uuid.New()
	q := NewQuery().Apply(WithTags([]uuid.UUID{id}))
	sql, args := q.CountSQL()
	assert.Contains(t, sql, "JOIN meeting_tags mt ON mt.meeting_id = m.id")
	assert.Contains(t, sql, "mt.tag_id = ANY($1::uuid[])")
	require.Len(t, args, 1)
	assert.Equal(t, []string{id.String()}, args[0])
}

func TestWithTopics(t *testing.T) {
	assert.Nil(t, WithTopics(TopicCondition{}))

	id := uuid.New()

	t.Run("exact", func(t *testing.T) {
		sql, args := NewQuery().Apply(WithTopics(Exact([]uuid.UUID{id}))).CountSQL()
		assert.Contains(t, sql, "JOIN meeting_topics mtp ON mtp.meeting_id = m.id")
		assert.Contains(t, sql, "mtp.topic_id = ANY($1::uuid[])")
		assert.NotContains(t, sql, "tp.is_custom OR")
		require.Len(t, args, 1)
	})

	t.Run("exact or custom", func(t *testing.T) {
		sql, _ := NewQuery().Apply(WithTopics(ExactOrCustom([]uuid.UUID{id}))).CountSQL()
		assert.Contains(t, sql, "(tp.is_custom OR mtp.topic_id = ANY($1::uuid[]))")
	})

	t.Run("custom only", func(t *testing.T) {
		sql, args := NewQuery().Apply(WithTopics(ExactOrCustom(nil))).CountSQL()
		assert.Contains(t, sql, "tp.is_custom")
		assert.NotContains(t, sql, "topic_id = ANY")
		assert.Empty(t, args)
	})
}

func TestWithCreatorNationality(t *testing.T) {
	assert.Nil(t, WithCreatorNationality(NationalityAll))

	sql, args := NewQuery().Apply(WithCreatorNationality(NationalityKorean)).CountSQL()
	assert.Contains(t, sql, "nationality_code = $1")
	assert.Equal(t, []any{"kr"}, args)

	sql, args = NewQuery().Apply(WithCreatorNationality(NationalityForeigner)).CountSQL()
	assert.Contains(t, sql, "nationality_code <> $1")
	assert.Equal(t, []any{"kr"}, args)
}

func TestWithSearchWord(t *testing.T) {
	assert.Nil(t, WithSearchWord(""))
	assert.Nil(t, WithSearchWord("  &! "))

	sql, args := NewQuery().Apply(WithSearchWord("study cafe")).CountSQL()
	assert.Contains(t, sql, "to_tsquery('simple', $1)")
	assert.Equal(t, []any{"study:* & cafe:*"}, args)
}

func TestPrefixTSQuery(t *testing.T) {
	assert.Equal(t, "study:*", prefixTSQuery("study"))
	assert.Equal(t, "study:* & cafe:*", prefixTSQuery("study cafe"))
	// tsquery operators are stripped, not passed through.
	assert.Equal(t, "study:* & cafe:*", prefixTSQuery("study & (cafe:*)"))
	assert.Equal(t, "", prefixTSQuery("&&&"))
}

func TestWithVisibility(t *testing.T) {
	universityID := uuid.New()
	banned := uuid.New()

	sql, args := NewQuery().Apply(WithVisibility(universityID, []uuid.UUID{banned})).CountSQL()
	assert.Contains(t, sql, "m.university_id = $1")
	assert.Contains(t, sql, "NOT (m.creator_id = ANY($2::uuid[]))")
	require.Len(t, args, 2)
	assert.Equal(t, universityID, args[0])
	assert.Equal(t, []string{banned.String()}, args[1])

	sql, args = NewQuery().Apply(WithVisibility(universityID, nil)).CountSQL()
	assert.NotContains(t, sql, "creator_id = ANY")
	require.Len(t, args, 1)
}
