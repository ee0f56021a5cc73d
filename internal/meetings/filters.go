package meetings

import (
	"strings"

	"github.com/google/uuid"

	"github.com/BIS-KIT/BISKIT-Backend-sub000/internal/models"
)

// CreatorNationality selects meetings by the creator's nationality class.
type CreatorNationality string

const (
	// NationalityAll applies no creator filter.
	NationalityAll CreatorNationality = "ALL"
	// NationalityKorean restricts to creators with nationality code "kr".
	NationalityKorean CreatorNationality = "KOREAN"
	// NationalityForeigner is the strict complement of NationalityKorean.
	NationalityForeigner CreatorNationality = "FOREIGNER"
)

// ParseCreatorNationality validates a creator_nationality token. Empty input
// means ALL.
func ParseCreatorNationality(s string) (CreatorNationality, bool) {
	switch CreatorNationality(strings.ToUpper(s)) {
	case "", NationalityAll:
		return NationalityAll, true
	case NationalityKorean:
		return NationalityKorean, true
	case NationalityForeigner:
		return NationalityForeigner, true
	}
	return "", false
}

// TopicCondition is the tagged topic predicate. The curated "other" topic is
// a sentinel for "everything outside the curated set", so its presence widens
// the membership test to an OR with "any custom topic".
type TopicCondition struct {
	IDs      []uuid.UUID
	OrCustom bool
}

// Exact matches only the listed topic ids.
func Exact(ids []uuid.UUID) TopicCondition {
	return TopicCondition{IDs: ids}
}

// ExactOrCustom matches the listed topic ids or any custom topic.
func ExactOrCustom(ids []uuid.UUID) TopicCondition {
	return TopicCondition{IDs: ids, OrCustom: true}
}

// IsZero reports whether the condition filters nothing.
func (c TopicCondition) IsZero() bool {
	return len(c.IDs) == 0 && !c.OrCustom
}

// WithTags restricts to meetings associated with any of the given tags.
// Adds a join; callers must de-duplicate before counting.
func WithTags(ids []uuid.UUID) Filter {
	if len(ids) == 0 {
		return nil
	}
	return func(q *Query) {
		q.Join("JOIN meeting_tags mt ON mt.meeting_id = m.id")
		q.Where("mt.tag_id = ANY(?::uuid[])", uuidStrings(ids))
	}
}

// WithTopics restricts to meetings matching the topic condition.
// Adds a join; callers must de-duplicate before counting.
func WithTopics(cond TopicCondition) Filter {
	if cond.IsZero() {
		return nil
	}
	return func(q *Query) {
		q.Join("JOIN meeting_topics mtp ON mtp.meeting_id = m.id")
		q.Join("JOIN topics tp ON tp.id = mtp.topic_id")
		switch {
		case cond.OrCustom && len(cond.IDs) > 0:
			q.Where("(tp.is_custom OR mtp.topic_id = ANY(?::uuid[]))", uuidStrings(cond.IDs))
		case cond.OrCustom:
			q.Where("tp.is_custom")
		default:
			q.Where("mtp.topic_id = ANY(?::uuid[])", uuidStrings(cond.IDs))
		}
	}
}

// WithCreatorNationality restricts by the creator's nationality class.
func WithCreatorNationality(n CreatorNationality) Filter {
	switch n {
	case NationalityKorean:
		return func(q *Query) {
			q.Where("m.creator_id IN (SELECT id FROM users WHERE nationality_code = ?)", models.NationalityKorea)
		}
	case NationalityForeigner:
		return func(q *Query) {
			q.Where("m.creator_id IN (SELECT id FROM users WHERE nationality_code <> ?)", models.NationalityKorea)
		}
	}
	return nil
}

// WithSearchWord matches meeting name, description or associated language
// names with prefix-tokenized full-text search. A word that tokenizes to
// nothing yields no filter; tokens that match nothing yield an empty result.
func WithSearchWord(word string) Filter {
	tsquery := prefixTSQuery(word)
	if tsquery == "" {
		return nil
	}
	return func(q *Query) {
		q.Where(`to_tsvector('simple', m.name || ' ' || coalesce(m.description, '') || ' ' || coalesce((SELECT string_agg(l.name, ' ') FROM meeting_languages ml JOIN languages l ON l.id = ml.language_id WHERE ml.meeting_id = m.id), '')) @@ to_tsquery('simple', ?)`, tsquery)
	}
}

// WithVisibility applies the private-scope restriction: meetings in the
// requester's university, excluding meetings created by banned users.
func WithVisibility(universityID uuid.UUID, bannedCreatorIDs []uuid.UUID) Filter {
	return func(q *Query) {
		q.Where("m.university_id = ?", universityID)
		if len(bannedCreatorIDs) > 0 {
			q.Where("NOT (m.creator_id = ANY(?::uuid[]))", uuidStrings(bannedCreatorIDs))
		}
	}
}

// prefixTSQuery turns free text into a conjunctive prefix tsquery
// ("study cafe" -> "study:* & cafe:*"). tsquery operators are stripped.
func prefixTSQuery(word string) string {
	fields := strings.FieldsFunc(word, func(r rune) bool {
		switch r {
		case ' ', '\t', '\n', '&', '|', '!', '(', ')', ':', '*', '\'':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return ""
	}
	terms := make([]string, len(fields))
	for i, f := range fields {
		terms[i] = f + ":*"
	}
	return strings.Join(terms, " & ")
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
