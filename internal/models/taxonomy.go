package models

import "github.com/google/uuid"

// Tag is a meeting label, curated (seeded) or user-coined (is_custom).
type Tag struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsCustom bool      `json:"is_custom"`
}

// Topic is a meeting subject. The curated "other" topic is a sentinel: when
// requested as a filter it widens to "any custom topic".
type Topic struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsCustom bool      `json:"is_custom"`
}

// Language is a spoken-language reference entity associated with meetings.
type Language struct {
	ID       uuid.UUID `json:"id"`
	Name     string    `json:"name"`
	IsCustom bool      `json:"is_custom"`
}
