package entity

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"strings"
)

// StringArray is a []string stored as JSONB
type StringArray []string

// Scan implements sql.Scanner for StringArray
func (o *StringArray) Scan(value interface{}) error {
	if value == nil {
		*o = StringArray{}
		return nil
	}

	bytes, ok := value.([]byte)
	if !ok {
		return errors.New("failed to unmarshal JSONB value: expected []byte")
	}

	if len(bytes) == 0 {
		*o = StringArray{}
		return nil
	}

	return json.Unmarshal(bytes, o)
}

// Value implements driver.Valuer for StringArray
func (o StringArray) Value() (driver.Value, error) {
	if len(o) == 0 {
		return []byte("[]"), nil // empty JSON array instead of null
	}
	return json.Marshal(o)
}

// Difficulty tiers of the question bank (1 = very easy ... 5 = very hard)
const (
	DifficultyVeryEasy = 1
	DifficultyEasy     = 2
	DifficultyMedium   = 3
	DifficultyHard     = 4
	DifficultyVeryHard = 5
)

// Question types that offer a fixed set of choices
const (
	QuestionTypeMultipleChoice = "multiple_choice"
	QuestionTypeSingleChoice   = "single_choice"
	QuestionTypeTrueFalse      = "true_false"
)

// DefaultCategory is used for items whose question carries no category.
const DefaultCategory = "general"

// QuestionContent holds the part of the question body the engine cares about.
type QuestionContent struct {
	Type string `json:"type"`
}

// Question is the question bank's view of an item, supplied at session start.
type Question struct {
	ID         string          `json:"id"`
	Difficulty int             `json:"difficulty"`
	Tier       string          `json:"tier,omitempty"` // alternative textual tier, e.g. "hard"
	Content    QuestionContent `json:"content"`
	Categories StringArray     `json:"categories"`
}

// IsChoice reports whether the question is a choice item (guessing is more likely).
func (q *Question) IsChoice() bool {
	switch strings.ToLower(q.Content.Type) {
	case QuestionTypeMultipleChoice, QuestionTypeSingleChoice, QuestionTypeTrueFalse, "mcq", "choice":
		return true
	}
	return false
}

// Category returns the content category used for content balancing.
func (q *Question) Category() string {
	for _, c := range q.Categories {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return DefaultCategory
}

// DifficultyTier returns the 1..5 difficulty tier. The textual tier wins when set.
// Unknown values fall back to medium.
func (q *Question) DifficultyTier() int {
	switch strings.ToLower(strings.TrimSpace(q.Tier)) {
	case "very_easy", "very easy":
		return DifficultyVeryEasy
	case "easy":
		return DifficultyEasy
	case "medium":
		return DifficultyMedium
	case "hard":
		return DifficultyHard
	case "very_hard", "very hard":
		return DifficultyVeryHard
	}
	if q.Difficulty >= DifficultyVeryEasy && q.Difficulty <= DifficultyVeryHard {
		return q.Difficulty
	}
	return DifficultyMedium
}
