package models

import "time"

const (
	HabitStatusActive   = "active"
	HabitStatusPaused   = "paused"
	HabitStatusArchived = "archived"
)

const (
	MoodGreat   = "great"
	MoodGood    = "good"
	MoodNeutral = "neutral"
	MoodBad     = "bad"
	MoodAwful   = "awful"
)

// MaxFeedbackEntries caps the rolling feedback window per habit.
const MaxFeedbackEntries = 90

// CompletionRecord is one day's completion mark for a habit.
type CompletionRecord struct {
	Date         time.Time `json:"date"`
	Completed    bool      `json:"completed"`
	Notes        string    `json:"notes,omitempty"`
	TimeSpentMin int       `json:"time_spent_min,omitempty"`
}

// FeedbackEntry is a free-text daily reflection. At most one entry exists
// per calendar date in the owner's timezone.
type FeedbackEntry struct {
	Date      time.Time `json:"date"`
	Feedback  string    `json:"feedback"`
	Completed bool      `json:"completed"`
	Mood      string    `json:"mood"`
}

type Habit struct {
	ID          uint               `gorm:"primaryKey" json:"id"`
	UserID      uint               `gorm:"index" json:"user_id"`
	Name        string             `json:"name"`
	Category    string             `json:"category"`
	Frequency   string             `json:"frequency"`
	TimeOfDay   string             `json:"time_of_day"`
	Priority    string             `json:"priority"`
	Status      string             `gorm:"default:active" json:"status"`
	Streak      int                `json:"streak"`
	Completions []CompletionRecord `gorm:"type:jsonb;serializer:json" json:"completions"`
	Feedback    []FeedbackEntry    `gorm:"type:jsonb;serializer:json" json:"feedback"`
	CreatedAt   time.Time          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time          `gorm:"autoUpdateTime" json:"updated_at"`
}
