package models

import "time"

const (
	SessionStatusActive    = "active"
	SessionStatusCompleted = "completed"
	SessionStatusAbandoned = "abandoned"
)

const (
	SessionHabitPending   = "pending"
	SessionHabitActive    = "active"
	SessionHabitCompleted = "completed"
	SessionHabitSkipped   = "skipped"
)

// MaxPauseMinutes caps accumulated pause time per session.
const MaxPauseMinutes = 300

// SessionHabit is a per-habit sub-record inside a chain session. Invariant:
// Habits[i].Order == i after every mutation.
type SessionHabit struct {
	HabitID      uint       `json:"habit_id"`
	HabitName    string     `json:"habit_name"`
	Duration     string     `json:"duration"`
	DurationMin  int        `json:"duration_min"`
	Order        int        `json:"order"`
	Status       string     `json:"status"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	TimeSpentMin int        `json:"time_spent_min,omitempty"`
}

// Terminal reports whether the sub-record can no longer change state.
func (h *SessionHabit) Terminal() bool {
	return h.Status == SessionHabitCompleted || h.Status == SessionHabitSkipped
}

// ChainSession is a single execution of a HabitChain. The habit list is a
// snapshot of the chain's items at creation time, not a live reference.
type ChainSession struct {
	ID                string         `gorm:"primaryKey" json:"id"`
	UserID            uint           `gorm:"index" json:"user_id"`
	ChainID           string         `gorm:"index" json:"chain_id"`
	ChainName         string         `json:"chain_name"`
	Status            string         `gorm:"default:active;index" json:"status"`
	Habits            []SessionHabit `gorm:"type:jsonb;serializer:json" json:"habits"`
	CurrentHabitIndex int            `json:"current_habit_index"`

	StartedAt      time.Time  `json:"started_at"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	LastActivityAt time.Time  `gorm:"index" json:"last_activity_at"`

	PausedAt         *time.Time `json:"paused_at,omitempty"`
	PauseDurationMin int        `json:"pause_duration_min"`
	OnBreak          bool       `json:"on_break"`
	BreakStartedAt   *time.Time `json:"break_started_at,omitempty"`

	CompletedHabitsCount int     `json:"completed_habits_count"`
	CompletionRate       float64 `json:"completion_rate"`
	XPEarned             int64   `json:"xp_earned"`
	ActualDurationMin    int     `json:"actual_duration_min"`
	IsActive             bool    `gorm:"default:true" json:"is_active"`

	// Analytics cache captured at creation.
	DayOfWeek int `json:"day_of_week"`
	HourOfDay int `json:"hour_of_day"`

	Version   int       `gorm:"default:1" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// TotalHabits returns the number of sub-records in the session.
func (s *ChainSession) TotalHabits() int {
	return len(s.Habits)
}

// AllTerminal reports whether every sub-record is completed or skipped.
func (s *ChainSession) AllTerminal() bool {
	for i := range s.Habits {
		if !s.Habits[i].Terminal() {
			return false
		}
	}
	return len(s.Habits) > 0
}
