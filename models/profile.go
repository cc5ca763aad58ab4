package models

import (
	"time"

	"gorm.io/datatypes"
)

// XP sources. Every switch over XPSource must be exhaustive; there is no
// catch-all award path.
type XPSource string

const (
	XPSourceHabitCompletion XPSource = "habit_completion"
	XPSourceDailyBonus      XPSource = "daily_bonus"
	XPSourceChainCompletion XPSource = "chain_completion"
	XPSourceStreakMilestone XPSource = "streak_milestone"
	XPSourceGroupActivity   XPSource = "group_activity"
)

// Valid reports whether s is a known XP source.
func (s XPSource) Valid() bool {
	switch s {
	case XPSourceHabitCompletion, XPSourceDailyBonus, XPSourceChainCompletion,
		XPSourceStreakMilestone, XPSourceGroupActivity:
		return true
	}
	return false
}

// MaxXPEvents caps the per-user XP history; oldest entries are evicted.
const MaxXPEvents = 1000

// XPEvent is one immutable entry in a user's XP history.
type XPEvent struct {
	ID          uint              `gorm:"primaryKey" json:"id"`
	UserID      uint              `gorm:"index" json:"user_id"`
	Amount      int64             `json:"amount"`
	Source      XPSource          `json:"source"`
	Description string            `json:"description"`
	Metadata    datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt   time.Time         `gorm:"autoCreateTime;index" json:"created_at"`
}

// Rank is derived from XPTotal and cached on the profile. It is never set
// independently of the total.
type Rank struct {
	Title    string  `json:"title"`
	Level    int     `json:"level"`
	Progress float64 `json:"progress"`
}

// ProfileStats are denormalized aggregates across the user's habits and
// sessions.
type ProfileStats struct {
	HabitsCreated     int        `json:"habits_created"`
	HabitsCompleted   int        `json:"habits_completed"`
	LongestStreak     int        `json:"longest_streak"`
	ChainsCompleted   int        `json:"chains_completed"`
	SessionsCompleted int        `json:"sessions_completed"`
	LastActivityAt    *time.Time `json:"last_activity_at,omitempty"`
}

type Profile struct {
	ID     uint `gorm:"primaryKey" json:"id"`
	UserID uint `gorm:"uniqueIndex" json:"user_id"`

	XPTotal       int64     `gorm:"index" json:"xp_total"`
	XPLastUpdated time.Time `json:"xp_last_updated"`

	RankTitle    string  `json:"rank_title"`
	RankLevel    int     `gorm:"index" json:"rank_level"`
	RankProgress float64 `json:"rank_progress"`

	PrivacyPublic bool         `gorm:"default:true" json:"privacy_public"`
	Stats         ProfileStats `gorm:"type:jsonb;serializer:json" json:"stats"`
	Groups        []string     `gorm:"type:jsonb;serializer:json" json:"groups"`

	Version   int       `gorm:"default:1" json:"-"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}

// Rank returns the cached rank triple.
func (p *Profile) Rank() Rank {
	return Rank{Title: p.RankTitle, Level: p.RankLevel, Progress: p.RankProgress}
}

// SetRank stores a derived rank on the profile cache.
func (p *Profile) SetRank(r Rank) {
	p.RankTitle = r.Title
	p.RankLevel = r.Level
	p.RankProgress = r.Progress
}
