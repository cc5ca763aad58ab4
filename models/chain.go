package models

import "time"

// MaxChainItems is the hard cap on habits per chain.
const MaxChainItems = 20

// ChainItem is one ordered slot in a chain template. Items are immutable
// once the chain is created; sessions snapshot them at start.
type ChainItem struct {
	HabitID   uint   `json:"habit_id"`
	HabitName string `json:"habit_name"`
	Duration  string `json:"duration"`
	Order     int    `json:"order"`
}

// HabitChain is an ordered template of habits used to seed chain sessions.
// It carries no runtime state of its own.
type HabitChain struct {
	ID           string      `gorm:"primaryKey" json:"id"`
	UserID       uint        `gorm:"index" json:"user_id"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Items        []ChainItem `gorm:"type:jsonb;serializer:json" json:"items"`
	TotalTime    string      `json:"total_time"`
	TotalMinutes int         `json:"total_minutes"`
	CreatedAt    time.Time   `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time   `gorm:"autoUpdateTime" json:"updated_at"`
}
