package services

import (
	"math"

	"momentum/models"
)

// RankTier is one band of the fixed rank table. MaxXP < 0 marks the
// unbounded top band.
type RankTier struct {
	Level int
	Title string
	MinXP int64
	MaxXP int64
}

// RankTiers is ordered by level. Bands are inclusive on both ends; the top
// band has no upper bound.
var RankTiers = []RankTier{
	{Level: 1, Title: "Novice", MinXP: 0, MaxXP: 99},
	{Level: 2, Title: "Apprentice", MinXP: 100, MaxXP: 299},
	{Level: 3, Title: "Adept", MinXP: 300, MaxXP: 699},
	{Level: 4, Title: "Expert", MinXP: 700, MaxXP: 1499},
	{Level: 5, Title: "Master", MinXP: 1500, MaxXP: 2999},
	{Level: 6, Title: "Grandmaster", MinXP: 3000, MaxXP: 5999},
	{Level: 7, Title: "Champion", MinXP: 6000, MaxXP: 9999},
	{Level: 8, Title: "Legend", MinXP: 10000, MaxXP: -1},
}

// DeriveRank maps a cumulative XP total onto the rank table. It is a pure
// function: equal totals always produce identical ranks.
func DeriveRank(total int64) models.Rank {
	if total < 0 {
		total = 0
	}

	tier := RankTiers[0]
	for _, t := range RankTiers {
		if total >= t.MinXP {
			tier = t
		}
	}

	progress := 100.0
	if tier.MaxXP >= 0 {
		span := float64(tier.MaxXP - tier.MinXP)
		progress = float64(total-tier.MinXP) / span * 100
		progress = math.Max(0, math.Min(100, progress))
	}

	return models.Rank{Title: tier.Title, Level: tier.Level, Progress: progress}
}

// Reward constants for the chain-session engine and daily bonuses.
const (
	XPPerCompletedHabit = 10

	perfectBonusBase     = 50
	perfectBonusPerHabit = 10
	goodBonusBase        = 25
	goodBonusPerHabit    = 5
	partialBonusBase     = 10
	partialBonusPerHabit = 3

	DailyBonusBase = 10
)

// StreakMilestones maps streak lengths to one-time flat awards.
var StreakMilestones = []struct {
	Days   int
	Reward int64
}{
	{Days: 7, Reward: 50},
	{Days: 30, Reward: 200},
	{Days: 100, Reward: 500},
	{Days: 365, Reward: 1000},
}

// MilestoneReward returns the award for reaching exactly the given streak,
// or 0 if the streak is not a milestone.
func MilestoneReward(streak int) int64 {
	for _, m := range StreakMilestones {
		if streak == m.Days {
			return m.Reward
		}
	}
	return 0
}

// DailyBonusAmount scales the flat daily bonus by current streak length.
func DailyBonusAmount(streak int) int64 {
	switch {
	case streak >= 100:
		return DailyBonusBase * 3
	case streak >= 30:
		return DailyBonusBase * 2
	case streak >= 7:
		return DailyBonusBase * 3 / 2
	default:
		return DailyBonusBase
	}
}
