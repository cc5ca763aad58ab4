package services

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/models"
)

func day(offset int) time.Time {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	return base.AddDate(0, 0, offset)
}

func TestUpsertDailyFeedbackReplacesSameDay(t *testing.T) {
	entries := []models.FeedbackEntry{
		{Date: day(-1), Feedback: "yesterday", Mood: models.MoodGood},
		{Date: day(0).Add(-3 * time.Hour), Feedback: "this morning", Mood: models.MoodNeutral},
	}

	result := UpsertDailyFeedback(entries, models.FeedbackEntry{
		Date: day(0), Feedback: "tonight", Mood: models.MoodGreat,
	}, time.UTC)

	require.Len(t, result, 2)
	assert.Equal(t, "yesterday", result[0].Feedback)
	assert.Equal(t, "tonight", result[1].Feedback)
}

func TestUpsertDailyFeedbackTimezoneWindow(t *testing.T) {
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)

	// 03:00 UTC and 23:00 UTC the previous day are the same New York day.
	morning := time.Date(2026, 3, 10, 3, 0, 0, 0, time.UTC)
	prior := []models.FeedbackEntry{
		{Date: time.Date(2026, 3, 9, 23, 0, 0, 0, time.UTC), Feedback: "first"},
	}

	result := UpsertDailyFeedback(prior, models.FeedbackEntry{Date: morning, Feedback: "second"}, loc)
	require.Len(t, result, 1)
	assert.Equal(t, "second", result[0].Feedback)

	// In UTC those are different days and both survive.
	result = UpsertDailyFeedback(prior, models.FeedbackEntry{Date: morning, Feedback: "second"}, time.UTC)
	assert.Len(t, result, 2)
}

func TestUpsertDailyFeedbackCap(t *testing.T) {
	var entries []models.FeedbackEntry
	for i := 0; i < models.MaxFeedbackEntries+10; i++ {
		entries = UpsertDailyFeedback(entries, models.FeedbackEntry{
			Date:     day(-i),
			Feedback: fmt.Sprintf("entry %d", i),
		}, time.UTC)
	}

	assert.Len(t, entries, models.MaxFeedbackEntries)
	// Oldest evicted: the newest entry (day 0) is still present.
	assert.Equal(t, "entry 0", entries[len(entries)-1].Feedback)
}

func TestComputeStreak(t *testing.T) {
	now := day(0)

	records := []models.CompletionRecord{
		{Date: day(0), Completed: true},
		{Date: day(-1), Completed: true},
		{Date: day(-2), Completed: true},
		{Date: day(-4), Completed: true}, // gap at -3 breaks it
	}
	assert.Equal(t, 3, computeStreak(records, now))

	// A streak ending yesterday still counts until today is fully missed.
	records = []models.CompletionRecord{
		{Date: day(-1), Completed: true},
		{Date: day(-2), Completed: true},
	}
	assert.Equal(t, 2, computeStreak(records, now))

	// Ended two days ago: gone.
	records = []models.CompletionRecord{
		{Date: day(-2), Completed: true},
	}
	assert.Equal(t, 0, computeStreak(records, now))

	// Incomplete records do not extend a streak.
	records = []models.CompletionRecord{
		{Date: day(0), Completed: false},
		{Date: day(-1), Completed: true},
	}
	assert.Equal(t, 1, computeStreak(records, now))

	assert.Equal(t, 0, computeStreak(nil, now))
}

func TestLongestStreak(t *testing.T) {
	records := []models.CompletionRecord{
		{Date: day(0), Completed: true},
		{Date: day(-1), Completed: true},
		{Date: day(-5), Completed: true},
		{Date: day(-6), Completed: true},
		{Date: day(-7), Completed: true},
		{Date: day(-8), Completed: true},
	}
	assert.Equal(t, 4, longestStreak(records))
	assert.Equal(t, 0, longestStreak(nil))
}

func TestComputeHabitStats(t *testing.T) {
	habit := &models.Habit{
		ID: 7,
		Completions: []models.CompletionRecord{
			{Date: day(0), Completed: true},
			{Date: day(-1), Completed: true},
			{Date: day(-2), Completed: false},
			{Date: day(-3), Completed: true},
		},
	}

	stats := computeHabitStats(habit, day(0))
	assert.Equal(t, uint(7), stats.HabitID)
	assert.Equal(t, 4, stats.TotalRecords)
	assert.Equal(t, 3, stats.CompletedDays)
	assert.Equal(t, 75.0, stats.CompletionRate)
	assert.Equal(t, 2, stats.CurrentStreak)
	assert.Equal(t, 2, stats.LongestStreak)
}
