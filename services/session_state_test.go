package services

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"momentum/models"
)

func newTestSession(durations ...string) *models.ChainSession {
	items := make([]models.ChainItem, len(durations))
	for i, d := range durations {
		items[i] = models.ChainItem{
			HabitID:   uint(i + 1),
			HabitName: "habit",
			Duration:  d,
		}
	}
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &models.ChainSession{
		ID:             "test-session",
		UserID:         1,
		Status:         models.SessionStatusActive,
		Habits:         NewSessionHabits(items),
		StartedAt:      now,
		LastActivityAt: now,
		IsActive:       true,
	}
}

func assertOrderInvariant(t *testing.T, s *models.ChainSession) {
	t.Helper()
	for i := range s.Habits {
		assert.Equal(t, i, s.Habits[i].Order, "habit %d order", i)
	}
}

func TestNewSessionHabits(t *testing.T) {
	s := newTestSession("10 min", "10 min", "10 min")

	require.Len(t, s.Habits, 3)
	assertOrderInvariant(t, s)

	total := 0
	for _, h := range s.Habits {
		assert.Equal(t, models.SessionHabitPending, h.Status)
		total += h.DurationMin
	}
	assert.Equal(t, 30, total)
}

func TestStartHabit(t *testing.T) {
	s := newTestSession("10 min", "20 min")
	now := s.StartedAt.Add(time.Minute)

	require.NoError(t, startHabit(s, 1, now))
	assert.Equal(t, models.SessionHabitActive, s.Habits[1].Status)
	assert.Equal(t, 1, s.CurrentHabitIndex)
	assert.Equal(t, now, s.LastActivityAt)
	require.NotNil(t, s.Habits[1].StartedAt)

	assert.ErrorIs(t, startHabit(s, -1, now), ErrInvalidIndex)
	assert.ErrorIs(t, startHabit(s, 2, now), ErrInvalidIndex)
}

func TestCompleteHabitRecomputesDerivedFields(t *testing.T) {
	s := newTestSession("10 min", "10 min", "10 min", "10 min")
	now := s.StartedAt.Add(5 * time.Minute)

	require.NoError(t, completeHabit(s, 0, "done", 9, false, now))
	assert.Equal(t, 1, s.CompletedHabitsCount)
	assert.Equal(t, float64(25), s.CompletionRate)
	assert.Equal(t, models.SessionStatusActive, s.Status)
	assert.Equal(t, 1, s.CurrentHabitIndex)
	assertOrderInvariant(t, s)

	// Skips count toward progress.
	require.NoError(t, completeHabit(s, 1, "", 0, true, now))
	assert.Equal(t, 2, s.CompletedHabitsCount)
	assert.Equal(t, float64(50), s.CompletionRate)
	assert.Equal(t, models.SessionHabitSkipped, s.Habits[1].Status)
}

func TestCompleteHabitRejectsTerminalSubRecord(t *testing.T) {
	s := newTestSession("10 min", "10 min")
	now := s.StartedAt

	require.NoError(t, completeHabit(s, 0, "", 0, false, now))
	assert.ErrorIs(t, completeHabit(s, 0, "", 0, false, now), ErrInvalidIndex)
	assert.ErrorIs(t, completeHabit(s, 0, "", 0, true, now), ErrInvalidIndex)
}

func TestSkipNeverStartedStep(t *testing.T) {
	s := newTestSession("10 min")
	require.Equal(t, models.SessionHabitPending, s.Habits[0].Status)
	require.NoError(t, completeHabit(s, 0, "", 0, true, s.StartedAt))
	assert.Equal(t, models.SessionHabitSkipped, s.Habits[0].Status)
	assert.Equal(t, models.SessionStatusCompleted, s.Status)
}

func TestSessionAutoCompletes(t *testing.T) {
	s := newTestSession("10 min", "10 min", "10 min")
	end := s.StartedAt.Add(28 * time.Minute)

	require.NoError(t, completeHabit(s, 0, "", 0, false, s.StartedAt.Add(10*time.Minute)))
	require.NoError(t, completeHabit(s, 1, "", 0, false, s.StartedAt.Add(20*time.Minute)))
	require.NoError(t, completeHabit(s, 2, "", 0, true, end))

	assert.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.False(t, s.IsActive)
	assert.Equal(t, 3, s.CompletedHabitsCount)
	assert.Equal(t, float64(100), s.CompletionRate)
	require.NotNil(t, s.CompletedAt)
	assert.Equal(t, end, *s.CompletedAt)
	assert.Equal(t, 28, s.ActualDurationMin)

	// 2 completed * 10 + perfect bonus (50 + 3*10)
	assert.Equal(t, int64(100), s.XPEarned)
}

func TestFinalizeIsIdempotent(t *testing.T) {
	s := newTestSession("10 min", "10 min")
	first := s.StartedAt.Add(15 * time.Minute)
	require.NoError(t, completeHabit(s, 0, "", 0, false, first))
	require.NoError(t, completeHabit(s, 1, "", 0, false, first))

	completedAt := *s.CompletedAt
	duration := s.ActualDurationMin
	xp := s.XPEarned

	finalizeSession(s, first.Add(time.Hour))

	assert.Equal(t, completedAt, *s.CompletedAt)
	assert.Equal(t, duration, s.ActualDurationMin)
	assert.Equal(t, xp, s.XPEarned)

	// Terminal sessions reject further habit mutations outright.
	assert.ErrorIs(t, completeHabit(s, 0, "", 0, false, first), ErrNotFound)
}

func TestPauseSubtractedFromActualDuration(t *testing.T) {
	s := newTestSession("10 min")
	start := s.StartedAt

	require.NoError(t, pauseSession(s, start.Add(2*time.Minute)))
	require.NoError(t, resumeSession(s, start.Add(12*time.Minute)))
	assert.Equal(t, 10, s.PauseDurationMin)
	assert.Nil(t, s.PausedAt)

	require.NoError(t, completeHabit(s, 0, "", 0, false, start.Add(25*time.Minute)))
	assert.Equal(t, 15, s.ActualDurationMin)
}

func TestPauseDurationCapped(t *testing.T) {
	s := newTestSession("10 min")
	start := s.StartedAt

	require.NoError(t, pauseSession(s, start))
	require.NoError(t, resumeSession(s, start.Add(20*time.Hour)))
	assert.Equal(t, models.MaxPauseMinutes, s.PauseDurationMin)
}

func TestBreakWindow(t *testing.T) {
	s := newTestSession("10 min", "10 min")
	start := s.StartedAt

	require.NoError(t, startBreak(s, start.Add(10*time.Minute)))
	assert.True(t, s.OnBreak)
	require.NotNil(t, s.BreakStartedAt)

	require.NoError(t, endBreak(s, start.Add(15*time.Minute)))
	assert.False(t, s.OnBreak)
	assert.Nil(t, s.BreakStartedAt)
	assert.Equal(t, 5, s.PauseDurationMin)
}

func TestPointerStaysWhenNothingPendingAhead(t *testing.T) {
	s := newTestSession("10 min", "10 min", "10 min")
	now := s.StartedAt

	// Finish the tail first, then the head: nothing pending after index 0.
	require.NoError(t, completeHabit(s, 2, "", 0, false, now))
	require.NoError(t, completeHabit(s, 1, "", 0, false, now))
	idx := s.CurrentHabitIndex
	require.NoError(t, completeHabit(s, 0, "", 0, false, now))

	assert.Equal(t, models.SessionStatusCompleted, s.Status)
	assert.Equal(t, idx, s.CurrentHabitIndex) // stale pointer is allowed once terminal
}

func TestCalculateSessionXPBands(t *testing.T) {
	// 10 habits: band boundaries at exactly 50, 80, 100 percent.
	build := func(completed, skipped int) *models.ChainSession {
		durations := make([]string, 10)
		for i := range durations {
			durations[i] = "5 min"
		}
		s := newTestSession(durations...)
		now := s.StartedAt
		for i := 0; i < completed; i++ {
			_ = completeHabit(s, i, "", 0, false, now)
		}
		for i := completed; i < completed+skipped; i++ {
			_ = completeHabit(s, i, "", 0, true, now)
		}
		recomputeProgress(s)
		return s
	}

	// 100%: 10 completed -> 10*10 + 50 + 10*10 = 250 (perfect, inclusive)
	assert.Equal(t, int64(250), CalculateSessionXP(build(10, 0)))

	// 100% terminal with skips still lands in the perfect band.
	// 8 completed + 2 skipped -> 80 + 50 + 100 = 230
	assert.Equal(t, int64(230), CalculateSessionXP(build(8, 2)))

	// exactly 80% progress: 8 completed, 2 pending -> good band (inclusive)
	s := build(8, 0)
	assert.Equal(t, float64(80), s.CompletionRate)
	assert.Equal(t, int64(8*10+25+8*5), CalculateSessionXP(s))

	// 79% -> partial band is next door; use 5 of 10 for exactly 50%.
	s = build(5, 0)
	assert.Equal(t, float64(50), s.CompletionRate)
	assert.Equal(t, int64(5*10+10+5*3), CalculateSessionXP(s))

	// 40%: below every bonus band, per-habit reward only.
	s = build(4, 0)
	assert.Equal(t, int64(40), CalculateSessionXP(s))
}

func TestCompletedCountMatchesTerminalStates(t *testing.T) {
	s := newTestSession("5 min", "5 min", "5 min", "5 min", "5 min")
	now := s.StartedAt

	require.NoError(t, completeHabit(s, 0, "", 0, false, now))
	require.NoError(t, completeHabit(s, 2, "", 0, true, now))
	require.NoError(t, completeHabit(s, 4, "", 0, false, now))

	terminal := 0
	for i := range s.Habits {
		if s.Habits[i].Terminal() {
			terminal++
		}
	}
	assert.Equal(t, terminal, s.CompletedHabitsCount)
	assert.Equal(t, float64(60), s.CompletionRate)
	assert.Equal(t, models.SessionStatusActive, s.Status)
}

func TestAbandonSession(t *testing.T) {
	s := newTestSession("10 min")
	now := s.StartedAt.Add(time.Hour)

	require.NoError(t, abandonSession(s, now))
	assert.Equal(t, models.SessionStatusAbandoned, s.Status)
	assert.False(t, s.IsActive)
	require.NotNil(t, s.CompletedAt)
	assert.Zero(t, s.XPEarned)

	assert.ErrorIs(t, abandonSession(s, now), ErrNotFound)
}
