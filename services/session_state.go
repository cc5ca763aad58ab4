package services

import (
	"math"
	"time"

	"momentum/models"
)

// Pure state transitions for chain sessions. The SessionService loads a row,
// applies one of these in memory, and writes it back under a version check,
// so every rule here is testable without a database.

// NewSessionHabits snapshots chain items into pending sub-records with
// sequential order 0..N-1.
func NewSessionHabits(items []models.ChainItem) []models.SessionHabit {
	habits := make([]models.SessionHabit, len(items))
	for i, item := range items {
		habits[i] = models.SessionHabit{
			HabitID:     item.HabitID,
			HabitName:   item.HabitName,
			Duration:    item.Duration,
			DurationMin: ParseDurationMinutes(item.Duration),
			Order:       i,
			Status:      models.SessionHabitPending,
		}
	}
	return habits
}

// startHabit activates the sub-record at index and moves the pointer there.
func startHabit(s *models.ChainSession, index int, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if index < 0 || index >= len(s.Habits) {
		return ErrInvalidIndex
	}
	h := &s.Habits[index]
	if h.Terminal() {
		return ErrInvalidIndex
	}

	h.Status = models.SessionHabitActive
	h.StartedAt = &now
	s.CurrentHabitIndex = index
	s.LastActivityAt = now
	return nil
}

// completeHabit marks the sub-record terminal and recomputes all derived
// fields. skipped=true records a skip instead of a completion; a pending
// step may be skipped without ever being started.
func completeHabit(s *models.ChainSession, index int, notes string, timeSpentMin int, skipped bool, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if index < 0 || index >= len(s.Habits) {
		return ErrInvalidIndex
	}
	h := &s.Habits[index]
	if h.Terminal() {
		return ErrInvalidIndex
	}

	if skipped {
		h.Status = models.SessionHabitSkipped
	} else {
		h.Status = models.SessionHabitCompleted
	}
	h.CompletedAt = &now
	h.Notes = notes
	h.TimeSpentMin = timeSpentMin
	s.LastActivityAt = now

	recomputeProgress(s)

	if s.AllTerminal() {
		finalizeSession(s, now)
	} else {
		advancePointer(s, index)
	}
	return nil
}

// recomputeProgress refreshes the cached count and rate. Skips count toward
// progress but not toward reward-bearing completions.
func recomputeProgress(s *models.ChainSession) {
	count := 0
	for i := range s.Habits {
		if s.Habits[i].Terminal() {
			count++
		}
	}
	s.CompletedHabitsCount = count
	if total := len(s.Habits); total > 0 {
		s.CompletionRate = math.Round(float64(count) / float64(total) * 100)
	} else {
		s.CompletionRate = 0
	}
}

// advancePointer moves CurrentHabitIndex to the next pending sub-record
// after the given index. If none remains ahead the pointer stays where it
// is; callers decide on Status, not on the pointer.
func advancePointer(s *models.ChainSession, after int) {
	for i := after + 1; i < len(s.Habits); i++ {
		if s.Habits[i].Status == models.SessionHabitPending {
			s.CurrentHabitIndex = i
			return
		}
	}
}

// finalizeSession transitions the whole session to completed. CompletedAt,
// ActualDurationMin and XPEarned are written exactly once; repeated calls
// are no-ops.
func finalizeSession(s *models.ChainSession, now time.Time) {
	if s.Status == models.SessionStatusCompleted {
		return
	}
	s.Status = models.SessionStatusCompleted
	s.IsActive = false

	if s.CompletedAt == nil {
		s.CompletedAt = &now
		elapsed := int(now.Sub(s.StartedAt).Minutes()) - s.PauseDurationMin
		if elapsed < 0 {
			elapsed = 0
		}
		s.ActualDurationMin = elapsed
		s.XPEarned = CalculateSessionXP(s)
	}
}

// CalculateSessionXP derives the reward for a completed session: a flat
// amount per completed (not skipped) habit plus a bonus banded by the final
// completion rate. Band lower bounds are inclusive.
func CalculateSessionXP(s *models.ChainSession) int64 {
	completed := 0
	for i := range s.Habits {
		if s.Habits[i].Status == models.SessionHabitCompleted {
			completed++
		}
	}

	total := int64(completed) * XPPerCompletedHabit

	rate := s.CompletionRate
	switch {
	case rate >= 100:
		total += perfectBonusBase + int64(len(s.Habits))*perfectBonusPerHabit
	case rate >= 80:
		total += goodBonusBase + int64(completed)*goodBonusPerHabit
	case rate >= 50:
		total += partialBonusBase + int64(completed)*partialBonusPerHabit
	}
	return total
}

// pauseSession stamps the pause start. Pausing an already paused session is
// a no-op.
func pauseSession(s *models.ChainSession, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if s.PausedAt == nil {
		s.PausedAt = &now
	}
	s.LastActivityAt = now
	return nil
}

// resumeSession folds the elapsed pause interval into the capped cumulative
// pause duration.
func resumeSession(s *models.ChainSession, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if s.PausedAt != nil {
		s.PauseDurationMin += int(now.Sub(*s.PausedAt).Minutes())
		if s.PauseDurationMin > models.MaxPauseMinutes {
			s.PauseDurationMin = models.MaxPauseMinutes
		}
		s.PausedAt = nil
	}
	s.LastActivityAt = now
	return nil
}

// startBreak opens a between-habits rest window.
func startBreak(s *models.ChainSession, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if !s.OnBreak {
		s.OnBreak = true
		s.BreakStartedAt = &now
	}
	s.LastActivityAt = now
	return nil
}

// endBreak closes the rest window; break time accrues to pause duration so
// it is excluded from actual duration.
func endBreak(s *models.ChainSession, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	if s.OnBreak && s.BreakStartedAt != nil {
		s.PauseDurationMin += int(now.Sub(*s.BreakStartedAt).Minutes())
		if s.PauseDurationMin > models.MaxPauseMinutes {
			s.PauseDurationMin = models.MaxPauseMinutes
		}
	}
	s.OnBreak = false
	s.BreakStartedAt = nil
	s.LastActivityAt = now
	return nil
}

// abandonSession moves an active session to the abandoned terminal state.
func abandonSession(s *models.ChainSession, now time.Time) error {
	if s.Status != models.SessionStatusActive {
		return ErrNotFound
	}
	s.Status = models.SessionStatusAbandoned
	s.IsActive = false
	s.CompletedAt = &now
	s.LastActivityAt = now
	return nil
}
