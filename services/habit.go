package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/cache"
	"momentum/models"
)

// HabitService owns habit definitions, their per-day completion records and
// the rolling feedback window.
type HabitService struct {
	db     *gorm.DB
	cache  *cache.Client
	xp     *XPService
	logger *zap.Logger
	now    func() time.Time
}

func NewHabitService(db *gorm.DB, cacheClient *cache.Client, xp *XPService, logger *zap.Logger) *HabitService {
	return &HabitService{db: db, cache: cacheClient, xp: xp, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

func (s *HabitService) Create(ctx context.Context, habit *models.Habit) error {
	if habit.Name == "" || habit.Frequency == "" || habit.UserID == 0 {
		return fmt.Errorf("name, frequency and owner are required: %w", ErrValidation)
	}
	if habit.Status == "" {
		habit.Status = models.HabitStatusActive
	}
	if err := s.db.WithContext(ctx).Create(habit).Error; err != nil {
		return err
	}

	if s.xp != nil {
		if err := s.xp.RecordHabitCreated(ctx, habit.UserID); err != nil {
			s.logger.Warn("habit_created_stat_failed", zap.Uint("user_id", habit.UserID), zap.Error(err))
		}
	}
	s.invalidateStats(ctx, habit.UserID)
	return nil
}

func (s *HabitService) List(ctx context.Context, userID uint) ([]models.Habit, error) {
	var habits []models.Habit
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at ASC").Find(&habits).Error
	return habits, err
}

func (s *HabitService) Get(ctx context.Context, userID, habitID uint) (*models.Habit, error) {
	var habit models.Habit
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", habitID, userID).First(&habit).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("habit %d: %w", habitID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &habit, nil
}

// Update applies a partial update; completion records and feedback are
// managed through their own operations, never patched directly.
func (s *HabitService) Update(ctx context.Context, userID, habitID uint, apply func(*models.Habit)) (*models.Habit, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}
	apply(habit)
	if err := s.db.WithContext(ctx).Save(habit).Error; err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)
	return habit, nil
}

func (s *HabitService) Delete(ctx context.Context, userID, habitID uint) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", habitID, userID).Delete(&models.Habit{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("habit %d: %w", habitID, ErrNotFound)
	}
	s.invalidateStats(ctx, userID)
	return nil
}

// MarkCompleted records today's completion on the habit, recomputes the
// streak, and credits habit-completion XP plus any streak milestone hit.
func (s *HabitService) MarkCompleted(ctx context.Context, userID, habitID uint, notes string, timeSpentMin int) (*models.Habit, error) {
	habit, err := s.Get(ctx, userID, habitID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	today := dayStart(now, time.UTC)

	alreadyDone := false
	updated := false
	for i := range habit.Completions {
		if sameDay(habit.Completions[i].Date, today, time.UTC) {
			alreadyDone = habit.Completions[i].Completed
			habit.Completions[i].Completed = true
			habit.Completions[i].Notes = notes
			habit.Completions[i].TimeSpentMin = timeSpentMin
			updated = true
			break
		}
	}
	if !updated {
		habit.Completions = append(habit.Completions, models.CompletionRecord{
			Date:         today,
			Completed:    true,
			Notes:        notes,
			TimeSpentMin: timeSpentMin,
		})
	}

	prevStreak := habit.Streak
	habit.Streak = computeStreak(habit.Completions, now)

	if err := s.db.WithContext(ctx).Save(habit).Error; err != nil {
		return nil, err
	}
	s.invalidateStats(ctx, userID)

	// Duplicate same-day completions keep the record but earn nothing.
	if alreadyDone || s.xp == nil {
		return habit, nil
	}

	if err := s.xp.AwardXP(ctx, userID, XPPerCompletedHabit, models.XPSourceHabitCompletion,
		fmt.Sprintf("Completed %q", habit.Name),
		map[string]interface{}{"habit_id": habit.ID}); err != nil {
		s.logger.Warn("habit_xp_award_failed", zap.Uint("habit_id", habit.ID), zap.Error(err))
	}
	if err := s.xp.RecordHabitCompleted(ctx, userID, habit.Streak); err != nil {
		s.logger.Warn("habit_completed_stat_failed", zap.Uint("user_id", userID), zap.Error(err))
	}

	if habit.Streak != prevStreak {
		if reward := MilestoneReward(habit.Streak); reward > 0 {
			if err := s.xp.AwardXP(ctx, userID, reward, models.XPSourceStreakMilestone,
				fmt.Sprintf("%d-day streak on %q", habit.Streak, habit.Name),
				map[string]interface{}{"habit_id": habit.ID, "streak": habit.Streak}); err != nil {
				s.logger.Warn("milestone_xp_award_failed", zap.Uint("habit_id", habit.ID), zap.Error(err))
			}
		}
	}
	return habit, nil
}

// UpsertFeedback inserts today's feedback entry in the user's timezone.
// Any prior entry for today is replaced, and the window stays capped at
// models.MaxFeedbackEntries, oldest dropped first.
func (s *HabitService) UpsertFeedback(ctx context.Context, user *models.User, habitID uint, feedback, mood string, completed bool) (*models.Habit, error) {
	habit, err := s.Get(ctx, user.ID, habitID)
	if err != nil {
		return nil, err
	}

	loc := user.Location()
	now := s.now().In(loc)

	habit.Feedback = UpsertDailyFeedback(habit.Feedback, models.FeedbackEntry{
		Date:      now,
		Feedback:  feedback,
		Completed: completed,
		Mood:      mood,
	}, loc)

	if err := s.db.WithContext(ctx).Save(habit).Error; err != nil {
		return nil, err
	}
	return habit, nil
}

// UpsertDailyFeedback enforces the one-entry-per-calendar-day invariant and
// the rolling cap. Pure function, exported for the windowing tests.
func UpsertDailyFeedback(entries []models.FeedbackEntry, entry models.FeedbackEntry, loc *time.Location) []models.FeedbackEntry {
	kept := entries[:0:0]
	for _, e := range entries {
		if !sameDay(e.Date, entry.Date, loc) {
			kept = append(kept, e)
		}
	}
	kept = append(kept, entry)

	sort.Slice(kept, func(i, j int) bool { return kept[i].Date.Before(kept[j].Date) })
	if len(kept) > models.MaxFeedbackEntries {
		kept = kept[len(kept)-models.MaxFeedbackEntries:]
	}
	return kept
}

// HabitStats mirrors the per-habit aggregate block returned by the stats
// endpoint.
type HabitStats struct {
	HabitID        uint    `json:"habit_id"`
	TotalRecords   int     `json:"total_records"`
	CompletedDays  int     `json:"completed_days"`
	CompletionRate float64 `json:"completion_rate"`
	CurrentStreak  int     `json:"current_streak"`
	LongestStreak  int     `json:"longest_streak"`
}

type UserHabitStats struct {
	UserID         uint          `json:"user_id"`
	TotalHabits    int           `json:"total_habits"`
	ActiveHabits   int           `json:"active_habits"`
	OverallRate    float64       `json:"overall_completion_rate"`
	HabitStats     []HabitStats  `json:"habit_stats"`
	ProcessingTime time.Duration `json:"processing_time_ms"`
}

// UserStats computes per-habit aggregates concurrently, one goroutine per
// habit, and caches the result for five minutes. Each habit's records are
// independent so the fan-out needs no shared state.
func (s *HabitService) UserStats(ctx context.Context, userID uint) (*UserHabitStats, error) {
	startTime := s.now()

	cacheKey := fmt.Sprintf("user_stats:%d", userID)
	if s.cache != nil {
		var cached UserHabitStats
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("stats_cache_hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	habits, err := s.List(ctx, userID)
	if err != nil {
		return nil, err
	}
	if len(habits) == 0 {
		return &UserHabitStats{UserID: userID}, nil
	}

	statsChan := make(chan HabitStats, len(habits))
	var wg sync.WaitGroup

	for _, habit := range habits {
		wg.Add(1)
		go func(h models.Habit) {
			defer wg.Done()
			statsChan <- computeHabitStats(&h, s.now())
		}(habit)
	}

	go func() {
		wg.Wait()
		close(statsChan)
	}()

	var habitStats []HabitStats
	var totalRate float64
	for stat := range statsChan {
		habitStats = append(habitStats, stat)
		totalRate += stat.CompletionRate
	}
	sort.Slice(habitStats, func(i, j int) bool { return habitStats[i].HabitID < habitStats[j].HabitID })

	activeCount := 0
	for _, h := range habits {
		if h.Status == models.HabitStatusActive {
			activeCount++
		}
	}

	overallRate := 0.0
	if len(habitStats) > 0 {
		overallRate = totalRate / float64(len(habitStats))
	}

	result := &UserHabitStats{
		UserID:         userID,
		TotalHabits:    len(habits),
		ActiveHabits:   activeCount,
		OverallRate:    overallRate,
		HabitStats:     habitStats,
		ProcessingTime: time.Since(startTime),
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, result, 5*time.Minute); err != nil {
			s.logger.Warn("stats_cache_set_failed", zap.Error(err))
		}
	}
	return result, nil
}

func computeHabitStats(h *models.Habit, now time.Time) HabitStats {
	stats := HabitStats{HabitID: h.ID, TotalRecords: len(h.Completions)}

	completed := 0
	for _, rec := range h.Completions {
		if rec.Completed {
			completed++
		}
	}
	stats.CompletedDays = completed
	if stats.TotalRecords > 0 {
		stats.CompletionRate = float64(completed) / float64(stats.TotalRecords) * 100
	}

	stats.CurrentStreak = computeStreak(h.Completions, now)
	stats.LongestStreak = longestStreak(h.Completions)
	return stats
}

// computeStreak counts consecutive completed days ending today or
// yesterday (a streak survives until a full day is missed).
func computeStreak(records []models.CompletionRecord, now time.Time) int {
	days := completedDaySet(records)
	if len(days) == 0 {
		return 0
	}

	cursor := dayStart(now, time.UTC)
	if _, ok := days[cursor]; !ok {
		cursor = cursor.AddDate(0, 0, -1)
		if _, ok := days[cursor]; !ok {
			return 0
		}
	}

	streak := 0
	for {
		if _, ok := days[cursor]; !ok {
			break
		}
		streak++
		cursor = cursor.AddDate(0, 0, -1)
	}
	return streak
}

func longestStreak(records []models.CompletionRecord) int {
	days := completedDaySet(records)
	longest := 0
	for day := range days {
		// Only count from streak starts.
		if _, ok := days[day.AddDate(0, 0, -1)]; ok {
			continue
		}
		length := 0
		cursor := day
		for {
			if _, ok := days[cursor]; !ok {
				break
			}
			length++
			cursor = cursor.AddDate(0, 0, 1)
		}
		if length > longest {
			longest = length
		}
	}
	return longest
}

func completedDaySet(records []models.CompletionRecord) map[time.Time]struct{} {
	days := make(map[time.Time]struct{}, len(records))
	for _, rec := range records {
		if rec.Completed {
			days[dayStart(rec.Date, time.UTC)] = struct{}{}
		}
	}
	return days
}

func dayStart(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func sameDay(a, b time.Time, loc *time.Location) bool {
	return dayStart(a, loc).Equal(dayStart(b, loc))
}

func (s *HabitService) invalidateStats(ctx context.Context, userID uint) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, fmt.Sprintf("user_stats:%d", userID)); err != nil {
		s.logger.Warn("stats_cache_invalidate_failed", zap.Uint("user_id", userID), zap.Error(err))
	}
}
