package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/models"
	"momentum/utils"
)

// maxMutateRetries bounds optimistic-lock retries before surfacing
// ErrConflict.
const maxMutateRetries = 3

// SessionService runs chain sessions: one user walking an ordered list of
// habits with timers, pause/break windows and a final XP reward.
type SessionService struct {
	db     *gorm.DB
	xp     *XPService
	habits *HabitService
	logger *zap.Logger
	now    func() time.Time
}

func NewSessionService(db *gorm.DB, xp *XPService, habits *HabitService, logger *zap.Logger) *SessionService {
	return &SessionService{db: db, xp: xp, habits: habits, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// CreateSession snapshots a chain template into a new active session.
// A user may only have one active session at a time.
func (s *SessionService) CreateSession(ctx context.Context, userID uint, chainID string) (*models.ChainSession, error) {
	var chain models.HabitChain
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", chainID, userID).First(&chain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chain %s: %w", chainID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if len(chain.Items) == 0 || len(chain.Items) > models.MaxChainItems {
		return nil, fmt.Errorf("chain must have 1..%d habits, has %d: %w",
			models.MaxChainItems, len(chain.Items), ErrValidation)
	}

	now := s.now()
	habits := NewSessionHabits(chain.Items)
	totalMin := 0
	for i := range habits {
		totalMin += habits[i].DurationMin
	}

	session := &models.ChainSession{
		ID:                uuid.NewString(),
		UserID:            userID,
		ChainID:           chain.ID,
		ChainName:         chain.Name,
		Status:            models.SessionStatusActive,
		Habits:            habits,
		CurrentHabitIndex: 0,
		StartedAt:         now,
		LastActivityAt:    now,
		IsActive:          true,
		DayOfWeek:         int(now.Weekday()),
		HourOfDay:         now.Hour(),
		Version:           1,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var active int64
		if err := tx.Model(&models.ChainSession{}).
			Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
			Count(&active).Error; err != nil {
			return err
		}
		if active > 0 {
			return fmt.Errorf("an active session already exists: %w", ErrValidation)
		}
		return tx.Create(session).Error
	})
	if err != nil {
		return nil, err
	}

	utils.SessionsStarted.Inc()
	s.logger.Info("session_created",
		zap.String("session_id", session.ID),
		zap.Uint("user_id", userID),
		zap.String("chain_id", chain.ID),
		zap.Int("habits", len(habits)),
		zap.Int("total_minutes", totalMin),
	)
	return session, nil
}

// StartHabit activates the habit at index and moves the session pointer.
func (s *SessionService) StartHabit(ctx context.Context, userID uint, sessionID string, index int) (*models.ChainSession, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return startHabit(sess, index, s.now())
	})
}

// CompleteHabit marks the habit at index completed. When this was the last
// non-terminal habit the session completes and the reward is credited.
func (s *SessionService) CompleteHabit(ctx context.Context, userID uint, sessionID string, index int, notes string, timeSpentMin int) (*models.ChainSession, error) {
	return s.finishHabit(ctx, userID, sessionID, index, notes, timeSpentMin, false)
}

// SkipHabit marks the habit at index skipped. Skips count toward progress
// but carry no per-habit reward.
func (s *SessionService) SkipHabit(ctx context.Context, userID uint, sessionID string, index int) (*models.ChainSession, error) {
	return s.finishHabit(ctx, userID, sessionID, index, "", 0, true)
}

func (s *SessionService) finishHabit(ctx context.Context, userID uint, sessionID string, index int, notes string, timeSpentMin int, skipped bool) (*models.ChainSession, error) {
	wasActive := false
	sess, err := s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		wasActive = sess.Status == models.SessionStatusActive
		return completeHabit(sess, index, notes, timeSpentMin, skipped, s.now())
	})
	if err != nil {
		return nil, err
	}

	// Post-write notifications are best effort: the session row is already
	// consistent, profile/habit aggregates follow asynchronously.
	if !skipped {
		s.notifyHabitCompleted(ctx, userID, sess.Habits[index])
	}
	if wasActive && sess.Status == models.SessionStatusCompleted {
		s.creditCompletedSession(ctx, sess)
	}
	return sess, nil
}

// notifyHabitCompleted keeps habit-level streaks in sync with session-level
// completions. One-way: failures never fail the session mutation.
func (s *SessionService) notifyHabitCompleted(ctx context.Context, userID uint, h models.SessionHabit) {
	if s.habits == nil || h.HabitID == 0 {
		return
	}
	if _, err := s.habits.MarkCompleted(ctx, userID, h.HabitID, h.Notes, h.TimeSpentMin); err != nil {
		s.logger.Warn("habit_sync_failed",
			zap.Uint("habit_id", h.HabitID),
			zap.Uint("user_id", userID),
			zap.Error(err),
		)
	}
}

func (s *SessionService) creditCompletedSession(ctx context.Context, sess *models.ChainSession) {
	utils.SessionsFinished.WithLabelValues(models.SessionStatusCompleted).Inc()
	s.logger.Info("session_completed",
		zap.String("session_id", sess.ID),
		zap.Uint("user_id", sess.UserID),
		zap.Float64("completion_rate", sess.CompletionRate),
		zap.Int64("xp_earned", sess.XPEarned),
		zap.Int("actual_duration_min", sess.ActualDurationMin),
	)

	if s.xp == nil || sess.XPEarned <= 0 {
		return
	}
	err := s.xp.AwardXP(ctx, sess.UserID, sess.XPEarned, models.XPSourceChainCompletion,
		fmt.Sprintf("Completed chain %q", sess.ChainName),
		map[string]interface{}{
			"session_id":      sess.ID,
			"chain_id":        sess.ChainID,
			"completion_rate": sess.CompletionRate,
		})
	if err != nil {
		s.logger.Error("session_xp_award_failed",
			zap.String("session_id", sess.ID),
			zap.Error(err),
		)
		return
	}
	if err := s.xp.BumpChainStats(ctx, sess.UserID); err != nil {
		s.logger.Warn("chain_stats_bump_failed", zap.Uint("user_id", sess.UserID), zap.Error(err))
	}
}

// Pause stamps the start of a pause window.
func (s *SessionService) Pause(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return pauseSession(sess, s.now())
	})
}

// Resume folds the elapsed pause into the capped cumulative pause duration.
func (s *SessionService) Resume(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return resumeSession(sess, s.now())
	})
}

// StartBreak opens a between-habits rest window.
func (s *SessionService) StartBreak(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return startBreak(sess, s.now())
	})
}

// EndBreak closes the rest window.
func (s *SessionService) EndBreak(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	return s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return endBreak(sess, s.now())
	})
}

// Abandon explicitly terminates an active session without reward.
func (s *SessionService) Abandon(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	sess, err := s.mutate(ctx, userID, sessionID, func(sess *models.ChainSession) error {
		return abandonSession(sess, s.now())
	})
	if err == nil {
		utils.SessionsFinished.WithLabelValues(models.SessionStatusAbandoned).Inc()
	}
	return sess, err
}

// GetSession loads one session owned by the user.
func (s *SessionService) GetSession(ctx context.Context, userID uint, sessionID string) (*models.ChainSession, error) {
	var sess models.ChainSession
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// GetActiveSession returns the user's current active session, or ErrNotFound.
func (s *SessionService) GetActiveSession(ctx context.Context, userID uint) (*models.ChainSession, error) {
	var sess models.ChainSession
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.SessionStatusActive).
		Order("started_at DESC").
		First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no active session: %w", ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &sess, nil
}

// ListSessions pages through the user's sessions, newest first.
func (s *SessionService) ListSessions(ctx context.Context, userID uint, limit, offset int) ([]models.ChainSession, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var sessions []models.ChainSession
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("started_at DESC").
		Limit(limit).Offset(offset).
		Find(&sessions).Error
	return sessions, err
}

// SweepIdle abandons active sessions whose last activity is older than the
// threshold. Best-effort reconciliation: per-session failures are logged and
// skipped, never raised.
func (s *SessionService) SweepIdle(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := s.now().Add(-threshold)

	var stale []models.ChainSession
	err := s.db.WithContext(ctx).
		Select("id", "user_id").
		Where("status = ? AND last_activity_at < ?", models.SessionStatusActive, cutoff).
		Find(&stale).Error
	if err != nil {
		return 0, err
	}

	swept := 0
	for i := range stale {
		_, err := s.mutate(ctx, stale[i].UserID, stale[i].ID, func(sess *models.ChainSession) error {
			// Re-check under the version lock: the user may have acted since
			// the scan.
			if sess.LastActivityAt.After(cutoff) {
				return ErrConflict
			}
			return abandonSession(sess, s.now())
		})
		if err != nil {
			s.logger.Warn("sweep_session_failed",
				zap.String("session_id", stale[i].ID),
				zap.Error(err),
			)
			continue
		}
		utils.SessionsFinished.WithLabelValues(models.SessionStatusAbandoned).Inc()
		swept++
	}

	if swept > 0 {
		s.logger.Info("idle_sessions_swept",
			zap.Int("count", swept),
			zap.Duration("threshold", threshold),
		)
	}
	return swept, nil
}

// mutate is the single read-modify-write path for sessions: load, apply the
// transition in memory, write back only if the version is unchanged, retry
// a bounded number of times on conflict.
func (s *SessionService) mutate(ctx context.Context, userID uint, sessionID string, fn func(*models.ChainSession) error) (*models.ChainSession, error) {
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		var sess models.ChainSession
		err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", sessionID, userID).First(&sess).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
		}
		if err != nil {
			return nil, err
		}

		if err := fn(&sess); err != nil {
			return nil, err
		}

		prev := sess.Version
		sess.Version = prev + 1

		res := s.db.WithContext(ctx).
			Model(&models.ChainSession{}).
			Where("id = ? AND version = ?", sess.ID, prev).
			Select("*").
			Omit("id", "created_at").
			Updates(&sess)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			s.logger.Debug("session_version_conflict",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		return &sess, nil
	}
	return nil, fmt.Errorf("session %s: %w", sessionID, ErrConflict)
}
