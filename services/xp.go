package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"momentum/cache"
	"momentum/models"
	"momentum/utils"
)

// errVersionConflict signals an optimistic check failure inside a
// transaction; the award loop retries on it.
var errVersionConflict = errors.New("profile version changed")

// XPService owns the profile XP counter and everything derived from it.
// The XP total is the single source of truth; rank is always recomputed
// from it, never written independently.
type XPService struct {
	db     *gorm.DB
	cache  *cache.Client
	logger *zap.Logger
	now    func() time.Time
}

func NewXPService(db *gorm.DB, cacheClient *cache.Client, logger *zap.Logger) *XPService {
	return &XPService{db: db, cache: cacheClient, logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

// EnsureProfile creates the per-user profile row if it does not exist yet.
func (s *XPService) EnsureProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if err == nil {
		return &profile, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	profile = models.Profile{
		UserID:        userID,
		XPLastUpdated: s.now(),
		PrivacyPublic: true,
		Version:       1,
	}
	profile.SetRank(DeriveRank(0))
	if err := s.db.WithContext(ctx).Create(&profile).Error; err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetProfile loads a profile, repairing the cached rank if it drifted from
// the total.
func (s *XPService) GetProfile(ctx context.Context, userID uint) (*models.Profile, error) {
	var profile models.Profile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	if derived := DeriveRank(profile.XPTotal); derived != profile.Rank() {
		profile.SetRank(derived)
		if err := s.db.WithContext(ctx).Model(&profile).Updates(map[string]interface{}{
			"rank_title":    derived.Title,
			"rank_level":    derived.Level,
			"rank_progress": derived.Progress,
		}).Error; err != nil {
			s.logger.Warn("rank_repair_failed", zap.Uint("user_id", userID), zap.Error(err))
		}
	}
	return &profile, nil
}

// AwardXP credits a profile as a single atomic unit: the history append and
// the total increment either both commit or neither does. The history is
// capped at models.MaxXPEvents, oldest evicted.
func (s *XPService) AwardXP(ctx context.Context, userID uint, amount int64, source models.XPSource, description string, metadata map[string]interface{}) error {
	if amount < 0 {
		return fmt.Errorf("negative award %d: %w", amount, ErrValidation)
	}
	if !source.Valid() {
		return fmt.Errorf("unknown xp source %q: %w", source, ErrValidation)
	}

	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		var profile models.Profile
		err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		now := s.now()
		prev := profile.Version
		profile.XPTotal += amount
		profile.XPLastUpdated = now
		profile.Stats.LastActivityAt = &now
		profile.SetRank(DeriveRank(profile.XPTotal))
		profile.Version = prev + 1

		event := models.XPEvent{
			UserID:      userID,
			Amount:      amount,
			Source:      source,
			Description: description,
			Metadata:    datatypes.JSONMap(metadata),
			CreatedAt:   now,
		}

		err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&event).Error; err != nil {
				return err
			}

			res := tx.Model(&models.Profile{}).
				Where("id = ? AND version = ?", profile.ID, prev).
				Select("*").
				Omit("id", "created_at").
				Updates(&profile)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errVersionConflict
			}

			return s.evictHistoryOverflow(tx, userID)
		})

		if err == nil {
			utils.XPAwarded.WithLabelValues(string(source)).Add(float64(amount))
			s.logger.Info("xp_awarded",
				zap.Uint("user_id", userID),
				zap.Int64("amount", amount),
				zap.String("source", string(source)),
				zap.Int64("total", profile.XPTotal),
				zap.String("rank", profile.RankTitle),
			)
			return nil
		}
		if errors.Is(err, errVersionConflict) {
			continue
		}
		return fmt.Errorf("award xp: %v: %w", err, ErrTransaction)
	}
	return fmt.Errorf("award xp for user %d: %w", userID, ErrConflict)
}

// evictHistoryOverflow deletes the oldest events beyond the cap inside the
// award transaction.
func (s *XPService) evictHistoryOverflow(tx *gorm.DB, userID uint) error {
	var count int64
	if err := tx.Model(&models.XPEvent{}).Where("user_id = ?", userID).Count(&count).Error; err != nil {
		return err
	}
	overflow := count - models.MaxXPEvents
	if overflow <= 0 {
		return nil
	}

	oldest := tx.Model(&models.XPEvent{}).
		Select("id").
		Where("user_id = ?", userID).
		Order("created_at ASC, id ASC").
		Limit(int(overflow))
	return tx.Where("id IN (?)", oldest).Delete(&models.XPEvent{}).Error
}

// History returns the newest XP events for a user.
func (s *XPService) History(ctx context.Context, userID uint, limit int) ([]models.XPEvent, error) {
	if limit <= 0 || limit > models.MaxXPEvents {
		limit = 50
	}
	var events []models.XPEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&events).Error
	return events, err
}

// ClaimDailyBonus awards the flat daily bonus, scaled by the user's best
// current habit streak, at most once per UTC day.
func (s *XPService) ClaimDailyBonus(ctx context.Context, userID uint) (int64, error) {
	if s.cache != nil {
		key := fmt.Sprintf("daily_bonus:%d:%s", userID, s.now().Format("2006-01-02"))
		claims, err := s.cache.IncrementCounter(ctx, key, 48*time.Hour)
		if err != nil {
			s.logger.Warn("daily_bonus_counter_failed", zap.Error(err))
		} else if claims > 1 {
			return 0, fmt.Errorf("daily bonus already claimed: %w", ErrValidation)
		}
	}

	var best struct{ Max int }
	if err := s.db.WithContext(ctx).Model(&models.Habit{}).
		Select("COALESCE(MAX(streak), 0) AS max").
		Where("user_id = ? AND status = ?", userID, models.HabitStatusActive).
		Scan(&best).Error; err != nil {
		return 0, err
	}

	amount := DailyBonusAmount(best.Max)
	err := s.AwardXP(ctx, userID, amount, models.XPSourceDailyBonus,
		"Daily check-in bonus",
		map[string]interface{}{"streak": best.Max})
	if err != nil {
		return 0, err
	}
	return amount, nil
}

// BumpChainStats increments the chain/session completion aggregates on the
// profile under the version lock.
func (s *XPService) BumpChainStats(ctx context.Context, userID uint) error {
	return s.updateStats(ctx, userID, func(stats *models.ProfileStats) {
		stats.ChainsCompleted++
		stats.SessionsCompleted++
	})
}

// RecordHabitCreated / RecordHabitCompleted keep the denormalized counters
// roughly in step with habit-store writes.
func (s *XPService) RecordHabitCreated(ctx context.Context, userID uint) error {
	return s.updateStats(ctx, userID, func(stats *models.ProfileStats) {
		stats.HabitsCreated++
	})
}

func (s *XPService) RecordHabitCompleted(ctx context.Context, userID uint, streak int) error {
	return s.updateStats(ctx, userID, func(stats *models.ProfileStats) {
		stats.HabitsCompleted++
		if streak > stats.LongestStreak {
			stats.LongestStreak = streak
		}
	})
}

func (s *XPService) updateStats(ctx context.Context, userID uint, apply func(*models.ProfileStats)) error {
	for attempt := 0; attempt < maxMutateRetries; attempt++ {
		var profile models.Profile
		err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&profile).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
		}
		if err != nil {
			return err
		}

		prev := profile.Version
		apply(&profile.Stats)
		now := s.now()
		profile.Stats.LastActivityAt = &now
		profile.Version = prev + 1

		res := s.db.WithContext(ctx).Model(&models.Profile{}).
			Where("id = ? AND version = ?", profile.ID, prev).
			Select("*").
			Omit("id", "created_at").
			Updates(&profile)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected > 0 {
			return nil
		}
	}
	return fmt.Errorf("stats update for user %d: %w", userID, ErrConflict)
}

// UpdatePrivacy flips the leaderboard visibility flag.
func (s *XPService) UpdatePrivacy(ctx context.Context, userID uint, public bool) error {
	res := s.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("privacy_public", public)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("profile for user %d: %w", userID, ErrNotFound)
	}
	return nil
}
