package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/cache"
	"momentum/models"
)

// leaderboardTTL keeps the cached page fresh enough while absorbing bursts.
const leaderboardTTL = 30 * time.Second

// LeaderboardEntry is the reduced projection exposed on the board.
type LeaderboardEntry struct {
	Position  int     `json:"position"`
	UserID    uint    `json:"user_id"`
	Username  string  `json:"username"`
	XPTotal   int64   `json:"xp_total"`
	RankTitle string  `json:"rank_title"`
	RankLevel int     `json:"rank_level"`
	Progress  float64 `json:"rank_progress"`
}

// LeaderboardService ranks public profiles by XP.
type LeaderboardService struct {
	db     *gorm.DB
	cache  *cache.Client
	logger *zap.Logger
}

func NewLeaderboardService(db *gorm.DB, cacheClient *cache.Client, logger *zap.Logger) *LeaderboardService {
	return &LeaderboardService{db: db, cache: cacheClient, logger: logger}
}

// ordered is the single total ordering every leaderboard read uses. Ties on
// XP break by rank level, then user id for stability.
func (s *LeaderboardService) ordered(ctx context.Context, publicOnly bool) *gorm.DB {
	q := s.db.WithContext(ctx).
		Model(&models.Profile{}).
		Joins("JOIN users ON users.id = profiles.user_id").
		Order("profiles.xp_total DESC, profiles.rank_level DESC, profiles.user_id ASC")
	if publicOnly {
		q = q.Where("profiles.privacy_public = ?", true)
	}
	return q
}

// Top returns the first page of the board.
func (s *LeaderboardService) Top(ctx context.Context, limit int, publicOnly bool) ([]LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 10
	}

	cacheKey := fmt.Sprintf("leaderboard:%d:%t", limit, publicOnly)
	if s.cache != nil {
		var cached []LeaderboardEntry
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			return cached, nil
		}
	}

	var entries []LeaderboardEntry
	err := s.ordered(ctx, publicOnly).
		Select("profiles.user_id", "users.username", "profiles.xp_total",
			"profiles.rank_title", "profiles.rank_level", "profiles.rank_progress AS progress").
		Limit(limit).
		Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Position = i + 1
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, cacheKey, entries, leaderboardTTL); err != nil {
			s.logger.Warn("leaderboard_cache_set_failed", zap.Error(err))
		}
	}
	return entries, nil
}

// Position returns the user's 1-based index within the full ordering, or -1
// when the user is absent (no profile, or private on a public board). The
// index comes from the same ordering as Top, never from a separate count,
// so ties resolve consistently.
func (s *LeaderboardService) Position(ctx context.Context, userID uint, publicOnly bool) (int, error) {
	var ids []uint
	err := s.ordered(ctx, publicOnly).Pluck("profiles.user_id", &ids).Error
	if err != nil {
		return -1, err
	}

	for i, id := range ids {
		if id == userID {
			return i + 1, nil
		}
	}
	return -1, nil
}
