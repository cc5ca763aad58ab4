package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"momentum/models"
)

// ChainService manages chain templates. Items are ordered at creation and
// never change afterward; sessions snapshot them.
type ChainService struct {
	db     *gorm.DB
	logger *zap.Logger
}

func NewChainService(db *gorm.DB, logger *zap.Logger) *ChainService {
	return &ChainService{db: db, logger: logger}
}

// Create validates item count and habit ownership, assigns sequential
// order, and derives the display total from the parsed durations.
func (s *ChainService) Create(ctx context.Context, userID uint, name, description string, items []models.ChainItem) (*models.HabitChain, error) {
	if name == "" {
		return nil, fmt.Errorf("chain name is required: %w", ErrValidation)
	}
	if len(items) == 0 || len(items) > models.MaxChainItems {
		return nil, fmt.Errorf("chain must have 1..%d habits, has %d: %w",
			models.MaxChainItems, len(items), ErrValidation)
	}

	totalMin := 0
	for i := range items {
		items[i].Order = i
		totalMin += ParseDurationMinutes(items[i].Duration)

		// Habit references are weak: they must resolve at creation but a
		// later habit deletion does not invalidate the chain.
		if items[i].HabitID != 0 {
			var habit models.Habit
			err := s.db.WithContext(ctx).
				Select("id", "name").
				Where("id = ? AND user_id = ?", items[i].HabitID, userID).
				First(&habit).Error
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, fmt.Errorf("habit %d in chain: %w", items[i].HabitID, ErrNotFound)
			}
			if err != nil {
				return nil, err
			}
			if items[i].HabitName == "" {
				items[i].HabitName = habit.Name
			}
		}
	}

	chain := &models.HabitChain{
		ID:           uuid.NewString(),
		UserID:       userID,
		Name:         name,
		Description:  description,
		Items:        items,
		TotalTime:    FormatMinutes(totalMin),
		TotalMinutes: totalMin,
	}
	if err := s.db.WithContext(ctx).Create(chain).Error; err != nil {
		return nil, err
	}

	s.logger.Info("chain_created",
		zap.String("chain_id", chain.ID),
		zap.Uint("user_id", userID),
		zap.Int("items", len(items)),
	)
	return chain, nil
}

func (s *ChainService) List(ctx context.Context, userID uint) ([]models.HabitChain, error) {
	var chains []models.HabitChain
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC").Find(&chains).Error
	return chains, err
}

func (s *ChainService) Get(ctx context.Context, userID uint, chainID string) (*models.HabitChain, error) {
	var chain models.HabitChain
	err := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", chainID, userID).First(&chain).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("chain %s: %w", chainID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

// Update only touches display fields. Items are immutable once created.
func (s *ChainService) Update(ctx context.Context, userID uint, chainID string, name, description *string) (*models.HabitChain, error) {
	chain, err := s.Get(ctx, userID, chainID)
	if err != nil {
		return nil, err
	}
	if name != nil {
		chain.Name = *name
	}
	if description != nil {
		chain.Description = *description
	}
	if err := s.db.WithContext(ctx).Save(chain).Error; err != nil {
		return nil, err
	}
	return chain, nil
}

func (s *ChainService) Delete(ctx context.Context, userID uint, chainID string) error {
	res := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", chainID, userID).Delete(&models.HabitChain{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("chain %s: %w", chainID, ErrNotFound)
	}
	return nil
}
