package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"momentum/models"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	gdb, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	require.NoError(t, err)

	sqlDB, err := gdb.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, gdb.AutoMigrate(
		&models.User{},
		&models.Profile{},
		&models.XPEvent{},
		&models.Habit{},
		&models.HabitChain{},
		&models.ChainSession{},
	))
	return gdb
}

func testServices(t *testing.T) (*gorm.DB, *XPService, *HabitService, *ChainService, *SessionService, *LeaderboardService) {
	t.Helper()
	gdb := openTestDB(t)
	log := zap.NewNop()

	xp := NewXPService(gdb, nil, log)
	habits := NewHabitService(gdb, nil, xp, log)
	chains := NewChainService(gdb, log)
	sessions := NewSessionService(gdb, xp, habits, log)
	board := NewLeaderboardService(gdb, nil, log)
	return gdb, xp, habits, chains, sessions, board
}

func createUser(t *testing.T, gdb *gorm.DB, xp *XPService, username string) models.User {
	t.Helper()
	user := models.User{Username: username, PasswordHash: "x", Role: models.RoleUser, Timezone: "UTC"}
	require.NoError(t, gdb.Create(&user).Error)
	_, err := xp.EnsureProfile(context.Background(), user.ID)
	require.NoError(t, err)
	return user
}

func TestAwardXPUpdatesTotalAndRank(t *testing.T) {
	gdb, xp, _, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "alice")

	require.NoError(t, xp.AwardXP(ctx, user.ID, 120, models.XPSourceHabitCompletion, "test", nil))

	profile, err := xp.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(120), profile.XPTotal)
	assert.Equal(t, "Apprentice", profile.RankTitle)
	assert.Equal(t, 2, profile.RankLevel)

	var events []models.XPEvent
	require.NoError(t, gdb.Where("user_id = ?", user.ID).Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, int64(120), events[0].Amount)
	assert.Equal(t, models.XPSourceHabitCompletion, events[0].Source)
}

func TestAwardXPRejectsBadInput(t *testing.T) {
	gdb, xp, _, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "bob")

	assert.ErrorIs(t, xp.AwardXP(ctx, user.ID, -5, models.XPSourceDailyBonus, "neg", nil), ErrValidation)
	assert.ErrorIs(t, xp.AwardXP(ctx, user.ID, 5, models.XPSource("mystery"), "bad source", nil), ErrValidation)
	assert.ErrorIs(t, xp.AwardXP(ctx, 9999, 5, models.XPSourceDailyBonus, "no profile", nil), ErrNotFound)
}

func TestAwardXPIsAllOrNothing(t *testing.T) {
	gdb, xp, _, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "carol")

	require.NoError(t, xp.AwardXP(ctx, user.ID, 30, models.XPSourceHabitCompletion, "seed", nil))

	// Inject a failure after the history append: the profile update half
	// must roll back with it.
	boom := errors.New("boom")
	require.NoError(t, gdb.Callback().Update().Before("gorm:update").Register("test_fail_profile", func(tx *gorm.DB) {
		if tx.Statement.Table == "profiles" {
			tx.AddError(boom)
		}
	}))
	defer gdb.Callback().Update().Remove("test_fail_profile")

	err := xp.AwardXP(ctx, user.ID, 70, models.XPSourceChainCompletion, "doomed", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransaction)

	var count int64
	require.NoError(t, gdb.Model(&models.XPEvent{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(1), count, "history append must have rolled back")

	var profile models.Profile
	require.NoError(t, gdb.Where("user_id = ?", user.ID).First(&profile).Error)
	assert.Equal(t, int64(30), profile.XPTotal, "total increment must have rolled back")
}

func TestAwardXPEvictsHistoryOverflow(t *testing.T) {
	gdb, xp, _, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "dave")

	base := time.Now().UTC().Add(-48 * time.Hour)
	events := make([]models.XPEvent, models.MaxXPEvents)
	for i := range events {
		events[i] = models.XPEvent{
			UserID:      user.ID,
			Amount:      1,
			Source:      models.XPSourceHabitCompletion,
			Description: "old",
			CreatedAt:   base.Add(time.Duration(i) * time.Second),
		}
	}
	require.NoError(t, gdb.CreateInBatches(events, 200).Error)

	require.NoError(t, xp.AwardXP(ctx, user.ID, 10, models.XPSourceDailyBonus, "newest", nil))

	var count int64
	require.NoError(t, gdb.Model(&models.XPEvent{}).Where("user_id = ?", user.ID).Count(&count).Error)
	assert.Equal(t, int64(models.MaxXPEvents), count)

	// Oldest entry evicted, newest retained.
	var oldest models.XPEvent
	require.NoError(t, gdb.Where("user_id = ?", user.ID).Order("created_at ASC, id ASC").First(&oldest).Error)
	assert.NotEqual(t, base, oldest.CreatedAt)

	var newest models.XPEvent
	require.NoError(t, gdb.Where("user_id = ?", user.ID).Order("created_at DESC, id DESC").First(&newest).Error)
	assert.Equal(t, "newest", newest.Description)
}

func TestMarkCompletedAwardsOncePerDay(t *testing.T) {
	gdb, xp, habits, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "erin")

	habit := &models.Habit{UserID: user.ID, Name: "read", Frequency: "daily"}
	require.NoError(t, habits.Create(ctx, habit))

	updated, err := habits.MarkCompleted(ctx, user.ID, habit.ID, "ch. 3", 20)
	require.NoError(t, err)
	assert.Equal(t, 1, updated.Streak)
	require.Len(t, updated.Completions, 1)

	profile, err := xp.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(XPPerCompletedHabit), profile.XPTotal)
	assert.Equal(t, 1, profile.Stats.HabitsCompleted)

	// Completing again the same day keeps the record but earns nothing.
	updated, err = habits.MarkCompleted(ctx, user.ID, habit.ID, "again", 5)
	require.NoError(t, err)
	require.Len(t, updated.Completions, 1)

	profile, err = xp.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(XPPerCompletedHabit), profile.XPTotal)
}

func TestChainSessionLifecycle(t *testing.T) {
	gdb, xp, _, chains, sessions, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "frank")

	chain, err := chains.Create(ctx, user.ID, "Morning routine", "", []models.ChainItem{
		{HabitName: "stretch", Duration: "10 min"},
		{HabitName: "journal", Duration: "10 min"},
		{HabitName: "plan", Duration: "10 min"},
	})
	require.NoError(t, err)
	assert.Equal(t, 30, chain.TotalMinutes)
	assert.Equal(t, "30 min", chain.TotalTime)

	sess, err := sessions.CreateSession(ctx, user.ID, chain.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SessionStatusActive, sess.Status)
	require.Len(t, sess.Habits, 3)

	// Only one active session per user.
	_, err = sessions.CreateSession(ctx, user.ID, chain.ID)
	assert.ErrorIs(t, err, ErrValidation)

	sess, err = sessions.StartHabit(ctx, user.ID, sess.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, models.SessionHabitActive, sess.Habits[0].Status)

	sess, err = sessions.CompleteHabit(ctx, user.ID, sess.ID, 0, "", 0)
	require.NoError(t, err)
	sess, err = sessions.CompleteHabit(ctx, user.ID, sess.ID, 1, "", 0)
	require.NoError(t, err)
	sess, err = sessions.SkipHabit(ctx, user.ID, sess.ID, 2)
	require.NoError(t, err)

	assert.Equal(t, models.SessionStatusCompleted, sess.Status)
	assert.Equal(t, 3, sess.CompletedHabitsCount)
	assert.Equal(t, float64(100), sess.CompletionRate)
	assert.Equal(t, int64(100), sess.XPEarned)

	// Reward credited through the profile.
	profile, err := xp.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(100), profile.XPTotal)
	assert.Equal(t, 1, profile.Stats.ChainsCompleted)

	// Version column advanced with each mutation.
	var stored models.ChainSession
	require.NoError(t, gdb.First(&stored, "id = ?", sess.ID).Error)
	assert.Greater(t, stored.Version, 1)

	// A new session may start once the old one is terminal.
	_, err = sessions.CreateSession(ctx, user.ID, chain.ID)
	require.NoError(t, err)
}

func TestSessionRejectsOversizedChain(t *testing.T) {
	gdb, xp, _, chains, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "gina")

	items := make([]models.ChainItem, models.MaxChainItems+1)
	for i := range items {
		items[i] = models.ChainItem{HabitName: "h", Duration: "5 min"}
	}
	_, err := chains.Create(ctx, user.ID, "too big", "", items)
	assert.ErrorIs(t, err, ErrValidation)

	_, err = chains.Create(ctx, user.ID, "empty", "", nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestSweepIdleThreshold(t *testing.T) {
	gdb, xp, _, chains, sessions, _ := testServices(t)
	ctx := context.Background()

	stale := createUser(t, gdb, xp, "stale-user")
	fresh := createUser(t, gdb, xp, "fresh-user")

	mkSession := func(user models.User) string {
		chain, err := chains.Create(ctx, user.ID, "routine", "", []models.ChainItem{
			{HabitName: "one", Duration: "5 min"},
		})
		require.NoError(t, err)
		sess, err := sessions.CreateSession(ctx, user.ID, chain.ID)
		require.NoError(t, err)
		return sess.ID
	}

	staleID := mkSession(stale)
	freshID := mkSession(fresh)

	now := time.Now().UTC()
	require.NoError(t, gdb.Model(&models.ChainSession{}).Where("id = ?", staleID).
		Update("last_activity_at", now.Add(-25*time.Hour)).Error)
	require.NoError(t, gdb.Model(&models.ChainSession{}).Where("id = ?", freshID).
		Update("last_activity_at", now.Add(-23*time.Hour)).Error)

	swept, err := sessions.SweepIdle(ctx, 24*time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	var staleSess, freshSess models.ChainSession
	require.NoError(t, gdb.First(&staleSess, "id = ?", staleID).Error)
	require.NoError(t, gdb.First(&freshSess, "id = ?", freshID).Error)

	assert.Equal(t, models.SessionStatusAbandoned, staleSess.Status)
	assert.False(t, staleSess.IsActive)
	require.NotNil(t, staleSess.CompletedAt)
	assert.Zero(t, staleSess.XPEarned)

	assert.Equal(t, models.SessionStatusActive, freshSess.Status)
	assert.True(t, freshSess.IsActive)
}

func TestLeaderboardOrderingAndPosition(t *testing.T) {
	gdb, xp, _, _, _, board := testServices(t)
	ctx := context.Background()

	users := []struct {
		name   string
		xp     int64
		public bool
	}{
		{"top", 5000, true},
		{"middle", 1200, true},
		{"hidden", 3000, false},
		{"low", 40, true},
	}

	byName := map[string]models.User{}
	for _, u := range users {
		user := createUser(t, gdb, xp, u.name)
		byName[u.name] = user
		require.NoError(t, gdb.Model(&models.Profile{}).Where("user_id = ?", user.ID).
			Updates(map[string]interface{}{
				"xp_total":       u.xp,
				"rank_level":     DeriveRank(u.xp).Level,
				"rank_title":     DeriveRank(u.xp).Title,
				"privacy_public": u.public,
			}).Error)
	}

	entries, err := board.Top(ctx, 10, true)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "top", entries[0].Username)
	assert.Equal(t, "middle", entries[1].Username)
	assert.Equal(t, "low", entries[2].Username)
	assert.Equal(t, 1, entries[0].Position)
	assert.Equal(t, int64(5000), entries[0].XPTotal)

	// Position comes from the full ordering, not the page.
	pos, err := board.Position(ctx, byName["low"].ID, true)
	require.NoError(t, err)
	assert.Equal(t, 3, pos)

	// Private profiles and unknown users are "not ranked", never an error.
	pos, err = board.Position(ctx, byName["hidden"].ID, true)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	pos, err = board.Position(ctx, 424242, true)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	// The all-profiles board sees the private user.
	pos, err = board.Position(ctx, byName["hidden"].ID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, pos)
}

func TestGetProfileRepairsStaleRank(t *testing.T) {
	gdb, xp, _, _, _, _ := testServices(t)
	ctx := context.Background()
	user := createUser(t, gdb, xp, "harold")

	// Corrupt the cached rank behind the service's back.
	require.NoError(t, gdb.Model(&models.Profile{}).Where("user_id = ?", user.ID).
		Updates(map[string]interface{}{"xp_total": 800, "rank_title": "Novice", "rank_level": 1}).Error)

	profile, err := xp.GetProfile(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "Expert", profile.RankTitle)
	assert.Equal(t, 4, profile.RankLevel)
}
