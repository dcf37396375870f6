package stats

import (
	"context"
	"testing"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Saturday; the week began on Monday 2026-10-12.
var today = time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

type fixture struct {
	svc   *Service
	store *storage.MemoryStorage
	user  *models.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	store := storage.NewMemoryStorage()
	user, err := store.AddUser(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com"})
	require.NoError(t, err)

	svc := NewService(store, time.UTC)
	svc.now = func() time.Time { return today.Add(8 * time.Hour) }
	return &fixture{svc: svc, store: store, user: user}
}

func (f *fixture) habit(t *testing.T, name string, archived bool, completedDaysAgo ...int) *models.Habit {
	t.Helper()
	ctx := context.Background()

	habit, err := f.store.AddHabit(ctx, &models.Habit{
		UserID:      f.user.ID,
		Name:        name,
		Icon:        name[:1],
		Frequency:   models.FrequencyDaily,
		GoalPerWeek: models.DefaultGoalPerWeek,
		Archived:    archived,
	})
	require.NoError(t, err)

	for _, n := range completedDaysAgo {
		_, err := f.store.SaveCompletion(ctx, &models.HabitCompletion{
			HabitID:   habit.ID,
			Date:      today.AddDate(0, 0, -n),
			Completed: true,
		})
		require.NoError(t, err)
	}
	return habit
}

func TestOverviewWithoutHabits(t *testing.T) {
	f := newFixture(t)

	overview, err := f.svc.GetOverview(context.Background(), f.user)
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.TotalHabits)
	assert.Equal(t, int64(0), overview.TotalCompletions)
	assert.Equal(t, 0, overview.LongestStreak)
	assert.NotNil(t, overview.HabitBreakdown)
	assert.Empty(t, overview.HabitBreakdown)
}

func TestOverview(t *testing.T) {
	f := newFixture(t)

	// Streak 1; this week has Saturday and Monday; one completion just inside the
	// lookback and one just outside it.
	read := f.habit(t, "Read", false, 0, 5, 90, 91)
	// Streak 3, all within this week.
	run := f.habit(t, "Run", false, 0, 1, 2)
	// Streak 1 again; the previous Sunday is outside this week.
	swim := f.habit(t, "Swim", false, 0, 6)
	f.habit(t, "Archived", true, 0, 1, 2, 3, 4, 5)

	overview, err := f.svc.GetOverview(context.Background(), f.user)
	require.NoError(t, err)

	assert.Equal(t, int64(3), overview.TotalHabits)
	assert.Equal(t, int64(3+3+2), overview.TotalCompletions)
	assert.Equal(t, 3, overview.LongestStreak)

	require.Len(t, overview.HabitBreakdown, 3)
	ids := []string{}
	for _, item := range overview.HabitBreakdown {
		ids = append(ids, item.HabitID)
	}
	assert.Equal(t, []string{run.ID.Hex(), read.ID.Hex(), swim.ID.Hex()}, ids, "ties keep store order")

	first := overview.HabitBreakdown[0]
	assert.Equal(t, "Run", first.Name)
	assert.Equal(t, "R", first.Icon)
	assert.Equal(t, 3, first.Streak)
	assert.Equal(t, 3, first.CompletedDays)
	assert.InDelta(t, 300.0/7, first.CompletionPercentage, 1e-9)

	assert.Equal(t, 2, overview.HabitBreakdown[1].CompletedDays)
	assert.Equal(t, 1, overview.HabitBreakdown[2].CompletedDays)
}

func TestOverviewIgnoresOtherUsers(t *testing.T) {
	f := newFixture(t)
	f.habit(t, "Read", false, 0)

	other, err := f.store.AddUser(context.Background(), &models.User{Name: "Eve", Email: "eve@example.com"})
	require.NoError(t, err)

	overview, err := f.svc.GetOverview(context.Background(), other)
	require.NoError(t, err)
	assert.Equal(t, int64(0), overview.TotalHabits)
	assert.Empty(t, overview.HabitBreakdown)
}
