package habits

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// today is a Saturday; the current week started on Monday 2026-10-12.
var today = time.Date(2026, time.October, 17, 0, 0, 0, 0, time.UTC)

func newTestService(t *testing.T) (*Service, *storage.MemoryStorage, *models.User) {
	t.Helper()

	store := storage.NewMemoryStorage()
	user, err := store.AddUser(context.Background(), &models.User{Name: "Ada", Email: "ada@example.com", PasswordHash: "x"})
	require.NoError(t, err)

	svc := NewService(store, time.UTC)
	svc.now = func() time.Time { return today.Add(15 * time.Hour) }
	return svc, store, user
}

func addCompletion(t *testing.T, store storage.StorageInterface, habitID primitive.ObjectID, date time.Time, completed bool) {
	t.Helper()
	_, err := store.SaveCompletion(context.Background(), &models.HabitCompletion{HabitID: habitID, Date: date, Completed: completed})
	require.NoError(t, err)
}

func daysAgo(n int) time.Time {
	return today.AddDate(0, 0, -n)
}

func TestCalculateStreak(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	habitID := primitive.NewObjectID()

	streak, err := CalculateStreak(ctx, store, habitID, today)
	require.NoError(t, err)
	assert.Equal(t, 0, streak, "no completions")

	// Completed on the last 4 days, a gap 4 days ago, older completions before that.
	for _, n := range []int{0, 1, 2, 3, 5, 6} {
		addCompletion(t, store, habitID, daysAgo(n), true)
	}

	streak, err = CalculateStreak(ctx, store, habitID, today)
	require.NoError(t, err)
	assert.Equal(t, 4, streak)

	streak, err = CalculateStreak(ctx, store, habitID, daysAgo(4))
	require.NoError(t, err)
	assert.Equal(t, 0, streak, "reference day itself not completed")

	streak, err = CalculateStreak(ctx, store, habitID, daysAgo(5))
	require.NoError(t, err)
	assert.Equal(t, 2, streak)
}

func TestCalculateStreakStopsAtIncompleteRecord(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	habitID := primitive.NewObjectID()

	addCompletion(t, store, habitID, daysAgo(0), true)
	addCompletion(t, store, habitID, daysAgo(1), false)
	addCompletion(t, store, habitID, daysAgo(2), true)

	streak, err := CalculateStreak(ctx, store, habitID, today)
	require.NoError(t, err)
	assert.Equal(t, 1, streak)
}

func TestCountCompletionsThisWeek(t *testing.T) {
	ctx := context.Background()
	store := storage.NewMemoryStorage()
	habitID := primitive.NewObjectID()

	monday := time.Date(2026, time.October, 12, 0, 0, 0, 0, time.UTC)
	addCompletion(t, store, habitID, monday.AddDate(0, 0, -1), true) // previous Sunday
	addCompletion(t, store, habitID, monday, true)
	addCompletion(t, store, habitID, monday.AddDate(0, 0, 2), true)
	addCompletion(t, store, habitID, monday.AddDate(0, 0, 3), false)
	addCompletion(t, store, habitID, today, true)
	addCompletion(t, store, habitID, today.AddDate(0, 0, 1), true) // tomorrow

	count, err := CountCompletionsThisWeek(ctx, store, habitID, today)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	count, err = CountCompletionsThisWeek(ctx, store, habitID, monday)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "on Monday the week is only Monday")
}

func TestCreateHabitDefaults(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	reminder := "07:30:00"
	response, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "  Read  ", Icon: "book", ReminderTime: &reminder})
	require.NoError(t, err)

	assert.Equal(t, "Read", response.Name)
	assert.Equal(t, models.FrequencyDaily, response.Frequency)
	assert.Equal(t, models.DefaultGoalPerWeek, response.GoalPerWeek)
	require.NotNil(t, response.ReminderTime)
	assert.Equal(t, "07:30", *response.ReminderTime)
	assert.Equal(t, 0, response.CurrentStreak)
	assert.Equal(t, 0, response.CompletionsThisWeek)

	id, err := primitive.ObjectIDFromHex(response.ID)
	require.NoError(t, err)
	stored, err := store.FindHabitByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, user.ID, stored.UserID)
	assert.False(t, stored.Archived)
	assert.True(t, today.Add(15*time.Hour).Equal(stored.CreatedAt))
}

func TestCreateHabitValidation(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	badTime := "7pm"
	cases := []models.HabitRequest{
		{Name: ""},
		{Name: "Read", Frequency: "MONTHLY"},
		{Name: "Read", GoalPerWeek: 8},
		{Name: "Read", GoalPerWeek: -1},
		{Name: "Read", ReminderTime: &badTime},
	}
	for _, req := range cases {
		_, err := svc.CreateHabit(ctx, user, req)
		assert.True(t, errors.Is(err, models.ErrInvalidInput), "%+v", req)
	}
}

func TestUpdateHabitKeepsIdentity(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Read", Icon: "book"})
	require.NoError(t, err)
	id, _ := primitive.ObjectIDFromHex(created.ID)
	before, err := store.FindHabitByID(ctx, id)
	require.NoError(t, err)

	quote := "one page a day"
	updated, err := svc.UpdateHabit(ctx, user, created.ID, models.HabitRequest{
		Name:              "Read more",
		Icon:              "books",
		Frequency:         models.FrequencyWeekly,
		GoalPerWeek:       3,
		MotivationalQuote: &quote,
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Read more", updated.Name)
	assert.Equal(t, models.FrequencyWeekly, updated.Frequency)
	assert.Equal(t, 3, updated.GoalPerWeek)
	assert.Nil(t, updated.ReminderTime)

	after, err := store.FindHabitByID(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, before.UserID, after.UserID)
	assert.Equal(t, before.Archived, after.Archived)
	assert.True(t, before.CreatedAt.Equal(after.CreatedAt))
	assert.Equal(t, "one page a day", *after.MotivationalQuote)
}

func TestOwnershipChecks(t *testing.T) {
	svc, store, owner := newTestService(t)
	ctx := context.Background()

	intruder, err := store.AddUser(ctx, &models.User{Name: "Eve", Email: "eve@example.com"})
	require.NoError(t, err)

	created, err := svc.CreateHabit(ctx, owner, models.HabitRequest{Name: "Read"})
	require.NoError(t, err)

	_, err = svc.UpdateHabit(ctx, intruder, created.ID, models.HabitRequest{Name: "Hacked"})
	assert.True(t, errors.Is(err, models.ErrForbidden))
	assert.True(t, errors.Is(svc.DeleteHabit(ctx, intruder, created.ID), models.ErrForbidden))
	_, err = svc.CompleteHabit(ctx, intruder, created.ID, nil)
	assert.True(t, errors.Is(err, models.ErrForbidden))

	missing := primitive.NewObjectID().Hex()
	_, err = svc.UpdateHabit(ctx, owner, missing, models.HabitRequest{Name: "Read"})
	assert.True(t, errors.Is(err, models.ErrNotFound))
	assert.True(t, errors.Is(svc.DeleteHabit(ctx, owner, "not-an-id"), models.ErrNotFound))

	list, err := svc.ListHabits(ctx, owner)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Read", list[0].Name)
}

func TestDeleteHabitArchives(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	keep, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Read"})
	require.NoError(t, err)
	drop, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Run"})
	require.NoError(t, err)

	require.NoError(t, svc.DeleteHabit(ctx, user, drop.ID))

	list, err := svc.ListHabits(ctx, user)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, keep.ID, list[0].ID)

	archived, err := svc.GetHabitForUser(ctx, user, drop.ID)
	require.NoError(t, err, "archived habits stay reachable by id")
	assert.True(t, archived.Archived)
}

func TestCompleteHabitIsIdempotent(t *testing.T) {
	svc, store, user := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Read"})
	require.NoError(t, err)
	id, _ := primitive.ObjectIDFromHex(created.ID)

	first, err := svc.CompleteHabit(ctx, user, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, first.CurrentStreak)
	assert.Equal(t, 1, first.CompletionsThisWeek)

	second, err := svc.CompleteHabit(ctx, user, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, second.CurrentStreak)

	assert.Equal(t, 1, store.CompletionCount(id))
	completion, err := store.FindCompletion(ctx, id, today)
	require.NoError(t, err)
	assert.True(t, completion.Completed)
}

func TestCompleteHabitOnPastDatesBuildsStreak(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Read"})
	require.NoError(t, err)

	for _, n := range []int{2, 1} {
		date := daysAgo(n).Add(9 * time.Hour)
		response, err := svc.CompleteHabit(ctx, user, created.ID, &date)
		require.NoError(t, err)
		assert.Equal(t, 0, response.CurrentStreak, "today still open")
	}

	response, err := svc.CompleteHabit(ctx, user, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, response.CurrentStreak)
	// Thursday, Friday and Saturday all fall within the week starting Monday.
	assert.Equal(t, 3, response.CompletionsThisWeek)
}

func TestCompleteHabitOnArchivedHabit(t *testing.T) {
	svc, _, user := newTestService(t)
	ctx := context.Background()

	created, err := svc.CreateHabit(ctx, user, models.HabitRequest{Name: "Read"})
	require.NoError(t, err)
	require.NoError(t, svc.DeleteHabit(ctx, user, created.ID))

	response, err := svc.CompleteHabit(ctx, user, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, response.CurrentStreak)
}

func TestTodayUsesServiceTimeZone(t *testing.T) {
	store := storage.NewMemoryStorage()
	tokyo := time.FixedZone("JST", 9*3600)
	svc := NewService(store, tokyo)
	svc.now = func() time.Time { return time.Date(2026, time.October, 17, 20, 0, 0, 0, time.UTC) }

	assert.True(t, time.Date(2026, time.October, 18, 0, 0, 0, 0, time.UTC).Equal(svc.Today()))
}
