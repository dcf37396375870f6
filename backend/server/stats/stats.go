package stats

import (
	"context"
	"sort"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	"github.com/jghoshh/habitsync/backend/server/habits"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/jghoshh/habitsync/lib/utils"
)

// lookbackDays is how far back totalCompletions reaches: one week plus twelve more.
const lookbackDays = 6 + 12*7

// Service computes aggregate statistics over a user's active habits.
type Service struct {
	store storage.StorageInterface
	loc   *time.Location
	now   func() time.Time
}

func NewService(store storage.StorageInterface, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// GetOverview aggregates the user's non-archived habits as of today.
// The breakdown is ordered by streak, longest first; ties keep store order.
func (s *Service) GetOverview(ctx context.Context, user *models.User) (*models.OverviewStats, error) {
	active, err := s.store.FindActiveHabitsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	today := utils.Today(s.now(), s.loc)
	lookbackStart := today.AddDate(0, 0, -lookbackDays)
	weekStart := utils.StartOfWeek(today)

	overview := &models.OverviewStats{
		TotalHabits:    int64(len(active)),
		HabitBreakdown: make([]models.HabitBreakdownItem, 0, len(active)),
	}

	for _, habit := range active {
		total, err := habits.CountCompletedBetween(ctx, s.store, habit.ID, lookbackStart, today)
		if err != nil {
			return nil, err
		}
		overview.TotalCompletions += int64(total)

		streak, err := habits.CalculateStreak(ctx, s.store, habit.ID, today)
		if err != nil {
			return nil, err
		}
		if streak > overview.LongestStreak {
			overview.LongestStreak = streak
		}

		completedDays, err := habits.CountCompletedBetween(ctx, s.store, habit.ID, weekStart, today)
		if err != nil {
			return nil, err
		}

		overview.HabitBreakdown = append(overview.HabitBreakdown, models.HabitBreakdownItem{
			HabitID:              habit.ID.Hex(),
			Name:                 habit.Name,
			Icon:                 habit.Icon,
			CompletedDays:        completedDays,
			Streak:               streak,
			CompletionPercentage: float64(completedDays) / 7 * 100,
		})
	}

	sort.SliceStable(overview.HabitBreakdown, func(i, j int) bool {
		return overview.HabitBreakdown[i].Streak > overview.HabitBreakdown[j].Streak
	})
	return overview, nil
}
