package habits

import (
	"context"
	"errors"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	"github.com/jghoshh/habitsync/lib/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CompletionStore is the part of the storage backend the statistics read from.
type CompletionStore interface {
	FindCompletion(ctx context.Context, habitID primitive.ObjectID, date time.Time) (*models.HabitCompletion, error)
	FindCompletionsBetween(ctx context.Context, habitID primitive.ObjectID, start, end time.Time) ([]models.HabitCompletion, error)
}

// CalculateStreak counts the consecutive completed calendar days ending at asOf.
//
// It walks backward one day at a time, looking up the completion of each day, and
// stops at the first day without a completed record. The habit's frequency is not
// taken into account. There is no lookback limit: every day of the streak costs
// one lookup.
func CalculateStreak(ctx context.Context, store CompletionStore, habitID primitive.ObjectID, asOf time.Time) (int, error) {
	streak := 0
	date := utils.DateOf(asOf)
	for {
		completion, err := store.FindCompletion(ctx, habitID, date)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				return streak, nil
			}
			return 0, err
		}
		if !completion.Completed {
			return streak, nil
		}
		streak++
		date = date.AddDate(0, 0, -1)
	}
}

// CountCompletedBetween counts completed records of a habit dated within [start, end].
func CountCompletedBetween(ctx context.Context, store CompletionStore, habitID primitive.ObjectID, start, end time.Time) (int, error) {
	completions, err := store.FindCompletionsBetween(ctx, habitID, utils.DateOf(start), utils.DateOf(end))
	if err != nil {
		return 0, err
	}

	count := 0
	for _, c := range completions {
		if c.Completed {
			count++
		}
	}
	return count, nil
}

// CountCompletionsThisWeek counts completed records from the Monday of today's
// week through today, inclusive.
func CountCompletionsThisWeek(ctx context.Context, store CompletionStore, habitID primitive.ObjectID, today time.Time) (int, error) {
	return CountCompletedBetween(ctx, store, habitID, utils.StartOfWeek(today), today)
}
