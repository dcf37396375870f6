package habits

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jghoshh/habitsync/backend/models"
	"github.com/jghoshh/habitsync/backend/server/metrics"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/jghoshh/habitsync/lib/logging"
	"github.com/jghoshh/habitsync/lib/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var validate = validator.New()

// Service manages the habits of a user and their daily completions.
// Every method receives the already resolved user the request acts for.
type Service struct {
	store storage.StorageInterface
	loc   *time.Location
	now   func() time.Time
}

// NewService creates the habit service. loc decides which calendar day "today" is.
func NewService(store storage.StorageInterface, loc *time.Location) *Service {
	if loc == nil {
		loc = time.Local
	}
	return &Service{store: store, loc: loc, now: time.Now}
}

// Today returns the current calendar date in the service's time zone.
func (s *Service) Today() time.Time {
	return utils.Today(s.now(), s.loc)
}

// ListHabits returns the user's active habits with their statistics, in store order.
func (s *Service) ListHabits(ctx context.Context, user *models.User) ([]models.HabitResponse, error) {
	habits, err := s.store.FindActiveHabitsByUser(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	today := s.Today()
	responses := make([]models.HabitResponse, 0, len(habits))
	for i := range habits {
		response, err := s.toResponse(ctx, &habits[i], today)
		if err != nil {
			return nil, err
		}
		responses = append(responses, *response)
	}
	return responses, nil
}

// CreateHabit stores a new habit owned by user.
func (s *Service) CreateHabit(ctx context.Context, user *models.User, request models.HabitRequest) (*models.HabitResponse, error) {
	habit := &models.Habit{
		UserID:    user.ID,
		CreatedAt: s.now().UTC(),
	}
	if err := applyRequest(habit, request); err != nil {
		return nil, err
	}

	saved, err := s.store.AddHabit(ctx, habit)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("user", user.ID.Hex()).Str("habit", saved.ID.Hex()).Msg("habit created")
	return s.toResponse(ctx, saved, s.Today())
}

// UpdateHabit overwrites every mutable field of the user's habit.
// Identity, owner, archived flag and creation time never change.
func (s *Service) UpdateHabit(ctx context.Context, user *models.User, habitID string, request models.HabitRequest) (*models.HabitResponse, error) {
	habit, err := s.GetHabitForUser(ctx, user, habitID)
	if err != nil {
		return nil, err
	}

	if err := applyRequest(habit, request); err != nil {
		return nil, err
	}

	saved, err := s.store.SaveHabit(ctx, habit)
	if err != nil {
		return nil, err
	}
	return s.toResponse(ctx, saved, s.Today())
}

// DeleteHabit archives the user's habit. The habit and its completions are kept.
func (s *Service) DeleteHabit(ctx context.Context, user *models.User, habitID string) error {
	habit, err := s.GetHabitForUser(ctx, user, habitID)
	if err != nil {
		return err
	}

	habit.Archived = true
	if _, err := s.store.SaveHabit(ctx, habit); err != nil {
		return err
	}

	logging.Info().Str("user", user.ID.Hex()).Str("habit", habit.ID.Hex()).Msg("habit archived")
	return nil
}

// CompleteHabit marks the habit as completed on date, or today when date is nil.
// Completing a day twice leaves a single completed record.
func (s *Service) CompleteHabit(ctx context.Context, user *models.User, habitID string, date *time.Time) (*models.HabitResponse, error) {
	habit, err := s.GetHabitForUser(ctx, user, habitID)
	if err != nil {
		return nil, err
	}

	target := s.Today()
	if date != nil {
		target = utils.DateOf(*date)
	}

	completion, err := s.store.FindCompletion(ctx, habit.ID, target)
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			return nil, err
		}
		completion = &models.HabitCompletion{HabitID: habit.ID, Date: target}
	}
	completion.Completed = true

	if _, err := s.store.SaveCompletion(ctx, completion); err != nil {
		return nil, err
	}
	metrics.HabitCompleted()

	return s.toResponse(ctx, habit, s.Today())
}

// GetHabitForUser loads a habit and checks that user owns it.
//
// A missing habit (or an id that cannot exist) is models.ErrNotFound; a habit owned
// by someone else is models.ErrForbidden. Archived habits are returned too.
func (s *Service) GetHabitForUser(ctx context.Context, user *models.User, habitID string) (*models.Habit, error) {
	id, err := primitive.ObjectIDFromHex(habitID)
	if err != nil {
		return nil, fmt.Errorf("habit %q: %w", habitID, models.ErrNotFound)
	}

	habit, err := s.store.FindHabitByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if habit.UserID != user.ID {
		return nil, fmt.Errorf("habit %s belongs to another user: %w", habitID, models.ErrForbidden)
	}
	return habit, nil
}

func (s *Service) toResponse(ctx context.Context, habit *models.Habit, today time.Time) (*models.HabitResponse, error) {
	streak, err := CalculateStreak(ctx, s.store, habit.ID, today)
	if err != nil {
		return nil, err
	}

	thisWeek, err := CountCompletionsThisWeek(ctx, s.store, habit.ID, today)
	if err != nil {
		return nil, err
	}

	return &models.HabitResponse{
		ID:                  habit.ID.Hex(),
		Name:                habit.Name,
		Icon:                habit.Icon,
		Frequency:           habit.Frequency,
		GoalPerWeek:         habit.GoalPerWeek,
		ReminderTime:        habit.ReminderTime,
		MotivationalQuote:   habit.MotivationalQuote,
		CurrentStreak:       streak,
		CompletionsThisWeek: thisWeek,
	}, nil
}

// applyRequest validates the request and copies it onto the habit's mutable fields,
// filling in the default frequency and weekly goal.
func applyRequest(habit *models.Habit, request models.HabitRequest) error {
	request.Name = strings.TrimSpace(request.Name)
	if err := validate.Struct(request); err != nil {
		return fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
	}

	var reminder *string
	if request.ReminderTime != nil && strings.TrimSpace(*request.ReminderTime) != "" {
		normalized, err := utils.NormalizeTimeOfDay(*request.ReminderTime)
		if err != nil {
			return fmt.Errorf("%v: %w", err, models.ErrInvalidInput)
		}
		reminder = &normalized
	}

	frequency := request.Frequency
	if frequency == "" {
		frequency = models.FrequencyDaily
	}
	goal := request.GoalPerWeek
	if goal == 0 {
		goal = models.DefaultGoalPerWeek
	}

	habit.Name = request.Name
	habit.Icon = request.Icon
	habit.Frequency = frequency
	habit.GoalPerWeek = goal
	habit.ReminderTime = reminder
	habit.MotivationalQuote = request.MotivationalQuote
	return nil
}
