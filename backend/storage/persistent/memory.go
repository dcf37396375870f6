package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStorage keeps users, habits and completions in process memory.
// It mirrors the MongoDB behaviour: unique emails, insertion-ordered habit
// listings and no uniqueness on (habit, date). Values are copied in and out
// so callers never share state with the store.
type MemoryStorage struct {
	mu          sync.RWMutex
	users       map[primitive.ObjectID]models.User
	habits      map[primitive.ObjectID]models.Habit
	habitOrder  []primitive.ObjectID
	completions map[primitive.ObjectID]models.HabitCompletion
}

// NewMemoryStorage creates an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		users:       make(map[primitive.ObjectID]models.User),
		habits:      make(map[primitive.ObjectID]models.Habit),
		completions: make(map[primitive.ObjectID]models.HabitCompletion),
	}
}

// Connect is a no-op; the memory store is ready once created.
func (s *MemoryStorage) Connect(dbName, uri string) error {
	return nil
}

// Disconnect is a no-op.
func (s *MemoryStorage) Disconnect() error {
	return nil
}

func (s *MemoryStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == user.Email {
			return nil, fmt.Errorf("user with email %s: %w", user.Email, models.ErrConflict)
		}
	}

	if user.ID.IsZero() {
		user.ID = primitive.NewObjectID()
	}
	s.users[user.ID] = *user
	return user, nil
}

func (s *MemoryStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			found := user
			return &found, nil
		}
	}
	return nil, notFound("user")
}

func (s *MemoryStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if habit.ID.IsZero() {
		habit.ID = primitive.NewObjectID()
	}
	s.habits[habit.ID] = copyHabit(*habit)
	s.habitOrder = append(s.habitOrder, habit.ID)
	return habit, nil
}

func (s *MemoryStorage) FindHabitByID(ctx context.Context, id primitive.ObjectID) (*models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	habit, ok := s.habits[id]
	if !ok {
		return nil, notFound("habit")
	}
	found := copyHabit(habit)
	return &found, nil
}

func (s *MemoryStorage) FindActiveHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	habits := []models.Habit{}
	for _, id := range s.habitOrder {
		habit := s.habits[id]
		if habit.UserID == userID && !habit.Archived {
			habits = append(habits, copyHabit(habit))
		}
	}
	return habits, nil
}

func (s *MemoryStorage) SaveHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.habits[habit.ID]; !ok {
		return nil, notFound("habit")
	}
	s.habits[habit.ID] = copyHabit(*habit)
	return habit, nil
}

func (s *MemoryStorage) FindCompletion(ctx context.Context, habitID primitive.ObjectID, date time.Time) (*models.HabitCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, completion := range s.completions {
		if completion.HabitID == habitID && completion.Date.Equal(date) {
			found := completion
			return &found, nil
		}
	}
	return nil, notFound("completion")
}

func (s *MemoryStorage) FindCompletionsBetween(ctx context.Context, habitID primitive.ObjectID, start, end time.Time) ([]models.HabitCompletion, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	completions := []models.HabitCompletion{}
	for _, completion := range s.completions {
		if completion.HabitID != habitID {
			continue
		}
		if completion.Date.Before(start) || completion.Date.After(end) {
			continue
		}
		completions = append(completions, completion)
	}

	sort.Slice(completions, func(i, j int) bool {
		return completions[i].Date.Before(completions[j].Date)
	})
	return completions, nil
}

func (s *MemoryStorage) SaveCompletion(ctx context.Context, completion *models.HabitCompletion) (*models.HabitCompletion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if completion.ID.IsZero() {
		completion.ID = primitive.NewObjectID()
	}
	s.completions[completion.ID] = *completion
	return completion, nil
}

// CompletionCount returns how many completion records exist for a habit,
// regardless of date or flag.
func (s *MemoryStorage) CompletionCount(habitID primitive.ObjectID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	count := 0
	for _, completion := range s.completions {
		if completion.HabitID == habitID {
			count++
		}
	}
	return count
}

func copyHabit(habit models.Habit) models.Habit {
	if habit.ReminderTime != nil {
		v := *habit.ReminderTime
		habit.ReminderTime = &v
	}
	if habit.MotivationalQuote != nil {
		v := *habit.MotivationalQuote
		habit.MotivationalQuote = &v
	}
	return habit
}
