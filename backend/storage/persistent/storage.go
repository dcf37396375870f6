package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// StorageInterface defines the set of methods that any persistent storage
// backend needs to implement. Lookups that match nothing return an error
// wrapping models.ErrNotFound.
type StorageInterface interface {
	// Establishes a connection to the storage backend.
	Connect(dbName, uri string) error
	// Disconnects from the storage backend.
	Disconnect() error

	// Adds a new user to the storage backend and returns it with its ID set.
	AddUser(ctx context.Context, user *models.User) (*models.User, error)
	// Finds a user by email.
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)

	// Adds a new habit to the storage backend and returns it with its ID set.
	AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)
	// Finds a habit by ID, archived or not.
	FindHabitByID(ctx context.Context, id primitive.ObjectID) (*models.Habit, error)
	// Finds the habits of a user that are not archived.
	FindActiveHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error)
	// Replaces a stored habit with the given one, matched by ID.
	SaveHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error)

	// Finds the completion of a habit on one calendar date.
	FindCompletion(ctx context.Context, habitID primitive.ObjectID, date time.Time) (*models.HabitCompletion, error)
	// Finds the completions of a habit with start <= date <= end.
	FindCompletionsBetween(ctx context.Context, habitID primitive.ObjectID, start, end time.Time) ([]models.HabitCompletion, error)
	// Inserts the completion when its ID is nil, replaces it otherwise.
	SaveCompletion(ctx context.Context, completion *models.HabitCompletion) (*models.HabitCompletion, error)
}

// NewStorage creates a new StorageInterface for the given driver ("mongo" or "memory")
// and connects it using the database name and URI.
func NewStorage(driver, dbName, uri string) (StorageInterface, error) {
	var storage StorageInterface
	switch driver {
	case "memory":
		storage = NewMemoryStorage()
	case "mongo", "":
		storage = NewMongoStorage()
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}

	err := storage.Connect(dbName, uri)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	return storage, nil
}

func notFound(what string) error {
	return fmt.Errorf("%s: %w", what, models.ErrNotFound)
}
