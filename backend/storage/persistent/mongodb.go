package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jghoshh/habitsync/backend/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection       = "users"
	habitsCollection      = "habits"
	completionsCollection = "habit_completions"
)

// MongoStorage is a struct representing a MongoDB storage.
// It provides an interface to perform CRUD operations on the users, habits and
// habit_completions collections.
type MongoStorage struct {
	client *mongo.Client
	dbName string
}

// NewMongoStorage creates a new instance of MongoStorage.
// This function doesn't establish a connection to the MongoDB server.
// To connect to the server, use the Connect method of the returned MongoStorage instance.
func NewMongoStorage() *MongoStorage {
	return &MongoStorage{}
}

// Connect establishes a connection to the MongoDB server at the given URI and a database name.
// Sets up indexes and unique constraints as necessary.
// Returns an error if any issues are encountered.
func (m *MongoStorage) Connect(dbName, uri string) error {

	// Set a timeout for the connection
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return fmt.Errorf("error connecting to MongoDB: %v", err)
	}

	if err := client.Ping(ctx, nil); err != nil {
		return fmt.Errorf("error pinging MongoDB: %v", err)
	}

	m.client = client
	m.dbName = dbName

	// Every user has a unique email. It is also the lookup key of every authenticated request.
	emailIndexModel := mongo.IndexModel{
		Keys:    bson.M{"email": 1},
		Options: options.Index().SetUnique(true),
	}
	if _, err = m.collection(usersCollection).Indexes().CreateOne(ctx, emailIndexModel); err != nil {
		return fmt.Errorf("error creating email index: %v", err)
	}

	// Listings filter on the owner and the archived flag.
	userArchivedIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "user_id", Value: 1},
			{Key: "archived", Value: 1},
		},
	}
	if _, err = m.collection(habitsCollection).Indexes().CreateOne(ctx, userArchivedIndexModel); err != nil {
		return fmt.Errorf("error creating user_id and archived index: %v", err)
	}

	// Streak walks and range counts look up completions by habit and date.
	// Not unique: one record per day is kept by lookup-before-create.
	habitDateIndexModel := mongo.IndexModel{
		Keys: bson.D{
			{Key: "habit_id", Value: 1},
			{Key: "date", Value: 1},
		},
	}
	if _, err = m.collection(completionsCollection).Indexes().CreateOne(ctx, habitDateIndexModel); err != nil {
		return fmt.Errorf("error creating habit_id and date index: %v", err)
	}

	return nil
}

// Disconnect closes the connection to the MongoDB server.
// It should be called when the MongoStorage instance is no longer needed.
func (m *MongoStorage) Disconnect() error {
	if m.client == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("error disconnecting from MongoDB: %v", err)
	}
	return nil
}

func (m *MongoStorage) collection(name string) *mongo.Collection {
	return m.client.Database(m.dbName).Collection(name)
}

// AddUser adds a new user document to the 'users' collection.
// A duplicate email is reported as models.ErrConflict.
func (m *MongoStorage) AddUser(ctx context.Context, user *models.User) (*models.User, error) {
	result, err := m.collection(usersCollection).InsertOne(ctx, user)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, fmt.Errorf("user with email %s: %w", user.Email, models.ErrConflict)
		}
		return nil, err
	}

	user.ID = result.InsertedID.(primitive.ObjectID)
	return user, nil
}

// FindUserByEmail finds the user document with the given email.
func (m *MongoStorage) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user := &models.User{}
	err := m.collection(usersCollection).FindOne(ctx, bson.M{"email": email}).Decode(user)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("user")
		}
		return nil, err
	}
	return user, nil
}

// AddHabit adds a new habit document to the 'habits' collection.
func (m *MongoStorage) AddHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	result, err := m.collection(habitsCollection).InsertOne(ctx, habit)
	if err != nil {
		return nil, err
	}

	habit.ID = result.InsertedID.(primitive.ObjectID)
	return habit, nil
}

// FindHabitByID finds a habit document by its ID. Archived habits are returned too.
func (m *MongoStorage) FindHabitByID(ctx context.Context, id primitive.ObjectID) (*models.Habit, error) {
	habit := &models.Habit{}
	err := m.collection(habitsCollection).FindOne(ctx, bson.M{"_id": id}).Decode(habit)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("habit")
		}
		return nil, err
	}
	return habit, nil
}

// FindActiveHabitsByUser returns the non-archived habits of a user in natural order.
func (m *MongoStorage) FindActiveHabitsByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Habit, error) {
	cursor, err := m.collection(habitsCollection).Find(ctx, bson.M{"user_id": userID, "archived": false})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	habits := []models.Habit{}
	for cursor.Next(ctx) {
		var habit models.Habit
		if err := cursor.Decode(&habit); err != nil {
			return nil, err
		}
		habits = append(habits, habit)
	}
	return habits, cursor.Err()
}

// SaveHabit replaces the habit document with the same ID.
func (m *MongoStorage) SaveHabit(ctx context.Context, habit *models.Habit) (*models.Habit, error) {
	result, err := m.collection(habitsCollection).ReplaceOne(ctx, bson.M{"_id": habit.ID}, habit)
	if err != nil {
		return nil, err
	}
	if result.MatchedCount == 0 {
		return nil, notFound("habit")
	}
	return habit, nil
}

// FindCompletion finds the completion of a habit on the given calendar date.
func (m *MongoStorage) FindCompletion(ctx context.Context, habitID primitive.ObjectID, date time.Time) (*models.HabitCompletion, error) {
	completion := &models.HabitCompletion{}
	err := m.collection(completionsCollection).FindOne(ctx, bson.M{"habit_id": habitID, "date": date}).Decode(completion)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, notFound("completion")
		}
		return nil, err
	}
	return completion, nil
}

// FindCompletionsBetween returns completions of a habit dated within [start, end].
func (m *MongoStorage) FindCompletionsBetween(ctx context.Context, habitID primitive.ObjectID, start, end time.Time) ([]models.HabitCompletion, error) {
	filter := bson.M{
		"habit_id": habitID,
		"date":     bson.M{"$gte": start, "$lte": end},
	}

	cursor, err := m.collection(completionsCollection).Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "date", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	completions := []models.HabitCompletion{}
	if err := cursor.All(ctx, &completions); err != nil {
		return nil, err
	}
	return completions, nil
}

// SaveCompletion inserts a new completion or replaces an existing one.
func (m *MongoStorage) SaveCompletion(ctx context.Context, completion *models.HabitCompletion) (*models.HabitCompletion, error) {
	collection := m.collection(completionsCollection)

	if completion.ID.IsZero() {
		result, err := collection.InsertOne(ctx, completion)
		if err != nil {
			return nil, err
		}
		completion.ID = result.InsertedID.(primitive.ObjectID)
		return completion, nil
	}

	_, err := collection.ReplaceOne(ctx, bson.M{"_id": completion.ID}, completion, options.Replace().SetUpsert(true))
	if err != nil {
		return nil, err
	}
	return completion, nil
}
