package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Frequency describes how often a habit is meant to be performed.
type Frequency string

const (
	FrequencyDaily  Frequency = "DAILY"
	FrequencyWeekly Frequency = "WEEKLY"
)

// DefaultGoalPerWeek is the weekly goal applied when a request leaves it unset.
const DefaultGoalPerWeek = 7

// User is a registered account. Users are looked up by their unique email.
type User struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name         string             `bson:"name" json:"name"`
	Email        string             `bson:"email" json:"email"`
	PasswordHash string             `bson:"password_hash" json:"-"`
	CreatedAt    time.Time          `bson:"created_at" json:"createdAt"`
}

// Habit is a habit definition owned by exactly one user.
// Habits are never removed; Archived hides them from listings.
type Habit struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	UserID            primitive.ObjectID `bson:"user_id" json:"userId"`
	Name              string             `bson:"name" json:"name"`
	Icon              string             `bson:"icon" json:"icon"`
	Frequency         Frequency          `bson:"frequency" json:"frequency"`
	GoalPerWeek       int                `bson:"goal_per_week" json:"goalPerWeek"`
	ReminderTime      *string            `bson:"reminder_time,omitempty" json:"reminderTime,omitempty"`
	MotivationalQuote *string            `bson:"motivational_quote,omitempty" json:"motivationalQuote,omitempty"`
	Archived          bool               `bson:"archived" json:"archived"`
	CreatedAt         time.Time          `bson:"created_at" json:"createdAt"`
}

// HabitCompletion marks a habit as done on one calendar date.
// Date is always midnight UTC of that calendar day.
type HabitCompletion struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	HabitID   primitive.ObjectID `bson:"habit_id" json:"habitId"`
	Date      time.Time          `bson:"date" json:"date"`
	Completed bool               `bson:"completed" json:"completed"`
}
