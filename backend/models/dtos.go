package models

// RegisterRequest is the body of POST /api/auth/register.
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginRequest is the body of POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by both register and login.
type AuthResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// HabitRequest carries the mutable fields of a habit.
// A zero GoalPerWeek and an empty Frequency mean "use the default".
type HabitRequest struct {
	Name              string    `json:"name" validate:"required,max=100"`
	Icon              string    `json:"icon" validate:"max=32"`
	Frequency         Frequency `json:"frequency" validate:"omitempty,oneof=DAILY WEEKLY"`
	GoalPerWeek       int       `json:"goalPerWeek" validate:"min=0,max=7"`
	ReminderTime      *string   `json:"reminderTime"`
	MotivationalQuote *string   `json:"motivationalQuote" validate:"omitempty,max=500"`
}

// HabitResponse is a habit enriched with its computed statistics.
type HabitResponse struct {
	ID                  string    `json:"id"`
	Name                string    `json:"name"`
	Icon                string    `json:"icon"`
	Frequency           Frequency `json:"frequency"`
	GoalPerWeek         int       `json:"goalPerWeek"`
	ReminderTime        *string   `json:"reminderTime"`
	MotivationalQuote   *string   `json:"motivationalQuote"`
	CurrentStreak       int       `json:"currentStreak"`
	CompletionsThisWeek int       `json:"completionsThisWeek"`
}

// CompletionRequest is the optional body of POST /api/habits/{id}/complete.
// Date is a calendar date formatted as YYYY-MM-DD.
type CompletionRequest struct {
	Date string `json:"date"`
}

// HabitBreakdownItem is one habit's row in the overview.
type HabitBreakdownItem struct {
	HabitID              string  `json:"habitId"`
	Name                 string  `json:"name"`
	Icon                 string  `json:"icon"`
	CompletedDays        int     `json:"completedDays"`
	Streak               int     `json:"streak"`
	CompletionPercentage float64 `json:"completionPercentage"`
}

// OverviewStats aggregates statistics across all active habits of a user.
type OverviewStats struct {
	TotalHabits      int64                `json:"totalHabits"`
	TotalCompletions int64                `json:"totalCompletions"`
	LongestStreak    int                  `json:"longestStreak"`
	HabitBreakdown   []HabitBreakdownItem `json:"habitBreakdown"`
}
