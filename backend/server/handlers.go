package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/jghoshh/habitsync/backend/models"
	"github.com/jghoshh/habitsync/backend/queue"
	"github.com/jghoshh/habitsync/lib/logging"
	"github.com/jghoshh/habitsync/lib/utils"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// maxBodyBytes caps the size of JSON request bodies.
const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error string `json:"error"`
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeText(w, http.StatusOK, "ok")
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var request models.RegisterRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, err)
		return
	}

	response, err := s.auth.Register(r.Context(), request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var request models.LoginRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, err)
		return
	}

	response, err := s.auth.Login(r.Context(), request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleListHabits(w http.ResponseWriter, r *http.Request) {
	list, err := s.habits.ListHabits(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleCreateHabit(w http.ResponseWriter, r *http.Request) {
	var request models.HabitRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, err)
		return
	}

	response, err := s.habits.CreateHabit(r.Context(), currentUser(r), request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleUpdateHabit(w http.ResponseWriter, r *http.Request) {
	var request models.HabitRequest
	if err := decodeJSON(w, r, &request); err != nil {
		writeError(w, err)
		return
	}

	response, err := s.habits.UpdateHabit(r.Context(), currentUser(r), mux.Vars(r)["id"], request)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleDeleteHabit(w http.ResponseWriter, r *http.Request) {
	if err := s.habits.DeleteHabit(r.Context(), currentUser(r), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleCompleteHabit accepts an empty body (complete today) or {"date": "YYYY-MM-DD"}.
func (s *Server) handleCompleteHabit(w http.ResponseWriter, r *http.Request) {
	var request models.CompletionRequest
	if err := decodeJSON(w, r, &request); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, err)
		return
	}

	var date *time.Time
	if request.Date != "" {
		parsed, err := utils.ParseDate(request.Date)
		if err != nil {
			writeError(w, fmt.Errorf("date must be formatted as YYYY-MM-DD: %w", models.ErrInvalidInput))
			return
		}
		date = &parsed
	}

	response, err := s.habits.CompleteHabit(r.Context(), currentUser(r), mux.Vars(r)["id"], date)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

// handleTestNotification queues a reminder for the current user when a broker is
// configured. The response is the same either way.
func (s *Server) handleTestNotification(w http.ResponseWriter, r *http.Request) {
	user := currentUser(r)

	if s.notifier != nil {
		list, err := s.habits.ListHabits(r.Context(), user)
		if err != nil {
			writeError(w, err)
			return
		}

		names := make([]string, 0, len(list))
		for _, habit := range list {
			names = append(names, habit.Name)
		}

		message := &queue.NotificationMessage{
			Id:     primitive.NewObjectID().Hex(),
			To:     user.Email,
			Name:   user.Name,
			Habits: names,
		}
		if err := s.notifier.PublishNotification(message); err != nil {
			writeError(w, fmt.Errorf("failed to publish notification: %w", err))
			return
		}
		logging.Info().Str("user", user.ID.Hex()).Str("id", message.Id).Msg("test notification queued")
	}

	writeText(w, http.StatusOK, "Notification test triggered")
}

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	overview, err := s.stats.GetOverview(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// decodeJSON reads the request body into v. An empty body is reported as io.EOF;
// anything else that is not valid JSON is models.ErrInvalidInput.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return err
		}
		return fmt.Errorf("malformed request body: %v: %w", err, models.ErrInvalidInput)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error().Err(err).Msg("failed to write response")
	}
}

func writeText(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, text)
}

func writeErrorMessage(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// writeError maps service errors onto status codes. Unknown errors are logged
// and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		logging.Error().Err(err).Msg("request failed")
		writeErrorMessage(w, status, "Internal server error")
		return
	}
	if errors.Is(err, io.EOF) {
		err = fmt.Errorf("request body is required: %w", models.ErrInvalidInput)
	}
	writeErrorMessage(w, status, err.Error())
}

func statusOf(err error) int {
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, models.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrTokenExpired), errors.Is(err, models.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, models.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
