package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/jghoshh/habitsync/backend/models"
	"github.com/jghoshh/habitsync/backend/queue"
	"github.com/jghoshh/habitsync/backend/server/auth"
	contextKey "github.com/jghoshh/habitsync/backend/server/context_key"
	"github.com/jghoshh/habitsync/backend/server/habits"
	"github.com/jghoshh/habitsync/backend/server/metrics"
	"github.com/jghoshh/habitsync/backend/server/stats"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/jghoshh/habitsync/lib/logging"
)

// ShutdownTimeout bounds how long Start waits for in-flight requests once its context ends.
const ShutdownTimeout = 10 * time.Second

// Notifier publishes reminder notifications. *queue.Queue implements it.
type Notifier interface {
	PublishNotification(msg *queue.NotificationMessage) error
}

// Server holds the services behind the HTTP API.
type Server struct {
	auth   *auth.Service
	habits *habits.Service
	stats  *stats.Service
	store  storage.StorageInterface
	// notifier is nil when no message broker is configured.
	notifier Notifier
}

// New creates a Server. notifier may be nil.
func New(store storage.StorageInterface, authService *auth.Service, habitService *habits.Service, statsService *stats.Service, notifier Notifier) *Server {
	return &Server{
		auth:     authService,
		habits:   habitService,
		stats:    statsService,
		store:    store,
		notifier: notifier,
	}
}

// jwtMiddleware performs JWT validation.
//
// It reads the bearer token from the Authorization header. A valid token puts the
// email it is bound to into the request context under contextKey.EmailKey; a token
// that fails to parse (or has expired) puts the error under contextKey.JwtErrorKey.
//
// The middleware never stops the request itself. It is up to the next handler to
// interpret the context and react accordingly.
func (s *Server) jwtMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			next.ServeHTTP(w, r)
			return
		}

		splitToken := strings.SplitN(authHeader, "Bearer ", 2)
		if len(splitToken) != 2 || splitToken[1] == "" {
			ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, fmt.Errorf("malformed authorization header: %w", models.ErrUnauthorized))
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		email, err := s.auth.ParseAuthToken(strings.TrimSpace(splitToken[1]))
		if err != nil {
			logging.Debug().Err(err).Msg("rejected bearer token")
			ctx := context.WithValue(r.Context(), contextKey.JwtErrorKey, err)
			next.ServeHTTP(w, r.WithContext(ctx))
			return
		}

		ctx := context.WithValue(r.Context(), contextKey.EmailKey, email)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// currentUserMiddleware resolves the authenticated email into a user record and
// stores it under contextKey.UserKey. Requests without a usable token get a 401,
// tokens whose user no longer exists a 404.
func (s *Server) currentUserMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err, ok := r.Context().Value(contextKey.JwtErrorKey).(error); ok {
			writeError(w, err)
			return
		}

		email, ok := r.Context().Value(contextKey.EmailKey).(string)
		if !ok || email == "" {
			writeError(w, fmt.Errorf("missing bearer token: %w", models.ErrUnauthorized))
			return
		}

		user, err := s.store.FindUserByEmail(r.Context(), email)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				writeErrorMessage(w, http.StatusNotFound, "User not found")
				return
			}
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), contextKey.UserKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// authenticated wraps a handler that needs the current user.
func (s *Server) authenticated(h http.HandlerFunc) http.Handler {
	return s.jwtMiddleware(s.currentUserMiddleware(h))
}

// currentUser returns the user stored by currentUserMiddleware.
func currentUser(r *http.Request) *models.User {
	user, _ := r.Context().Value(contextKey.UserKey).(*models.User)
	return user
}

// recoveryMiddleware recovers from panics and provides a generic error message to the client.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				logging.Error().Interface("panic", err).Str("path", r.URL.Path).Msg("panic recovered")
				writeErrorMessage(w, http.StatusInternalServerError, "Internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// Router builds the route table wrapped in the CORS and access log middlewares.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()
	r.Use(metrics.Middleware, recoveryMiddleware)

	r.HandleFunc("/healthz", handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)

	api.Handle("/habits", s.authenticated(s.handleListHabits)).Methods(http.MethodGet)
	api.Handle("/habits", s.authenticated(s.handleCreateHabit)).Methods(http.MethodPost)
	api.Handle("/habits/{id}", s.authenticated(s.handleUpdateHabit)).Methods(http.MethodPut)
	api.Handle("/habits/{id}", s.authenticated(s.handleDeleteHabit)).Methods(http.MethodDelete)
	api.Handle("/habits/{id}/complete", s.authenticated(s.handleCompleteHabit)).Methods(http.MethodPost)

	api.Handle("/profile", s.authenticated(s.handleProfile)).Methods(http.MethodGet)
	api.Handle("/profile/test-notification", s.authenticated(s.handleTestNotification)).Methods(http.MethodPost)

	api.Handle("/stats/overview", s.authenticated(s.handleOverview)).Methods(http.MethodGet)

	corsOrigins := handlers.AllowedOrigins([]string{"*"})
	corsMethods := handlers.AllowedMethods([]string{"GET", "HEAD", "POST", "PUT", "DELETE", "OPTIONS"})
	corsHeaders := handlers.AllowedHeaders([]string{"X-Requested-With", "Content-Type", "Authorization"})
	corsRouter := handlers.CORS(corsOrigins, corsMethods, corsHeaders)(r)

	return handlers.LoggingHandler(logging.Writer("http"), corsRouter)
}

// Start serves the API on addr until ctx is done, then shuts the server down
// gracefully, waiting at most ShutdownTimeout for in-flight requests.
func (s *Server) Start(ctx context.Context, addr string) error {
	server := &http.Server{
		Handler:      s.Router(),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logging.Info().Str("addr", addr).Msg("http server listening")
		errc <- server.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()

	logging.Info().Msg("http server shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http server shutdown: %w", err)
	}
	return nil
}
