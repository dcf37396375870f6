package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/form3tech-oss/jwt-go"
	"github.com/jghoshh/habitsync/backend/models"
	storage "github.com/jghoshh/habitsync/backend/storage/persistent"
	"github.com/jghoshh/habitsync/lib/logging"
	"github.com/jghoshh/habitsync/lib/utils"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is the lifetime of a session token when none is configured.
const DefaultTokenTTL = 24 * time.Hour

// Service registers and authenticates users and issues their session tokens.
type Service struct {
	// store holds the user records, keyed by email.
	store storage.StorageInterface
	// signingKey is used for signing and verifying JWT tokens.
	signingKey []byte
	// tokenTTL is how long an issued token stays valid.
	tokenTTL time.Duration
	// now returns the current time; replaced in tests.
	now func() time.Time
}

// NewService creates the authentication service.
//
// It accepts three arguments:
// - store: The storage backend holding user records.
// - signingKey: The key used to sign JWT tokens.
// - tokenTTL: The lifetime of issued tokens. Zero means DefaultTokenTTL.
func NewService(store storage.StorageInterface, signingKey string, tokenTTL time.Duration) *Service {
	if tokenTTL <= 0 {
		tokenTTL = DefaultTokenTTL
	}
	return &Service{
		store:      store,
		signingKey: []byte(signingKey),
		tokenTTL:   tokenTTL,
		now:        time.Now,
	}
}

// CreateAuthToken creates a signed JWT bound to the user's email.
//
// The token carries the email, the issue time and an expiration time.
func (s *Service) CreateAuthToken(email string) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(s.tokenTTL).Unix(),
	}

	newToken := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := newToken.SignedString(s.signingKey)
	if err != nil {
		return "", errors.New("failed to create auth token")
	}

	return signedToken, nil
}

// ParseAuthToken verifies a token and returns the email it is bound to.
//
// Expired tokens are reported as models.ErrTokenExpired; any other invalid token as
// models.ErrUnauthorized.
func (s *Service) ParseAuthToken(tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.signingKey, nil
	})

	if err != nil {
		var ve *jwt.ValidationError
		if errors.As(err, &ve) && ve.Errors&jwt.ValidationErrorExpired != 0 {
			return "", models.ErrTokenExpired
		}
		return "", fmt.Errorf("%v: %w", err, models.ErrUnauthorized)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token: %w", models.ErrUnauthorized)
	}

	email, ok := claims["email"].(string)
	if !ok || email == "" {
		return "", fmt.Errorf("token has no email claim: %w", models.ErrUnauthorized)
	}
	return email, nil
}

// Register creates a new user account.
//
// It validates the name, email and password, rejects an email that is already registered,
// hashes the password with bcrypt, stores the user and issues a token for it.
func (s *Service) Register(ctx context.Context, request models.RegisterRequest) (*models.AuthResponse, error) {
	name := strings.TrimSpace(request.Name)
	email := utils.NormalizeEmail(request.Email)

	if len(name) < 2 {
		return nil, fmt.Errorf("name must be at least 2 characters: %w", models.ErrInvalidInput)
	}

	if !utils.ValidateEmail(email) {
		return nil, fmt.Errorf("invalid email format: %w", models.ErrInvalidInput)
	}

	if !utils.ValidatePassword(request.Password) {
		return nil, fmt.Errorf("password must be at least 8 characters and contain both letters and numbers: %w", models.ErrInvalidInput)
	}

	existing, err := s.store.FindUserByEmail(ctx, email)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return nil, err
	}
	if existing != nil {
		return nil, fmt.Errorf("email already in use: %w", models.ErrConflict)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(request.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user, err := s.store.AddUser(ctx, &models.User{
		Name:         name,
		Email:        email,
		PasswordHash: string(hashedPassword),
		CreatedAt:    s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	token, err := s.CreateAuthToken(user.Email)
	if err != nil {
		return nil, err
	}

	logging.Info().Str("user", user.ID.Hex()).Msg("user registered")
	return newAuthResponse(user, token), nil
}

// Login authenticates a user by email and password and issues a fresh token.
//
// An unknown email yields models.ErrNotFound and a wrong password models.ErrUnauthorized.
func (s *Service) Login(ctx context.Context, request models.LoginRequest) (*models.AuthResponse, error) {
	user, err := s.store.FindUserByEmail(ctx, utils.NormalizeEmail(request.Email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("user not found: %w", models.ErrNotFound)
		}
		return nil, err
	}

	err = bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(request.Password))
	if err != nil {
		return nil, fmt.Errorf("invalid credentials: %w", models.ErrUnauthorized)
	}

	token, err := s.CreateAuthToken(user.Email)
	if err != nil {
		return nil, err
	}

	return newAuthResponse(user, token), nil
}

func newAuthResponse(user *models.User, token string) *models.AuthResponse {
	return &models.AuthResponse{
		ID:    user.ID.Hex(),
		Name:  user.Name,
		Email: user.Email,
		Token: token,
	}
}
