// Package contextKey holds the keys under which the server middlewares store
// request-scoped values.
package contextKey

type contextKey string

const (
	// EmailKey holds the email extracted from a valid bearer token.
	EmailKey contextKey = "email"
	// JwtErrorKey holds the error produced while parsing the bearer token.
	JwtErrorKey contextKey = "jwtError"
	// UserKey holds the *models.User the request acts for.
	UserKey contextKey = "user"
)
