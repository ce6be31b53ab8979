// Package middleware provides authentication, logging, tracing and rate
// limiting middleware for the HTTP server.
package middleware

import (
	"errors"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"blogsphere/internal/config"
)

// UserIDLocal is the fiber locals key holding the session user id.
const UserIDLocal = "userID"

var cfg *config.Config

// InitMiddleware initializes authentication middleware with the given config.
func InitMiddleware(c *config.Config) {
	cfg = c
}

var (
	errMissingHeader = errors.New("Authorization header required")
	errHeaderFormat  = errors.New("Invalid authorization header format")
	errInvalidToken  = errors.New("Invalid or expired token")
	errSubject       = errors.New("Invalid user ID in token")
)

// UserID returns the authenticated user id, or uuid.Nil for anonymous
// requests.
func UserID(c *fiber.Ctx) uuid.UUID {
	if id, ok := c.Locals(UserIDLocal).(uuid.UUID); ok {
		return id
	}
	return uuid.Nil
}

// IssueToken signs a session token for userID.
func IssueToken(secret string, userID uuid.UUID, ttl time.Duration) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   userID.String(),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// parseToken validates tokenString and returns the user id in its subject.
func parseToken(tokenString string) (uuid.UUID, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fiber.NewError(fiber.StatusUnauthorized, "Invalid signing method")
		}
		return []byte(cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return uuid.Nil, errInvalidToken
	}

	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, errSubject
	}
	id, err := uuid.Parse(sub)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, errSubject
	}
	return id, nil
}

func bearerToken(header string) (string, error) {
	if header == "" {
		return "", errMissingHeader
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", errHeaderFormat
	}
	return parts[1], nil
}

func unauthorized(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": err.Error()})
}

// AuthRequired is a middleware that enforces authentication for protected routes.
func AuthRequired(c *fiber.Ctx) error {
	tokenString, err := bearerToken(c.Get("Authorization"))
	if err != nil {
		return unauthorized(c, err)
	}
	userID, err := parseToken(tokenString)
	if err != nil {
		return unauthorized(c, err)
	}
	c.Locals(UserIDLocal, userID)
	return c.Next()
}

// OptionalAuth identifies the viewer when a bearer token is sent and lets
// anonymous requests through. A token that is sent but invalid is rejected.
func OptionalAuth(c *fiber.Ctx) error {
	header := c.Get("Authorization")
	if header == "" {
		return c.Next()
	}
	return AuthRequired(c)
}

// WebSocketAuthRequired validates a token from the "token" query parameter,
// falling back to the Authorization header.
func WebSocketAuthRequired(c *fiber.Ctx) error {
	tokenString := c.Query("token")
	if tokenString == "" {
		var err error
		if tokenString, err = bearerToken(c.Get("Authorization")); err != nil {
			return unauthorized(c, err)
		}
	}
	userID, err := parseToken(tokenString)
	if err != nil {
		return unauthorized(c, err)
	}
	c.Locals(UserIDLocal, userID)
	return c.Next()
}
