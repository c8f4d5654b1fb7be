// Package auth issues and validates the bearer tokens clinicians use on the
// private API.
package auth

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	apperrors "github.com/CarlosHonorato70/Sistema-de-Avaliacao-Psicologica/internal/errors"
)

// DefaultTTL is the lifetime of a token minted without an explicit TTL.
const DefaultTTL = 24 * time.Hour

// PsychologistIDKey is the gin context key holding the authenticated clinician.
const PsychologistIDKey = "psychologist_id"

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// TokenService signs and verifies HS256 tokens whose subject is a psychologist ID
type TokenService struct {
	secret []byte
	now    func() time.Time
}

// NewTokenService creates a token service for the given secret
func NewTokenService(secret string) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue mints a token for psychologistID. A non-positive ttl means DefaultTTL.
func (s *TokenService) Issue(psychologistID int64, ttl time.Duration) (string, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	now := s.now()
	claims := jwt.RegisteredClaims{
		Subject:   strconv.FormatInt(psychologistID, 10),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}

	return tokenString, nil
}

// Validate verifies tokenString and returns the psychologist ID it was issued for
func (s *TokenService) Validate(tokenString string) (int64, error) {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now), jwt.WithExpirationRequired())
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return 0, ErrInvalidToken
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: subject is not a psychologist id", ErrInvalidToken)
	}

	return id, nil
}

// Middleware rejects requests without a valid bearer token and stores the
// psychologist ID under PsychologistIDKey.
func Middleware(tokens *TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, found := strings.CutPrefix(header, "Bearer ")
		if !found || strings.TrimSpace(tokenString) == "" {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Authentication required", ErrMissingToken))
			return
		}

		id, err := tokens.Validate(strings.TrimSpace(tokenString))
		if err != nil {
			apperrors.Respond(c, apperrors.NewUnauthorizedError("Invalid or expired token", err))
			return
		}

		c.Set(PsychologistIDKey, id)
		c.Next()
	}
}

// PsychologistID returns the clinician stored by Middleware.
func PsychologistID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(PsychologistIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
