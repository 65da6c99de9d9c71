package auth

import (
	"time"
)

// Service issues and checks the bearer tokens that identify the acting
// user. There is no login flow; tokens are minted by operators.
type Service struct {
	jwtSecret string
	expiry    time.Duration
}

// NewService creates a new auth service
func NewService(jwtSecret string, expiry time.Duration) *Service {
	return &Service{
		jwtSecret: jwtSecret,
		expiry:    expiry,
	}
}

// GenerateToken creates a token for a user using service config
func (s *Service) GenerateToken(userID int64, email string) (string, error) {
	return GenerateToken(userID, email, s.jwtSecret, s.expiry)
}

// ValidateToken validates a token and returns its claims
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(tokenString, s.jwtSecret)
}

// Expiry is the lifetime of newly issued tokens
func (s *Service) Expiry() time.Duration {
	return s.expiry
}
