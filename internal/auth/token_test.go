package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "test-secret-key"

func TestGenerateAndValidateToken(t *testing.T) {
	svc := NewService(testSecret, time.Hour)

	token, err := svc.GenerateToken(42, "dev@example.com")
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	claims, err := svc.ValidateToken(token)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}
	if claims.UserID != 42 || claims.Email != "dev@example.com" {
		t.Errorf("claims = %+v", claims)
	}
	if claims.Subject != "42" || claims.Issuer != Issuer {
		t.Errorf("registered claims = %+v", claims.RegisteredClaims)
	}
	if svc.Expiry() != time.Hour {
		t.Errorf("Expiry() = %v", svc.Expiry())
	}
}

func TestValidateToken_Rejects(t *testing.T) {
	good, err := GenerateToken(7, "", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	expired, err := GenerateToken(7, "", testSecret, -time.Minute)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		UserID: 7,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "someone-else",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	noUser, err := GenerateToken(0, "", testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateToken: %v", err)
	}

	tests := []struct {
		name   string
		token  string
		secret string
	}{
		{"wrong secret", good, "other-secret"},
		{"expired", expired, testSecret},
		{"foreign issuer", foreign, testSecret},
		{"missing user", noUser, testSecret},
		{"garbage", "not.a.token", testSecret},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ValidateToken(tt.token, tt.secret); !errors.Is(err, ErrInvalidToken) {
				t.Errorf("ValidateToken error = %v, want ErrInvalidToken", err)
			}
		})
	}
}

func TestMissingSecret(t *testing.T) {
	if _, err := GenerateToken(1, "", "", time.Hour); !errors.Is(err, ErrMissingKey) {
		t.Errorf("GenerateToken without secret = %v", err)
	}
	if _, err := ValidateToken("x", ""); !errors.Is(err, ErrMissingKey) {
		t.Errorf("ValidateToken without secret = %v", err)
	}
}
