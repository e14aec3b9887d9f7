// Package testhelpers provides utilities for testing shambu components.
package testhelpers

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret is the HS256 secret tokens from SignTestJWT are signed with.
const TestJWTSecret = "test-jwt-secret-at-least-32-bytes!!"

// SignTestJWT returns an HS256 token for sub valid for one hour.
func SignTestJWT(t *testing.T, sub, email string) string {
	t.Helper()
	now := time.Now()
	claims := jwt.MapClaims{
		"sub":  sub,
		"role": "authenticated",
		"iat":  now.Unix(),
		"exp":  now.Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(TestJWTSecret))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

// BearerTestJWT returns SignTestJWT with a "Bearer " prefix.
func BearerTestJWT(t *testing.T, sub, email string) string {
	return "Bearer " + SignTestJWT(t, sub, email)
}
