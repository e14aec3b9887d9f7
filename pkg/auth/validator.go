package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"

	"github.com/shambu-network/shambu/pkg/config"
)

// TokenValidator validates a JWT token string and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
	// Verifies reports whether signatures are checked.
	Verifies() bool
	Close()
}

// Validator checks tokens against a JWKS key set or an HS256 secret.
type Validator struct {
	cfg    config.AuthConfig
	jwks   keyfunc.Keyfunc
	cancel context.CancelFunc
	parser *jwt.Parser
}

// NewValidator builds a validator from cfg. With verification enabled and a
// JWKS URL configured the key set is fetched before returning.
func NewValidator(ctx context.Context, cfg config.AuthConfig) (*Validator, error) {
	v := &Validator{cfg: cfg}

	opts := []jwt.ParserOption{jwt.WithExpirationRequired()}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	if cfg.Audience != "" {
		opts = append(opts, jwt.WithAudience(cfg.Audience))
	}

	if !cfg.EnableVerification {
		v.parser = jwt.NewParser(jwt.WithoutClaimsValidation())
		return v, nil
	}

	switch {
	case cfg.JWKSURL != "":
		jwksCtx, cancel := context.WithCancel(ctx)
		jwks, err := keyfunc.NewDefaultCtx(jwksCtx, []string{cfg.JWKSURL})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", cfg.JWKSURL, err)
		}
		v.jwks = jwks
		v.cancel = cancel
		opts = append(opts, jwt.WithValidMethods([]string{"RS256", "RS384", "RS512", "ES256", "ES384", "EdDSA"}))
	case cfg.JWTSecret != "":
		opts = append(opts, jwt.WithValidMethods([]string{"HS256"}))
	default:
		return nil, errors.New("token verification enabled without jwks_url or AUTH_JWT_SECRET")
	}

	v.parser = jwt.NewParser(opts...)
	return v, nil
}

// ValidateToken validates a token. With verification disabled the token is
// only parsed.
func (v *Validator) ValidateToken(tokenString string) (*Claims, error) {
	if !v.cfg.EnableVerification {
		token, _, err := v.parser.ParseUnverified(tokenString, &Claims{})
		if err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
		return claimsOf(token)
	}

	token, err := v.parser.ParseWithClaims(tokenString, &Claims{}, v.keyFor)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	return claimsOf(token)
}

func (v *Validator) keyFor(token *jwt.Token) (any, error) {
	if v.jwks != nil {
		return v.jwks.Keyfunc(token)
	}
	if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
		return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
	}
	return []byte(v.cfg.JWTSecret), nil
}

func claimsOf(token *jwt.Token) (*Claims, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

func (v *Validator) Verifies() bool { return v.cfg.EnableVerification }

// Close stops the JWKS background refresh.
func (v *Validator) Close() {
	if v.cancel != nil {
		v.cancel()
	}
}

var _ TokenValidator = (*Validator)(nil)
