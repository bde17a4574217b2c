package auth

import (
	"context"
	"fmt"
)

// Config holds the settings needed to construct a JWTValidator.
type Config struct {
	Enabled  bool
	JWKSURL  string
	Issuer   string
	Audience string
}

// NewValidatorFromConfig builds a JWTValidator from Config, returning a
// nil validator (and nil error) when authentication is disabled.
func NewValidatorFromConfig(ctx context.Context, cfg Config) (*JWTValidator, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.JWKSURL == "" {
		return nil, fmt.Errorf("auth: jwks_url is required when auth is enabled")
	}
	if cfg.Issuer == "" {
		return nil, fmt.Errorf("auth: issuer is required when auth is enabled")
	}

	validator, err := NewJWTValidator(ctx, cfg.JWKSURL, cfg.Issuer, cfg.Audience)
	if err != nil {
		return nil, fmt.Errorf("auth: create jwt validator: %w", err)
	}
	return validator, nil
}
