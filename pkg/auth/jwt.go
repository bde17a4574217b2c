package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// JWTValidator validates JWT bearer tokens issued by an external
// identity provider. It fetches and caches the provider's JWKS (JSON Web
// Key Set), refreshing it periodically to pick up key rotation.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
}

// NewJWTValidator creates a validator bound to the given JWKS endpoint,
// issuer and audience. It performs an initial fetch so misconfiguration
// (unreachable JWKS URL, etc.) surfaces at startup rather than on the
// first request.
func NewJWTValidator(ctx context.Context, jwksURL, issuer, audience string) (*JWTValidator, error) {
	cache := jwk.NewCache(ctx)

	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(15*time.Minute)); err != nil {
		return nil, fmt.Errorf("auth: register jwks url: %w", err)
	}
	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("auth: fetch jwks from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
	}, nil
}

// ValidateToken verifies a JWT's signature against the cached JWKS and
// checks expiration, issuer and audience, returning the extracted claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("auth: get jwks: %w", err)
	}

	token, err := jwt.Parse(
		[]byte(tokenString),
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithIssuer(v.issuer),
		jwt.WithAudience(v.audience),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidToken, err)
	}

	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	if email, ok := token.Get("email"); ok {
		if s, ok := email.(string); ok {
			claims.Email = s
		}
	}
	if role, ok := token.Get("role"); ok {
		if s, ok := role.(string); ok {
			claims.Role = s
		}
	}
	if tenantID, ok := token.Get("tenant_id"); ok {
		if s, ok := tenantID.(string); ok {
			claims.TenantID = s
		}
	}

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, _ := pair.Key.(string)
		switch key {
		case "sub", "email", "role", "tenant_id", "iss", "aud", "exp", "iat", "nbf":
		default:
			claims.Custom[key] = pair.Value
		}
	}

	return claims, nil
}

// Close releases resources held by the validator. The JWKS refresh
// goroutine stops when the context passed to NewJWTValidator is canceled.
func (v *JWTValidator) Close() {}
