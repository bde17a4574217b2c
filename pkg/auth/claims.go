package auth

// Claims represents the validated claims extracted from a JWT.
type Claims struct {
	// Subject is the unique identifier for the caller (sub claim).
	Subject string `json:"sub"`

	// Email is the caller's email address, if provided.
	Email string `json:"email,omitempty"`

	// Role is the caller's role, used for RequireRole authorization.
	Role string `json:"role,omitempty"`

	// TenantID supports multi-tenant deployments.
	TenantID string `json:"tenant_id,omitempty"`

	// Custom holds claims not mapped to one of the fields above.
	Custom map[string]any `json:"-"`
}

// GetClaim retrieves a custom claim by key.
func (c *Claims) GetClaim(key string) (any, bool) {
	if c.Custom == nil {
		return nil, false
	}
	val, ok := c.Custom[key]
	return val, ok
}

// GetStringClaim retrieves a custom claim as a string, returning "" if
// absent or not a string.
func (c *Claims) GetStringClaim(key string) string {
	if val, ok := c.GetClaim(key); ok {
		if s, ok := val.(string); ok {
			return s
		}
	}
	return ""
}

// HasRole checks if the caller has a specific role.
func (c *Claims) HasRole(role string) bool {
	return c.Role == role
}

// HasAnyRole checks if the caller has any of the specified roles.
func (c *Claims) HasAnyRole(roles ...string) bool {
	for _, role := range roles {
		if c.Role == role {
			return true
		}
	}
	return false
}
