package types

import "time"

// Credential is the opaque token bundle passed to app function calls.
type Credential struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	ExpiresAt    *time.Time        `json:"expires_at,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

// Token returns the bearer value, falling back to the API key.
func (c *Credential) Token() string {
	if c == nil {
		return ""
	}
	if c.AccessToken != "" {
		return c.AccessToken
	}
	return c.APIKey
}

func (c *Credential) IsExpired(now time.Time) bool {
	return c != nil && c.ExpiresAt != nil && now.After(*c.ExpiresAt)
}
