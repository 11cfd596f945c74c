package types

// TokenType represents the type of authentication token.
type TokenType string

const (
	TokenTypeAdmin TokenType = "admin"
	TokenTypeUser  TokenType = "user"
)

// AuthInfo contains identity information for authenticated requests.
type AuthInfo struct {
	TokenType TokenType
	UserID    string
	Email     string
}

func (a *AuthInfo) IsAdmin() bool {
	return a != nil && a.TokenType == TokenTypeAdmin
}

func (a *AuthInfo) IsUser() bool {
	return a != nil && a.TokenType == TokenTypeUser && a.UserID != ""
}

// CanActAs reports whether the caller may operate on userID's data.
func (a *AuthInfo) CanActAs(userID string) bool {
	if a == nil {
		return false
	}
	if a.IsAdmin() {
		return true
	}
	return a.IsUser() && a.UserID == userID
}
