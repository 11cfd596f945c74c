package auth

import (
	"context"
	"errors"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type ctxKey int

const authInfoKey ctxKey = iota

var (
	ErrAuthRequired  = errors.New("authentication required")
	ErrAdminRequired = errors.New("admin access required")
	ErrForbidden     = errors.New("access denied")
)

// --- Context get/set ---

func WithAuthInfo(ctx context.Context, info *types.AuthInfo) context.Context {
	return context.WithValue(ctx, authInfoKey, info)
}

func AuthInfoFromContext(ctx context.Context) *types.AuthInfo {
	info, _ := ctx.Value(authInfoKey).(*types.AuthInfo)
	return info
}

// --- Authorization checks ---

func RequireAuth(ctx context.Context) error {
	if AuthInfoFromContext(ctx) == nil {
		return ErrAuthRequired
	}
	return nil
}

func RequireAdmin(ctx context.Context) error {
	if i := AuthInfoFromContext(ctx); i == nil || !i.IsAdmin() {
		return ErrAdminRequired
	}
	return nil
}

// ResolveUserID returns the user a request acts for. Users act for
// themselves; admins must name the user explicitly.
func ResolveUserID(ctx context.Context, explicit string) (string, error) {
	info := AuthInfoFromContext(ctx)
	if info == nil {
		return "", ErrAuthRequired
	}
	userID := explicit
	if userID == "" {
		userID = info.UserID
	}
	if userID == "" {
		return "", ErrAuthRequired
	}
	if !info.CanActAs(userID) {
		return "", ErrForbidden
	}
	return userID, nil
}

// --- Boolean checks ---

func IsAuthenticated(ctx context.Context) bool { return AuthInfoFromContext(ctx) != nil }
func IsAdmin(ctx context.Context) bool         { i := AuthInfoFromContext(ctx); return i != nil && i.IsAdmin() }

// --- Field accessors ---

func UserID(ctx context.Context) string {
	if i := AuthInfoFromContext(ctx); i != nil {
		return i.UserID
	}
	return ""
}

func Email(ctx context.Context) string {
	if i := AuthInfoFromContext(ctx); i != nil {
		return i.Email
	}
	return ""
}
