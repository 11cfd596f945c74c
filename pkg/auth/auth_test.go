package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gabiro3/blimp2/pkg/types"
)

func TestIssueAndValidate(t *testing.T) {
	v := NewJWTValidator("secret", "admin-token")

	token, err := v.Issue("user-1", "ada@example.com", time.Hour)
	require.NoError(t, err)

	info, err := v.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, types.TokenTypeUser, info.TokenType)
	assert.Equal(t, "user-1", info.UserID)
	assert.Equal(t, "ada@example.com", info.Email)

	assert.True(t, v.ValidateAdminToken("admin-token"))
	assert.False(t, v.ValidateAdminToken(""))
	assert.False(t, NewJWTValidator("secret", "").ValidateAdminToken(""))
}

func TestValidateRejects(t *testing.T) {
	v := NewJWTValidator("secret", "")

	t.Run("other secret", func(t *testing.T) {
		token, err := NewJWTValidator("other", "").Issue("user-1", "", time.Hour)
		require.NoError(t, err)
		_, err = v.ValidateToken(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		token, err := v.Issue("user-1", "", time.Minute)
		require.NoError(t, err)
		v.now = func() time.Time { return time.Now().Add(time.Hour) }
		defer func() { v.now = time.Now }()
		_, err = v.ValidateToken(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := v.ValidateToken(context.Background(), "not.a.jwt")
		assert.Error(t, err)
	})

	t.Run("no subject", func(t *testing.T) {
		_, err := v.Issue("", "", time.Hour)
		assert.Error(t, err)
	})
}

func TestResolveUserID(t *testing.T) {
	user := WithAuthInfo(context.Background(), &types.AuthInfo{TokenType: types.TokenTypeUser, UserID: "u1"})
	admin := WithAuthInfo(context.Background(), &types.AuthInfo{TokenType: types.TokenTypeAdmin})

	id, err := ResolveUserID(user, "")
	require.NoError(t, err)
	assert.Equal(t, "u1", id)

	_, err = ResolveUserID(user, "u2")
	assert.ErrorIs(t, err, ErrForbidden)

	id, err = ResolveUserID(admin, "u2")
	require.NoError(t, err)
	assert.Equal(t, "u2", id)

	_, err = ResolveUserID(admin, "")
	assert.ErrorIs(t, err, ErrAuthRequired)

	_, err = ResolveUserID(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrAuthRequired)
}

func TestHTTPMiddleware(t *testing.T) {
	v := NewJWTValidator("secret", "admin-token")
	token, err := v.Issue("user-1", "", time.Hour)
	require.NoError(t, err)

	e := echo.New()
	e.Use(HTTPMiddleware(v))
	e.GET("/me", WithAuth(func(c echo.Context) error {
		return c.String(http.StatusOK, UserID(c.Request().Context()))
	}))
	e.GET("/admin", WithAdmin(func(c echo.Context) error { return c.NoContent(http.StatusNoContent) }))

	do := func(path, bearer string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if bearer != "" {
			req.Header.Set("Authorization", "Bearer "+bearer)
		}
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, req)
		return rec
	}

	rec := do("/me", token)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, do("/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do("/me", "bogus").Code)
	assert.Equal(t, http.StatusForbidden, do("/admin", token).Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", "admin-token").Code)
}
