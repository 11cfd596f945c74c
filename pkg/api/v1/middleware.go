package apiv1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Gabiro3/blimp2/pkg/auth"
)

const userIDKey = "user_id"

// NewUserMiddleware resolves the user a request acts for. User tokens act for
// themselves; the admin token names the user with ?user_id=.
func NewUserMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userID, err := auth.ResolveUserID(c.Request().Context(), c.QueryParam(userIDKey))
			if err != nil {
				code := http.StatusUnauthorized
				if errors.Is(err, auth.ErrForbidden) {
					code = http.StatusForbidden
				}
				return ErrorResponse(c, code, err.Error())
			}
			c.Set(userIDKey, userID)
			return next(c)
		}
	}
}

// RequireAdmin middleware requires the admin token.
func RequireAdmin() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !auth.IsAdmin(c.Request().Context()) {
				return ErrorResponse(c, http.StatusForbidden, "admin access required")
			}
			return next(c)
		}
	}
}

func currentUser(c echo.Context) string {
	id, _ := c.Get(userIDKey).(string)
	return id
}
