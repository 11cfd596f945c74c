package apiv1

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/Gabiro3/blimp2/pkg/auth"
	"github.com/Gabiro3/blimp2/pkg/types"
)

const (
	HttpServerBaseRoute string = "/api/v1"
	HttpServerRootRoute string = ""
)

func NewHTTPError(code int, message string) error {
	return echo.NewHTTPError(code, map[string]interface{}{
		"message": message,
	})
}

func HTTPBadRequest(message string) error {
	return NewHTTPError(http.StatusBadRequest, message)
}

func HTTPInternalServerError(message string) error {
	return NewHTTPError(http.StatusInternalServerError, message)
}

func HTTPConflict(message string) error {
	return NewHTTPError(http.StatusConflict, message)
}

func HTTPUnauthorized(message string) error {
	return NewHTTPError(http.StatusUnauthorized, message)
}

func HTTPForbidden(message string) error {
	return NewHTTPError(http.StatusForbidden, message)
}

func HTTPNotFound() error {
	return NewHTTPError(http.StatusNotFound, "")
}

// Response is a standard API response structure
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SuccessResponse returns a successful response
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// ErrorResponse returns an error response
func ErrorResponse(c echo.Context, code int, message string) error {
	return c.JSON(code, Response{
		Success: false,
		Error:   message,
	})
}

// StatusFor maps an error kind to the HTTP status returned for it.
func StatusFor(err error) int {
	switch types.ErrorKind(err) {
	case "not_connected", "missing_parameter", "invalid_parameter", "unsupported_operation":
		return http.StatusBadRequest
	case "missing_credentials":
		return http.StatusUnauthorized
	case "invalid_response":
		return http.StatusBadGateway
	case "not_configured":
		return http.StatusServiceUnavailable
	case "upstream_failure":
		var up *types.UpstreamFailureError
		if errors.As(err, &up) && up.IsTimeout() {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	if errors.Is(err, auth.ErrAuthRequired) {
		return http.StatusUnauthorized
	}
	if errors.Is(err, auth.ErrForbidden) {
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// ErrorFrom writes err as an error response. Internal errors are logged and
// replaced with a generic message.
func ErrorFrom(c echo.Context, err error) error {
	code := StatusFor(err)
	if code == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
		return ErrorResponse(c, code, "internal error")
	}
	return ErrorResponse(c, code, err.Error())
}
