package apiv1

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Gabiro3/blimp2/pkg/types"
)

type ConnectionStore interface {
	ConnectedApps(ctx context.Context, userID string) ([]string, error)
	StoreCredential(ctx context.Context, userID, app string, creds *types.Credential) error
	Disconnect(ctx context.Context, userID, app string) error
}

type ConnectionsGroup struct {
	g     *echo.Group
	store ConnectionStore
}

func NewConnectionsGroup(g *echo.Group, store ConnectionStore) *ConnectionsGroup {
	cg := &ConnectionsGroup{g: g, store: store}
	cg.g.GET("", cg.List)
	cg.g.PUT("/:app", cg.Store)
	cg.g.DELETE("/:app", cg.Delete)
	return cg
}

type StoreCredentialRequest struct {
	AccessToken  string            `json:"access_token,omitempty"`
	RefreshToken string            `json:"refresh_token,omitempty"`
	APIKey       string            `json:"api_key,omitempty"`
	TokenType    string            `json:"token_type,omitempty"`
	ExpiresIn    int               `json:"expires_in,omitempty"`
	Scope        string            `json:"scope,omitempty"`
	Extra        map[string]string `json:"extra,omitempty"`
}

func (cg *ConnectionsGroup) List(c echo.Context) error {
	apps, err := cg.store.ConnectedApps(c.Request().Context(), currentUser(c))
	if err != nil {
		return ErrorFrom(c, err)
	}
	if apps == nil {
		apps = []string{}
	}
	return SuccessResponse(c, map[string]any{"apps": apps})
}

func (cg *ConnectionsGroup) Store(c echo.Context) error {
	app, ok := knownApp(c.Param("app"))
	if !ok {
		return ErrorResponse(c, http.StatusBadRequest, "unknown app: "+c.Param("app"))
	}

	var req StoreCredentialRequest
	if err := c.Bind(&req); err != nil {
		return ErrorResponse(c, http.StatusBadRequest, "invalid request")
	}
	if req.AccessToken == "" && req.APIKey == "" {
		return ErrorResponse(c, http.StatusBadRequest, "access_token or api_key required")
	}

	creds := &types.Credential{
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		APIKey:       req.APIKey,
		TokenType:    req.TokenType,
		Scope:        req.Scope,
		Extra:        req.Extra,
	}
	if req.ExpiresIn > 0 {
		expiry := time.Now().Add(time.Duration(req.ExpiresIn) * time.Second)
		creds.ExpiresAt = &expiry
	}

	if err := cg.store.StoreCredential(c.Request().Context(), currentUser(c), app, creds); err != nil {
		return ErrorFrom(c, err)
	}
	return SuccessResponse(c, map[string]any{"app": app, "connected": true})
}

func (cg *ConnectionsGroup) Delete(c echo.Context) error {
	app, ok := knownApp(c.Param("app"))
	if !ok {
		return ErrorResponse(c, http.StatusBadRequest, "unknown app: "+c.Param("app"))
	}
	if err := cg.store.Disconnect(c.Request().Context(), currentUser(c), app); err != nil {
		return ErrorFrom(c, err)
	}
	return SuccessResponse(c, map[string]any{"app": app, "connected": false})
}

func knownApp(name string) (string, bool) {
	app := types.NormalizeAppName(name)
	return app, types.IsKnownApp(app)
}
