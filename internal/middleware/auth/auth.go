package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/game_store/internal/models"
	"github.com/Skotchmaster/game_store/internal/tokens"
	"github.com/Skotchmaster/game_store/internal/transport"
)

const (
	CtxUserID = "user_id"
	CtxRole   = "role"
)

type Middleware struct {
	Tokens *tokens.Issuer
}

func New(iss *tokens.Issuer) *Middleware {
	return &Middleware{Tokens: iss}
}

type ValidatorFunc func(claims *tokens.AccessClaims) error

func (m *Middleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, nil)
}

func (m *Middleware) RequireAdmin(next echo.HandlerFunc) echo.HandlerFunc {
	return m.requireAuthWithValidator(next, func(claims *tokens.AccessClaims) error {
		if claims.Role != models.RoleAdmin {
			return forbidden("admin access required")
		}
		return nil
	})
}

func (m *Middleware) requireAuthWithValidator(next echo.HandlerFunc, validator ValidatorFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		raw := bearerToken(c.Request())
		if raw == "" {
			return unauthenticated("missing access token")
		}

		claims, err := m.Tokens.ParseAccess(raw)
		if err != nil || claims == nil {
			return unauthenticated("invalid or expired token")
		}
		userID, err := claims.UserID()
		if err != nil {
			return unauthenticated("token has no subject")
		}

		if validator != nil {
			if err := validator(claims); err != nil {
				return err
			}
		}

		c.Set(CtxUserID, userID)
		c.Set(CtxRole, claims.Role)
		return next(c)
	}
}

func unauthenticated(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, transport.ErrorBody{Message: msg, Code: "unauthenticated"})
}

func forbidden(msg string) *echo.HTTPError {
	return echo.NewHTTPError(http.StatusForbidden, transport.ErrorBody{Message: msg, Code: "forbidden"})
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get(echo.HeaderAuthorization)
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// UserID returns the caller set by RequireAuth, or 0.
func UserID(c echo.Context) uint {
	id, _ := c.Get(CtxUserID).(uint)
	return id
}

func Role(c echo.Context) string {
	role, _ := c.Get(CtxRole).(string)
	return role
}
