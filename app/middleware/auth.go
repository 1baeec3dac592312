package middleware

import (
	"net/http"
	"strings"

	"github.com/vibast-solutions/ms-go-accounts/app/service"
	"github.com/vibast-solutions/ms-go-accounts/app/types"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// Context keys set by RequireAuth.
const (
	ContextUserID     = "user_id"
	ContextUsername   = "username"
	ContextEmail      = "email"
	ContextIsVerified = "is_verified"
)

type accessTokenValidator interface {
	ValidateAccessToken(tokenString string) (*service.Claims, error)
}

type AuthMiddleware struct {
	accounts accessTokenValidator
}

func NewAuthMiddleware(accounts accessTokenValidator) *AuthMiddleware {
	return &AuthMiddleware{accounts: accounts}
}

func (m *AuthMiddleware) RequireAuth(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		authHeader := c.Request().Header.Get("Authorization")
		if authHeader == "" {
			logrus.Debug("Missing authorization header")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "missing authorization header"})
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			logrus.Debug("Invalid authorization header format")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid authorization header format"})
		}

		claims, err := m.accounts.ValidateAccessToken(parts[1])
		if err != nil {
			logrus.Debug("Invalid or expired access token")
			return c.JSON(http.StatusUnauthorized, types.ErrorResponse{Error: "invalid or expired token"})
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextIsVerified, claims.IsVerified)

		return next(c)
	}
}
