package handler

import (
	"errors"
	"net/http"

	"github.com/abdusco/shortreg/internal/auth"
	"github.com/labstack/echo/v4"
)

type AuthHandler struct {
	authenticator *auth.Authenticator
}

func NewAuthHandler(authenticator *auth.Authenticator) *AuthHandler {
	return &AuthHandler{authenticator: authenticator}
}

// Login handles POST /login - validates credentials and sets the session cookie
func (h *AuthHandler) Login(c echo.Context) error {
	var req auth.Credentials
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	cookie, err := h.authenticator.Login(req)
	if errors.Is(err, auth.ErrUnauthorized) {
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid credentials")
	}
	if err != nil {
		return err
	}
	cookie.Secure = c.IsTLS()
	c.SetCookie(cookie)

	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Logout handles GET /logout - clears the session cookie
func (h *AuthHandler) Logout(c echo.Context) error {
	c.SetCookie(auth.ExpireCookie())
	return c.NoContent(http.StatusNoContent)
}
