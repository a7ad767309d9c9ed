package handler

import (
	"net/http"

	"github.com/abdusco/shortreg/internal/auth"
	"github.com/abdusco/shortreg/internal/service"
	"github.com/labstack/echo/v4"
)

// Register mounts all routes on e. The management API under /api requires
// admin authentication; redirects are public.
func Register(e *echo.Echo, links *service.LinkService, authenticator *auth.Authenticator) {
	authHandler := NewAuthHandler(authenticator)
	e.POST("/login", authHandler.Login)
	e.GET("/logout", authHandler.Logout)

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	linkHandler := NewLinkHandler(links)

	api := e.Group("/api", authenticator.Middleware())
	api.POST("/links", linkHandler.CreateLink)
	api.GET("/links", linkHandler.ListLinks)
	api.GET("/links/:slug", linkHandler.GetLink)
	api.DELETE("/links/:slug", linkHandler.DeleteLink)

	// Parameterized route (must be last)
	e.GET("/:slug", linkHandler.Redirect)
}
