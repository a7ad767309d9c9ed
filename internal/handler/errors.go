package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/abdusco/shortreg/internal"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, internal.ErrInvalidURL), errors.Is(err, internal.ErrInvalidSlug):
		return http.StatusBadRequest
	case errors.Is(err, internal.ErrLinkNotFound):
		return http.StatusNotFound
	case errors.Is(err, internal.ErrSlugTaken):
		return http.StatusConflict
	case errors.Is(err, internal.ErrSlugSpaceExhausted):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// toHTTPError keeps the message of client facing errors and hides the
// details of everything else.
func toHTTPError(err error) error {
	code := statusFor(err)
	message := err.Error()
	if code == http.StatusInternalServerError {
		message = "internal server error"
	}
	return echo.NewHTTPError(code, message).SetInternal(err)
}

const notFoundPage = `<!DOCTYPE html>
<html>
<head>
	<meta charset="utf-8">
	<title>Link Not Found</title>
</head>
<body>
	<h1>Link Not Found</h1>
	<p>The short link you visited does not exist or has been removed.</p>
</body>
</html>
`

// ErrorHandler renders errors as {"error": message}. Browsers following a
// dead short link get an HTML page instead.
func ErrorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	message := "internal server error"
	isAPICall := strings.HasPrefix(c.Request().URL.Path, "/api/")

	var httpErr *echo.HTTPError
	if errors.As(err, &httpErr) {
		code = httpErr.Code
		if msg, ok := httpErr.Message.(string); ok {
			message = msg
		}
	}

	event := log.Warn()
	if code >= http.StatusInternalServerError {
		event = log.Error()
	}
	event.
		Int("code", code).
		Str("method", c.Request().Method).
		Str("path", c.Request().URL.Path).
		Err(err).
		Msg("http error")

	if c.Response().Committed {
		return
	}

	if !isAPICall && code == http.StatusNotFound && c.Request().Method == http.MethodGet {
		if err := c.HTML(code, notFoundPage); err != nil {
			log.Error().Err(err).Msg("failed to write error response")
		}
		return
	}

	if err := c.JSON(code, map[string]any{"error": message}); err != nil {
		log.Error().Err(err).Msg("failed to write error response")
	}
}
