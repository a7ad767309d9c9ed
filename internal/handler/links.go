package handler

import (
	"net/http"
	"time"

	"github.com/abdusco/shortreg/internal"
	"github.com/abdusco/shortreg/internal/service"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"
	"github.com/samber/lo"
)

type LinkHandler struct {
	links *service.LinkService
}

func NewLinkHandler(links *service.LinkService) *LinkHandler {
	return &LinkHandler{links: links}
}

type CreateLinkRequest struct {
	URL  string `json:"url"`
	Slug string `json:"slug"`
}

type LinkResponse struct {
	Slug      string    `json:"slug"`
	URL       string    `json:"url"`
	Clicks    int64     `json:"clicks"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreateLinkResponse struct {
	Link LinkResponse `json:"link"`
}

type ListLinksResponse struct {
	Links []LinkResponse `json:"links"`
}

func toResponse(link *internal.ShortLink) LinkResponse {
	return LinkResponse{
		Slug:      link.Slug,
		URL:       link.TargetURL,
		Clicks:    link.Clicks,
		CreatedAt: link.CreatedAt,
		UpdatedAt: link.UpdatedAt,
	}
}

func (h *LinkHandler) CreateLink(c echo.Context) error {
	ctx := c.Request().Context()

	var req CreateLinkRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request")
	}

	link, err := h.links.Create(ctx, req.URL, req.Slug)
	if err != nil {
		return toHTTPError(err)
	}

	return c.JSON(http.StatusCreated, CreateLinkResponse{Link: toResponse(link)})
}

func (h *LinkHandler) GetLink(c echo.Context) error {
	link, err := h.links.Get(c.Request().Context(), c.Param("slug"))
	if err != nil {
		return toHTTPError(err)
	}
	return c.JSON(http.StatusOK, CreateLinkResponse{Link: toResponse(link)})
}

func (h *LinkHandler) ListLinks(c echo.Context) error {
	links, err := h.links.List(c.Request().Context())
	if err != nil {
		return toHTTPError(err)
	}

	resp := lo.Map(links, func(link *internal.ShortLink, _ int) LinkResponse {
		return toResponse(link)
	})
	return c.JSON(http.StatusOK, ListLinksResponse{Links: resp})
}

func (h *LinkHandler) DeleteLink(c echo.Context) error {
	if err := h.links.Delete(c.Request().Context(), c.Param("slug")); err != nil {
		return toHTTPError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *LinkHandler) Redirect(c echo.Context) error {
	slug := c.Param("slug")

	target, err := h.links.Resolve(c.Request().Context(), slug)
	if err != nil {
		return toHTTPError(err)
	}

	log.Info().Str("slug", slug).Str("ip", c.RealIP()).Msg("redirecting link")
	return c.Redirect(http.StatusFound, target)
}
