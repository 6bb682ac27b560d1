package server

import (
	"net/http"
	"strings"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"

	"github.com/pagewright/pagewright/config"
	"github.com/pagewright/pagewright/internal/compose"
	"github.com/pagewright/pagewright/internal/page"
	"github.com/pagewright/pagewright/internal/source"
)

type composeRequest struct {
	Question         string `json:"question"`
	Layout           string `json:"layout"`
	IncludeCitations *bool  `json:"include_citations"`
	BrandClass       string `json:"brand_class"`
	Primary          string `json:"primary"`
}

type composeResponse struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	TraceID string `json:"trace_id"`
	PageURL string `json:"page_url"`
}

// ComposeHandler exposes the compose pipeline and the stored-page views.
type ComposeHandler struct {
	Composer *compose.Composer
	Store    page.Store
	Cfg      config.Config
}

func (h *ComposeHandler) Register(e *echo.Echo) {
	e.POST("/compose", h.composePage)
	e.GET("/v/:id", h.viewPage)
	e.GET("/v/:id/download", h.downloadPage)
}

func (h *ComposeHandler) composePage(c echo.Context) error {
	if key := h.Cfg.Server.APIKey; key != "" {
		if c.Request().Header.Get("X-Backend-Api-Key") != key {
			return echo.NewHTTPError(http.StatusUnauthorized, "Unauthorized")
		}
	}

	var body composeRequest
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	question := strings.TrimSpace(body.Question)
	if question == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "No question provided")
	}

	req := compose.Request{
		Question:         question,
		Layout:           body.Layout,
		IncludeCitations: true,
		BrandClass:       body.BrandClass,
		PrimaryColor:     body.Primary,
		BaseURL:          baseURL(c),
	}
	if req.Layout == "" {
		req.Layout = "guide"
	}
	if body.IncludeCitations != nil {
		req.IncludeCitations = *body.IncludeCitations
	}
	if req.BrandClass == "" {
		req.BrandClass = h.Cfg.Brand.Class
	}
	if req.PrimaryColor == "" {
		req.PrimaryColor = h.Cfg.Brand.PrimaryColor
	}

	result, err := h.Composer.Compose(c.Request().Context(), req)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, composeResponse{
		ID:      result.ID,
		Title:   result.Title,
		TraceID: result.TraceID,
		PageURL: req.BaseURL + "/v/" + result.ID,
	})
}

func (h *ComposeHandler) viewPage(c echo.Context) error {
	p, ok, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Page not found")
	}
	return c.HTML(http.StatusOK, p.HTML)
}

func (h *ComposeHandler) downloadPage(c echo.Context) error {
	p, ok, err := h.Store.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !ok {
		return echo.NewHTTPError(http.StatusNotFound, "Page not found")
	}
	filename := slug.Make(p.Title) + "-" + p.ID + ".html"
	c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="`+filename+`"`)
	return c.HTML(http.StatusOK, p.HTML)
}

func baseURL(c echo.Context) string {
	return c.Scheme() + "://" + c.Request().Host
}

// HealthHandler reports liveness plus cache and store sizes.
type HealthHandler struct {
	Cache   *source.Cache
	Store   page.Store
	Answers page.AnswerCache
	Cfg     config.Config
}

func (h *HealthHandler) Register(e *echo.Echo) {
	e.GET("/healthz", h.healthz)
	e.GET("/favicon.ico", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
}

func (h *HealthHandler) healthz(c echo.Context) error {
	stats := h.Cache.Stats()
	ctx := c.Request().Context()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"ok":           true,
		"source_base":  h.Cfg.Source.BaseURL,
		"posts_cached": stats.Posts,
		"pages_cached": stats.Pages,
		"media_cached": stats.Media,
		"pages_stored": h.Store.Len(ctx),
		"answer_cache": h.Answers.Len(ctx),
	})
}
