package handler

import (
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightoffers/internal/criteria"
	"github.com/dharmasatrya/flightoffers/internal/engine"
	"github.com/dharmasatrya/flightoffers/internal/history"
	"github.com/dharmasatrya/flightoffers/internal/models"
)

type SessionHandler struct {
	manager *engine.Manager
	recent  *history.RecentSearches
}

func NewSessionHandler(manager *engine.Manager, recent *history.RecentSearches) *SessionHandler {
	return &SessionHandler{
		manager: manager,
		recent:  recent,
	}
}

// Register mounts the session routes on g.
func (h *SessionHandler) Register(g *echo.Group) {
	g.POST("/sessions", h.Create)
	g.GET("/sessions/:id", h.Get)
	g.DELETE("/sessions/:id", h.Delete)
	g.POST("/sessions/:id/search", h.Search)
	g.POST("/sessions/:id/shift", h.Shift)
	g.PUT("/sessions/:id/filters", h.SetFilters)
	g.PUT("/sessions/:id/sort", h.SetSort)
	g.POST("/sessions/:id/outbound", h.SelectOutbound)
	g.DELETE("/sessions/:id/outbound", h.RemoveOutbound)
	g.POST("/sessions/:id/return", h.SelectReturn)
	g.DELETE("/sessions/:id/return", h.RemoveReturn)
	g.DELETE("/sessions/:id/error", h.DismissError)
	g.POST("/sessions/:id/buy", h.Buy)
	g.GET("/recent-searches", h.RecentSearches)
}

type createRequest struct {
	Restore bool `json:"restore"`
}

type shiftRequest struct {
	Target string `json:"target"`
	Days   int    `json:"days"`
}

type sortRequest struct {
	SortBy string `json:"sort_by"`
}

type offerRequest struct {
	Key string `json:"key"`
}

func (h *SessionHandler) Create(c echo.Context) error {
	var req createRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
	}

	restore := req.Restore || c.QueryParam("restore") == "true"
	s := h.manager.Create(c.Request().Context(), restore)
	return c.JSON(http.StatusCreated, s.View())
}

func (h *SessionHandler) Get(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) Delete(c echo.Context) error {
	if _, err := h.manager.Get(c.Param("id")); err != nil {
		return respondError(c, err)
	}
	h.manager.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// Search accepts criteria either as a JSON body of any shape or as URL
// query parameters when the body is empty.
func (h *SessionHandler) Search(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return badRequest(c, "invalid_request", "Failed to read request body: "+err.Error())
	}

	raw := criteria.FromQuery(c.QueryParams())
	if len(strings.TrimSpace(string(body))) > 0 {
		raw, err = criteria.FromJSON(body)
		if err != nil {
			return badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
		}
	}

	if err := s.Search(c.Request().Context(), raw); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) Shift(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req shiftRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
	}

	target := criteria.ShiftTarget(strings.ToLower(strings.TrimSpace(req.Target)))
	switch target {
	case "":
		target = criteria.ShiftDeparture
	case criteria.ShiftDeparture, criteria.ShiftReturn:
	default:
		return badRequest(c, "invalid_request", "target must be departure or return")
	}
	if req.Days == 0 {
		return badRequest(c, "invalid_request", "days must be non-zero")
	}

	if err := s.ShiftDate(c.Request().Context(), target, req.Days); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) SetFilters(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var f models.OfferFilters
	if err := c.Bind(&f); err != nil {
		return badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
	}

	s.SetFilters(f)
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) SetSort(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	var req sortRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
	}

	if err := s.SetSort(req.SortBy); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) RecentSearches(c echo.Context) error {
	return c.JSON(http.StatusOK, h.recent.List(c.Request().Context()))
}

func HealthHandler(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}
