package handler

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

func (h *SessionHandler) SelectOutbound(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	key, ok, err := bindKey(c)
	if !ok {
		return err
	}

	if err := s.SelectOutbound(c.Request().Context(), key); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) RemoveOutbound(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	s.RemoveOutbound()
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) SelectReturn(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	key, ok, err := bindKey(c)
	if !ok {
		return err
	}

	if err := s.SelectReturn(key); err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) RemoveReturn(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	s.RemoveReturn()
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) DismissError(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	s.DismissError()
	return c.JSON(http.StatusOK, s.View())
}

func (h *SessionHandler) Buy(c echo.Context) error {
	s, err := h.manager.Get(c.Param("id"))
	if err != nil {
		return respondError(c, err)
	}

	handoff, err := s.Buy(c.Request().Context())
	if err != nil {
		return respondError(c, err)
	}
	return c.JSON(http.StatusCreated, handoff)
}

// bindKey reads the offer key from the body. When ok is false the 400
// response has already been written.
func bindKey(c echo.Context) (key string, ok bool, err error) {
	var req offerRequest
	if err := c.Bind(&req); err != nil {
		return "", false, badRequest(c, "invalid_request", "Failed to parse request body: "+err.Error())
	}
	key = strings.TrimSpace(req.Key)
	if key == "" {
		return "", false, badRequest(c, "invalid_request", "key is required")
	}
	return key, true, nil
}
