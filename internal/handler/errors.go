package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/dharmasatrya/flightoffers/internal/criteria"
	"github.com/dharmasatrya/flightoffers/internal/engine"
	"github.com/dharmasatrya/flightoffers/internal/models"
	"github.com/dharmasatrya/flightoffers/internal/providers"
	"github.com/dharmasatrya/flightoffers/internal/selection"
)

func respondError(c echo.Context, err error) error {
	status, code := classify(err)
	return c.JSON(status, models.ErrorResponse{
		Error:   code,
		Message: err.Error(),
		Code:    status,
	})
}

func classify(err error) (int, string) {
	var verr *models.ValidationError
	var perr *providers.ProviderError

	switch {
	case errors.As(err, &verr):
		return http.StatusBadRequest, string(verr.Code)
	case errors.As(err, &perr):
		return http.StatusBadGateway, string(models.ErrCodeProviderError)
	case errors.Is(err, engine.ErrSessionNotFound):
		return http.StatusNotFound, "session_not_found"
	case errors.Is(err, engine.ErrOfferNotFound):
		return http.StatusNotFound, "offer_not_found"
	case errors.Is(err, engine.ErrInvalidSort):
		return http.StatusBadRequest, "invalid_sort"
	case errors.Is(err, engine.ErrSuperseded):
		return http.StatusConflict, "superseded"
	case errors.Is(err, engine.ErrNoCriteria), errors.Is(err, criteria.ErrNoReturnDate):
		return http.StatusConflict, "no_search"
	case errors.Is(err, selection.ErrInvalidTransition),
		errors.Is(err, selection.ErrNotRoundTrip),
		errors.Is(err, selection.ErrNotReady),
		errors.Is(err, selection.ErrEmptyOffer):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func badRequest(c echo.Context, code, message string) error {
	return c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   code,
		Message: message,
		Code:    http.StatusBadRequest,
	})
}
