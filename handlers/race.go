package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
)

type raceRequest struct {
	Place    string `json:"place" validate:"required"`
	DateFrom string `json:"date_from" validate:"required,datetime=2006-01-02"`
	DateTo   string `json:"date_to" validate:"required,datetime=2006-01-02"`
}

// Race returns the current race.
func (h *Handler) Race(c echo.Context) error {
	r, err := h.store.GetRace(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, r)
}

// CreateRace starts a new race, wiping the data of the previous one.
func (h *Handler) CreateRace(c echo.Context) error {
	var req raceRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.DateTo < req.DateFrom {
		return echo.NewHTTPError(http.StatusBadRequest, "date_to is before date_from")
	}

	r := &models.Race{
		Place:    strings.TrimSpace(req.Place),
		DateFrom: req.DateFrom,
		DateTo:   req.DateTo,
	}
	if err := h.counters.CreateRace(c.Request().Context(), r); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, r)
}

// DeleteRace removes the race record so a new one can be created.
func (h *Handler) DeleteRace(c echo.Context) error {
	if err := h.counters.DeleteRace(c.Request().Context()); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
