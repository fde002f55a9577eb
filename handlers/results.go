package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
)

// Results returns the ranked results of a day, today when no date is given.
func (h *Handler) Results(c echo.Context) error {
	date := strings.TrimSpace(c.QueryParam("date"))
	if date == "" {
		date = h.now().UTC().Format(models.DateLayout)
	}

	results, err := h.store.ResultsByDate(c.Request().Context(), date)
	if err != nil {
		return httpError(err)
	}
	if results == nil {
		results = []models.Result{}
	}

	return c.JSON(http.StatusOK, results)
}

type reprocessRequest struct {
	Tag struct {
		Num   int    `json:"num" validate:"min=1"`
		Color string `json:"color" validate:"required"`
	} `json:"tag"`
}

// ReprocessResult rebuilds a tag's result from its stored crossings, for
// finish crossings that arrived before the runner or wave start was known.
func (h *Handler) ReprocessResult(c echo.Context) error {
	var req reprocessRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	res, err := h.engine.Reprocess(c.Request().Context(), models.TagKey{Num: req.Tag.Num, Color: strings.TrimSpace(req.Tag.Color)})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, res)
}
