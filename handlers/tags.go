package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/timing"
)

// tagRangeRequest selects [from, to] of one color. A lone num selects a
// single tag.
type tagRangeRequest struct {
	Num   int    `json:"num" query:"num" validate:"min=0"`
	From  int    `json:"from" query:"from" validate:"min=0"`
	To    int    `json:"to" query:"to" validate:"min=0"`
	Color string `json:"color" query:"color" validate:"required"`
}

func (r tagRangeRequest) toRange() timing.TagRange {
	if r.From == 0 && r.To == 0 {
		return timing.TagRange{From: r.Num, Color: r.Color}
	}
	return timing.TagRange{From: r.From, To: r.To, Color: r.Color}
}

// CreateTags creates a range of unassigned tags.
func (h *Handler) CreateTags(c echo.Context) error {
	var req tagRangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	tags, err := h.counters.CreateTags(c.Request().Context(), req.toRange())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, tags)
}

// DeleteTags removes a range of tags and unbinds them from runners.
func (h *Handler) DeleteTags(c echo.Context) error {
	var req tagRangeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	n, err := h.counters.RemoveTags(c.Request().Context(), req.toRange())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]int{"deleted": n})
}

// AssignTags binds free tags to untagged runners of chrono waves.
func (h *Handler) AssignTags(c echo.Context) error {
	n, err := h.counters.AssignTags(c.Request().Context())
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, map[string]int{"assigned": n})
}
