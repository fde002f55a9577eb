package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
)

type checkpointRequest struct {
	Num      int     `json:"num" validate:"min=1"`
	Title    string  `json:"title"`
	Distance float64 `json:"distance" validate:"min=0"`
}

// Checkpoints lists the checkpoints with the number of crossings recorded
// today at each.
func (h *Handler) Checkpoints(c echo.Context) error {
	ctx := c.Request().Context()
	cps, err := h.store.ListCheckpoints(ctx)
	if err != nil {
		return httpError(err)
	}

	from := h.now().UTC().Truncate(24 * time.Hour)
	to := from.Add(24 * time.Hour)
	for i := range cps {
		n, err := h.store.CountTimes(ctx, cps[i].Num, from, to)
		if err != nil {
			return httpError(err)
		}
		cps[i].Count = n
	}
	if cps == nil {
		cps = []models.Checkpoint{}
	}

	return c.JSON(http.StatusOK, cps)
}

// CreateCheckpoint registers a timing point.
func (h *Handler) CreateCheckpoint(c echo.Context) error {
	var req checkpointRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	cp := &models.Checkpoint{
		Num:      req.Num,
		Title:    strings.TrimSpace(req.Title),
		Distance: req.Distance,
	}
	if err := h.store.InsertCheckpoint(c.Request().Context(), cp); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, cp)
}

// Heartbeat marks a checkpoint online.
func (h *Handler) Heartbeat(c echo.Context) error {
	num, err := strconv.Atoi(c.Param("num"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid checkpoint number")
	}

	if err := h.store.TouchCheckpoint(c.Request().Context(), num, h.now().UTC()); err != nil {
		return httpError(err)
	}

	return c.NoContent(http.StatusNoContent)
}
