package handlers

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
)

type waveRequest struct {
	Type      string     `json:"type" validate:"required"`
	Num       int        `json:"num" validate:"min=1"`
	Date      string     `json:"date" validate:"required,datetime=2006-01-02"`
	Chrono    bool       `json:"chrono"`
	StartTime *time.Time `json:"start_time"`
}

// CreateWave adds a start wave.
func (h *Handler) CreateWave(c echo.Context) error {
	var req waveRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	w := &models.Wave{
		Type:      strings.TrimSpace(req.Type),
		Num:       req.Num,
		Date:      req.Date,
		Chrono:    req.Chrono,
		StartTime: req.StartTime,
	}
	if err := h.store.InsertWave(c.Request().Context(), w); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, w)
}

type waveStartRequest struct {
	StartTime *time.Time `json:"start_time"`
}

// StartWave records the start time of a wave, now when none is given.
func (h *Handler) StartWave(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid wave id")
	}

	var req waveStartRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	start := h.now().UTC()
	if req.StartTime != nil {
		start = req.StartTime.UTC()
	}

	w, err := h.store.SetWaveStart(c.Request().Context(), id, start)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, w)
}
