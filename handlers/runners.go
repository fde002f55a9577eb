package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/timing"
)

type runnerRequest struct {
	Name     string `json:"name" validate:"required"`
	Gender   string `json:"gender" validate:"required"`
	Age      int    `json:"age" validate:"min=0"`
	TeamID   int    `json:"team_id"`
	TeamName string `json:"team_name"`
	Date     string `json:"date" validate:"required,datetime=2006-01-02"`
	Type     string `json:"type" validate:"required"`
	WaveID   int    `json:"wave_id" validate:"min=1"`
	Tag      *struct {
		Num   int    `json:"num" validate:"min=1"`
		Color string `json:"color" validate:"required"`
	} `json:"tag"`
}

// CreateRunner registers a runner in an existing wave.
func (h *Handler) CreateRunner(c echo.Context) error {
	var req runnerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	r := &models.Runner{
		Name:     strings.TrimSpace(req.Name),
		Gender:   strings.TrimSpace(req.Gender),
		Age:      req.Age,
		TeamID:   req.TeamID,
		TeamName: strings.TrimSpace(req.TeamName),
		Date:     req.Date,
		Type:     strings.TrimSpace(req.Type),
		WaveID:   req.WaveID,
	}
	if req.Tag != nil {
		r.Tag = models.TagKey{Num: req.Tag.Num, Color: strings.TrimSpace(req.Tag.Color)}
	}

	if err := h.counters.RegisterRunner(c.Request().Context(), r); err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, r)
}

// DeleteRunner removes a runner and releases what it held.
func (h *Handler) DeleteRunner(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid runner id")
	}

	r, err := h.counters.RemoveRunner(c.Request().Context(), id)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, r)
}

type runnerPatch struct {
	Name     *string `json:"name" validate:"omitnil,min=1"`
	Gender   *string `json:"gender" validate:"omitnil,min=1"`
	Age      *int    `json:"age" validate:"omitnil,min=0"`
	TeamID   *int    `json:"team_id"`
	TeamName *string `json:"team_name"`
	Type     *string `json:"type" validate:"omitnil,min=1"`
	WaveID   *int    `json:"wave_id" validate:"omitnil,min=1"`
	// Tag rebinds the runner; {"num":0,"color":""} unbinds it.
	Tag *models.TagKey `json:"tag"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	return &t
}

// UpdateRunner patches a runner. Team name, wave and type changes are
// carried over to the rest of the team.
func (h *Handler) UpdateRunner(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid runner id")
	}

	var req runnerPatch
	if err := bind(c, &req); err != nil {
		return err
	}
	u := timing.RunnerUpdate{
		Name:     trimmed(req.Name),
		Gender:   trimmed(req.Gender),
		Age:      req.Age,
		TeamID:   req.TeamID,
		TeamName: trimmed(req.TeamName),
		Type:     trimmed(req.Type),
		WaveID:   req.WaveID,
	}
	if req.Tag != nil {
		tag := models.TagKey{Num: req.Tag.Num, Color: strings.TrimSpace(req.Tag.Color)}
		if (tag.Num == 0) != (tag.Color == "") {
			return echo.NewHTTPError(http.StatusBadRequest, "tag needs both num and color")
		}
		u.Tag = &tag
	}

	r, err := h.counters.UpdateRunner(c.Request().Context(), id, u)
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusOK, r)
}
