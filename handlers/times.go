package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/timing"
)

type tagRef struct {
	Num   jsonText `json:"num"`
	Color string   `json:"color"`
}

// timeRequest is what checkpoint devices post. Unknown fields, such as
// device credentials, are dropped by decoding into this type.
type timeRequest struct {
	CheckpointID int      `json:"checkpoint_id"`
	Tag          tagRef   `json:"tag"`
	Timestamp    jsonText `json:"timestamp"`
}

// CreateTime ingests one checkpoint crossing.
func (h *Handler) CreateTime(c echo.Context) error {
	var req timeRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	t, err := h.engine.Ingest(c.Request().Context(), timing.TimeInput{
		CheckpointID: req.CheckpointID,
		TagNum:       string(req.Tag.Num),
		TagColor:     req.Tag.Color,
		Timestamp:    string(req.Timestamp),
	})
	if err != nil {
		return httpError(err)
	}

	return c.JSON(http.StatusCreated, t)
}

// Times lists the crossings of one tag.
func (h *Handler) Times(c echo.Context) error {
	key, err := tagFromQuery(c)
	if err != nil {
		return err
	}

	times, err := h.store.TimesByTag(c.Request().Context(), key)
	if err != nil {
		return httpError(err)
	}
	if times == nil {
		times = []models.Time{}
	}

	return c.JSON(http.StatusOK, times)
}

func tagFromQuery(c echo.Context) (models.TagKey, error) {
	num, err := strconv.Atoi(c.QueryParam("tag_num"))
	if err != nil {
		return models.TagKey{}, echo.NewHTTPError(http.StatusBadRequest, "tag_num param not set")
	}
	color := strings.TrimSpace(c.QueryParam("tag_color"))
	if color == "" {
		return models.TagKey{}, echo.NewHTTPError(http.StatusBadRequest, "tag_color param not set")
	}
	return models.TagKey{Num: num, Color: color}, nil
}
