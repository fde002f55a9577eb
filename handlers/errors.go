package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/padraicbc/racetime/store"
	"github.com/padraicbc/racetime/timing"
)

var kindStatus = map[timing.Kind]int{
	timing.KindMissingField:  http.StatusBadRequest,
	timing.KindConflict:      http.StatusConflict,
	timing.KindNotFound:      http.StatusNotFound,
	timing.KindNotAcceptable: http.StatusNotAcceptable,
	timing.KindAlreadyExists: http.StatusConflict,
	timing.KindInternal:      http.StatusInternalServerError,
}

// httpError maps timing and store failures to HTTP errors.
func httpError(err error) error {
	var te *timing.Error
	switch {
	case errors.As(err, &te):
		return echo.NewHTTPError(kindStatus[te.Kind], te.Error()).SetInternal(err)
	case errors.Is(err, store.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "not found").SetInternal(err)
	case errors.Is(err, store.ErrDuplicate):
		return echo.NewHTTPError(http.StatusConflict, "already exists").SetInternal(err)
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error()).SetInternal(err)
	}
}
