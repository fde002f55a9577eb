package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	mw "github.com/padraicbc/racetime/middleware"
)

// Extras are the routes served by other packages.
type Extras struct {
	Live    echo.HandlerFunc
	Metrics http.Handler
	// Ingest wraps POST /times, typically with a rate limiter.
	Ingest []echo.MiddlewareFunc
}

// Register mounts every route on e.
func (h *Handler) Register(e *echo.Echo, x Extras) {
	if e.Validator == nil {
		e.Validator = NewRequestValidator()
	}

	// Public
	e.POST("/signin", h.Signin)
	e.GET("/results", h.Results)
	if x.Live != nil {
		e.GET("/live", x.Live)
	}
	if x.Metrics != nil {
		e.GET("/metrics", echo.WrapHandler(x.Metrics))
	}

	// Protected – require valid JWT in Authorization header
	auth := mw.JWT(h.JWTKey)
	e.POST("/times", h.CreateTime, append([]echo.MiddlewareFunc{auth}, x.Ingest...)...)
	e.GET("/times", h.Times, auth)
	e.POST("/results/reprocess", h.ReprocessResult, auth)
	e.POST("/tags", h.CreateTags, auth)
	e.DELETE("/tags", h.DeleteTags, auth)
	e.POST("/tags/assign", h.AssignTags, auth)
	e.POST("/runners", h.CreateRunner, auth)
	e.PATCH("/runners/:id", h.UpdateRunner, auth)
	e.DELETE("/runners/:id", h.DeleteRunner, auth)
	e.POST("/waves", h.CreateWave, auth)
	e.PATCH("/waves/:id/start", h.StartWave, auth)
	e.GET("/race", h.Race, auth)
	e.POST("/race", h.CreateRace, auth)
	e.DELETE("/race", h.DeleteRace, auth)
	e.GET("/checkpoints", h.Checkpoints, auth)
	e.POST("/checkpoints", h.CreateCheckpoint, auth)
	e.POST("/checkpoints/:num/heartbeat", h.Heartbeat, auth)
	e.POST("/users", h.SaveUser, auth)
}
