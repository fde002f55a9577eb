package handlers

import (
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/padraicbc/racetime/store"
	"github.com/padraicbc/racetime/timing"
)

// Handler holds shared dependencies used by all route handlers.
type Handler struct {
	store    store.Store
	engine   *timing.Engine
	counters *timing.Counters
	JWTKey   []byte
	admins   []string
	log      *zap.Logger
	now      func() time.Time
}

// Options carries the optional Handler settings.
type Options struct {
	JWTKey     []byte
	AdminUsers []string
	Logger     *zap.Logger
}

// New creates a Handler over the store and the timing core.
func New(s store.Store, engine *timing.Engine, counters *timing.Counters, opts Options) *Handler {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{
		store:    s,
		engine:   engine,
		counters: counters,
		JWTKey:   opts.JWTKey,
		admins:   opts.AdminUsers,
		log:      log,
		now:      time.Now,
	}
}

func (h *Handler) isAdmin(username string) bool {
	username = strings.ToLower(strings.TrimSpace(username))
	for _, a := range h.admins {
		if username == strings.ToLower(a) {
			return true
		}
	}
	return false
}
