package health

import (
	"context"
	"net/http"
	"sort"
	"time"

	"huddle/pkg/db"
	httputil "huddle/pkg/http"
	"huddle/pkg/logger"

	"github.com/julienschmidt/httprouter"
	"github.com/redis/go-redis/v9"
)

const readyTimeout = 2 * time.Second

type Response struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

// RedisPinger adapts a go-redis client to db.Pinger.
type RedisPinger struct {
	Client *redis.Client
}

func (p RedisPinger) Ping(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}

type Handler struct {
	checks map[string]db.Pinger
	log    *logger.Logger
}

// NewHandler reports ready only when every named dependency answers a ping.
func NewHandler(checks map[string]db.Pinger, log *logger.Logger) *Handler {
	return &Handler{
		checks: checks,
		log:    log,
	}
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if err := httputil.WriteJSON(w, http.StatusOK, Response{Status: "ok"}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Health", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) Ready(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	ctx, cancel := context.WithTimeout(r.Context(), readyTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ready", http.StatusOK
	components := make(map[string]string, len(names))
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			h.log.Error("Dependency health check failed",
				"component", name,
				"error", err,
				"path", r.URL.Path,
			)
			components[name] = "error"
			status, code = "unavailable", http.StatusServiceUnavailable
			continue
		}
		components[name] = "ok"
	}

	if err := httputil.WriteJSON(w, code, Response{Status: status, Components: components}); err != nil {
		h.log.Error("failed to write JSON response", "handler", "Ready", "operation", "WriteJSON", "error", err)
	}
}

func (h *Handler) RegisterRoutes(router *httprouter.Router) {
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
}
