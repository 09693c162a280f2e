package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"mashetes/layout"
	"mashetes/mashete"
	"mashetes/structure"
)

const (
	// LocationHeader carries the id of the page the caller is looking at.
	LocationHeader = "X-Portal-Location"

	defaultHeartbeat = 30 * time.Second
	metricsKey       = "mashetes.metrics"
)

// Deps holds what the HTTP surface serves.
type Deps struct {
	Registry *mashete.Registry
	// Layout restricts the mountable widgets when set.
	Layout *layout.Layout
	// Structure is nil when no platform socket is configured.
	Structure *structure.Client
	Logger    *log.Logger
	// Heartbeat is the keepalive interval of change streams.
	Heartbeat time.Duration
}

type errorResponse struct {
	Error string `json:"error"`
}

// Register wires up all routes on the provided Echo instance.
func Register(e *echo.Echo, d Deps) {
	if d.Logger == nil {
		d.Logger = log.StandardLogger()
	}
	if d.Heartbeat <= 0 {
		d.Heartbeat = defaultHeartbeat
	}
	h := &handlers{Deps: d}

	todo := e.Group("/mashetes/todo/:id")
	todo.GET("", h.instrument("/mashetes/todo/:id", h.getTodo))
	todo.POST("/tasks", h.instrument("/mashetes/todo/:id/tasks", h.postTask))
	todo.POST("/tasks/:task/toggle", h.instrument("/mashetes/todo/:id/tasks/:task/toggle", h.toggleTask))
	todo.POST("/done", h.instrument("/mashetes/todo/:id/done", h.deleteDone))
	todo.DELETE("", h.instrument("/mashetes/todo/:id", h.unmountTodo))
	todo.GET("/stream", h.streamTodo)

	e.GET("/mashetes/iframe", h.instrument("/mashetes/iframe", h.getIframeFromQuery))
	e.GET("/mashetes/iframe/:id", h.instrument("/mashetes/iframe/:id", h.getIframe))

	s := e.Group("/api/structure", DecompressRequests())
	s.GET("/pages", h.instrument("/api/structure/pages", h.subPages))
	s.POST("/pages", h.instrument("/api/structure/pages", h.createPage))
	s.DELETE("/pages", h.instrument("/api/structure/pages", h.deletePage))
	s.POST("/mashetes/move", h.instrument("/api/structure/mashetes/move", h.moveMashetes))
	s.GET("/roles", h.instrument("/api/structure/roles", h.allRoles))
	s.PUT("/mashetes/:id/options", h.instrument("/api/structure/mashetes/:id/options", h.saveOptions))

	e.GET("/healthz", healthz)
}

type handlers struct {
	Deps
}

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// instrument records a span and an observability event around h.
func (h *handlers) instrument(route string, next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newRequestMetrics(c.Request().Context(), h.Logger, c.Request().Method, route)
		c.SetRequest(c.Request().WithContext(spanCtx))
		c.Set(metricsKey, metrics)
		defer func() {
			status := c.Response().Status
			if err != nil && !c.Response().Committed {
				status = http.StatusInternalServerError
				var he *echo.HTTPError
				if errors.As(err, &he) {
					status = he.Code
				}
			}
			metrics.Log(status, err)
		}()
		return next(c)
	}
}

func metricsOf(c echo.Context) *requestMetrics {
	m, _ := c.Get(metricsKey).(*requestMetrics)
	return m
}
