package api

import (
	"bytes"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// streamTodo pushes the rendered task list of a widget every time it re-renders.
func (h *handlers) streamTodo(c echo.Context) error {
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		metricsOf(c).SetErrorStage("stream")
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	app, err := h.todoApp(c)
	if err != nil {
		return err
	}
	changes, stop := app.Watch()
	defer stop()

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().Header().Set("X-Accel-Buffering", "no")
	c.Response().WriteHeader(http.StatusOK)
	// Write an initial comment to ensure headers are flushed to the client.
	if _, err := c.Response().Write([]byte(":ok\n\n")); err != nil {
		return nil
	}
	flusher.Flush()

	logger := h.Logger.WithField("mashete", app.ID())
	logger.Debug("change stream opened")
	defer logger.Debug("change stream closed")

	ctx := c.Request().Context()
	ticker := time.NewTicker(h.Heartbeat)
	defer ticker.Stop()
	for {
		select {
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			var buf bytes.Buffer
			if err := app.RenderList(&buf); err != nil {
				logger.WithError(err).Warn("render task list")
				continue
			}
			if _, err := c.Response().Write(sseEvent("tasks", buf.Bytes())); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ticker.C:
			// Send a comment as a heartbeat to keep the connection alive.
			if _, err := c.Response().Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
			flusher.Flush()
		case <-ctx.Done():
			return nil
		}
	}
}

// sseEvent frames data as one server-sent event, one data line per input line.
func sseEvent(name string, data []byte) []byte {
	var out bytes.Buffer
	out.WriteString("event: ")
	out.WriteString(name)
	out.WriteByte('\n')
	for _, line := range bytes.Split(data, []byte("\n")) {
		out.WriteString("data: ")
		out.Write(line)
		out.WriteByte('\n')
	}
	out.WriteByte('\n')
	return out.Bytes()
}
