package api

import (
	"bytes"
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"mashetes/layout"
	"mashetes/mashete"
	"mashetes/todo"
)

// todoApp resolves the to-do widget named by the :id path parameter,
// mounting it on first use.
func (h *handlers) todoApp(c echo.Context) (*mashete.TodoApp, error) {
	app, _, err := h.mountTodo(c)
	return app, err
}

// mountTodo is todoApp that also reports whether the load it waited for failed.
// A failed load still yields the mounted widget, which shows the error.
func (h *handlers) mountTodo(c echo.Context) (app *mashete.TodoApp, loadFailed bool, err error) {
	id := c.Param("id")
	metricsOf(c).SetMashete(id)
	var config map[string]any
	if h.Layout != nil {
		m, ok := h.Layout.Find(id)
		if !ok || m.Type != layout.TypeTodo {
			return nil, false, echo.NewHTTPError(http.StatusNotFound, "unknown mashete")
		}
		config = m.Settings()
	}
	app, loadErr := h.Registry.Todo(c.Request().Context(), id, config)
	switch {
	case errors.Is(loadErr, mashete.ErrRegistryFull):
		metricsOf(c).Fail("mount", loadErr)
		return nil, false, echo.NewHTTPError(http.StatusServiceUnavailable, loadErr.Error())
	case app == nil:
		metricsOf(c).SetErrorStage("canceled")
		return nil, false, echo.NewHTTPError(http.StatusRequestTimeout, loadErr.Error())
	case loadErr != nil:
		metricsOf(c).Fail("mount", loadErr)
		h.Logger.WithField("mashete", id).WithError(loadErr).Warn("initial load failed")
	}
	return app, loadErr != nil, nil
}

// getTodo renders the widget, retrying its initial load if that failed earlier.
func (h *handlers) getTodo(c echo.Context) error {
	app, loadFailed, err := h.mountTodo(c)
	if err != nil {
		return err
	}
	if !loadFailed {
		if err := app.Refresh(c.Request().Context()); errors.Is(err, mashete.ErrUnmounted) {
			return h.renderTodo(c, app, err)
		}
	}
	return h.renderTodo(c, app, app.Err())
}

func (h *handlers) postTask(c echo.Context) error {
	app, err := h.todoApp(c)
	if err != nil {
		return err
	}
	return h.renderTodo(c, app, app.AddTask(c.Request().Context(), c.FormValue("name")))
}

func (h *handlers) toggleTask(c echo.Context) error {
	app, err := h.todoApp(c)
	if err != nil {
		return err
	}
	return h.renderTodo(c, app, app.Toggle(c.Request().Context(), c.Param("task")))
}

func (h *handlers) deleteDone(c echo.Context) error {
	app, err := h.todoApp(c)
	if err != nil {
		return err
	}
	return h.renderTodo(c, app, app.DeleteDone(c.Request().Context()))
}

func (h *handlers) unmountTodo(c echo.Context) error {
	id := c.Param("id")
	metricsOf(c).SetMashete(id)
	if !h.Registry.Unmount(id) {
		return echo.NewHTTPError(http.StatusNotFound, "mashete not mounted")
	}
	return c.NoContent(http.StatusNoContent)
}

// renderTodo writes the widget with the status matching actionErr.
func (h *handlers) renderTodo(c echo.Context, app *mashete.TodoApp, actionErr error) error {
	status := http.StatusOK
	switch {
	case actionErr == nil:
	case errors.Is(actionErr, mashete.ErrUnmounted):
		metricsOf(c).SetErrorStage("unmounted")
		return echo.NewHTTPError(http.StatusGone, actionErr.Error())
	case errors.Is(actionErr, todo.ErrEmptyTask):
		status = http.StatusUnprocessableEntity
		metricsOf(c).SetErrorStage("validation")
	case errors.Is(actionErr, mashete.ErrUnknownTask):
		status = http.StatusNotFound
		metricsOf(c).SetErrorStage("unknown_task")
	case errors.Is(actionErr, context.Canceled):
		status = http.StatusRequestTimeout
		metricsOf(c).SetErrorStage("canceled")
	default:
		status = http.StatusBadGateway
		metricsOf(c).Fail("repository", actionErr)
	}
	metricsOf(c).SetTasks(len(app.Tasks()))

	var buf bytes.Buffer
	if err := app.Render(&buf); err != nil {
		metricsOf(c).Fail("render", err)
		return err
	}
	return c.HTMLBlob(status, buf.Bytes())
}

func (h *handlers) getIframe(c echo.Context) error {
	id := c.Param("id")
	metricsOf(c).SetMashete(id)
	if h.Layout == nil {
		return echo.NewHTTPError(http.StatusNotFound, "no layout configured")
	}
	m, ok := h.Layout.Find(id)
	if !ok || m.Type != layout.TypeIframe {
		return echo.NewHTTPError(http.StatusNotFound, "unknown mashete")
	}
	return h.renderIframe(c, id, m.Settings())
}

func (h *handlers) getIframeFromQuery(c echo.Context) error {
	raw := map[string]any{}
	for k, v := range c.QueryParams() {
		if k != "id" && len(v) > 0 {
			raw[k] = v[0]
		}
	}
	if _, ok := raw["url"]; !ok {
		metricsOf(c).SetErrorStage("validation")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "missing url"})
	}
	return h.renderIframe(c, c.QueryParam("id"), raw)
}

func (h *handlers) renderIframe(c echo.Context, id string, raw map[string]any) error {
	f, err := mashete.NewIframe(id, raw)
	if err != nil {
		metricsOf(c).SetErrorStage("config")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	var buf bytes.Buffer
	if err := f.Render(&buf); err != nil {
		metricsOf(c).Fail("render", err)
		return err
	}
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
