package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"mashetes/socket"
)

const structureBodyMaxSize = 64 * 1024 // 64 KiB

var (
	errMissingLocation = errors.New("missing current location")
	errBodyTooLarge    = errors.New("body too large")
)

// location returns the caller's current page id.
func location(c echo.Context) (string, error) {
	from := strings.TrimSpace(c.Request().Header.Get(LocationHeader))
	if from == "" {
		from = strings.TrimSpace(c.QueryParam("from"))
	}
	if from == "" {
		return "", errMissingLocation
	}
	return from, nil
}

// decodeBody reads at most structureBodyMaxSize bytes of the (inflated) body.
func decodeBody(c echo.Context) (json.RawMessage, error) {
	data, err := io.ReadAll(io.LimitReader(c.Request().Body, structureBodyMaxSize+1))
	if err != nil {
		return nil, err
	}
	if len(data) > structureBodyMaxSize {
		return nil, errBodyTooLarge
	}
	var raw json.RawMessage
	if err := sonic.ConfigStd.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// structureCall runs one structure command with the caller's location and body.
func (h *handlers) structureCall(c echo.Context, withBody bool, call func(from string, body json.RawMessage) (json.RawMessage, error)) error {
	if h.Structure == nil {
		metricsOf(c).SetErrorStage("unavailable")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "structure commands unavailable"})
	}
	from, err := location(c)
	if err != nil {
		metricsOf(c).SetErrorStage("location")
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	}
	var body json.RawMessage
	if withBody {
		if body, err = decodeBody(c); err != nil {
			metricsOf(c).SetErrorStage("invalid_body")
			if errors.Is(err, errBodyTooLarge) {
				return c.JSON(http.StatusRequestEntityTooLarge, errorResponse{Error: err.Error()})
			}
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
	}
	return h.writeReply(c, func() (json.RawMessage, error) { return call(from, body) })
}

func (h *handlers) writeReply(c echo.Context, call func() (json.RawMessage, error)) error {
	reply, err := call()
	if err != nil {
		status := http.StatusBadGateway
		stage := "transport"
		var remote *socket.RemoteError
		switch {
		case errors.Is(err, socket.ErrTimeout):
			status, stage = http.StatusGatewayTimeout, "timeout"
		case errors.As(err, &remote):
			stage = "remote"
		}
		metricsOf(c).Fail(stage, err)
		return c.JSON(status, errorResponse{Error: err.Error()})
	}
	if len(reply) == 0 {
		return c.NoContent(http.StatusNoContent)
	}
	return c.JSONBlob(http.StatusOK, reply)
}

func (h *handlers) subPages(c echo.Context) error {
	return h.structureCall(c, false, func(from string, _ json.RawMessage) (json.RawMessage, error) {
		return h.Structure.SubPages(c.Request().Context(), from)
	})
}

func (h *handlers) createPage(c echo.Context) error {
	return h.structureCall(c, true, func(from string, page json.RawMessage) (json.RawMessage, error) {
		return h.Structure.CreatePage(c.Request().Context(), from, page)
	})
}

func (h *handlers) deletePage(c echo.Context) error {
	return h.structureCall(c, false, func(from string, _ json.RawMessage) (json.RawMessage, error) {
		return h.Structure.DeleteCurrentPage(c.Request().Context(), from)
	})
}

func (h *handlers) moveMashetes(c echo.Context) error {
	return h.structureCall(c, true, func(from string, mashetes json.RawMessage) (json.RawMessage, error) {
		return h.Structure.MoveMashetes(c.Request().Context(), from, mashetes)
	})
}

func (h *handlers) saveOptions(c echo.Context) error {
	id := c.Param("id")
	metricsOf(c).SetMashete(id)
	return h.structureCall(c, true, func(from string, conf json.RawMessage) (json.RawMessage, error) {
		return h.Structure.SaveMasheteOptions(c.Request().Context(), from, id, conf)
	})
}

// allRoles is the one command that is not scoped to a location.
func (h *handlers) allRoles(c echo.Context) error {
	if h.Structure == nil {
		metricsOf(c).SetErrorStage("unavailable")
		return c.JSON(http.StatusServiceUnavailable, errorResponse{Error: "structure commands unavailable"})
	}
	return h.writeReply(c, func() (json.RawMessage, error) {
		return h.Structure.GetAllRoles(c.Request().Context())
	})
}
