package api

import (
	"compress/gzip"
	"errors"
	"io"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// DecompressRequests inflates gzip-encoded structure command bodies with echo's
// Decompress middleware. A body that is not valid gzip is answered with 400.
func DecompressRequests() echo.MiddlewareFunc {
	decompress := middleware.Decompress()
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		h := decompress(next)
		return func(c echo.Context) error {
			err := h(c)
			if isCorruptGzip(err) {
				return echo.NewHTTPError(http.StatusBadRequest, "invalid gzip body")
			}
			return err
		}
	}
}

func isCorruptGzip(err error) bool {
	return errors.Is(err, gzip.ErrHeader) || errors.Is(err, gzip.ErrChecksum) || errors.Is(err, io.ErrUnexpectedEOF)
}
