package api

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/benmeehan/geo-reporter/internal/services"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Error string `json:"error"`
}

// NewHTTPErrorHandler renders every error as {"error": "<message>"} and maps
// scheduler errors to status codes.
func NewHTTPErrorHandler(log zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, msg := resolveError(err, log, c)
		_ = c.JSON(code, errorResponse{Error: msg})
	}
}

func resolveError(err error, log zerolog.Logger, c echo.Context) (int, string) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he.Code, fmt.Sprintf("%v", he.Message)
	}

	switch {
	case errors.Is(err, services.ErrInvalidInterval):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, services.ErrServiceClosed):
		return http.StatusConflict, err.Error()
	}

	log.Error().
		Err(err).
		Str("method", c.Request().Method).
		Str("path", c.Path()).
		Msg("unhandled error")

	return http.StatusInternalServerError, "internal server error"
}
