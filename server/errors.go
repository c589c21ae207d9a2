package server

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error         string            `json:"error"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	Details       map[string]string `json:"details,omitempty"`
}

// handleError renders every failure as {"error": ...}. Internal errors get a correlation id
// that is logged with the cause and returned to the caller in place of it.
func (s *Server) handleError(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	status := http.StatusInternalServerError
	body := ErrorResponse{Error: "Internal server error"}

	var httpErr *echo.HTTPError
	var validationErrs validator.ValidationErrors

	switch {
	case errors.As(err, &validationErrs):
		status = http.StatusBadRequest
		body.Error = "Validation failed"
		if !s.cfg.App.IsProduction() {
			body.Details = fieldErrors(validationErrs)
		}
	case errors.As(err, &httpErr):
		status = httpErr.Code
		if status < http.StatusInternalServerError {
			body.Error = messageOf(httpErr)
		}
	}

	if status >= http.StatusInternalServerError {
		body.CorrelationID = uuid.New().String()
		if s.logger != nil {
			s.logger.Error("request failed",
				zap.String("correlation_id", body.CorrelationID),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
				zap.String("method", c.Request().Method),
				zap.String("path", c.Request().URL.Path),
				zap.Error(err))
		}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(status)
	} else {
		err = c.JSON(status, body)
	}
	if err != nil && s.logger != nil {
		s.logger.Error("failed to write error response", zap.Error(err))
	}
}

func messageOf(httpErr *echo.HTTPError) string {
	switch m := httpErr.Message.(type) {
	case string:
		return m
	case nil:
		return http.StatusText(httpErr.Code)
	default:
		return fmt.Sprint(m)
	}
}
