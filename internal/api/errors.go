package api

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/session"
)

// statusFor maps an error to its HTTP status.
func statusFor(err error) int {
	if errors.Is(err, session.ErrReportInProgress) {
		return http.StatusConflict
	}
	if errors.Is(err, session.ErrSessionNotFound) {
		return http.StatusNotFound
	}
	if errors.Is(err, session.ErrMaxSessionsReached) {
		return http.StatusServiceUnavailable
	}

	switch apperror.KindOf(err) {
	case apperror.KindIDCollision:
		return http.StatusConflict
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindEmptyResult:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// messageFor returns the text shown to the client.
func messageFor(err error) string {
	var se *session.SessionError
	var rp *session.ReportInProgressError
	switch {
	case errors.As(err, &rp):
		return rp.Error()
	case errors.As(err, &se):
		return se.Error()
	}
	return apperror.Message(err)
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("request failed",
			zap.String("path", c.FullPath()), zap.Error(err))
	} else {
		s.logger.Debug("request rejected",
			zap.String("path", c.FullPath()), zap.Int("status", status), zap.Error(err))
	}
	c.JSON(status, Fail(messageFor(err)))
}

// bindError turns a binding failure into a validation error with a short
// message naming the first offending field.
func bindError(op string, err error) error {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) || len(ve) == 0 {
		return apperror.Validation(op, "invalid request body")
	}
	fe := ve[0]
	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return apperror.Validation(op, fmt.Sprintf("%s is required", field))
	case "max":
		return apperror.Validation(op, fmt.Sprintf("%s is too long", field))
	case "min", "gte", "lte":
		return apperror.Validation(op, fmt.Sprintf("%s is out of range", field))
	case "oneof":
		return apperror.Validation(op, fmt.Sprintf("%s must be one of %s", field, strings.ReplaceAll(fe.Param(), " ", ", ")))
	default:
		return apperror.Validation(op, fmt.Sprintf("%s is invalid", field))
	}
}
