package api

import (
	"errors"

	"github.com/labstack/echo/v4"

	domrepo "OddsPulse/internal/domain/repository"
	"OddsPulse/internal/service/metrics"
	"OddsPulse/internal/usecase"
	xhttp "OddsPulse/pkg/http"
	xlogger "OddsPulse/pkg/logger"
)

// toAppError maps domain and usecase errors to their HTTP form.
func toAppError(err error) *xhttp.AppError {
	var appErr *xhttp.AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, domrepo.ErrRecordNotFound):
		return xhttp.NotFoundError("record not found").WithError(err)
	case errors.Is(err, domrepo.ErrRecordResolved):
		return xhttp.ConflictError("record already resolved").WithError(err)
	case errors.Is(err, domrepo.ErrRecordExists):
		return xhttp.ConflictError("record already exists").WithError(err)
	case errors.Is(err, usecase.ErrUnknownHandicapType):
		return xhttp.BadRequestError("unknown handicap type").WithError(err)
	default:
		return xhttp.InternalError("Something went wrong").WithError(err)
	}
}

// fail writes err as an AppError response, logging and counting server-side failures.
func fail(c echo.Context, l *xlogger.Logger, endpoint string, err error) error {
	appErr := toAppError(err)
	if appErr.Status >= 500 {
		metrics.APIErrors.WithLabelValues(endpoint).Inc()
		l.Error(endpoint+" usecase error", xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}
