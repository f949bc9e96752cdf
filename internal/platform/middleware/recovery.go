package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/vaxcheck/vaxcheck/internal/platform/fhir"
)

// Recovery turns a handler panic into a 500 OperationOutcome.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					logger.Error().
						Str("request_id", requestID(c)).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n])).
						Msg("panic recovered")

					err = c.JSON(http.StatusInternalServerError, fhir.InternalErrorOutcome("internal server error"))
				}
			}()
			return next(c)
		}
	}
}

// ErrorHandler renders errors that reach echo as OperationOutcome bodies.
func ErrorHandler(logger zerolog.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		code := http.StatusInternalServerError
		msg := "internal server error"
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			msg = fmt.Sprintf("%v", he.Message)
		} else {
			logger.Error().Err(err).Str("request_id", requestID(c)).Msg("unhandled error")
		}

		var outcome *fhir.OperationOutcome
		switch code {
		case http.StatusNotFound:
			outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeNotFound, msg)
		case http.StatusTooManyRequests:
			outcome = fhir.ThrottleOutcome()
		case http.StatusRequestEntityTooLarge:
			outcome = fhir.NewOperationOutcome(fhir.IssueSeverityError, fhir.IssueTypeTooLong, msg)
		default:
			if code >= http.StatusInternalServerError {
				outcome = fhir.InternalErrorOutcome(msg)
			} else {
				outcome = fhir.ErrorOutcome(msg)
			}
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, outcome)
		}
		if err != nil {
			logger.Error().Err(err).Msg("failed to write error response")
		}
	}
}
