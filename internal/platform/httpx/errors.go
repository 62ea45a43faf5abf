package httpx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
)

// ErrBadRequest marks transport-level decode failures so handlers can map
// them without inspecting the underlying json error.
var ErrBadRequest = errors.New("bad request")

// RespondError is the shared fallback for errors no handler-specific case
// claimed: decode failures become 400, cancelled requests 503, everything
// else is logged and hidden behind a 500.
func RespondError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, ErrBadRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		Problem(w, http.StatusServiceUnavailable, "Request Aborted", "")
	default:
		if logger != nil {
			logger.Error("request failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
		}
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// badRequestf wraps a decode failure detail under ErrBadRequest.
func badRequestf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrBadRequest, fmt.Sprintf(format, args...))
}
