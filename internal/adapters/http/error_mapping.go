package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/apartment-recommender/internal/core/domain"
)

type errorResponse struct {
	Error     string `json:"error"`
	Kind      string `json:"kind,omitempty"`
	Axis      string `json:"axis,omitempty"`
	Requested string `json:"requested,omitempty"`
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := errorResponse{Error: err.Error(), Kind: domain.KindName(err)}

	var lookupErr *domain.LookupError
	if errors.As(err, &lookupErr) {
		body.Axis = lookupErr.Axis
		body.Requested = lookupErr.Requested
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"kind", body.Kind,
			"error", err.Error(),
		)
	}
	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	writeJSON(w, status, body)
}
