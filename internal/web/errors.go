package web

import (
	"errors"
	"net/http"

	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/view"
)

func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrDuplicateContainerNumber),
		errors.Is(err, domain.ErrTransitionNotAllowed):
		return http.StatusConflict
	case errors.Is(err, domain.ErrDeleteNotConfirmed):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// problems lists the messages shown for err. Store failures show only the
// operation so driver details stay in the log.
func problems(err error) []string {
	var perr *domain.PersistenceError
	if errors.As(err, &perr) {
		return []string{"failed to " + perr.Op}
	}
	return view.Problems(err)
}

// renderError writes the alert fragment for err with its mapped status.
func (s *Server) renderError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	if rerr := s.renderPartial(w, status, "errors", problems(err), "partials/errors.html"); rerr != nil {
		s.logger.Error("render error fragment", "error", rerr)
	}
}
