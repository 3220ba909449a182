package web

import (
	"net/http"

	"github.com/vbonduro/containerlog/internal/view"
)

func (s *Server) handleListCrew(w http.ResponseWriter, r *http.Request) {
	members, err := s.service.ListCrew(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	if err := s.renderPage(w, http.StatusOK,
		map[string]any{"Crew": members, "ActiveNav": "crew"},
		"base.html", "pages/crew.html",
	); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

// handleCrewSelect re-renders both crew dropdowns after one of them changed,
// so neither offers the member chosen in the other. A second slot that
// repeats the first is cleared.
func (s *Server) handleCrewSelect(w http.ResponseWriter, r *http.Request) {
	dir, err := s.service.ListCrew(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	q := r.URL.Query()
	sel, err := view.ParseSelection(q.Get("crew1"), q.Get("crew2"))
	if err != nil {
		sel = view.CrewSelection{First: sel.First}
	}

	if err := s.renderPartial(w, http.StatusOK, "crew_select", newCrewSelect(sel, dir), "partials/crew_select.html"); err != nil {
		s.logger.Error("render partial error", "error", err)
	}
}
