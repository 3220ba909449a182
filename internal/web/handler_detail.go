package web

import (
	"net/http"

	"github.com/vbonduro/containerlog/internal/view"
)

var detailFiles = []string{
	"base.html", "pages/container_detail.html",
	"partials/crew_select.html", "partials/errors.html",
}

type detailData struct {
	Key        string
	Row        view.Row
	Editing    bool
	Draft      view.Draft
	Crew       crewSelect
	Confirming bool
	Problems   []string
	ActiveNav  string
}

func (s *Server) newDetailData(v *view.DetailView, err error) detailData {
	row, _ := v.Row()
	d := detailData{
		Key:        v.Key(),
		Row:        row,
		Editing:    v.Editing(),
		Confirming: v.Confirming(),
		Problems:   problems(err),
		ActiveNav:  "containers",
	}
	if d.Editing {
		d.Draft = v.Draft()
		d.Crew = newCrewSelect(d.Draft.Crew, v.Crew())
	}
	return d
}

// loadDetail loads the container named in the path. It writes the response
// itself and returns false when there is nothing to show.
func (s *Server) loadDetail(w http.ResponseWriter, r *http.Request) (*view.DetailView, bool) {
	v := view.NewDetailView(s.service, s.format, s.logger)
	if err := v.Load(r.Context(), r.PathValue("number")); err != nil {
		s.renderError(w, r, err)
		return nil, false
	}
	if v.NotFound() {
		if err := s.renderPage(w, http.StatusNotFound,
			map[string]any{"Key": v.Key(), "ActiveNav": "containers"},
			"base.html", "pages/not_found.html",
		); err != nil {
			s.logger.Error("render page error", "error", err)
		}
		return nil, false
	}
	return v, true
}

func (s *Server) renderDetail(w http.ResponseWriter, status int, v *view.DetailView, err error) {
	if rerr := s.renderPage(w, status, s.newDetailData(v, err), detailFiles...); rerr != nil {
		s.logger.Error("render page error", "error", rerr)
	}
}

func (s *Server) handleGetContainer(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	s.renderDetail(w, http.StatusOK, v, nil)
}

func (s *Server) handleEditContainer(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	if err := v.BeginEdit(); err != nil {
		s.renderError(w, r, err)
		return
	}
	s.renderDetail(w, http.StatusOK, v, nil)
}

func (s *Server) handleSaveContainer(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}

	d := view.Draft{
		ContainerNumber: r.FormValue("containerNumber"),
		CaseNumber:      r.FormValue("caseNumber"),
		SkuNumber:       r.FormValue("skuNumber"),
		Status:          r.FormValue("status"),
		StartTime:       r.FormValue("startTime"),
		EndTime:         r.FormValue("endTime"),
		Crew:            view.CrewSelection{First: r.FormValue("crew1"), Second: r.FormValue("crew2")},
	}
	if err := v.Save(r.Context(), d); err != nil {
		s.renderDetail(w, statusFor(err), v, err)
		return
	}

	// The container number may have changed; follow it.
	target := containerPath(v.Key())
	if r.Header.Get("HX-Request") == "true" {
		w.Header().Set("HX-Redirect", target)
		w.WriteHeader(http.StatusOK)
		return
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (s *Server) handleConfirmDelete(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	v.RequestDelete()
	s.renderDetail(w, http.StatusOK, v, nil)
}

// handleDeleteContainer deletes only when the request carries confirm=yes,
// the answer of the confirmation gate.
func (s *Server) handleDeleteContainer(w http.ResponseWriter, r *http.Request) {
	v, ok := s.loadDetail(w, r)
	if !ok {
		return
	}
	if r.URL.Query().Get("confirm") == "yes" {
		v.RequestDelete()
	}
	if err := v.ConfirmDelete(r.Context()); err != nil {
		s.renderError(w, r, err)
		return
	}

	w.Header().Set("HX-Redirect", "/containers")
	w.WriteHeader(http.StatusOK)
}
