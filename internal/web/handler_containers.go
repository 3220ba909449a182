package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vbonduro/containerlog/internal/domain"
	"github.com/vbonduro/containerlog/internal/view"
)

const firstSnapshotTimeout = 5 * time.Second

var (
	rowFiles  = []string{"partials/container_rows.html", "partials/container_row.html"}
	formFiles = []string{"partials/create_form.html", "partials/crew_select.html", "partials/errors.html"}
)

// crewSelect holds the options of both crew dropdowns.
type crewSelect struct {
	First  []view.CrewOption
	Second []view.CrewOption
}

func newCrewSelect(sel view.CrewSelection, dir []domain.CrewMember) crewSelect {
	return crewSelect{
		First:  sel.Options(dir, view.SlotFirst),
		Second: sel.Options(dir, view.SlotSecond),
	}
}

type createFormData struct {
	Form     view.CreateForm
	Crew     crewSelect
	Problems []string
}

type rowsData struct {
	Rows        []view.Row
	Interrupted bool
}

func (s *Server) handleListContainers(w http.ResponseWriter, r *http.Request) {
	rows, err := s.currentRows(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}
	dir, err := s.service.ListCrew(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	files := append([]string{"base.html", "pages/containers.html"}, rowFiles...)
	files = append(files, formFiles...)
	if err := s.renderPage(w, http.StatusOK,
		map[string]any{
			"Rows":      rowsData{Rows: rows},
			"Form":      createFormData{Crew: newCrewSelect(view.CrewSelection{}, dir)},
			"ActiveNav": "containers",
		},
		files...,
	); err != nil {
		s.logger.Error("render page error", "error", err)
	}
}

// currentRows mounts a list view just long enough to read the first
// snapshot.
func (s *Server) currentRows(ctx context.Context) ([]view.Row, error) {
	lv := view.NewListView(s.service, s.format, s.logger)
	if err := lv.Mount(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := lv.Unmount(); err != nil {
			s.logger.Warn("unmount list view", "error", err)
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, firstSnapshotTimeout)
	defer cancel()
	for {
		select {
		case <-lv.Changed():
			if lv.Loaded() {
				return lv.Rows(), nil
			}
			if err := lv.Err(); err != nil {
				return nil, err
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("failed to load containers: %w", ctx.Err())
		}
	}
}

// handleStreamContainers pushes the rendered rows as server-sent events for
// as long as the client stays connected. Each connection owns one list view.
func (s *Server) handleStreamContainers(w http.ResponseWriter, r *http.Request) {
	tmpl, err := s.parse(rowFiles...)
	if err != nil {
		http.Error(w, "template error", http.StatusInternalServerError)
		s.logger.Error("parse rows template", "error", err)
		return
	}

	lv := view.NewListView(s.service, s.format, s.logger)
	if err := lv.Mount(r.Context()); err != nil {
		s.renderError(w, r, err)
		return
	}
	defer func() {
		if err := lv.Unmount(); err != nil {
			s.logger.Warn("unmount list view", "error", err)
		}
	}()

	rc := http.NewResponseController(w)
	// The stream outlives the server write timeout.
	_ = rc.SetWriteDeadline(time.Time{})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if err := rc.Flush(); err != nil {
		s.logger.Warn("stream flush unsupported", "error", err)
		return
	}

	var buf bytes.Buffer
	for {
		select {
		case <-r.Context().Done():
			return
		case <-lv.Changed():
		}
		if !lv.Loaded() {
			continue
		}

		buf.Reset()
		data := rowsData{Rows: lv.Rows(), Interrupted: lv.Err() != nil}
		if err := tmpl.ExecuteTemplate(&buf, "container_rows", data); err != nil {
			s.logger.Error("render rows", "error", err)
			return
		}
		if err := writeEvent(w, "rows", buf.Bytes()); err != nil {
			return
		}
		if err := rc.Flush(); err != nil {
			return
		}
	}
}

// writeEvent writes one server-sent event. Multi-line payloads become one
// data field per line.
func writeEvent(w io.Writer, event string, payload []byte) error {
	if _, err := fmt.Fprintf(w, "event: %s\n", event); err != nil {
		return err
	}
	for _, line := range bytes.Split(bytes.TrimRight(payload, "\n"), []byte("\n")) {
		if _, err := fmt.Fprintf(w, "data: %s\n", bytes.TrimRight(line, "\r")); err != nil {
			return err
		}
	}
	_, err := io.WriteString(w, "\n")
	return err
}

func (s *Server) handleCreateContainer(w http.ResponseWriter, r *http.Request) {
	dir, err := s.service.ListCrew(r.Context())
	if err != nil {
		s.renderError(w, r, err)
		return
	}

	form := view.CreateForm{
		ContainerNumber: r.FormValue("containerNumber"),
		CaseNumber:      r.FormValue("caseNumber"),
		SkuNumber:       r.FormValue("skuNumber"),
		Crew:            view.CrewSelection{First: r.FormValue("crew1"), Second: r.FormValue("crew2")},
	}

	data := createFormData{Crew: newCrewSelect(view.CrewSelection{}, dir)}
	status := http.StatusCreated
	if _, err := form.Submit(r.Context(), s.service, dir); err != nil {
		status = statusFor(err)
		if status == http.StatusInternalServerError {
			s.logger.Error("create container error", "error", err)
		}
		data = createFormData{Form: form, Crew: newCrewSelect(form.Crew, dir), Problems: problems(err)}
	}

	if err := s.renderPartial(w, status, "create_form", data, formFiles...); err != nil {
		s.logger.Error("render partial error", "error", err)
	}
}

// handleStartContainer and handleFinishContainer answer with no body; the
// new state reaches every open list through its stream.
func (s *Server) handleStartContainer(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.StartContainer(r.Context(), r.PathValue("id")); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleFinishContainer(w http.ResponseWriter, r *http.Request) {
	if _, err := s.service.FinishContainer(r.Context(), r.PathValue("id")); err != nil {
		s.renderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
