package web_test

import (
	"bufio"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vbonduro/containerlog/internal/db"
	"github.com/vbonduro/containerlog/internal/docstore/sqlite"
	"github.com/vbonduro/containerlog/internal/format"
	"github.com/vbonduro/containerlog/internal/service"
	"github.com/vbonduro/containerlog/internal/store"
	"github.com/vbonduro/containerlog/internal/web"
	"github.com/vbonduro/containerlog/internal/web/templates"
)

var rowIDPattern = regexp.MustCompile(`id="row-([^"]+)"`)

type testEnv struct {
	srv  *httptest.Server
	svc  *service.ContainerService
	docs *sqlite.Store
}

// newTestServer sets up a real web.Server backed by in-memory SQLite. Server
// timestamps start at 13:00 UTC and advance five minutes per write.
func newTestServer(t *testing.T) (*testEnv, func()) {
	t.Helper()
	database, err := db.OpenForTesting()
	if err != nil {
		t.Fatalf("OpenForTesting: %v", err)
	}

	docs := sqlite.New(database, slog.Default())
	var mu sync.Mutex
	next := time.Date(2025, 3, 4, 13, 0, 0, 0, time.UTC)
	docs.SetClock(func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		at := next
		next = next.Add(5 * time.Minute)
		return at
	})

	svc := service.NewContainerService(
		store.NewContainerStore(docs, "logs"),
		store.NewCrewStore(docs, "crew"),
		slog.Default(),
	)
	srv := httptest.NewServer(web.NewServer(svc, templates.FS, format.New(time.UTC), slog.Default()))
	return &testEnv{srv: srv, svc: svc, docs: docs}, func() {
		srv.Close()
		_ = database.Close()
	}
}

// noRedirect returns a client that reports redirects instead of following
// them.
func noRedirect() *http.Client {
	return &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	_ = resp.Body.Close()
	return string(body)
}

func createContainer(t *testing.T, env *testEnv, number, cases, skus string) {
	t.Helper()
	resp, err := http.PostForm(env.srv.URL+"/containers", url.Values{
		"containerNumber": {number},
		"caseNumber":      {cases},
		"skuNumber":       {skus},
	})
	if err != nil {
		t.Fatalf("POST /containers: %v", err)
	}
	if body := readBody(t, resp); resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /containers status %d: %s", resp.StatusCode, body)
	}
}

// rowID reads the record id of the only row on the list page.
func rowID(t *testing.T, env *testEnv) string {
	t.Helper()
	resp, err := http.Get(env.srv.URL + "/containers")
	if err != nil {
		t.Fatalf("GET /containers: %v", err)
	}
	body := readBody(t, resp)
	m := rowIDPattern.FindStringSubmatch(body)
	if m == nil {
		t.Fatalf("no row in list page:\n%s", body)
	}
	return m[1]
}

func post(t *testing.T, env *testEnv, path string) *http.Response {
	t.Helper()
	resp, err := http.Post(env.srv.URL+path, "application/x-www-form-urlencoded", nil)
	if err != nil {
		t.Fatalf("POST %s: %v", path, err)
	}
	return resp
}

func TestIntegration_ContainerLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "MSCU1234567", "1200", "15")
	id := rowID(t, env)

	resp := post(t, env, "/containers/"+id+"/start")
	if body := readBody(t, resp); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("start status %d: %s", resp.StatusCode, body)
	}
	resp = post(t, env, "/containers/"+id+"/finish")
	if body := readBody(t, resp); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("finish status %d: %s", resp.StatusCode, body)
	}

	resp, err := http.Get(env.srv.URL + "/container/MSCU1234567")
	if err != nil {
		t.Fatalf("GET detail: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	for _, want := range []string{"1,200", "Completed", "1:05 PM", "1:10 PM", "0 hr 5 min", "March 4, 2025"} {
		if !strings.Contains(body, want) {
			t.Errorf("detail page does not contain %q:\n%s", want, body)
		}
	}
}

func TestIntegration_StartTwiceConflicts(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "HLBU1", "10", "2")
	id := rowID(t, env)

	resp := post(t, env, "/containers/"+id+"/finish")
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("finish before start: expected 409, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "can only finish containers in progress") {
		t.Errorf("missing guard reason:\n%s", body)
	}

	readBody(t, post(t, env, "/containers/"+id+"/start"))
	resp = post(t, env, "/containers/"+id+"/start")
	readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Errorf("second start: expected 409, got %d", resp.StatusCode)
	}
}

func TestIntegration_CreateRejections(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.PostForm(env.srv.URL+"/containers", url.Values{"caseNumber": {"-3"}, "skuNumber": {"x"}})
	if err != nil {
		t.Fatalf("POST /containers: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	for _, want := range []string{"caseNumber: must not be negative", "skuNumber: must be a whole number", "containerNumber: is required"} {
		if !strings.Contains(body, want) {
			t.Errorf("form does not contain %q:\n%s", want, body)
		}
	}

	createContainer(t, env, "TGHU9", "1", "1")
	resp, err = http.PostForm(env.srv.URL+"/containers", url.Values{
		"containerNumber": {"TGHU9"}, "caseNumber": {"2"}, "skuNumber": {"2"},
	})
	if err != nil {
		t.Fatalf("POST /containers: %v", err)
	}
	body = readBody(t, resp)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate: expected 409, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, `value="TGHU9"`) {
		t.Errorf("rejected form lost its values:\n%s", body)
	}
}

func TestIntegration_ContainerNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := http.Get(env.srv.URL + "/container/NOPE1")
	if err != nil {
		t.Fatalf("GET detail: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "NOPE1") {
		t.Errorf("not found page does not name the key:\n%s", body)
	}
}

func TestIntegration_SaveFollowsNewNumber(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "OLD1", "5", "1")

	form := url.Values{
		"containerNumber": {"NEW1"},
		"caseNumber":      {"6"},
		"skuNumber":       {"1"},
		"status":          {"Not Started"},
	}
	resp, err := noRedirect().PostForm(env.srv.URL+"/container/OLD1", form)
	if err != nil {
		t.Fatalf("POST save: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/container/NEW1" {
		t.Errorf("Location = %q, want /container/NEW1", loc)
	}

	req, err := http.NewRequest(http.MethodPost, env.srv.URL+"/container/NEW1", strings.NewReader(url.Values{
		"containerNumber": {"NEW2"}, "caseNumber": {"6"}, "skuNumber": {"1"}, "status": {"Not Started"},
	}.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("HX-Request", "true")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST save: %v", err)
	}
	readBody(t, resp)
	if got := resp.Header.Get("HX-Redirect"); got != "/container/NEW2" {
		t.Errorf("HX-Redirect = %q, want /container/NEW2", got)
	}

	resp, err = http.Get(env.srv.URL + "/container/OLD1")
	if err != nil {
		t.Fatalf("GET old key: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("old key: expected 404, got %d", resp.StatusCode)
	}
}

func TestIntegration_SaveRejectsBadDraft(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "EDIT1", "5", "1")

	resp, err := http.PostForm(env.srv.URL+"/container/EDIT1", url.Values{
		"containerNumber": {"EDIT1"},
		"caseNumber":      {"5"},
		"skuNumber":       {"1"},
		"status":          {"Completed"},
		"startTime":       {"2025-03-04T10:00"},
		"endTime":         {"2025-03-04T09:00"},
	})
	if err != nil {
		t.Fatalf("POST save: %v", err)
	}
	body := readBody(t, resp)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", resp.StatusCode)
	}
	if !strings.Contains(body, "endTime: must not be before start time") {
		t.Errorf("missing problem:\n%s", body)
	}
	if !strings.Contains(body, `value="2025-03-04T09:00"`) {
		t.Errorf("edit form lost the draft:\n%s", body)
	}
}

func TestIntegration_DeleteRequiresConfirmation(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "DEL1", "1", "1")

	resp, err := http.Get(env.srv.URL + "/container/DEL1/delete")
	if err != nil {
		t.Fatalf("GET delete gate: %v", err)
	}
	if body := readBody(t, resp); !strings.Contains(body, "confirm=yes") {
		t.Errorf("gate page has no confirmation:\n%s", body)
	}

	del := func(query string) *http.Response {
		req, err := http.NewRequest(http.MethodDelete, env.srv.URL+"/container/DEL1"+query, nil)
		if err != nil {
			t.Fatalf("new request: %v", err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatalf("DELETE: %v", err)
		}
		readBody(t, resp)
		return resp
	}

	if resp := del(""); resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("unconfirmed delete: expected 400, got %d", resp.StatusCode)
	}
	resp, err = http.Get(env.srv.URL + "/container/DEL1")
	if err != nil {
		t.Fatalf("GET detail: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("record gone after unconfirmed delete: %d", resp.StatusCode)
	}

	resp = del("?confirm=yes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("confirmed delete: expected 200, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("HX-Redirect"); got != "/containers" {
		t.Errorf("HX-Redirect = %q, want /containers", got)
	}
}

func TestIntegration_StreamPushesChanges(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "FIRST1", "1", "1")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, env.srv.URL+"/containers/stream", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET stream: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	reader := bufio.NewReader(resp.Body)
	nextEvent := func() string {
		var sb strings.Builder
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				t.Fatalf("read stream: %v", err)
			}
			if line == "\n" {
				return sb.String()
			}
			sb.WriteString(line)
		}
	}

	first := nextEvent()
	if !strings.HasPrefix(first, "event: rows\n") || !strings.Contains(first, "FIRST1") {
		t.Fatalf("unexpected first event:\n%s", first)
	}

	createContainer(t, env, "SECOND2", "1", "1")
	for {
		ev := nextEvent()
		if strings.Contains(ev, "SECOND2") {
			if strings.Index(ev, "SECOND2") > strings.Index(ev, "FIRST1") {
				t.Errorf("newest record is not first:\n%s", ev)
			}
			break
		}
	}

	cancel()
	deadline := time.Now().Add(5 * time.Second)
	for env.docs.Subscribers("logs") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("stream subscription not released after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestIntegration_CrewPages(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	ana, err := env.svc.AddCrewMember(context.Background(), "Ana", "Silva")
	if err != nil {
		t.Fatalf("AddCrewMember: %v", err)
	}
	if _, err := env.svc.AddCrewMember(context.Background(), "Jun", "Park"); err != nil {
		t.Fatalf("AddCrewMember: %v", err)
	}

	resp, err := http.Get(env.srv.URL + "/crew")
	if err != nil {
		t.Fatalf("GET /crew: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "Ana") || !strings.Contains(body, "Park") {
		t.Errorf("crew page missing members:\n%s", body)
	}

	resp, err = http.Get(env.srv.URL + "/crew/select?crew1=" + ana.ID + "&crew2=" + ana.ID)
	if err != nil {
		t.Fatalf("GET /crew/select: %v", err)
	}
	body = readBody(t, resp)
	if n := strings.Count(body, `value="`+ana.ID+`"`); n != 1 {
		t.Errorf("Ana offered %d times, want only in the first slot:\n%s", n, body)
	}

	createForm := url.Values{
		"containerNumber": {"CREW1"}, "caseNumber": {"1"}, "skuNumber": {"1"},
		"crew1": {ana.ID},
	}
	resp, err = http.PostForm(env.srv.URL+"/containers", createForm)
	if err != nil {
		t.Fatalf("POST /containers: %v", err)
	}
	readBody(t, resp)

	resp, err = http.Get(env.srv.URL + "/containers")
	if err != nil {
		t.Fatalf("GET /containers: %v", err)
	}
	if body := readBody(t, resp); !strings.Contains(body, "Ana Silva") {
		t.Errorf("list does not show assigned crew:\n%s", body)
	}
}

func TestIntegration_Metrics(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	createContainer(t, env, "MET1", "1", "1")

	resp, err := http.Get(env.srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	body := readBody(t, resp)
	if !strings.Contains(body, "containerlog_operations_total") {
		t.Errorf("metrics output missing operation counter")
	}
}

func TestIntegration_RootRedirects(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	env, cleanup := newTestServer(t)
	defer cleanup()

	resp, err := noRedirect().Get(env.srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	readBody(t, resp)
	if resp.StatusCode != http.StatusSeeOther || resp.Header.Get("Location") != "/containers" {
		t.Errorf("got %d to %q", resp.StatusCode, resp.Header.Get("Location"))
	}
}
