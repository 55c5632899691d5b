package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"

	"montage/internal/adapters/storage/localfs"
	api "montage/internal/contracts/render/v1"
	"montage/internal/httpapi/handlers"
	"montage/internal/jobs"
	"montage/internal/models"
	"montage/internal/pkg/errors"
	"montage/internal/pkg/logger"
	"montage/internal/ports"
	"montage/internal/timeline"
)

const baseURL = "http://render.test"

type stubSubmitter struct {
	store *jobs.Store
	root  string

	mu   sync.Mutex
	last timeline.Design
}

func (s *stubSubmitter) Submit(ctx context.Context, design timeline.Design) (jobs.Job, error) {
	id := uuid.NewString()
	j := jobs.New(id, filepath.Join(s.root, id))
	if err := s.store.Insert(j); err != nil {
		return jobs.Job{}, err
	}
	s.mu.Lock()
	s.last = design
	s.mu.Unlock()
	return j, nil
}

type memTemplates struct {
	mu    sync.Mutex
	items map[string]*models.Template
}

func newMemTemplates() *memTemplates {
	return &memTemplates{items: make(map[string]*models.Template)}
}

func (m *memTemplates) Create(ctx context.Context, t *models.Template) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.items {
		if existing.Name == t.Name {
			return errors.Newf(errors.CodeConflict, "template name already exists: %s", t.Name)
		}
	}
	cp := *t
	m.items[t.ID] = &cp
	return nil
}

func (m *memTemplates) List(ctx context.Context) ([]models.TemplateSummary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []models.TemplateSummary{}
	for _, t := range m.items {
		out = append(out, models.TemplateSummary{ID: t.ID, Name: t.Name, Items: len(t.Design.Items())})
	}
	return out, nil
}

func (m *memTemplates) Get(ctx context.Context, id string) (*models.Template, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.items[id]
	if !ok {
		return nil, errors.NotFound("template", id)
	}
	cp := *t
	return &cp, nil
}

func (m *memTemplates) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.items[id]; !ok {
		return errors.NotFound("template", id)
	}
	delete(m.items, id)
	return nil
}

type testServer struct {
	handler http.Handler
	store   *jobs.Store
	exec    *stubSubmitter
	root    string
}

func newTestServer(t *testing.T, templates handlers.TemplateStore, sp ports.StorageProvider) *testServer {
	t.Helper()
	root := t.TempDir()
	store := jobs.NewStore()
	exec := &stubSubmitter{store: store, root: root}

	h := NewRouter(Deps{
		Handlers: handlers.Deps{
			Jobs:      store,
			Exec:      exec,
			Templates: templates,
			SP:        sp,
			BaseURL:   baseURL + "/",
		},
		Log: logger.Discard(),
	})
	return &testServer{handler: h, store: store, exec: exec, root: root}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, body)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) doJSON(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return s.do(t, method, path, r, "application/json")
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var env struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode error envelope: %v (%s)", err, rec.Body.String())
	}
	return env.Error.Code
}

const minimalDesign = `{"trackItems":[{"id":"bg","type":"image","details":{"src":"https://cdn.test/bg.png","left":"50px"},"editorOnly":true}]}`

func TestPostRender(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.doJSON(t, "POST", "/render", `{"design":`+minimalDesign+`,"options":{"fps":24,"size":{"width":720,"height":1280}}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp api.SubmitResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if _, ok := s.store.Get(resp.JobID); !ok {
		t.Fatalf("expected job %s in store", resp.JobID)
	}

	got := s.exec.last
	if got.FrameRate() != 24 || got.Canvas() != (timeline.Size{Width: 720, Height: 1280}) {
		t.Errorf("expected options merged into design, got fps=%d canvas=%+v", got.FrameRate(), got.Canvas())
	}
	if len(got.Items()) != 1 {
		t.Errorf("expected one item, got %d", len(got.Items()))
	}
}

func TestPostRenderValidation(t *testing.T) {
	s := newTestServer(t, nil, nil)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{"malformed json", `{"design":`, 400, "VALIDATION_ERROR"},
		{"missing design", `{"options":{"fps":30}}`, 400, "VALIDATION_ERROR"},
		{"unsupported format", `{"design":` + minimalDesign + `,"options":{"format":"webm"}}`, 400, "VALIDATION_ERROR"},
		{"unknown item type", `{"design":{"trackItems":[{"type":"sticker"}]}}`, 400, "VALIDATION_ERROR"},
		{"template without database", `{"template_id":"` + uuid.NewString() + `"}`, 503, "UNAVAILABLE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(t, "POST", "/render", tt.body)
			if rec.Code != tt.status {
				t.Fatalf("expected %d, got %d: %s", tt.status, rec.Code, rec.Body.String())
			}
			if code := errorCode(t, rec); code != tt.code {
				t.Errorf("expected code %s, got %s", tt.code, code)
			}
		})
	}

	if s.store.Len() != 0 {
		t.Errorf("rejected submissions must not create jobs, got %d", s.store.Len())
	}
}

func TestGetRenderStatus(t *testing.T) {
	s := newTestServer(t, nil, nil)

	pending := jobs.New(uuid.NewString(), "")
	done := jobs.New(uuid.NewString(), "")
	failed := jobs.New(uuid.NewString(), "")
	for _, j := range []jobs.Job{pending, done, failed} {
		if err := s.store.Insert(j); err != nil {
			t.Fatal(err)
		}
	}
	_, _ = s.store.MarkRunning(done.ID)
	_, _ = s.store.Complete(done.ID, filepath.Join(s.root, "output.mp4"), "renders/x/output.mp4")
	_, _ = s.store.MarkRunning(failed.ID)
	_, _ = s.store.SetProgress(failed.ID, 35)
	_, _ = s.store.Fail(failed.ID, "engine exited with status 1")

	tests := []struct {
		name     string
		id       string
		status   string
		progress int
		url      *string
		errMsg   *string
	}{
		{"pending", pending.ID, "PENDING", 0, nil, nil},
		{"completed", done.ID, "COMPLETED", 100, ptr(baseURL + "/render/" + done.ID + "/output"), nil},
		{"failed", failed.ID, "FAILED", 35, nil, ptr("engine exited with status 1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.doJSON(t, "GET", "/render/"+tt.id, "")
			if rec.Code != http.StatusOK {
				t.Fatalf("expected 200, got %d", rec.Code)
			}
			var got api.Status
			if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
				t.Fatal(err)
			}
			if got.Status != tt.status || got.Progress != tt.progress {
				t.Errorf("expected %s/%d, got %s/%d", tt.status, tt.progress, got.Status, got.Progress)
			}
			if !sameString(got.URL, tt.url) {
				t.Errorf("unexpected url %v", deref(got.URL))
			}
			if !sameString(got.Error, tt.errMsg) {
				t.Errorf("unexpected error %v", deref(got.Error))
			}
		})
	}

	t.Run("null fields present", func(t *testing.T) {
		rec := s.doJSON(t, "GET", "/render/"+pending.ID, "")
		if !strings.Contains(rec.Body.String(), `"url":null`) || !strings.Contains(rec.Body.String(), `"error":null`) {
			t.Errorf("expected explicit nulls, got %s", rec.Body.String())
		}
	})

	t.Run("malformed id", func(t *testing.T) {
		rec := s.doJSON(t, "GET", "/render/not-a-job", "")
		if rec.Code != http.StatusBadRequest || errorCode(t, rec) != "VALIDATION_ERROR" {
			t.Errorf("expected 400 VALIDATION_ERROR, got %d %s", rec.Code, rec.Body.String())
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		rec := s.doJSON(t, "GET", "/render/"+uuid.NewString(), "")
		if rec.Code != http.StatusNotFound || errorCode(t, rec) != "NOT_FOUND" {
			t.Errorf("expected 404 NOT_FOUND, got %d %s", rec.Code, rec.Body.String())
		}
	})
}

func TestGetRenderOutput(t *testing.T) {
	s := newTestServer(t, nil, nil)

	job := jobs.New(uuid.NewString(), s.root)
	if err := s.store.Insert(job); err != nil {
		t.Fatal(err)
	}

	rec := s.doJSON(t, "GET", "/render/"+job.ID+"/output", "")
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "NOT_READY" {
		t.Fatalf("expected 409 NOT_READY, got %d %s", rec.Code, rec.Body.String())
	}

	out := filepath.Join(s.root, "output.mp4")
	if err := os.WriteFile(out, []byte("mp4-bytes"), 0o644); err != nil {
		t.Fatal(err)
	}
	_, _ = s.store.MarkRunning(job.ID)
	_, _ = s.store.Complete(job.ID, out, "")

	rec = s.doJSON(t, "GET", "/render/"+job.ID+"/output", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "video/mp4" {
		t.Errorf("expected video/mp4, got %s", ct)
	}
	if rec.Body.String() != "mp4-bytes" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestListRenders(t *testing.T) {
	s := newTestServer(t, nil, nil)

	for i := 0; i < 3; i++ {
		if err := s.store.Insert(jobs.New(uuid.NewString(), "")); err != nil {
			t.Fatal(err)
		}
	}
	failed := jobs.New(uuid.NewString(), "")
	_ = s.store.Insert(failed)
	_, _ = s.store.Fail(failed.ID, "bad status 404")

	var resp api.StatusList

	rec := s.doJSON(t, "GET", "/render?status=failed", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 1 || resp.Jobs[0].ID != failed.ID {
		t.Errorf("expected only the failed job, got %+v", resp.Jobs)
	}

	rec = s.doJSON(t, "GET", "/render?limit=2", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Jobs) != 2 {
		t.Errorf("expected limit applied, got %d jobs", len(resp.Jobs))
	}

	rec = s.doJSON(t, "GET", "/render?status=paused", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown status, got %d", rec.Code)
	}
}

func TestTemplates(t *testing.T) {
	s := newTestServer(t, newMemTemplates(), nil)

	rec := s.doJSON(t, "POST", "/templates", `{"name":"intro","description":"opening card","design":`+minimalDesign+`}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var created struct {
		Template models.Template `json:"template"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &created); err != nil {
		t.Fatal(err)
	}
	id := created.Template.ID

	if rec := s.doJSON(t, "POST", "/templates", `{"name":"intro","design":{}}`); rec.Code != http.StatusConflict {
		t.Errorf("expected 409 for duplicate name, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "POST", "/templates", `{"name":" "}`); rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank name, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "GET", "/templates/"+id, ""); rec.Code != http.StatusOK {
		t.Errorf("expected 200 on get, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "GET", "/templates", ""); !strings.Contains(rec.Body.String(), id) {
		t.Errorf("expected template in listing, got %s", rec.Body.String())
	}

	rec = s.doJSON(t, "POST", "/render", `{"template_id":"`+id+`","options":{"fps":60}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected template render accepted, got %d: %s", rec.Code, rec.Body.String())
	}
	if s.exec.last.FrameRate() != 60 || len(s.exec.last.Items()) != 1 {
		t.Errorf("expected template design with fps override, got %+v", s.exec.last)
	}

	if rec := s.doJSON(t, "DELETE", "/templates/"+id, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204 on delete, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "GET", "/templates/"+id, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "POST", "/render", `{"template_id":"`+id+`"}`); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 rendering a deleted template, got %d", rec.Code)
	}
}

func TestAssets(t *testing.T) {
	t.Run("storage disabled", func(t *testing.T) {
		s := newTestServer(t, nil, nil)
		if rec := s.doJSON(t, "GET", "/assets/assets/x/a.png", ""); rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
	})

	s := newTestServer(t, nil, localfs.New(t.TempDir()))

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "logo mark.png")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("png-bytes"))
	_ = mw.Close()

	rec := s.do(t, "POST", "/assets", &buf, mw.FormDataContentType())
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Asset struct {
			ObjectKey string `json:"object_key"`
			Src       string `json:"src"`
		} `json:"asset"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	key := resp.Asset.ObjectKey
	if !strings.HasPrefix(key, "assets/") || !strings.HasSuffix(key, "/logo_mark.png") {
		t.Errorf("unexpected object key %s", key)
	}
	if resp.Asset.Src != "asset://"+key {
		t.Errorf("unexpected src %s", resp.Asset.Src)
	}

	rec = s.doJSON(t, "GET", "/assets/"+key, "")
	if rec.Code != http.StatusOK || rec.Body.String() != "png-bytes" {
		t.Errorf("expected stored bytes, got %d %q", rec.Code, rec.Body.String())
	}

	if rec := s.doJSON(t, "DELETE", "/assets/"+key, ""); rec.Code != http.StatusNoContent {
		t.Errorf("expected 204, got %d", rec.Code)
	}
	if rec := s.doJSON(t, "GET", "/assets/"+key, ""); rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 after delete, got %d", rec.Code)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil, nil)

	rec := s.doJSON(t, "GET", "/health?deep=true", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Status string                    `json:"status"`
		Checks map[string]map[string]any `json:"checks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Status != "ok" {
		t.Errorf("disabled dependencies must not degrade health, got %s", body.Status)
	}
	if body.Checks["postgres"]["status"] != "disabled" {
		t.Errorf("expected postgres disabled, got %v", body.Checks["postgres"])
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request id header")
	}
}

func ptr(s string) *string { return &s }

func deref(s *string) string {
	if s == nil {
		return "<nil>"
	}
	return *s
}

func sameString(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
