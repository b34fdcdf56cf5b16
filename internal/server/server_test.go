package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"hireflow/internal/app"
	"hireflow/internal/config"
	"hireflow/pkg/domain"
	"hireflow/pkg/queue"
	"hireflow/pkg/store"
)

type memObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemObjects() *memObjects {
	return &memObjects{objects: map[string][]byte{}}
}

func (m *memObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return nil
}

func (m *memObjects) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return data, nil
}

func (m *memObjects) PresignGet(_ context.Context, key string, _ time.Duration) (string, error) {
	return "https://objects.test/" + key, nil
}

func (m *memObjects) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

type fakeEmbedder struct{}

func (fakeEmbedder) EmbedText(_ context.Context, text string) ([]float32, error) {
	var a, b float32
	for i, r := range text {
		if i%2 == 0 {
			a += float32(r % 13)
		} else {
			b += float32(r % 7)
		}
	}
	vec := []float32{a + 1, b + 1, 1}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
	return vec, nil
}

func (f fakeEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := f.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

type fixedGenerator struct{ response string }

func (g fixedGenerator) GenerateText(context.Context, string, string) (string, error) {
	return g.response, nil
}

const extractionJSON = `{
	"education": [{"institution": "Universitas Indonesia", "degree": "S1", "major": "Informatika", "year": "2019"}],
	"experience": [{"company": "PT Maju", "role": "Backend Engineer", "duration": "3 years", "details": "Built services"}],
	"skills": ["Go", "PostgreSQL"],
	"verdict": "Strong match for the role.",
	"summary": "Experienced backend engineer."
}`

type testEnv struct {
	app     *app.App
	store   *store.MemoryStore
	handler http.Handler
}

func newTestServer(t *testing.T) *testEnv {
	t.Helper()
	mr := miniredis.RunT(t)
	q, err := queue.NewRedisJobQueue(queue.RedisQueueConfig{
		Addr:     mr.Addr(),
		Consumer: "test",
	})
	if err != nil {
		t.Fatalf("queue: %v", err)
	}
	cfg := config.FileConfig{
		ChunkSize:                800,
		ChunkOverlap:             100,
		TopK:                     5,
		EmbeddingBatchSize:       4,
		EmbeddingConcurrency:     2,
		MaxUploadBytes:           1 << 20,
		QueueConcurrency:         1,
		GenerationTimeoutSeconds: 1,
	}
	mem := store.NewMemoryStore()
	a, err := app.New(cfg, app.Options{
		Store:     mem,
		Objects:   newMemObjects(),
		Queue:     q,
		Embedder:  fakeEmbedder{},
		Generator: fixedGenerator{response: extractionJSON},
	})
	if err != nil {
		t.Fatalf("app: %v", err)
	}
	srv := New(Config{App: a, MaxUploadBytes: cfg.MaxUploadBytes})
	return &testEnv{app: a, store: mem, handler: srv.Router()}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) doMultipart(t *testing.T, path, filename string, content []byte, fields map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatalf("form file: %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("write part: %v", err)
	}
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(rec.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v (body %s)", err, rec.Body.String())
	}
}

func createJob(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/jobs", map[string]any{
		"title":       "Backend Engineer",
		"department":  "Engineering",
		"location":    "Jakarta",
		"description": "Build and run backend services.",
		"requirements": []string{
			"3+ years backend experience",
		},
		"requiredSkills": []string{"Go", "PostgreSQL"},
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create job: status %d body %s", rec.Code, rec.Body.String())
	}
	var job struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &job)
	if job.ID == "" {
		t.Fatal("created job has no id")
	}
	return job.ID
}

const resumeText = `Budi Santoso
budi.santoso@example.com
081234567890

Backend engineer with five years of Go and PostgreSQL experience.
Built invoicing and logistics services at PT Maju Bersama.`

func uploadAndIndex(t *testing.T, env *testEnv) string {
	t.Helper()
	rec := env.doMultipart(t, "/screening/resumes", "budi_santoso.txt", []byte(resumeText), nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("upload: status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		Resume struct {
			ID string `json:"id"`
		} `json:"resume"`
		Job struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"job"`
	}
	decodeBody(t, rec, &result)
	if result.Resume.ID == "" {
		t.Fatal("upload response has no resume id")
	}
	if result.Job.Status != queue.StatusQueued {
		t.Fatalf("unexpected initial job status %q", result.Job.Status)
	}
	if err := env.app.BuildIndex(context.Background(), result.Resume.ID); err != nil {
		t.Fatalf("build index: %v", err)
	}
	return result.Resume.ID
}

func TestHealthz(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/healthz", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("content type %q", ct)
	}
}

func TestUploadRejectsUnsupportedExtension(t *testing.T) {
	env := newTestServer(t)
	rec := env.doMultipart(t, "/screening/resumes", "resume.exe", []byte("binary"), nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "VALIDATION_ERROR" {
		t.Fatalf("error code %q", resp.Code)
	}
}

func TestUploadRejectsMissingFile(t *testing.T) {
	env := newTestServer(t)
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	mw.Close()
	req := httptest.NewRequest(http.MethodPost, "/screening/resumes", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestMatchFlow(t *testing.T) {
	env := newTestServer(t)
	jobID := createJob(t, env)
	resumeID := uploadAndIndex(t, env)

	rec := env.do(t, http.MethodPost, "/screening/match", map[string]string{
		"resumeId": resumeID,
		"jobId":    jobID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("match: status %d body %s", rec.Code, rec.Body.String())
	}
	var outcome struct {
		Candidate struct {
			ID    string `json:"id"`
			Name  string `json:"name"`
			Email string `json:"email"`
		} `json:"candidate"`
		Application struct {
			ID         string  `json:"id"`
			MatchScore float64 `json:"matchScore"`
		} `json:"application"`
		Created bool `json:"created"`
	}
	decodeBody(t, rec, &outcome)
	if !outcome.Created {
		t.Fatal("expected a freshly created application")
	}
	if outcome.Candidate.Name != "Budi Santoso" {
		t.Fatalf("candidate name %q", outcome.Candidate.Name)
	}
	if outcome.Candidate.Email != "budi.santoso@example.com" {
		t.Fatalf("candidate email %q", outcome.Candidate.Email)
	}
	if outcome.Application.MatchScore < 0 || outcome.Application.MatchScore > 100 {
		t.Fatalf("score out of range: %v", outcome.Application.MatchScore)
	}

	rec = env.do(t, http.MethodGet, "/screening/candidates?jobId="+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("candidates: status %d body %s", rec.Code, rec.Body.String())
	}
	var matches []struct {
		Candidate struct {
			ID string `json:"id"`
		} `json:"candidate"`
	}
	decodeBody(t, rec, &matches)
	if len(matches) != 1 || matches[0].Candidate.ID != outcome.Candidate.ID {
		t.Fatalf("unexpected candidate list: %+v", matches)
	}

	rec = env.do(t, http.MethodGet, "/tracking/"+outcome.Application.ID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("timeline: status %d body %s", rec.Code, rec.Body.String())
	}
	var timeline struct {
		CurrentStage string `json:"currentStage"`
		History      []struct {
			Action string `json:"action"`
		} `json:"history"`
	}
	decodeBody(t, rec, &timeline)
	if timeline.CurrentStage != "AI_SCREENING" {
		t.Fatalf("timeline stage %q", timeline.CurrentStage)
	}
	if len(timeline.History) != 2 {
		t.Fatalf("expected 2 history entries, got %d", len(timeline.History))
	}
	if timeline.History[0].Action != "AI Screening completed" {
		t.Fatalf("newest history action %q", timeline.History[0].Action)
	}
}

func TestMatchRequiresIndexedResume(t *testing.T) {
	env := newTestServer(t)
	jobID := createJob(t, env)
	resume := domain.Resume{
		ID:         "resume-unindexed",
		Filename:   "budi_santoso.txt",
		StorageKey: "resumes/test/budi_santoso.txt",
		UploadedAt: time.Now().UTC(),
	}
	if err := env.store.SaveResume(resume); err != nil {
		t.Fatalf("save resume: %v", err)
	}

	rec := env.do(t, http.MethodPost, "/screening/match", map[string]string{
		"resumeId": resume.ID,
		"jobId":    jobID,
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestMatchUnknownResume(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/screening/match", map[string]string{
		"resumeId": "missing",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "NOT_FOUND" {
		t.Fatalf("error code %q", resp.Code)
	}
}

func TestMatchRequiresResumeID(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/screening/match", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d", rec.Code)
	}
}

func TestJobsCRUD(t *testing.T) {
	env := newTestServer(t)
	jobID := createJob(t, env)

	rec := env.do(t, http.MethodGet, "/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get: status %d", rec.Code)
	}

	rec = env.do(t, http.MethodPut, "/jobs/"+jobID, map[string]any{
		"title":       "Backend Engineer",
		"description": "Updated description.",
		"status":      "paused",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("update: status %d body %s", rec.Code, rec.Body.String())
	}
	var updated struct {
		Status string `json:"status"`
	}
	decodeBody(t, rec, &updated)
	if updated.Status != "paused" {
		t.Fatalf("status %q after update", updated.Status)
	}

	rec = env.do(t, http.MethodGet, "/jobs", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: status %d", rec.Code)
	}
	var jobs []struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &jobs)
	if len(jobs) != 1 {
		t.Fatalf("expected 1 job, got %d", len(jobs))
	}

	rec = env.do(t, http.MethodDelete, "/jobs/"+jobID, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete: status %d", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/jobs/"+jobID, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("get after delete: status %d", rec.Code)
	}
}

func TestCreateJobValidation(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/jobs", map[string]any{"title": "No description"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func matchedApplicationID(t *testing.T, env *testEnv) string {
	t.Helper()
	jobID := createJob(t, env)
	resumeID := uploadAndIndex(t, env)
	rec := env.do(t, http.MethodPost, "/screening/match", map[string]string{
		"resumeId": resumeID,
		"jobId":    jobID,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("match: status %d body %s", rec.Code, rec.Body.String())
	}
	var outcome struct {
		Application struct {
			ID string `json:"id"`
		} `json:"application"`
	}
	decodeBody(t, rec, &outcome)
	return outcome.Application.ID
}

func TestUpdateStage(t *testing.T) {
	env := newTestServer(t)
	appID := matchedApplicationID(t, env)

	rec := env.do(t, http.MethodPost, "/tracking/update-stage", map[string]string{
		"applicationId": appID,
		"newStage":      "HR_REVIEW",
		"actorName":     "Rina",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var update struct {
		CurrentStage string `json:"currentStage"`
		WhatsAppLink string `json:"whatsappLink"`
	}
	decodeBody(t, rec, &update)
	if update.CurrentStage != "HR_REVIEW" {
		t.Fatalf("stage %q", update.CurrentStage)
	}
	if update.WhatsAppLink != "" {
		t.Fatalf("internal stage should not produce a notification link, got %q", update.WhatsAppLink)
	}
}

func TestUpdateStageInvalidTransition(t *testing.T) {
	env := newTestServer(t)
	appID := matchedApplicationID(t, env)

	rec := env.do(t, http.MethodPost, "/tracking/update-stage", map[string]string{
		"applicationId": appID,
		"newStage":      "HIRED",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStageUnknownStage(t *testing.T) {
	env := newTestServer(t)
	appID := matchedApplicationID(t, env)

	rec := env.do(t, http.MethodPost, "/tracking/update-stage", map[string]string{
		"applicationId": appID,
		"newStage":      "NOT_A_STAGE",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateStageUnknownApplication(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodPost, "/tracking/update-stage", map[string]string{
		"applicationId": "missing",
		"newStage":      "HR_REVIEW",
	})
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestUploadJourneyDocument(t *testing.T) {
	env := newTestServer(t)
	appID := matchedApplicationID(t, env)

	rec := env.doMultipart(t, "/tracking/upload-doc", "offer_letter.pdf", []byte("%PDF-1.4 fake"), map[string]string{
		"applicationId": appID,
		"docType":       "offering",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var result struct {
		URL      string            `json:"url"`
		Metadata map[string]string `json:"metadata"`
	}
	decodeBody(t, rec, &result)
	if !strings.HasPrefix(result.URL, "https://objects.test/documents/") {
		t.Fatalf("unexpected url %q", result.URL)
	}
	if result.Metadata["offering_url"] == "" {
		t.Fatal("metadata missing offering_url")
	}
}

func TestUploadJourneyDocumentMissingApplicationID(t *testing.T) {
	env := newTestServer(t)
	rec := env.doMultipart(t, "/tracking/upload-doc", "offer.pdf", []byte("data"), map[string]string{
		"docType": "offering",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}

func TestDashboardSummary(t *testing.T) {
	env := newTestServer(t)
	matchedApplicationID(t, env)

	rec := env.do(t, http.MethodGet, "/dashboard/summary", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
	var view struct {
		Candidates   int            `json:"candidates"`
		Jobs         int            `json:"jobs"`
		Applications int            `json:"applications"`
		StageCounts  map[string]int `json:"stageCounts"`
	}
	decodeBody(t, rec, &view)
	if view.Candidates != 1 || view.Jobs != 1 || view.Applications != 1 {
		t.Fatalf("unexpected totals: %+v", view)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodDelete, "/screening/match", nil)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status %d", rec.Code)
	}
	var resp errorResponse
	decodeBody(t, rec, &resp)
	if resp.Code != "METHOD_NOT_ALLOWED" {
		t.Fatalf("error code %q", resp.Code)
	}
}

func TestTimelineUnknownApplication(t *testing.T) {
	env := newTestServer(t)
	rec := env.do(t, http.MethodGet, "/tracking/does-not-exist", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status %d body %s", rec.Code, rec.Body.String())
	}
}
