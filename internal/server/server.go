package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"hireflow/internal/app"
	"hireflow/internal/ratelimit"
	"hireflow/internal/util"
	"hireflow/pkg/domain"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App            *app.App
	Limiter        *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
	MaxUploadBytes int64
}

// Server exposes the recruitment pipeline over HTTP.
type Server struct {
	app            *app.App
	limiter        *ratelimit.FixedWindowLimiter
	trustedProxies *util.TrustedProxies
	mux            *http.ServeMux
	maxUploadBytes int64
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	maxUploadBytes := cfg.MaxUploadBytes
	if maxUploadBytes <= 0 {
		maxUploadBytes = 20 * 1024 * 1024
	}
	s := &Server{
		app:            cfg.App,
		limiter:        cfg.Limiter,
		trustedProxies: cfg.TrustedProxies,
		mux:            http.NewServeMux(),
		maxUploadBytes: maxUploadBytes,
	}
	s.routes()
	return s
}

// Router returns the configured handler.
func (s *Server) Router() http.Handler {
	return util.WithRequestID(util.WithRequestLog("hireflow", util.WithSecurityHeaders(util.WithCORS(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("/healthz", s.handleHealth)

	s.mux.Handle("/screening/resumes", s.withRateLimit(http.HandlerFunc(s.handleResumes)))
	s.mux.HandleFunc("/screening/index-jobs/", s.handleIndexJob)
	s.mux.Handle("/screening/match", s.withRateLimit(http.HandlerFunc(s.handleMatch)))
	s.mux.HandleFunc("/screening/candidates", s.handleCandidates)

	s.mux.HandleFunc("/jobs", s.handleJobs)
	s.mux.HandleFunc("/jobs/", s.handleJobByID)

	s.mux.HandleFunc("/tracking/update-stage", s.handleUpdateStage)
	s.mux.HandleFunc("/tracking/upload-doc", s.handleUploadDoc)
	s.mux.HandleFunc("/tracking/candidate/", s.handleTimelineByCandidate)
	s.mux.HandleFunc("/tracking/", s.handleTimeline)

	s.mux.HandleFunc("/dashboard/summary", s.handleSummary)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withRateLimit throttles expensive endpoints per client IP.
func (s *Server) withRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil {
			ip := util.ClientIP(r, s.trustedProxies)
			if !s.limiter.Allow(ip) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleResumes(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file missing")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	result, err := s.app.UploadResume(r.Context(), header.Filename, data)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, result)
}

func (s *Server) handleIndexJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	jobID := strings.TrimPrefix(r.URL.Path, "/screening/index-jobs/")
	if jobID == "" || strings.Contains(jobID, "/") {
		notFound(w, "index job not found")
		return
	}
	status, ok := s.app.IndexJob(jobID)
	if !ok {
		notFound(w, "index job not found")
		return
	}
	writeJSON(w, http.StatusOK, status)
}

type matchRequest struct {
	ResumeID       string `json:"resumeId"`
	JobID          string `json:"jobId"`
	JobDescription string `json:"jobDescription"`
}

func (s *Server) handleMatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req matchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if strings.TrimSpace(req.ResumeID) == "" {
		writeError(w, http.StatusBadRequest, "resumeId required")
		return
	}
	outcome, err := s.app.MatchResume(r.Context(), req.ResumeID, req.JobID, req.JobDescription)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, outcome)
}

func (s *Server) handleCandidates(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	matches, err := s.app.ListCandidates(r.URL.Query().Get("jobId"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, matches)
}

func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		jobs, err := s.app.ListJobs()
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, jobs)
	case http.MethodPost:
		var in app.JobInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		job, err := s.app.CreateJob(in)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, job)
	default:
		methodNotAllowed(w)
	}
}

func (s *Server) handleJobByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/jobs/")
	if id == "" || strings.Contains(id, "/") {
		notFound(w, "job position not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		job, err := s.app.GetJob(id)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodPut:
		var in app.JobInput
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			writeError(w, http.StatusBadRequest, "invalid json body")
			return
		}
		job, err := s.app.UpdateJob(id, in)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, job)
	case http.MethodDelete:
		if err := s.app.DeleteJob(id); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	default:
		methodNotAllowed(w)
	}
}

type updateStageRequest struct {
	ApplicationID string `json:"applicationId"`
	NewStage      string `json:"newStage"`
	Notes         string `json:"notes"`
	ActorName     string `json:"actorName"`
}

func (s *Server) handleUpdateStage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	var req updateStageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if req.ApplicationID == "" || req.NewStage == "" {
		writeError(w, http.StatusBadRequest, "applicationId and newStage required")
		return
	}
	update, err := s.app.UpdateStage(req.ApplicationID, req.NewStage, req.Notes, req.ActorName)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, update)
}

func (s *Server) handleUploadDoc(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	if err := r.ParseMultipartForm(s.maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file missing")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read upload")
		return
	}
	applicationID := r.FormValue("applicationId")
	if applicationID == "" {
		writeError(w, http.StatusBadRequest, "applicationId required")
		return
	}
	result, err := s.app.UploadJourneyDocument(r.Context(),
		applicationID, r.FormValue("docType"), header.Filename, data, r.FormValue("notes"))
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleTimelineByCandidate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	candidateID := strings.TrimPrefix(r.URL.Path, "/tracking/candidate/")
	if candidateID == "" || strings.Contains(candidateID, "/") {
		notFound(w, "candidate not found")
		return
	}
	timeline, err := s.app.GetTimelineByCandidate(candidateID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	applicationID := strings.TrimPrefix(r.URL.Path, "/tracking/")
	if applicationID == "" || strings.Contains(applicationID, "/") {
		notFound(w, "application not found")
		return
	}
	timeline, err := s.app.GetTimeline(applicationID)
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, timeline)
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	view, err := s.app.Summary()
	if err != nil {
		s.writeAppError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// writeAppError maps application errors onto HTTP statuses. Unmapped
// errors are logged with the request-scoped logger and hidden from the
// client.
func (s *Server) writeAppError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, app.ErrResumeNotFound),
		errors.Is(err, app.ErrJobNotFound),
		errors.Is(err, app.ErrCandidateNotFound),
		errors.Is(err, app.ErrApplicationNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, app.ErrInvalidInput),
		errors.Is(err, app.ErrResumeNotIndexed),
		errors.Is(err, app.ErrEmptyUpload),
		errors.Is(err, app.ErrUnsupportedFileType),
		errors.Is(err, domain.ErrStageUnknown),
		errors.Is(err, domain.ErrTransitionNotAllowed),
		errors.Is(err, domain.ErrNotesRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		util.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func methodNotAllowed(w http.ResponseWriter) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed")
}

func notFound(w http.ResponseWriter, msg string) {
	writeError(w, http.StatusNotFound, msg)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"requestId,omitempty"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{
		Error:     msg,
		Code:      errorCodeFor(status),
		RequestID: strings.TrimSpace(w.Header().Get("X-Request-Id")),
	})
}

func errorCodeFor(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "VALIDATION_ERROR"
	case http.StatusNotFound:
		return "NOT_FOUND"
	case http.StatusMethodNotAllowed:
		return "METHOD_NOT_ALLOWED"
	case http.StatusTooManyRequests:
		return "RATE_LIMITED"
	default:
		return "SYSTEM_INTERNAL_ERROR"
	}
}
