package store

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"hireflow/pkg/domain"
)

// MemoryStore is an in-memory Store for tests and local development. Search
// uses brute-force inner products instead of pgvector.
type MemoryStore struct {
	mu sync.Mutex

	resumes      map[string]domain.Resume
	candidates   map[string]domain.Candidate
	jobs         map[string]domain.JobPosition
	applications map[string]domain.Application
	journeys     map[string]domain.Journey // keyed by application ID
	logs         map[string][]domain.JourneyLog
	chunks       map[string][]domain.Chunk
	embeddings   map[string][][]float32

	nextLogID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		resumes:      map[string]domain.Resume{},
		candidates:   map[string]domain.Candidate{},
		jobs:         map[string]domain.JobPosition{},
		applications: map[string]domain.Application{},
		journeys:     map[string]domain.Journey{},
		logs:         map[string][]domain.JourneyLog{},
		chunks:       map[string][]domain.Chunk{},
		embeddings:   map[string][][]float32{},
	}
}

func (s *MemoryStore) SaveResume(resume domain.Resume) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes[resume.ID] = resume
	return nil
}

func (s *MemoryStore) GetResume(id string) (domain.Resume, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resume, ok := s.resumes[id]
	return resume, ok, nil
}

func (s *MemoryStore) ReplaceResumeIndex(resumeID, rawText string, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	resume, ok := s.resumes[resumeID]
	if !ok {
		return fmt.Errorf("resume %s not found", resumeID)
	}
	stored := make([]domain.Chunk, len(chunks))
	copy(stored, chunks)
	vectors := make([][]float32, len(embeddings))
	for i, embedding := range embeddings {
		vec := make([]float32, len(embedding))
		copy(vec, embedding)
		vectors[i] = vec
	}
	s.chunks[resumeID] = stored
	s.embeddings[resumeID] = vectors
	resume.RawText = rawText
	resume.Indexed = true
	s.resumes[resumeID] = resume
	return nil
}

func (s *MemoryStore) ListChunksByResume(resumeID string) ([]domain.Chunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := make([]domain.Chunk, len(s.chunks[resumeID]))
	copy(chunks, s.chunks[resumeID])
	sort.Slice(chunks, func(i, j int) bool { return chunks[i].Position < chunks[j].Position })
	return chunks, nil
}

func (s *MemoryStore) SearchChunks(resumeID string, embedding []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	chunks := s.chunks[resumeID]
	vectors := s.embeddings[resumeID]
	scored := make([]domain.ScoredChunk, 0, len(chunks))
	for i, chunk := range chunks {
		if i >= len(vectors) {
			break
		}
		scored = append(scored, domain.ScoredChunk{
			Chunk: chunk,
			Score: dotProduct(embedding, vectors[i]),
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if len(scored) > limit {
		scored = scored[:limit]
	}
	return scored, nil
}

func dotProduct(a, b []float32) float32 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var sum float32
	for i := 0; i < n; i++ {
		sum += a[i] * b[i]
	}
	return sum
}

func (s *MemoryStore) SaveJob(job domain.JobPosition) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(id string) (domain.JobPosition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	return job, ok, nil
}

func (s *MemoryStore) FindActiveJobByTitle(title string) (domain.JobPosition, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	needle := strings.ToLower(title)
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		job := s.jobs[id]
		if job.Available && job.Status == domain.JobActive &&
			strings.Contains(strings.ToLower(job.Title), needle) {
			return job, true, nil
		}
	}
	return domain.JobPosition{}, false, nil
}

func (s *MemoryStore) ListJobs() ([]domain.JobPosition, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]domain.JobPosition, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, job)
	}
	sort.Slice(jobs, func(i, j int) bool { return jobs[i].CreatedAt.Before(jobs[j].CreatedAt) })
	return jobs, nil
}

func (s *MemoryStore) DeleteJob(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	for appID, app := range s.applications {
		if app.JobID == id {
			delete(s.applications, appID)
			if journey, ok := s.journeys[appID]; ok {
				delete(s.logs, journey.ID)
				delete(s.journeys, appID)
			}
		}
	}
	return nil
}

func (s *MemoryStore) GetCandidate(id string) (domain.Candidate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	candidate, ok := s.candidates[id]
	return candidate, ok, nil
}

func (s *MemoryStore) GetCandidateByResume(resumeID string) (domain.Candidate, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, candidate := range s.candidates {
		if candidate.ResumeID == resumeID {
			return candidate, true, nil
		}
	}
	return domain.Candidate{}, false, nil
}

func (s *MemoryStore) ListCandidateMatches(jobID string) ([]CandidateMatch, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	matches := make([]CandidateMatch, 0, len(s.applications))
	for _, app := range s.applications {
		if jobID != "" && app.JobID != jobID {
			continue
		}
		candidate, ok := s.candidates[app.CandidateID]
		if !ok {
			continue
		}
		matches = append(matches, CandidateMatch{
			Candidate:   candidate,
			Application: app,
			JobTitle:    s.jobs[app.JobID].Title,
		})
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Application.MatchScore > matches[j].Application.MatchScore
	})
	return matches, nil
}

func (s *MemoryStore) GetApplication(id string) (domain.Application, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.applications[id]
	return app, ok, nil
}

func (s *MemoryStore) LatestApplicationByCandidate(candidateID string) (domain.Application, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		latest domain.Application
		found  bool
	)
	for _, app := range s.applications {
		if app.CandidateID != candidateID {
			continue
		}
		if !found || app.AppliedAt.After(latest.AppliedAt) {
			latest = app
			found = true
		}
	}
	return latest, found, nil
}

func (s *MemoryStore) SaveMatchResult(result MatchResult) (domain.Candidate, domain.Application, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()

	var candidate domain.Candidate
	var haveCandidate bool
	for _, existing := range s.candidates {
		if existing.ResumeID == result.ResumeID {
			candidate = existing
			haveCandidate = true
			break
		}
	}
	if haveCandidate {
		candidate.Summary = result.Summary
		candidate.Education = result.Education
		candidate.Experience = result.Experience
		candidate.Skills = result.Skills
	} else {
		candidate = domain.Candidate{
			ID:         uuid.NewString(),
			ResumeID:   result.ResumeID,
			Name:       result.Name,
			Email:      result.Email,
			Phone:      result.Phone,
			Summary:    result.Summary,
			Education:  result.Education,
			Experience: result.Experience,
			Skills:     result.Skills,
			CreatedAt:  now,
		}
	}
	s.candidates[candidate.ID] = candidate

	var app domain.Application
	var haveApp bool
	for _, existing := range s.applications {
		if existing.CandidateID == candidate.ID && existing.JobID == result.JobID {
			app = existing
			haveApp = true
			break
		}
	}
	created := false
	if haveApp {
		app.MatchScore = result.Score
		app.AIVerdict = result.Verdict
		app.AppliedAt = now
	} else {
		app = domain.Application{
			ID:          uuid.NewString(),
			CandidateID: candidate.ID,
			JobID:       result.JobID,
			MatchScore:  result.Score,
			AIVerdict:   result.Verdict,
			Status:      domain.StatusApplied,
			AppliedAt:   now,
		}
		created = true
	}
	s.applications[app.ID] = app

	if created {
		journey := s.createJourneyLocked(app.ID, now)
		journey.CurrentStage = domain.StageAIScreening
		journey.UpdatedAt = now
		s.journeys[app.ID] = journey
		s.appendLogLocked(journey.ID, domain.JourneyLog{
			PreviousStage: domain.StageCVScreening.Label(),
			NewStage:      domain.StageAIScreening.Label(),
			Action:        "AI Screening completed",
			Notes:         fmt.Sprintf("AI Match Score: %d%%. %s", result.Score, result.Verdict),
			ActorName:     "AI System",
			CreatedAt:     now,
		})
	}
	return candidate, app, created, nil
}

func (s *MemoryStore) createJourneyLocked(applicationID string, now time.Time) domain.Journey {
	journey := domain.Journey{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		CurrentStage:  domain.StageCVScreening,
		Metadata:      map[string]string{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	s.journeys[applicationID] = journey
	s.appendLogLocked(journey.ID, domain.JourneyLog{
		NewStage:  domain.StageCVScreening.Label(),
		Action:    "Journey started - CV Screening",
		Notes:     "Candidate application received and CV screening initiated",
		ActorName: "System",
		CreatedAt: now,
	})
	return journey
}

func (s *MemoryStore) appendLogLocked(journeyID string, entry domain.JourneyLog) {
	s.nextLogID++
	entry.ID = s.nextLogID
	entry.JourneyID = journeyID
	s.logs[journeyID] = append(s.logs[journeyID], entry)
}

func (s *MemoryStore) GetOrCreateJourney(applicationID string) (domain.Journey, []domain.JourneyLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	journey, ok := s.journeys[applicationID]
	if !ok {
		journey = s.createJourneyLocked(applicationID, time.Now().UTC())
	}
	return journey, s.logsNewestFirstLocked(journey.ID), nil
}

func (s *MemoryStore) logsNewestFirstLocked(journeyID string) []domain.JourneyLog {
	entries := make([]domain.JourneyLog, len(s.logs[journeyID]))
	copy(entries, s.logs[journeyID])
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].ID > entries[j].ID })
	return entries
}

func (s *MemoryStore) TransitionJourney(applicationID string, target domain.Stage, notes, actor string) (domain.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	journey, ok := s.journeys[applicationID]
	if !ok {
		journey = s.createJourneyLocked(applicationID, now)
	}
	if err := domain.ValidateTransition(journey.CurrentStage, target, notes); err != nil {
		return domain.Journey{}, err
	}
	action := "Status updated: " + target.Label()
	if target.IsRejection() {
		action = "DECISION: " + strings.ToUpper(target.Label())
	}
	s.appendLogLocked(journey.ID, domain.JourneyLog{
		PreviousStage: journey.CurrentStage.Label(),
		NewStage:      target.Label(),
		Action:        action,
		Notes:         notes,
		ActorName:     actor,
		CreatedAt:     now,
	})
	journey.CurrentStage = target
	journey.UpdatedAt = now
	s.journeys[applicationID] = journey
	return journey, nil
}

func (s *MemoryStore) AttachJourneyDocument(applicationID, docType, url, notes, actor string) (domain.Journey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	journey, ok := s.journeys[applicationID]
	if !ok {
		journey = s.createJourneyLocked(applicationID, now)
	}
	meta := map[string]string{}
	for k, v := range journey.Metadata {
		meta[k] = v
	}
	meta[docType+"_url"] = url
	meta[docType+"_uploaded_at"] = now.Format(time.RFC3339)
	journey.Metadata = meta
	journey.UpdatedAt = now
	if notes == "" {
		notes = fmt.Sprintf("File %s uploaded", docType)
	}
	s.appendLogLocked(journey.ID, domain.JourneyLog{
		PreviousStage: journey.CurrentStage.Label(),
		NewStage:      journey.CurrentStage.Label(),
		Action:        "Document Uploaded: " + strings.ToUpper(docType),
		Notes:         notes,
		ActorName:     actor,
		CreatedAt:     now,
	})
	s.journeys[applicationID] = journey
	return journey, nil
}

func (s *MemoryStore) Summary() (DashboardSummary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	summary := DashboardSummary{
		Candidates:   len(s.candidates),
		Jobs:         len(s.jobs),
		Applications: len(s.applications),
		StageCounts:  map[string]int{},
	}
	for _, journey := range s.journeys {
		summary.StageCounts[journey.CurrentStage.Label()]++
	}
	return summary, nil
}
