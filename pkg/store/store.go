package store

import "hireflow/pkg/domain"

// MatchResult carries everything one match request needs to persist in a
// single atomic unit. Identity fields apply on first candidate creation
// only; structured fields overwrite on every call.
type MatchResult struct {
	ResumeID   string
	JobID      string
	Name       string
	Email      string
	Phone      string
	Summary    string
	Education  []domain.EducationEntry
	Experience []domain.ExperienceEntry
	Skills     []string
	Verdict    string
	Score      int
}

// CandidateMatch is one row of the candidate listing: candidate joined with
// one of their applications and the job it targets.
type CandidateMatch struct {
	Candidate   domain.Candidate   `json:"candidate"`
	Application domain.Application `json:"application"`
	JobTitle    string             `json:"jobTitle"`
}

// DashboardSummary aggregates pipeline counts.
type DashboardSummary struct {
	Candidates   int            `json:"candidates"`
	Jobs         int            `json:"jobs"`
	Applications int            `json:"applications"`
	StageCounts  map[string]int `json:"stageCounts"`
}

// Store defines persistence for resumes, document indexes, jobs,
// candidates, applications and journeys.
//
// ReplaceResumeIndex, SaveMatchResult, GetOrCreateJourney,
// TransitionJourney and AttachJourneyDocument are each one atomic unit:
// either every row they touch commits or none does. TransitionJourney
// additionally serializes concurrent calls per application so two stale
// reads of the current stage can never both win.
type Store interface {
	// resumes + document index
	SaveResume(resume domain.Resume) error
	GetResume(id string) (domain.Resume, bool, error)
	ReplaceResumeIndex(resumeID, rawText string, chunks []domain.Chunk, embeddings [][]float32) error
	ListChunksByResume(resumeID string) ([]domain.Chunk, error)
	SearchChunks(resumeID string, embedding []float32, limit int) ([]domain.ScoredChunk, error)

	// job positions
	SaveJob(job domain.JobPosition) error
	GetJob(id string) (domain.JobPosition, bool, error)
	FindActiveJobByTitle(title string) (domain.JobPosition, bool, error)
	ListJobs() ([]domain.JobPosition, error)
	DeleteJob(id string) error

	// candidates
	GetCandidate(id string) (domain.Candidate, bool, error)
	GetCandidateByResume(resumeID string) (domain.Candidate, bool, error)
	ListCandidateMatches(jobID string) ([]CandidateMatch, error)

	// applications
	GetApplication(id string) (domain.Application, bool, error)
	LatestApplicationByCandidate(candidateID string) (domain.Application, bool, error)

	// matching
	SaveMatchResult(result MatchResult) (domain.Candidate, domain.Application, bool, error)

	// journeys
	GetOrCreateJourney(applicationID string) (domain.Journey, []domain.JourneyLog, error)
	TransitionJourney(applicationID string, target domain.Stage, notes, actor string) (domain.Journey, error)
	AttachJourneyDocument(applicationID, docType, url, notes, actor string) (domain.Journey, error)

	// dashboard
	Summary() (DashboardSummary, error)
}
