package domain

import "time"

type ApplicationStatus string

const (
	StatusApplied   ApplicationStatus = "Applied"
	StatusScreening ApplicationStatus = "Screening"
	StatusInterview ApplicationStatus = "Interview"
	StatusOffer     ApplicationStatus = "Offer"
	StatusHired     ApplicationStatus = "Hired"
	StatusRejected  ApplicationStatus = "Rejected"
)

type JobStatus string

const (
	JobDraft  JobStatus = "draft"
	JobActive JobStatus = "active"
	JobPaused JobStatus = "paused"
	JobClosed JobStatus = "closed"
)

// Resume is one uploaded document plus its persisted index artifacts.
// RawText is immutable once the index build finishes.
type Resume struct {
	ID         string    `json:"id"`
	Filename   string    `json:"filename"`
	StorageKey string    `json:"-"`
	RawText    string    `json:"-"`
	Indexed    bool      `json:"indexed"`
	UploadedAt time.Time `json:"uploadedAt"`
}

type EducationEntry struct {
	Institution string `json:"institution"`
	Degree      string `json:"degree"`
	Major       string `json:"major"`
	Year        string `json:"year"`
}

type ExperienceEntry struct {
	Company  string `json:"company"`
	Role     string `json:"role"`
	Duration string `json:"duration"`
	Details  string `json:"details"`
}

// Candidate is one person, created on the first successful match for a
// resume. Identity fields are parsed once; structured fields are overwritten
// by every re-extraction.
type Candidate struct {
	ID         string            `json:"id"`
	ResumeID   string            `json:"resumeId"`
	Name       string            `json:"name"`
	Email      string            `json:"email"`
	Phone      string            `json:"phone"`
	Summary    string            `json:"summary"`
	Education  []EducationEntry  `json:"education"`
	Experience []ExperienceEntry `json:"experience"`
	Skills     []string          `json:"skills"`
	CreatedAt  time.Time         `json:"createdAt"`
}

type JobPosition struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	Department     string    `json:"department"`
	Level          string    `json:"level"`
	Location       string    `json:"location"`
	EmploymentType string    `json:"employmentType"`
	Priority       string    `json:"priority"`
	Status         JobStatus `json:"status"`
	SalaryMin      int64     `json:"salaryMin"`
	SalaryMax      int64     `json:"salaryMax"`
	SalaryCurrency string    `json:"salaryCurrency"`
	Description    string    `json:"description"`
	Requirements   []string  `json:"requirements"`
	RequiredSkills []string  `json:"requiredSkills"`
	Available      bool      `json:"available"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// Application links one candidate to one job. Unique per (candidate, job);
// re-matching updates score and verdict in place.
type Application struct {
	ID          string            `json:"id"`
	CandidateID string            `json:"candidateId"`
	JobID       string            `json:"jobId"`
	MatchScore  int               `json:"matchScore"`
	AIVerdict   string            `json:"aiVerdict"`
	Status      ApplicationStatus `json:"status"`
	AppliedAt   time.Time         `json:"appliedAt"`
}

// Journey tracks one application's progress through the recruitment stages.
// Exactly one per application, created lazily on first access.
type Journey struct {
	ID            string            `json:"id"`
	ApplicationID string            `json:"applicationId"`
	CurrentStage  Stage             `json:"currentStage"`
	Metadata      map[string]string `json:"metadata"`
	CreatedAt     time.Time         `json:"createdAt"`
	UpdatedAt     time.Time         `json:"updatedAt"`
}

// JourneyLog is one immutable audit record of a stage transition.
// PreviousStage is empty only for the very first entry of a journey.
type JourneyLog struct {
	ID            int64     `json:"-"`
	JourneyID     string    `json:"-"`
	PreviousStage string    `json:"previousStage,omitempty"`
	NewStage      string    `json:"newStage"`
	Action        string    `json:"action"`
	Notes         string    `json:"notes,omitempty"`
	ActorName     string    `json:"actor"`
	CreatedAt     time.Time `json:"timestamp"`
}

// Chunk is one ordered text fragment of a resume's document index.
type Chunk struct {
	ID        string    `json:"id"`
	ResumeID  string    `json:"resumeId"`
	Position  int       `json:"position"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
}

// ScoredChunk is a chunk returned by similarity search together with its
// inner-product similarity against the query vector.
type ScoredChunk struct {
	Chunk
	Score float32 `json:"score"`
}
