package store

import (
	"time"

	"github.com/pgvector/pgvector-go"
	"gorm.io/datatypes"
)

// GORM models used for persistence.
type ResumeModel struct {
	ID         string `gorm:"primaryKey"`
	Filename   string `gorm:"not null"`
	StorageKey string
	RawText    string    `gorm:"type:text"`
	Indexed    bool      `gorm:"not null;default:false"`
	UploadedAt time.Time `gorm:"not null"`
}

type CandidateModel struct {
	ID         string `gorm:"primaryKey"`
	ResumeID   string `gorm:"uniqueIndex;not null"`
	Name       string `gorm:"not null"`
	Email      string `gorm:"index"`
	Phone      string
	Summary    string         `gorm:"type:text"`
	Education  datatypes.JSON `gorm:"type:jsonb"`
	Experience datatypes.JSON `gorm:"type:jsonb"`
	Skills     datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt  time.Time      `gorm:"not null"`
}

type JobPositionModel struct {
	ID             string `gorm:"primaryKey"`
	Title          string `gorm:"not null;index"`
	Department     string `gorm:"not null"`
	Level          string
	Location       string
	EmploymentType string
	Priority       string
	Status         string `gorm:"not null;index"`
	SalaryMin      int64
	SalaryMax      int64
	SalaryCurrency string
	Description    string         `gorm:"type:text;not null"`
	Requirements   datatypes.JSON `gorm:"type:jsonb"`
	RequiredSkills datatypes.JSON `gorm:"type:jsonb"`
	Available      bool           `gorm:"not null;default:true"`
	CreatedAt      time.Time      `gorm:"not null"`
	UpdatedAt      time.Time      `gorm:"not null"`
}

type ApplicationModel struct {
	ID          string `gorm:"primaryKey"`
	CandidateID string `gorm:"not null;uniqueIndex:idx_candidate_job"`
	JobID       string `gorm:"not null;uniqueIndex:idx_candidate_job"`
	MatchScore  int    `gorm:"not null;default:0"`
	AIVerdict   string `gorm:"type:text"`
	Status      string `gorm:"not null"`
	AppliedAt   time.Time
}

type JourneyModel struct {
	ID            string         `gorm:"primaryKey"`
	ApplicationID string         `gorm:"uniqueIndex;not null"`
	CurrentStage  string         `gorm:"not null"`
	Metadata      datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt     time.Time      `gorm:"not null"`
	UpdatedAt     time.Time      `gorm:"not null"`
}

type JourneyLogModel struct {
	ID            int64  `gorm:"primaryKey;autoIncrement"`
	JourneyID     string `gorm:"not null;index"`
	PreviousStage string `gorm:"size:50"`
	NewStage      string `gorm:"size:50;not null"`
	Action        string `gorm:"size:100;not null"`
	Notes         string `gorm:"type:text"`
	ActorName     string
	CreatedAt     time.Time `gorm:"not null;index"`
}

type ChunkModel struct {
	ID        string           `gorm:"primaryKey"`
	ResumeID  string           `gorm:"not null;index"`
	Position  int              `gorm:"not null"`
	Content   string           `gorm:"type:text;not null"`
	Embedding *pgvector.Vector `gorm:"type:vector(768)"`
	CreatedAt time.Time        `gorm:"not null;index"`
}
