package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"hireflow/pkg/domain"
)

// JobInput carries the user-editable fields of a job position.
type JobInput struct {
	Title          string   `json:"title"`
	Department     string   `json:"department"`
	Level          string   `json:"level"`
	Location       string   `json:"location"`
	EmploymentType string   `json:"employmentType"`
	Priority       string   `json:"priority"`
	Status         string   `json:"status"`
	SalaryMin      int64    `json:"salaryMin"`
	SalaryMax      int64    `json:"salaryMax"`
	SalaryCurrency string   `json:"salaryCurrency"`
	Description    string   `json:"description"`
	Requirements   []string `json:"requirements"`
	RequiredSkills []string `json:"requiredSkills"`
	Available      *bool    `json:"available"`
}

func (in JobInput) validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.Description) == "" {
		return fmt.Errorf("%w: description required", ErrInvalidInput)
	}
	switch domain.JobStatus(in.Status) {
	case "", domain.JobDraft, domain.JobActive, domain.JobPaused, domain.JobClosed:
		return nil
	default:
		return fmt.Errorf("%w: unknown status %q", ErrInvalidInput, in.Status)
	}
}

// CreateJob stores a new job position. Status defaults to active and the
// position starts available.
func (a *App) CreateJob(in JobInput) (domain.JobPosition, error) {
	if err := in.validate(); err != nil {
		return domain.JobPosition{}, err
	}
	now := time.Now().UTC()
	status := domain.JobStatus(in.Status)
	if status == "" {
		status = domain.JobActive
	}
	available := true
	if in.Available != nil {
		available = *in.Available
	}
	job := domain.JobPosition{
		ID:             uuid.NewString(),
		Title:          strings.TrimSpace(in.Title),
		Department:     strings.TrimSpace(in.Department),
		Level:          in.Level,
		Location:       in.Location,
		EmploymentType: in.EmploymentType,
		Priority:       in.Priority,
		Status:         status,
		SalaryMin:      in.SalaryMin,
		SalaryMax:      in.SalaryMax,
		SalaryCurrency: in.SalaryCurrency,
		Description:    in.Description,
		Requirements:   in.Requirements,
		RequiredSkills: in.RequiredSkills,
		Available:      available,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := a.store.SaveJob(job); err != nil {
		return domain.JobPosition{}, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// UpdateJob overwrites the editable fields of an existing job position.
func (a *App) UpdateJob(id string, in JobInput) (domain.JobPosition, error) {
	if err := in.validate(); err != nil {
		return domain.JobPosition{}, err
	}
	job, ok, err := a.store.GetJob(id)
	if err != nil {
		return domain.JobPosition{}, fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return domain.JobPosition{}, ErrJobNotFound
	}
	job.Title = strings.TrimSpace(in.Title)
	job.Department = strings.TrimSpace(in.Department)
	job.Level = in.Level
	job.Location = in.Location
	job.EmploymentType = in.EmploymentType
	job.Priority = in.Priority
	if in.Status != "" {
		job.Status = domain.JobStatus(in.Status)
	}
	job.SalaryMin = in.SalaryMin
	job.SalaryMax = in.SalaryMax
	job.SalaryCurrency = in.SalaryCurrency
	job.Description = in.Description
	job.Requirements = in.Requirements
	job.RequiredSkills = in.RequiredSkills
	if in.Available != nil {
		job.Available = *in.Available
	}
	job.UpdatedAt = time.Now().UTC()
	if err := a.store.SaveJob(job); err != nil {
		return domain.JobPosition{}, fmt.Errorf("save job: %w", err)
	}
	return job, nil
}

// GetJob returns one job position.
func (a *App) GetJob(id string) (domain.JobPosition, error) {
	job, ok, err := a.store.GetJob(id)
	if err != nil {
		return domain.JobPosition{}, fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return domain.JobPosition{}, ErrJobNotFound
	}
	return job, nil
}

// ListJobs returns all job positions.
func (a *App) ListJobs() ([]domain.JobPosition, error) {
	return a.store.ListJobs()
}

// DeleteJob removes a job position and its applications.
func (a *App) DeleteJob(id string) error {
	_, ok, err := a.store.GetJob(id)
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if !ok {
		return ErrJobNotFound
	}
	return a.store.DeleteJob(id)
}

// jobToText renders a job position as the text block used for query
// embedding and the LLM prompt.
func jobToText(job domain.JobPosition) string {
	requirements := strings.Join(job.Requirements, ", ")
	skills := strings.Join(job.RequiredSkills, ", ")

	salary := ""
	if job.SalaryMin > 0 && job.SalaryMax > 0 {
		salary = fmt.Sprintf("Gaji %d-%d %s", job.SalaryMin, job.SalaryMax, job.SalaryCurrency)
	}

	return fmt.Sprintf(`Posisi: %s
Departemen: %s
Level: %s
Lokasi: %s
Tipe Kerja: %s
Prioritas: %s
%s

Deskripsi Pekerjaan:
%s

Persyaratan:
%s

Keahlian Wajib:
%s`,
		job.Title, job.Department, job.Level, job.Location, job.EmploymentType,
		job.Priority, salary, job.Description, requirements, skills)
}
