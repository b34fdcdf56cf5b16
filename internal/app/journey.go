package app

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"hireflow/internal/notify"
	"hireflow/pkg/domain"
)

var allowedDocumentExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".doc":  true,
	".docx": true,
}

// documentStages maps an uploaded document type to the stage whose
// WhatsApp template announces it.
var documentStages = map[string]domain.Stage{
	"ticket":   domain.StageTicket,
	"mcu":      domain.StageMCUProcess,
	"offering": domain.StageOffering,
}

// internalStages are not announced to the candidate.
var internalStages = map[domain.Stage]bool{
	domain.StageHRReview: true,
	domain.StageRanking:  true,
}

// Timeline is the full journey view for one application.
type Timeline struct {
	ApplicationID string              `json:"applicationId"`
	CandidateName string              `json:"candidateName"`
	JobTitle      string              `json:"jobTitle"`
	CurrentStage  domain.Stage        `json:"currentStage"`
	Metadata      map[string]string   `json:"metadata"`
	History       []domain.JourneyLog `json:"history"`
}

// StageUpdate is the outcome of a stage transition.
type StageUpdate struct {
	Message      string       `json:"message"`
	CurrentStage domain.Stage `json:"currentStage"`
	WhatsAppLink string       `json:"whatsappLink,omitempty"`
	Timestamp    time.Time    `json:"timestamp"`
}

// DocumentUpload is the outcome of attaching a document to a journey.
type DocumentUpload struct {
	Message      string            `json:"message"`
	URL          string            `json:"url"`
	WhatsAppLink string            `json:"whatsappLink,omitempty"`
	Metadata     map[string]string `json:"metadata"`
}

// GetTimeline returns the journey for an application, creating it at the
// first stage when it does not exist yet.
func (a *App) GetTimeline(applicationID string) (Timeline, error) {
	application, ok, err := a.store.GetApplication(applicationID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load application: %w", err)
	}
	if !ok {
		return Timeline{}, ErrApplicationNotFound
	}
	return a.buildTimeline(application)
}

// GetTimelineByCandidate returns the journey of the candidate's most
// recent application.
func (a *App) GetTimelineByCandidate(candidateID string) (Timeline, error) {
	_, ok, err := a.store.GetCandidate(candidateID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load candidate: %w", err)
	}
	if !ok {
		return Timeline{}, ErrCandidateNotFound
	}
	application, ok, err := a.store.LatestApplicationByCandidate(candidateID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load application: %w", err)
	}
	if !ok {
		return Timeline{}, ErrApplicationNotFound
	}
	return a.buildTimeline(application)
}

func (a *App) buildTimeline(application domain.Application) (Timeline, error) {
	journey, logs, err := a.store.GetOrCreateJourney(application.ID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load journey: %w", err)
	}
	candidate, _, err := a.store.GetCandidate(application.CandidateID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load candidate: %w", err)
	}
	job, _, err := a.store.GetJob(application.JobID)
	if err != nil {
		return Timeline{}, fmt.Errorf("load job: %w", err)
	}
	return Timeline{
		ApplicationID: application.ID,
		CandidateName: candidate.Name,
		JobTitle:      job.Title,
		CurrentStage:  journey.CurrentStage,
		Metadata:      journey.Metadata,
		History:       logs,
	}, nil
}

// UpdateStage moves an application to a new stage. Rejection-class stages
// require notes; internal stages produce no WhatsApp link.
func (a *App) UpdateStage(applicationID, stageToken, notes, actor string) (StageUpdate, error) {
	application, ok, err := a.store.GetApplication(applicationID)
	if err != nil {
		return StageUpdate{}, fmt.Errorf("load application: %w", err)
	}
	if !ok {
		return StageUpdate{}, ErrApplicationNotFound
	}

	target, err := domain.ParseStage(stageToken)
	if err != nil {
		return StageUpdate{}, err
	}
	notes = strings.TrimSpace(notes)
	if actor = strings.TrimSpace(actor); actor == "" {
		actor = "HR Admin"
	}

	journey, err := a.store.TransitionJourney(applicationID, target, notes, actor)
	if err != nil {
		return StageUpdate{}, err
	}

	waLink := ""
	if !internalStages[target] {
		if candidate, ok, err := a.store.GetCandidate(application.CandidateID); err == nil && ok {
			waLink = notify.WhatsAppLink(candidate.Phone, candidate.Name, target, notes)
		}
	}

	return StageUpdate{
		Message:      fmt.Sprintf("Candidate moved to %s", target.Label()),
		CurrentStage: journey.CurrentStage,
		WhatsAppLink: waLink,
		Timestamp:    journey.UpdatedAt,
	}, nil
}

// UploadJourneyDocument stores a stage document (offer letter, MCU
// schedule, flight ticket), records it in the journey metadata and builds
// a candidate notification link with a presigned download URL.
func (a *App) UploadJourneyDocument(ctx context.Context, applicationID, docType, filename string, data []byte, notes string) (DocumentUpload, error) {
	application, ok, err := a.store.GetApplication(applicationID)
	if err != nil {
		return DocumentUpload{}, fmt.Errorf("load application: %w", err)
	}
	if !ok {
		return DocumentUpload{}, ErrApplicationNotFound
	}

	docType = strings.ToLower(strings.TrimSpace(docType))
	if docType == "" {
		return DocumentUpload{}, fmt.Errorf("%w: doc type required", ErrInvalidInput)
	}
	filename = filepath.Base(strings.TrimSpace(filename))
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedDocumentExtensions[ext] {
		return DocumentUpload{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}
	if len(data) == 0 {
		return DocumentUpload{}, ErrEmptyUpload
	}

	key := fmt.Sprintf("documents/%s/%s_%s", applicationID, docType, filename)
	if err := a.objects.Put(ctx, key, bytes.NewReader(data), int64(len(data)), contentTypeFor(ext)); err != nil {
		return DocumentUpload{}, fmt.Errorf("store document: %w", err)
	}
	url, err := a.objects.PresignGet(ctx, key, 24*time.Hour)
	if err != nil {
		return DocumentUpload{}, fmt.Errorf("presign document: %w", err)
	}

	journey, err := a.store.AttachJourneyDocument(applicationID, docType, url, notes, "System/HR")
	if err != nil {
		return DocumentUpload{}, err
	}

	waLink := ""
	if candidate, ok, err := a.store.GetCandidate(application.CandidateID); err == nil && ok {
		stage, mapped := documentStages[docType]
		if !mapped {
			stage = journey.CurrentStage
		}
		waLink = notify.WhatsAppLink(candidate.Phone, candidate.Name, stage, url)
	}

	return DocumentUpload{
		Message:      "Document uploaded",
		URL:          url,
		WhatsAppLink: waLink,
		Metadata:     journey.Metadata,
	}, nil
}

// Summary aggregates pipeline counts for the dashboard.
func (a *App) Summary() (DashboardView, error) {
	summary, err := a.store.Summary()
	if err != nil {
		return DashboardView{}, err
	}
	return DashboardView{
		Candidates:   summary.Candidates,
		Jobs:         summary.Jobs,
		Applications: summary.Applications,
		StageCounts:  summary.StageCounts,
	}, nil
}

// DashboardView is the dashboard payload.
type DashboardView struct {
	Candidates   int            `json:"candidates"`
	Jobs         int            `json:"jobs"`
	Applications int            `json:"applications"`
	StageCounts  map[string]int `json:"stageCounts"`
}
