package app

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"hireflow/pkg/ai"
	"hireflow/pkg/domain"
	"hireflow/pkg/queue"
	"hireflow/pkg/store"
)

var allowedUploadExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".html": true,
	".htm":  true,
}

// UploadResult is the outcome of a resume upload: the stored resume and
// the queued index-build job.
type UploadResult struct {
	Resume domain.Resume   `json:"resume"`
	Job    queue.JobStatus `json:"job"`
}

// MatchOutcome is the result of matching one resume against one job.
type MatchOutcome struct {
	Candidate   domain.Candidate   `json:"candidate"`
	Application domain.Application `json:"application"`
	Job         domain.JobPosition `json:"job"`
	Extraction  ai.Extraction      `json:"extraction"`
	Created     bool               `json:"created"`
}

// UploadResume stores the document and queues an index build. The resume
// is immediately visible but unmatched until the build finishes.
func (a *App) UploadResume(ctx context.Context, filename string, data []byte) (UploadResult, error) {
	filename = filepath.Base(strings.TrimSpace(filename))
	if filename == "" || filename == "." {
		return UploadResult{}, fmt.Errorf("%w: filename required", ErrInvalidInput)
	}
	if len(data) == 0 {
		return UploadResult{}, ErrEmptyUpload
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		return UploadResult{}, fmt.Errorf("%w: %s", ErrUnsupportedFileType, ext)
	}

	resume := domain.Resume{
		ID:         uuid.NewString(),
		Filename:   filename,
		StorageKey: fmt.Sprintf("resumes/%s/%s", uuid.NewString(), filename),
		UploadedAt: time.Now().UTC(),
	}
	if err := a.objects.Put(ctx, resume.StorageKey, bytes.NewReader(data), int64(len(data)), contentTypeFor(ext)); err != nil {
		return UploadResult{}, fmt.Errorf("store resume: %w", err)
	}
	if err := a.store.SaveResume(resume); err != nil {
		return UploadResult{}, fmt.Errorf("save resume: %w", err)
	}
	job, err := a.queue.Enqueue(ctx, resume.ID)
	if err != nil {
		return UploadResult{}, fmt.Errorf("enqueue index job: %w", err)
	}
	return UploadResult{Resume: resume, Job: job}, nil
}

func contentTypeFor(ext string) string {
	switch ext {
	case ".pdf":
		return "application/pdf"
	case ".html", ".htm":
		return "text/html"
	default:
		return "text/plain"
	}
}

// BuildIndex extracts, chunks and embeds one resume, then replaces its
// stored index in a single transaction. Safe to retry: a rerun rebuilds
// from the original document.
func (a *App) BuildIndex(ctx context.Context, resumeID string) error {
	resume, ok, err := a.store.GetResume(resumeID)
	if err != nil {
		return fmt.Errorf("load resume: %w", err)
	}
	if !ok {
		return ErrResumeNotFound
	}

	data, err := a.objects.Get(ctx, resume.StorageKey)
	if err != nil {
		return fmt.Errorf("fetch resume object: %w", err)
	}
	path, cleanup, err := writeTempFile(resume.Filename, data)
	if err != nil {
		return err
	}
	defer cleanup()

	text, err := a.parser.ExtractText(resume.Filename, path)
	if err != nil {
		return fmt.Errorf("extract text: %w", err)
	}

	parts := chunkText(text, a.chunkSize, a.chunkOverlap)
	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(parts))
	for i, part := range parts {
		chunks = append(chunks, domain.Chunk{
			ID:        uuid.NewString(),
			ResumeID:  resume.ID,
			Position:  i,
			Content:   part,
			CreatedAt: now,
		})
	}

	embeddings, err := a.embedChunks(ctx, parts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	if err := a.store.ReplaceResumeIndex(resume.ID, text, chunks, embeddings); err != nil {
		return fmt.Errorf("persist index: %w", err)
	}
	return nil
}

func writeTempFile(filename string, data []byte) (string, func(), error) {
	dir, err := os.MkdirTemp("", "hireflow-resume-*")
	if err != nil {
		return "", nil, fmt.Errorf("temp dir: %w", err)
	}
	path := filepath.Join(dir, filepath.Base(filename))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		os.RemoveAll(dir)
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	return path, func() { os.RemoveAll(dir) }, nil
}

// embedChunks embeds all fragments in parallel batches, preserving input
// order. Vectors are L2-normalized so inner product equals cosine
// similarity.
func (a *App) embedChunks(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	if len(texts) == 0 {
		return embeddings, nil
	}
	batchSize := a.embedBatchSize
	if batchSize <= 0 {
		batchSize = 1
	}
	concurrency := a.embedConcurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		offset, batch := start, texts[start:end]
		g.Go(func() error {
			out, err := a.embedBatch(gctx, batch)
			if err != nil {
				return err
			}
			for i, embedding := range out {
				embeddings[offset+i] = normalizeVector(embedding)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

func (a *App) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if batcher, ok := a.embedder.(ai.BatchEmbedder); ok && len(texts) > 1 {
		out, err := batcher.EmbedTexts(ctx, texts)
		if err != nil {
			return nil, err
		}
		if len(out) != len(texts) {
			return nil, fmt.Errorf("embedding count mismatch: got %d, want %d", len(out), len(texts))
		}
		return out, nil
	}
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		embedding, err := a.embedder.EmbedText(ctx, text)
		if err != nil {
			return nil, err
		}
		out = append(out, embedding)
	}
	return out, nil
}

func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	norm := math.Sqrt(sum)
	if norm == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// normalizeScore clamps a similarity to [0,1] and scales to a 0-100
// integer.
func normalizeScore(score float64) int {
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	return int(math.Round(score * 100))
}

// MatchResume scores one indexed resume against a job and persists the
// result. The job is resolved by ID first, then by title fragment among
// active openings ("Backend Engineer - Jakarta" matches on "Backend
// Engineer").
func (a *App) MatchResume(ctx context.Context, resumeID, jobID, jobDescription string) (MatchOutcome, error) {
	resume, ok, err := a.store.GetResume(resumeID)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("load resume: %w", err)
	}
	if !ok {
		return MatchOutcome{}, ErrResumeNotFound
	}
	if !resume.Indexed {
		return MatchOutcome{}, ErrResumeNotIndexed
	}

	job, err := a.resolveJob(jobID, jobDescription)
	if err != nil {
		return MatchOutcome{}, err
	}
	jobText := jobToText(job)

	queryVec, err := a.embedder.EmbedText(ctx, jobText)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("embed job text: %w", err)
	}
	queryVec = normalizeVector(queryVec)

	scored, err := a.store.SearchChunks(resumeID, queryVec, a.topK)
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("search chunks: %w", err)
	}

	var avg float64
	if len(scored) > 0 {
		var total float64
		for _, chunk := range scored {
			total += float64(chunk.Score)
		}
		avg = total / float64(len(scored))
	}
	score := normalizeScore(avg)

	contextParts := make([]string, 0, 3)
	for i, chunk := range scored {
		if i >= 3 {
			break
		}
		contextParts = append(contextParts, chunk.Content)
	}
	cvContext := strings.Join(contextParts, "\n\n")

	extraction := a.extractor.Extract(ctx, cvContext, jobText)

	candidate, application, created, err := a.store.SaveMatchResult(store.MatchResult{
		ResumeID:   resume.ID,
		JobID:      job.ID,
		Name:       extractCandidateName(resume.Filename),
		Email:      extractEmail(resume.RawText),
		Phone:      extractPhone(resume.RawText),
		Summary:    extraction.Summary,
		Education:  extraction.Education,
		Experience: extraction.Experience,
		Skills:     extraction.Skills,
		Verdict:    extraction.Verdict,
		Score:      score,
	})
	if err != nil {
		return MatchOutcome{}, fmt.Errorf("save match result: %w", err)
	}

	return MatchOutcome{
		Candidate:   candidate,
		Application: application,
		Job:         job,
		Extraction:  extraction,
		Created:     created,
	}, nil
}

func (a *App) resolveJob(jobID, jobDescription string) (domain.JobPosition, error) {
	if jobID != "" {
		job, ok, err := a.store.GetJob(jobID)
		if err != nil {
			return domain.JobPosition{}, fmt.Errorf("load job: %w", err)
		}
		if ok {
			return job, nil
		}
	}
	if title := strings.TrimSpace(strings.SplitN(jobDescription, "-", 2)[0]); title != "" {
		job, ok, err := a.store.FindActiveJobByTitle(title)
		if err != nil {
			return domain.JobPosition{}, fmt.Errorf("find job by title: %w", err)
		}
		if ok {
			return job, nil
		}
	}
	return domain.JobPosition{}, ErrJobNotFound
}

// ListCandidates returns candidate matches, optionally filtered to one
// job, ordered by match score descending.
func (a *App) ListCandidates(jobID string) ([]store.CandidateMatch, error) {
	return a.store.ListCandidateMatches(jobID)
}
