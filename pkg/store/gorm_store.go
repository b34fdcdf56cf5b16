package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"hireflow/pkg/domain"
)

const migrateLockID int64 = 48914891

const (
	defaultEmbeddingDim      = 768
	canonicalEmbeddingDimEnv = "HIREFLOW_EMBEDDING_DIM"
)

type GormStoreOptions struct {
	EmbeddingDim int
}

type GormStoreOption func(*GormStoreOptions)

// WithEmbeddingDim sets the canonical embedding dimension used by storage.
func WithEmbeddingDim(dim int) GormStoreOption {
	return func(opts *GormStoreOptions) {
		opts.EmbeddingDim = dim
	}
}

// GormStore implements Store using GORM + Postgres with pgvector.
type GormStore struct {
	db           *gorm.DB
	embeddingDim int
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string, options ...GormStoreOption) (*GormStore, error) {
	opts := GormStoreOptions{}
	for _, option := range options {
		if option != nil {
			option(&opts)
		}
	}
	embeddingDim, err := resolveEmbeddingDim(opts.EmbeddingDim)
	if err != nil {
		return nil, err
	}

	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.Exec("CREATE EXTENSION IF NOT EXISTS vector").Error; err != nil {
			return fmt.Errorf("create pgvector extension: %w", err)
		}
		if err := tx.AutoMigrate(
			&ResumeModel{},
			&CandidateModel{},
			&JobPositionModel{},
			&ApplicationModel{},
			&JourneyModel{},
			&JourneyLogModel{},
			&ChunkModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		if err := tx.Exec(fmt.Sprintf(`
			DO $$
			BEGIN
			IF EXISTS (
				SELECT 1 FROM information_schema.columns
				WHERE table_name = 'chunk_models' AND column_name = 'embedding'
			) THEN
				ALTER TABLE chunk_models ALTER COLUMN embedding TYPE vector(%d);
			END IF;
			END $$;
		`, embeddingDim)).Error; err != nil {
			return fmt.Errorf("alter chunk embedding type: %w", err)
		}
		if err := tx.Exec(`
			DO $$
			BEGIN
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'chunk_models'
					AND constraint_name = 'chunk_models_resume_id_fkey'
				) THEN
					ALTER TABLE chunk_models
					ADD CONSTRAINT chunk_models_resume_id_fkey
					FOREIGN KEY (resume_id) REFERENCES resume_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'candidate_models'
					AND constraint_name = 'candidate_models_resume_id_fkey'
				) THEN
					ALTER TABLE candidate_models
					ADD CONSTRAINT candidate_models_resume_id_fkey
					FOREIGN KEY (resume_id) REFERENCES resume_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'journey_models'
					AND constraint_name = 'journey_models_application_id_fkey'
				) THEN
					ALTER TABLE journey_models
					ADD CONSTRAINT journey_models_application_id_fkey
					FOREIGN KEY (application_id) REFERENCES application_models(id) ON DELETE CASCADE;
				END IF;
				IF NOT EXISTS (
					SELECT 1 FROM information_schema.table_constraints
					WHERE table_schema = 'public'
					AND table_name = 'journey_log_models'
					AND constraint_name = 'journey_log_models_journey_id_fkey'
				) THEN
					ALTER TABLE journey_log_models
					ADD CONSTRAINT journey_log_models_journey_id_fkey
					FOREIGN KEY (journey_id) REFERENCES journey_models(id) ON DELETE CASCADE;
				END IF;
			END $$;
		`).Error; err != nil {
			return fmt.Errorf("ensure foreign keys: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db, embeddingDim: embeddingDim}, nil
}

func resolveEmbeddingDim(configValue int) (int, error) {
	if configValue > 0 {
		return configValue, nil
	}
	raw := strings.TrimSpace(os.Getenv(canonicalEmbeddingDimEnv))
	if raw == "" {
		return defaultEmbeddingDim, nil
	}
	dim, err := strconv.Atoi(raw)
	if err != nil || dim <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", canonicalEmbeddingDimEnv, raw)
	}
	return dim, nil
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

// SaveResume stores or updates a resume record.
func (s *GormStore) SaveResume(resume domain.Resume) error {
	model := resumeToModel(resume)
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"filename", "storage_key", "raw_text", "indexed"}),
	}).Create(&model).Error
}

// GetResume retrieves a resume.
func (s *GormStore) GetResume(id string) (domain.Resume, bool, error) {
	var model ResumeModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Resume{}, false, nil
		}
		return domain.Resume{}, false, err
	}
	return resumeFromModel(model), true, nil
}

// ReplaceResumeIndex writes the full document index for a resume in one
// transaction: raw text, ordered fragments and their embeddings. A failed
// build leaves no partial rows behind.
func (s *GormStore) ReplaceResumeIndex(resumeID, rawText string, chunks []domain.Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("chunk/embedding count mismatch: %d vs %d", len(chunks), len(embeddings))
	}
	for _, embedding := range embeddings {
		if err := s.validateEmbeddingDim(embedding); err != nil {
			return err
		}
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ChunkModel{}, "resume_id = ?", resumeID).Error; err != nil {
			return err
		}
		if len(chunks) > 0 {
			models := make([]ChunkModel, 0, len(chunks))
			for i, chunk := range chunks {
				model := chunkToModel(chunk)
				model.ResumeID = resumeID
				vec := pgvector.NewVector(embeddings[i])
				model.Embedding = &vec
				models = append(models, model)
			}
			if err := tx.CreateInBatches(&models, 200).Error; err != nil {
				return err
			}
		}
		return tx.Model(&ResumeModel{}).Where("id = ?", resumeID).
			Updates(map[string]any{"raw_text": rawText, "indexed": true}).Error
	})
}

// ListChunksByResume returns the ordered fragments of a resume.
func (s *GormStore) ListChunksByResume(resumeID string) ([]domain.Chunk, error) {
	var models []ChunkModel
	if err := s.db.Where("resume_id = ?", resumeID).Order("position ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	chunks := make([]domain.Chunk, 0, len(models))
	for _, model := range models {
		chunks = append(chunks, chunkFromModel(model))
	}
	return chunks, nil
}

type scoredChunkRow struct {
	ChunkModel
	Score float32
}

// SearchChunks finds the most similar fragments of one resume by exact
// inner-product ordering. Scores are the raw inner products; with
// normalized vectors they equal cosine similarity.
func (s *GormStore) SearchChunks(resumeID string, embedding []float32, limit int) ([]domain.ScoredChunk, error) {
	if limit <= 0 {
		return []domain.ScoredChunk{}, nil
	}
	if err := s.validateEmbeddingDim(embedding); err != nil {
		return nil, err
	}
	vec := pgvector.NewVector(embedding)
	var rows []scoredChunkRow
	if err := s.db.Model(&ChunkModel{}).
		Select("*, (embedding <#> ?) * -1 AS score", vec).
		Where("resume_id = ? AND embedding IS NOT NULL", resumeID).
		Order(clause.Expr{SQL: "embedding <#> ?", Vars: []any{vec}}).
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	chunks := make([]domain.ScoredChunk, 0, len(rows))
	for _, row := range rows {
		chunks = append(chunks, domain.ScoredChunk{
			Chunk: chunkFromModel(row.ChunkModel),
			Score: row.Score,
		})
	}
	return chunks, nil
}

// SaveJob stores or updates a job position.
func (s *GormStore) SaveJob(job domain.JobPosition) error {
	model := jobToModel(job)
	return s.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"title", "department", "level", "location", "employment_type", "priority",
			"status", "salary_min", "salary_max", "salary_currency", "description",
			"requirements", "required_skills", "available", "updated_at",
		}),
	}).Create(&model).Error
}

// GetJob retrieves a job position.
func (s *GormStore) GetJob(id string) (domain.JobPosition, bool, error) {
	var model JobPositionModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.JobPosition{}, false, nil
		}
		return domain.JobPosition{}, false, err
	}
	return jobFromModel(model), true, nil
}

// FindActiveJobByTitle looks up an available, active job whose title
// contains the given fragment (case-insensitive).
func (s *GormStore) FindActiveJobByTitle(title string) (domain.JobPosition, bool, error) {
	var model JobPositionModel
	if err := s.db.Where("title ILIKE ? AND available = ? AND status = ?", "%"+title+"%", true, string(domain.JobActive)).
		First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.JobPosition{}, false, nil
		}
		return domain.JobPosition{}, false, err
	}
	return jobFromModel(model), true, nil
}

// ListJobs returns all job positions ordered by creation time.
func (s *GormStore) ListJobs() ([]domain.JobPosition, error) {
	var models []JobPositionModel
	if err := s.db.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	jobs := make([]domain.JobPosition, 0, len(models))
	for _, m := range models {
		jobs = append(jobs, jobFromModel(m))
	}
	return jobs, nil
}

// DeleteJob removes a job position and, via FK cascade, its applications.
func (s *GormStore) DeleteJob(id string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ApplicationModel{}, "job_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&JobPositionModel{}, "id = ?", id).Error
	})
}

// GetCandidate retrieves a candidate profile.
func (s *GormStore) GetCandidate(id string) (domain.Candidate, bool, error) {
	var model CandidateModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Candidate{}, false, nil
		}
		return domain.Candidate{}, false, err
	}
	return candidateFromModel(model), true, nil
}

// GetCandidateByResume retrieves the 1:1 candidate for a resume.
func (s *GormStore) GetCandidateByResume(resumeID string) (domain.Candidate, bool, error) {
	var model CandidateModel
	if err := s.db.Where("resume_id = ?", resumeID).First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Candidate{}, false, nil
		}
		return domain.Candidate{}, false, err
	}
	return candidateFromModel(model), true, nil
}

type candidateMatchRow struct {
	CandidateModel
	ApplicationID string
	JobID         string
	MatchScore    int
	AIVerdict     string
	AppStatus     string
	AppliedAt     time.Time
	JobTitle      string
}

// ListCandidateMatches joins candidates with their applications and jobs,
// ordered by match score descending. jobID filters to one job when set.
func (s *GormStore) ListCandidateMatches(jobID string) ([]CandidateMatch, error) {
	query := s.db.Table("candidate_models").
		Select(`candidate_models.*,
			application_models.id AS application_id,
			application_models.job_id AS job_id,
			application_models.match_score AS match_score,
			application_models.ai_verdict AS ai_verdict,
			application_models.status AS app_status,
			application_models.applied_at AS applied_at,
			job_position_models.title AS job_title`).
		Joins("JOIN application_models ON application_models.candidate_id = candidate_models.id").
		Joins("JOIN job_position_models ON job_position_models.id = application_models.job_id")
	if jobID != "" {
		query = query.Where("application_models.job_id = ?", jobID)
	}
	var rows []candidateMatchRow
	if err := query.Order("application_models.match_score DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	matches := make([]CandidateMatch, 0, len(rows))
	for _, row := range rows {
		matches = append(matches, CandidateMatch{
			Candidate: candidateFromModel(row.CandidateModel),
			Application: domain.Application{
				ID:          row.ApplicationID,
				CandidateID: row.CandidateModel.ID,
				JobID:       row.JobID,
				MatchScore:  row.MatchScore,
				AIVerdict:   row.AIVerdict,
				Status:      domain.ApplicationStatus(row.AppStatus),
				AppliedAt:   row.AppliedAt,
			},
			JobTitle: row.JobTitle,
		})
	}
	return matches, nil
}

// GetApplication retrieves an application.
func (s *GormStore) GetApplication(id string) (domain.Application, bool, error) {
	var model ApplicationModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Application{}, false, nil
		}
		return domain.Application{}, false, err
	}
	return applicationFromModel(model), true, nil
}

// LatestApplicationByCandidate returns the candidate's most recent
// application.
func (s *GormStore) LatestApplicationByCandidate(candidateID string) (domain.Application, bool, error) {
	var model ApplicationModel
	if err := s.db.Where("candidate_id = ?", candidateID).
		Order("applied_at DESC").First(&model).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return domain.Application{}, false, nil
		}
		return domain.Application{}, false, err
	}
	return applicationFromModel(model), true, nil
}

// SaveMatchResult persists one match request as a single atomic unit:
// candidate find-or-create, application upsert by (candidate, job), and on
// first application creation the journey bootstrap plus the AI-screening
// transition. Returns the candidate, the application and whether the
// application was created.
func (s *GormStore) SaveMatchResult(result MatchResult) (domain.Candidate, domain.Application, bool, error) {
	var (
		outCandidate   domain.Candidate
		outApplication domain.Application
		created        bool
	)
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		var cm CandidateModel
		err := tx.Where("resume_id = ?", result.ResumeID).First(&cm).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			cm = CandidateModel{
				ID:         uuid.NewString(),
				ResumeID:   result.ResumeID,
				Name:       result.Name,
				Email:      result.Email,
				Phone:      result.Phone,
				Summary:    result.Summary,
				Education:  mustJSON(result.Education),
				Experience: mustJSON(result.Experience),
				Skills:     mustJSON(result.Skills),
				CreatedAt:  now,
			}
			if err := tx.Create(&cm).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			// Identity fields keep their first-parse values; only the
			// structured extraction is refreshed.
			cm.Summary = result.Summary
			cm.Education = mustJSON(result.Education)
			cm.Experience = mustJSON(result.Experience)
			cm.Skills = mustJSON(result.Skills)
			if err := tx.Model(&CandidateModel{}).Where("id = ?", cm.ID).Updates(map[string]any{
				"summary":    cm.Summary,
				"education":  cm.Education,
				"experience": cm.Experience,
				"skills":     cm.Skills,
			}).Error; err != nil {
				return err
			}
		}

		var am ApplicationModel
		err = tx.Where("candidate_id = ? AND job_id = ?", cm.ID, result.JobID).First(&am).Error
		switch {
		case err == gorm.ErrRecordNotFound:
			am = ApplicationModel{
				ID:          uuid.NewString(),
				CandidateID: cm.ID,
				JobID:       result.JobID,
				MatchScore:  result.Score,
				AIVerdict:   result.Verdict,
				Status:      string(domain.StatusApplied),
				AppliedAt:   now,
			}
			if err := tx.Create(&am).Error; err != nil {
				return err
			}
			created = true

			jm, err := createJourneyTx(tx, am.ID, now)
			if err != nil {
				return err
			}
			jm.CurrentStage = string(domain.StageAIScreening)
			jm.UpdatedAt = now
			if err := tx.Model(&JourneyModel{}).Where("id = ?", jm.ID).Updates(map[string]any{
				"current_stage": jm.CurrentStage,
				"updated_at":    jm.UpdatedAt,
			}).Error; err != nil {
				return err
			}
			aiLog := JourneyLogModel{
				JourneyID:     jm.ID,
				PreviousStage: domain.StageCVScreening.Label(),
				NewStage:      domain.StageAIScreening.Label(),
				Action:        "AI Screening completed",
				Notes:         fmt.Sprintf("AI Match Score: %d%%. %s", result.Score, result.Verdict),
				ActorName:     "AI System",
				CreatedAt:     now,
			}
			if err := tx.Create(&aiLog).Error; err != nil {
				return err
			}
		case err != nil:
			return err
		default:
			am.MatchScore = result.Score
			am.AIVerdict = result.Verdict
			am.AppliedAt = now
			if err := tx.Model(&ApplicationModel{}).Where("id = ?", am.ID).Updates(map[string]any{
				"match_score": am.MatchScore,
				"ai_verdict":  am.AIVerdict,
				"applied_at":  am.AppliedAt,
			}).Error; err != nil {
				return err
			}
		}

		outCandidate = candidateFromModel(cm)
		outApplication = applicationFromModel(am)
		return nil
	})
	if err != nil {
		return domain.Candidate{}, domain.Application{}, false, err
	}
	return outCandidate, outApplication, created, nil
}

// createJourneyTx creates the journey for an application at CV_SCREENING
// with its mandatory initial log entry. Must run inside a transaction.
func createJourneyTx(tx *gorm.DB, applicationID string, now time.Time) (JourneyModel, error) {
	jm := JourneyModel{
		ID:            uuid.NewString(),
		ApplicationID: applicationID,
		CurrentStage:  string(domain.StageCVScreening),
		Metadata:      mustJSON(map[string]string{}),
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := tx.Create(&jm).Error; err != nil {
		return JourneyModel{}, err
	}
	initialLog := JourneyLogModel{
		JourneyID: jm.ID,
		NewStage:  domain.StageCVScreening.Label(),
		Action:    "Journey started - CV Screening",
		Notes:     "Candidate application received and CV screening initiated",
		ActorName: "System",
		CreatedAt: now,
	}
	if err := tx.Create(&initialLog).Error; err != nil {
		return JourneyModel{}, err
	}
	return jm, nil
}

// GetOrCreateJourney lazily creates the journey for an application and
// returns it with its log entries, newest first.
func (s *GormStore) GetOrCreateJourney(applicationID string) (domain.Journey, []domain.JourneyLog, error) {
	var jm JourneyModel
	err := s.db.Transaction(func(tx *gorm.DB) error {
		err := tx.Where("application_id = ?", applicationID).First(&jm).Error
		if err == gorm.ErrRecordNotFound {
			jm, err = createJourneyTx(tx, applicationID, time.Now().UTC())
		}
		return err
	})
	if err != nil {
		return domain.Journey{}, nil, err
	}
	logs, err := s.listJourneyLogs(jm.ID)
	if err != nil {
		return domain.Journey{}, nil, err
	}
	return journeyFromModel(jm), logs, nil
}

// TransitionJourney moves an application to the target stage. The journey
// row is locked for the duration of the transaction so concurrent
// transitions for the same application serialize; validation runs against
// the locked current stage. The stage write and the log append commit
// together or not at all.
func (s *GormStore) TransitionJourney(applicationID string, target domain.Stage, notes, actor string) (domain.Journey, error) {
	var out domain.Journey
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var jm JourneyModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("application_id = ?", applicationID).First(&jm).Error
		if err == gorm.ErrRecordNotFound {
			jm, err = createJourneyTx(tx, applicationID, now)
		}
		if err != nil {
			return err
		}

		current := domain.Stage(jm.CurrentStage)
		if err := domain.ValidateTransition(current, target, notes); err != nil {
			return err
		}

		action := "Status updated: " + target.Label()
		if target.IsRejection() {
			action = "DECISION: " + strings.ToUpper(target.Label())
		}
		entry := JourneyLogModel{
			JourneyID:     jm.ID,
			PreviousStage: current.Label(),
			NewStage:      target.Label(),
			Action:        action,
			Notes:         notes,
			ActorName:     actor,
			CreatedAt:     now,
		}
		jm.CurrentStage = string(target)
		jm.UpdatedAt = now
		if err := tx.Model(&JourneyModel{}).Where("id = ?", jm.ID).Updates(map[string]any{
			"current_stage": jm.CurrentStage,
			"updated_at":    jm.UpdatedAt,
		}).Error; err != nil {
			return err
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		out = journeyFromModel(jm)
		return nil
	})
	if err != nil {
		return domain.Journey{}, err
	}
	return out, nil
}

// AttachJourneyDocument merges a document reference into the journey
// metadata and appends a same-stage log entry.
func (s *GormStore) AttachJourneyDocument(applicationID, docType, url, notes, actor string) (domain.Journey, error) {
	var out domain.Journey
	err := s.db.Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		var jm JourneyModel
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("application_id = ?", applicationID).First(&jm).Error
		if err == gorm.ErrRecordNotFound {
			jm, err = createJourneyTx(tx, applicationID, now)
		}
		if err != nil {
			return err
		}

		meta := metadataFromJSON(jm.Metadata)
		meta[docType+"_url"] = url
		meta[docType+"_uploaded_at"] = now.Format(time.RFC3339)
		jm.Metadata = mustJSON(meta)
		jm.UpdatedAt = now
		if err := tx.Model(&JourneyModel{}).Where("id = ?", jm.ID).Updates(map[string]any{
			"metadata":   jm.Metadata,
			"updated_at": jm.UpdatedAt,
		}).Error; err != nil {
			return err
		}

		if notes == "" {
			notes = fmt.Sprintf("File %s uploaded", docType)
		}
		stage := domain.Stage(jm.CurrentStage)
		entry := JourneyLogModel{
			JourneyID:     jm.ID,
			PreviousStage: stage.Label(),
			NewStage:      stage.Label(),
			Action:        "Document Uploaded: " + strings.ToUpper(docType),
			Notes:         notes,
			ActorName:     actor,
			CreatedAt:     now,
		}
		if err := tx.Create(&entry).Error; err != nil {
			return err
		}
		out = journeyFromModel(jm)
		return nil
	})
	if err != nil {
		return domain.Journey{}, err
	}
	return out, nil
}

func (s *GormStore) listJourneyLogs(journeyID string) ([]domain.JourneyLog, error) {
	var models []JourneyLogModel
	if err := s.db.Where("journey_id = ?", journeyID).
		Order("created_at DESC").Order("id DESC").Find(&models).Error; err != nil {
		return nil, err
	}
	logs := make([]domain.JourneyLog, 0, len(models))
	for _, m := range models {
		logs = append(logs, journeyLogFromModel(m))
	}
	return logs, nil
}

// Summary aggregates pipeline counts for the dashboard.
func (s *GormStore) Summary() (DashboardSummary, error) {
	summary := DashboardSummary{StageCounts: map[string]int{}}
	var count int64
	if err := s.db.Model(&CandidateModel{}).Count(&count).Error; err != nil {
		return summary, err
	}
	summary.Candidates = int(count)
	if err := s.db.Model(&JobPositionModel{}).Count(&count).Error; err != nil {
		return summary, err
	}
	summary.Jobs = int(count)
	if err := s.db.Model(&ApplicationModel{}).Count(&count).Error; err != nil {
		return summary, err
	}
	summary.Applications = int(count)

	type stageCount struct {
		CurrentStage string
		Total        int
	}
	var rows []stageCount
	if err := s.db.Model(&JourneyModel{}).
		Select("current_stage, COUNT(*) AS total").
		Group("current_stage").Find(&rows).Error; err != nil {
		return summary, err
	}
	for _, row := range rows {
		summary.StageCounts[domain.Stage(row.CurrentStage).Label()] = row.Total
	}
	return summary, nil
}

func (s *GormStore) validateEmbeddingDim(embedding []float32) error {
	if len(embedding) == 0 {
		return fmt.Errorf("embedding vector is empty")
	}
	if s.embeddingDim > 0 && len(embedding) != s.embeddingDim {
		return fmt.Errorf("embedding dimension mismatch: got %d, want %d", len(embedding), s.embeddingDim)
	}
	return nil
}

func mustJSON(v any) []byte {
	raw, _ := json.Marshal(v)
	return raw
}

func metadataFromJSON(raw []byte) map[string]string {
	meta := map[string]string{}
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

func resumeToModel(r domain.Resume) ResumeModel {
	return ResumeModel{
		ID:         r.ID,
		Filename:   r.Filename,
		StorageKey: r.StorageKey,
		RawText:    r.RawText,
		Indexed:    r.Indexed,
		UploadedAt: r.UploadedAt,
	}
}

func resumeFromModel(m ResumeModel) domain.Resume {
	return domain.Resume{
		ID:         m.ID,
		Filename:   m.Filename,
		StorageKey: m.StorageKey,
		RawText:    m.RawText,
		Indexed:    m.Indexed,
		UploadedAt: m.UploadedAt,
	}
}

func candidateFromModel(m CandidateModel) domain.Candidate {
	c := domain.Candidate{
		ID:        m.ID,
		ResumeID:  m.ResumeID,
		Name:      m.Name,
		Email:     m.Email,
		Phone:     m.Phone,
		Summary:   m.Summary,
		CreatedAt: m.CreatedAt,
	}
	_ = json.Unmarshal(m.Education, &c.Education)
	_ = json.Unmarshal(m.Experience, &c.Experience)
	_ = json.Unmarshal(m.Skills, &c.Skills)
	return c
}

func jobToModel(j domain.JobPosition) JobPositionModel {
	return JobPositionModel{
		ID:             j.ID,
		Title:          j.Title,
		Department:     j.Department,
		Level:          j.Level,
		Location:       j.Location,
		EmploymentType: j.EmploymentType,
		Priority:       j.Priority,
		Status:         string(j.Status),
		SalaryMin:      j.SalaryMin,
		SalaryMax:      j.SalaryMax,
		SalaryCurrency: j.SalaryCurrency,
		Description:    j.Description,
		Requirements:   mustJSON(j.Requirements),
		RequiredSkills: mustJSON(j.RequiredSkills),
		Available:      j.Available,
		CreatedAt:      j.CreatedAt,
		UpdatedAt:      j.UpdatedAt,
	}
}

func jobFromModel(m JobPositionModel) domain.JobPosition {
	j := domain.JobPosition{
		ID:             m.ID,
		Title:          m.Title,
		Department:     m.Department,
		Level:          m.Level,
		Location:       m.Location,
		EmploymentType: m.EmploymentType,
		Priority:       m.Priority,
		Status:         domain.JobStatus(m.Status),
		SalaryMin:      m.SalaryMin,
		SalaryMax:      m.SalaryMax,
		SalaryCurrency: m.SalaryCurrency,
		Description:    m.Description,
		Available:      m.Available,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
	_ = json.Unmarshal(m.Requirements, &j.Requirements)
	_ = json.Unmarshal(m.RequiredSkills, &j.RequiredSkills)
	return j
}

func applicationFromModel(m ApplicationModel) domain.Application {
	return domain.Application{
		ID:          m.ID,
		CandidateID: m.CandidateID,
		JobID:       m.JobID,
		MatchScore:  m.MatchScore,
		AIVerdict:   m.AIVerdict,
		Status:      domain.ApplicationStatus(m.Status),
		AppliedAt:   m.AppliedAt,
	}
}

func journeyFromModel(m JourneyModel) domain.Journey {
	return domain.Journey{
		ID:            m.ID,
		ApplicationID: m.ApplicationID,
		CurrentStage:  domain.Stage(m.CurrentStage),
		Metadata:      metadataFromJSON(m.Metadata),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func journeyLogFromModel(m JourneyLogModel) domain.JourneyLog {
	return domain.JourneyLog{
		ID:            m.ID,
		JourneyID:     m.JourneyID,
		PreviousStage: m.PreviousStage,
		NewStage:      m.NewStage,
		Action:        m.Action,
		Notes:         m.Notes,
		ActorName:     m.ActorName,
		CreatedAt:     m.CreatedAt,
	}
}

func chunkToModel(chunk domain.Chunk) ChunkModel {
	return ChunkModel{
		ID:        chunk.ID,
		ResumeID:  chunk.ResumeID,
		Position:  chunk.Position,
		Content:   chunk.Content,
		CreatedAt: chunk.CreatedAt,
	}
}

func chunkFromModel(model ChunkModel) domain.Chunk {
	return domain.Chunk{
		ID:        model.ID,
		ResumeID:  model.ResumeID,
		Position:  model.Position,
		Content:   model.Content,
		CreatedAt: model.CreatedAt,
	}
}
