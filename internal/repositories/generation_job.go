package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/studio/internal/models"
	"github.com/desertthunder/studio/internal/shared"
)

var _ models.Repository[*models.GenerationJob] = (*GenerationJobRepository)(nil)

// GenerationJobRepository implements models.Repository[*models.GenerationJob] for the generation journal.
//
// Handles job CRUD operations with soft delete support and status/mode queries.
type GenerationJobRepository struct {
	db *sql.DB
}

// NewGenerationJobRepository creates a new GenerationJobRepository with the given database connection
func NewGenerationJobRepository(db *sql.DB) *GenerationJobRepository {
	return &GenerationJobRepository{db: db}
}

const jobColumns = `
	id, sequence, mode, model, prompt, style, voice, status, record_id,
	asset_path, error_message, started_at, completed_at, created_at, updated_at
`

// Create inserts a new job into the database with generated ID and sequence
func (r *GenerationJobRepository) Create(job *models.GenerationJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	sequence, err := NextSequence(r.db, "generation_jobs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	job.ID = shared.GenerateID()
	job.Sequence = sequence

	query := `INSERT INTO generation_jobs (` + jobColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err = r.db.Exec(query,
		job.ID,
		job.Sequence,
		string(job.Mode),
		job.Model,
		job.Prompt,
		job.Style,
		job.Voice,
		string(job.Status),
		job.RecordID,
		job.AssetPath,
		nullString(job.Error),
		job.StartedAt,
		job.CompletedAt,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert generation job: %w", err)
	}

	return nil
}

// Get retrieves a job by ID, excluding soft-deleted jobs
func (r *GenerationJobRepository) Get(id string) (*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = ? AND deleted_at IS NULL`

	job, err := scanJob(r.db.QueryRow(query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("generation job not found: %s", id)
	}
	return job, err
}

// Update writes the job's outcome fields back to the database
func (r *GenerationJobRepository) Update(job *models.GenerationJob) error {
	if err := job.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	job.UpdatedAt = time.Now()

	query := `
		UPDATE generation_jobs
		SET status = ?, record_id = ?, asset_path = ?, error_message = ?,
			completed_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query,
		string(job.Status),
		job.RecordID,
		job.AssetPath,
		nullString(job.Error),
		job.CompletedAt,
		job.UpdatedAt,
		job.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update generation job: %w", err)
	}

	return expectOneRow(result, job.ID)
}

// Delete soft-deletes a job by ID
func (r *GenerationJobRepository) Delete(id string) error {
	query := `UPDATE generation_jobs SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete generation job: %w", err)
	}

	return expectOneRow(result, id)
}

// List retrieves jobs matching the given criteria, newest first.
//
// Supported criteria: "status" (string), "mode" (string), "limit" (int).
func (r *GenerationJobRepository) List(criteria map[string]any) ([]*models.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if mode, ok := criteria["mode"].(string); ok && mode != "" {
		query += " AND mode = ?"
		args = append(args, mode)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query generation jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*models.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return jobs, nil
}

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

func scanJob(s scanner) (*models.GenerationJob, error) {
	var (
		job          models.GenerationJob
		mode, status string
		recordID     sql.NullInt64
		errorMessage sql.NullString
		completedAt  sql.NullTime
	)

	err := s.Scan(
		&job.ID, &job.Sequence, &mode, &job.Model, &job.Prompt, &job.Style, &job.Voice,
		&status, &recordID, &job.AssetPath, &errorMessage, &job.StartedAt, &completedAt,
		&job.CreatedAt, &job.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan generation job: %w", err)
	}

	job.Mode = models.MediaType(mode)
	job.Status = models.JobStatus(status)
	if recordID.Valid {
		id := recordID.Int64
		job.RecordID = &id
	}
	if errorMessage.Valid {
		job.Error = errorMessage.String
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}

	return &job, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func expectOneRow(result sql.Result, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("generation job not found or already deleted: %s", id)
	}
	return nil
}
