package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

// Ошибки уровня репозитория.
var (
	ErrJobNotFound    = errors.New("job not found")
	ErrJobHasContract = errors.New("job has contract")
)

// JobRepository отвечает за работу с заданиями.
type JobRepository struct {
	db *sqlx.DB
}

// NewJobRepository создаёт новый экземпляр.
func NewJobRepository(db *sqlx.DB) *JobRepository {
	return &JobRepository{db: db}
}

// Create сохраняет новое задание.
func (r *JobRepository) Create(ctx context.Context, job *models.Job) error {
	query := `
		INSERT INTO jobs (client_id, title, description, budget, category, type, status, skills, experience_level, deadline_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id, created_at, updated_at
	`
	return r.db.QueryRowContext(ctx, query,
		job.ClientID, job.Title, job.Description, job.Budget, job.Category,
		job.Type, job.Status, pq.Array(job.Skills), job.ExperienceLevel, job.DeadlineAt).
		Scan(&job.ID, &job.CreatedAt, &job.UpdatedAt)
}

// GetByID возвращает задание по идентификатору.
func (r *JobRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	return common.GetByID[models.Job](ctx, r.db, "jobs", id, ErrJobNotFound)
}

// JobListParams фильтры выборки заданий.
type JobListParams struct {
	Status   string
	Type     string
	Category string
	ClientID *uuid.UUID
	Limit    int
	Offset   int
}

// List возвращает задания по фильтрам вместе с количеством откликов.
func (r *JobRepository) List(ctx context.Context, params JobListParams) ([]models.Job, error) {
	query := `
		SELECT j.*, COUNT(b.id) AS bids_count
		FROM jobs j
		LEFT JOIN bids b ON b.job_id = j.id
		WHERE 1=1
	`
	args := []interface{}{}
	argNum := 1

	if params.Status != "" {
		query += fmt.Sprintf(" AND j.status = $%d", argNum)
		args = append(args, params.Status)
		argNum++
	}
	if params.Type != "" {
		query += fmt.Sprintf(" AND j.type = $%d", argNum)
		args = append(args, params.Type)
		argNum++
	}
	if params.Category != "" {
		query += fmt.Sprintf(" AND j.category = $%d", argNum)
		args = append(args, params.Category)
		argNum++
	}
	if params.ClientID != nil {
		query += fmt.Sprintf(" AND j.client_id = $%d", argNum)
		args = append(args, *params.ClientID)
		argNum++
	}

	query += fmt.Sprintf(" GROUP BY j.id ORDER BY j.created_at DESC LIMIT $%d OFFSET $%d", argNum, argNum+1)
	args = append(args, params.Limit, params.Offset)

	var jobs []models.Job
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("job repository: list %w", err)
	}
	return jobs, nil
}

// Delete удаляет задание вместе с откликами и связанными уведомлениями.
// Каскад выполняется одной транзакцией: частичное удаление недопустимо.
func (r *JobRepository) Delete(ctx context.Context, id uuid.UUID) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		// Контракт фиксирует задание: удаление после назначения запрещено.
		var contractID uuid.UUID
		err := tx.GetContext(ctx, &contractID, `SELECT id FROM contracts WHERE job_id = $1`, id)
		if err == nil {
			return ErrJobHasContract
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("job repository: check contract %w", err)
		}

		var bidIDs []uuid.UUID
		if err := tx.SelectContext(ctx, &bidIDs, `SELECT id FROM bids WHERE job_id = $1`, id); err != nil {
			return fmt.Errorf("job repository: collect bids %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			DELETE FROM notifications
			WHERE (related_model = $1 AND related_id = $2)
			   OR (related_model = $3 AND related_id = ANY($4))
		`, models.RelatedModelJob, id, models.RelatedModelBid, pq.Array(bidIDs))
		if err != nil {
			return fmt.Errorf("job repository: delete notifications %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM invitations WHERE job_id = $1`, id); err != nil {
			return fmt.Errorf("job repository: delete invitations %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM bids WHERE job_id = $1`, id); err != nil {
			return fmt.Errorf("job repository: delete bids %w", err)
		}

		res, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("job repository: delete job %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrJobNotFound
		}
		return nil
	})
}

// SetStatus обновляет статус задания. Используется только контрактным
// слоем при смене статуса контракта, внешним вызывающим недоступно.
func (r *JobRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("job repository: set status %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}
