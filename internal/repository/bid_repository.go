package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

var ErrBidNotFound = errors.New("bid not found")

// BidRepository отвечает за работу с откликами.
type BidRepository struct {
	db *sqlx.DB
}

// NewBidRepository создаёт новый экземпляр.
func NewBidRepository(db *sqlx.DB) *BidRepository {
	return &BidRepository{db: db}
}

// Create сохраняет отклик. Дубликат по (job_id, freelancer_id)
// отсекается ограничением уникальности.
func (r *BidRepository) Create(ctx context.Context, bid *models.Bid) error {
	query := `
		INSERT INTO bids (job_id, freelancer_id, amount, cover_letter, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, bid.JobID, bid.FreelancerID, bid.Amount, bid.CoverLetter, bid.Status).
		Scan(&bid.ID, &bid.CreatedAt, &bid.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("bid repository: create %w", err)
	}
	return nil
}

// GetByID возвращает отклик по идентификатору.
func (r *BidRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	return common.GetByID[models.Bid](ctx, r.db, "bids", id, ErrBidNotFound)
}

// GetByJobAndFreelancer возвращает отклик фрилансера на задание.
func (r *BidRepository) GetByJobAndFreelancer(ctx context.Context, jobID, freelancerID uuid.UUID) (*models.Bid, error) {
	var bid models.Bid
	err := r.db.GetContext(ctx, &bid, `SELECT * FROM bids WHERE job_id = $1 AND freelancer_id = $2`, jobID, freelancerID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bid repository: get by job and freelancer %w", err)
	}
	return &bid, nil
}

// GetWithJob возвращает отклик вместе с заданием одним запросом.
func (r *BidRepository) GetWithJob(ctx context.Context, id uuid.UUID) (*models.BidWithJob, error) {
	var row models.BidWithJob
	query := `
		SELECT b.*, j.title AS job_title, j.status AS job_status, j.budget AS job_budget, j.client_id AS job_client_id
		FROM bids b
		JOIN jobs j ON j.id = b.job_id
		WHERE b.id = $1
	`
	err := r.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bid repository: get with job %w", err)
	}
	return &row, nil
}

// ListByJob возвращает все отклики на задание.
func (r *BidRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	var bids []models.Bid
	err := r.db.SelectContext(ctx, &bids, `SELECT * FROM bids WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by job %w", err)
	}
	return bids, nil
}

// ListByFreelancer возвращает отклики фрилансера вместе с заданиями.
func (r *BidRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.BidWithJob, error) {
	var bids []models.BidWithJob
	query := `
		SELECT b.*, j.title AS job_title, j.status AS job_status, j.budget AS job_budget, j.client_id AS job_client_id
		FROM bids b
		JOIN jobs j ON j.id = b.job_id
		WHERE b.freelancer_id = $1
		ORDER BY b.created_at DESC LIMIT $2 OFFSET $3
	`
	err := r.db.SelectContext(ctx, &bids, query, freelancerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("bid repository: list by freelancer %w", err)
	}
	return bids, nil
}

// Update изменяет сумму и сопроводительное письмо отклика,
// пока он находится в статусе pending.
func (r *BidRepository) Update(ctx context.Context, id uuid.UUID, amount float64, coverLetter string) (*models.Bid, error) {
	var bid models.Bid
	query := `
		UPDATE bids SET amount = $2, cover_letter = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4
		RETURNING *
	`
	err := r.db.GetContext(ctx, &bid, query, id, amount, coverLetter, models.BidStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bid repository: update %w", err)
	}
	return &bid, nil
}

// Delete удаляет отклик.
func (r *BidRepository) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bids WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bid repository: delete %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrBidNotFound
	}
	return nil
}
