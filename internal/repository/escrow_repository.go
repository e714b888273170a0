package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

var (
	ErrEscrowNotFound    = errors.New("escrow not found")
	ErrEscrowNotHeld     = errors.New("escrow is not in held status")
	ErrEscrowTerminal    = errors.New("escrow is already closed")
	ErrInsufficientFunds = errors.New("insufficient held funds")
)

// EscrowRepository отвечает за защищённые сделки.
// Все движения средств блокируют строку escrow (FOR UPDATE), чтобы
// выплаты вех и решения по спорам не пересекались.
type EscrowRepository struct {
	db *sqlx.DB
}

// NewEscrowRepository создаёт новый экземпляр.
func NewEscrowRepository(db *sqlx.DB) *EscrowRepository {
	return &EscrowRepository{db: db}
}

// Create сохраняет новый escrow c полным удержанием суммы.
// Второй escrow на то же задание отсекается уникальностью job_id.
func (r *EscrowRepository) Create(ctx context.Context, escrow *models.Escrow) error {
	query := `
		INSERT INTO escrow (job_id, client_id, freelancer_id, total_amount, held_amount, released_amount, refunded_amount, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		escrow.JobID, escrow.ClientID, escrow.FreelancerID,
		escrow.TotalAmount, escrow.HeldAmount, escrow.ReleasedAmount, escrow.RefundedAmount, escrow.Status).
		Scan(&escrow.ID, &escrow.CreatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("escrow repository: create %w", err)
	}
	return nil
}

// GetByID возвращает escrow по идентификатору.
func (r *EscrowRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return common.GetByID[models.Escrow](ctx, r.db, "escrow", id, ErrEscrowNotFound)
}

// GetByJobID возвращает escrow задания.
func (r *EscrowRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	return common.GetByField[models.Escrow](ctx, r.db, "escrow", "job_id", jobID, ErrEscrowNotFound)
}

// ListByUser возвращает сделки, где пользователь выступает стороной.
func (r *EscrowRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	var escrows []models.Escrow
	err := r.db.SelectContext(ctx, &escrows, `
		SELECT * FROM escrow WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("escrow repository: list by user %w", err)
	}
	return escrows, nil
}

// Release полностью выплачивает удержанные средства фрилансеру.
func (r *EscrowRepository) Release(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return r.collapse(ctx, id, models.EscrowStatusReleased)
}

// Refund полностью возвращает удержанные средства клиенту.
func (r *EscrowRepository) Refund(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	return r.collapse(ctx, id, models.EscrowStatusRefunded)
}

// collapse закрывает escrow, перенося весь held в released или refunded.
func (r *EscrowRepository) collapse(ctx context.Context, id uuid.UUID, terminal string) (*models.Escrow, error) {
	var escrow models.Escrow
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEscrowNotFound
		}
		if err != nil {
			return fmt.Errorf("escrow repository: lock %w", err)
		}
		if escrow.IsTerminal() {
			return ErrEscrowTerminal
		}
		if escrow.Status != models.EscrowStatusOnHold && escrow.Status != models.EscrowStatusPartiallyReleased {
			return ErrEscrowNotHeld
		}

		switch terminal {
		case models.EscrowStatusReleased:
			escrow.ReleasedAmount += escrow.HeldAmount
		case models.EscrowStatusRefunded:
			escrow.RefundedAmount += escrow.HeldAmount
		}
		escrow.HeldAmount = 0
		escrow.Status = terminal
		now := time.Now()
		escrow.ClosedAt = &now

		_, err = tx.ExecContext(ctx, `
			UPDATE escrow SET held_amount = 0, released_amount = $2, refunded_amount = $3, status = $4, closed_at = $5
			WHERE id = $1
		`, escrow.ID, escrow.ReleasedAmount, escrow.RefundedAmount, escrow.Status, escrow.ClosedAt)
		if err != nil {
			return fmt.Errorf("escrow repository: collapse %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &escrow, nil
}
