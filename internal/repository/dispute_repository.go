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
	ErrDisputeNotFound   = errors.New("dispute not found")
	ErrDisputeNotOpen    = errors.New("dispute is not open")
	ErrEscrowNotDisputed = errors.New("escrow is not disputed")
)

// DisputeRepository отвечает за споры и их разрешение.
// Создание и разрешение спора меняют статус escrow в той же
// транзакции, что и сам спор.
type DisputeRepository struct {
	db *sqlx.DB
}

// NewDisputeRepository создаёт новый экземпляр.
func NewDisputeRepository(db *sqlx.DB) *DisputeRepository {
	return &DisputeRepository{db: db}
}

// Create открывает спор и замораживает escrow. Повторное открытие
// отсекается частичным уникальным индексом по открытым спорам.
func (r *DisputeRepository) Create(ctx context.Context, d *models.Dispute) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		var escrow models.Escrow
		err := tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE id = $1 FOR UPDATE`, d.EscrowID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEscrowNotFound
		}
		if err != nil {
			return fmt.Errorf("dispute repository: lock escrow %w", err)
		}
		if escrow.IsTerminal() {
			return ErrEscrowTerminal
		}
		if escrow.Status == models.EscrowStatusDisputed {
			return common.ErrAlreadyExists
		}

		d.JobID = escrow.JobID
		err = tx.QueryRowContext(ctx, `
			INSERT INTO disputes (escrow_id, job_id, raised_by, reason, status)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, d.EscrowID, d.JobID, d.RaisedBy, d.Reason, d.Status).Scan(&d.ID, &d.CreatedAt)
		if err != nil {
			if common.IsUniqueViolation(err) {
				return common.ErrAlreadyExists
			}
			return fmt.Errorf("dispute repository: insert %w", err)
		}

		if _, err := tx.ExecContext(ctx, `UPDATE escrow SET status = $2 WHERE id = $1`, d.EscrowID, models.EscrowStatusDisputed); err != nil {
			return fmt.Errorf("dispute repository: freeze escrow %w", err)
		}
		return nil
	})
}

// GetByID возвращает спор по идентификатору.
func (r *DisputeRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	return common.GetByID[models.Dispute](ctx, r.db, "disputes", id, ErrDisputeNotFound)
}

// GetOpenByEscrow возвращает открытый спор по escrow, если он есть.
func (r *DisputeRepository) GetOpenByEscrow(ctx context.Context, escrowID uuid.UUID) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		SELECT * FROM disputes WHERE escrow_id = $1 AND status IN ($2, $3, $4)
	`, escrowID, models.DisputeStatusPending, models.DisputeStatusInReview, models.DisputeStatusEscalated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: get open by escrow %w", err)
	}
	return &d, nil
}

// ListByUser возвращает споры по сделкам пользователя.
func (r *DisputeRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT d.* FROM disputes d
		JOIN escrow e ON d.escrow_id = e.id
		WHERE e.client_id = $1 OR e.freelancer_id = $1
		ORDER BY d.created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list by user %w", err)
	}
	return disputes, nil
}

// ListOpen возвращает открытые споры для очереди администратора.
func (r *DisputeRepository) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	var disputes []models.Dispute
	err := r.db.SelectContext(ctx, &disputes, `
		SELECT * FROM disputes WHERE status IN ($1, $2, $3)
		ORDER BY created_at ASC LIMIT $4 OFFSET $5
	`, models.DisputeStatusPending, models.DisputeStatusInReview, models.DisputeStatusEscalated, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list open %w", err)
	}
	return disputes, nil
}

// SetStatus переводит открытый спор в другой открытый статус
// (pending, in-review, escalated). Эскалированный спор можно вернуть
// в рассмотрение, закрывается спор только решением.
func (r *DisputeRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error) {
	var d models.Dispute
	err := r.db.GetContext(ctx, &d, `
		UPDATE disputes SET status = $2 WHERE id = $1 AND status IN ($3, $4, $5)
		RETURNING *
	`, id, status, models.DisputeStatusPending, models.DisputeStatusInReview, models.DisputeStatusEscalated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrDisputeNotOpen
	}
	if err != nil {
		return nil, fmt.Errorf("dispute repository: set status %w", err)
	}
	return &d, nil
}

// ResolveParams параметры решения администратора.
type ResolveParams struct {
	DisputeID        uuid.UUID
	Decision         string
	Notes            string
	ResolvedBy       uuid.UUID
	ClientAmount     float64
	FreelancerAmount float64
}

// Resolve фиксирует решение и схлопывает статус escrow по решению.
// Спор и escrow блокируются и изменяются одной транзакцией.
func (r *DisputeRepository) Resolve(ctx context.Context, params ResolveParams) (*models.Dispute, *models.Escrow, error) {
	var dispute models.Dispute
	var escrow models.Escrow

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &dispute, `SELECT * FROM disputes WHERE id = $1 FOR UPDATE`, params.DisputeID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrDisputeNotFound
		}
		if err != nil {
			return fmt.Errorf("dispute repository: lock dispute %w", err)
		}
		if !dispute.IsOpen() {
			return ErrDisputeNotOpen
		}

		err = tx.GetContext(ctx, &escrow, `SELECT * FROM escrow WHERE id = $1 FOR UPDATE`, dispute.EscrowID)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEscrowNotFound
		}
		if err != nil {
			return fmt.Errorf("dispute repository: lock escrow %w", err)
		}
		if escrow.Status != models.EscrowStatusDisputed {
			return ErrEscrowNotDisputed
		}

		now := time.Now()
		switch params.Decision {
		case models.DisputeDecisionClient:
			escrow.RefundedAmount += escrow.HeldAmount
			escrow.HeldAmount = 0
			escrow.Status = models.EscrowStatusRefunded
			escrow.ClosedAt = &now
		case models.DisputeDecisionFreelancer:
			escrow.ReleasedAmount += escrow.HeldAmount
			escrow.HeldAmount = 0
			escrow.Status = models.EscrowStatusReleased
			escrow.ClosedAt = &now
		case models.DisputeDecisionSplit:
			// Суммы раздела проверены сервисом: client + freelancer == held.
			escrow.RefundedAmount += params.ClientAmount
			escrow.ReleasedAmount += params.FreelancerAmount
			escrow.HeldAmount = 0
			escrow.Status = models.EscrowStatusPartiallyReleased
			escrow.ClosedAt = &now
		case models.DisputeDecisionContinue:
			// Средства не двигаются, контракт продолжается.
			if escrow.ReleasedAmount > 0 || escrow.RefundedAmount > 0 {
				escrow.Status = models.EscrowStatusPartiallyReleased
			} else {
				escrow.Status = models.EscrowStatusOnHold
			}
		default:
			return common.ErrInvalidInput
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrow SET held_amount = $2, released_amount = $3, refunded_amount = $4, status = $5, closed_at = $6
			WHERE id = $1
		`, escrow.ID, escrow.HeldAmount, escrow.ReleasedAmount, escrow.RefundedAmount, escrow.Status, escrow.ClosedAt)
		if err != nil {
			return fmt.Errorf("dispute repository: apply decision %w", err)
		}

		err = tx.GetContext(ctx, &dispute, `
			UPDATE disputes SET status = $2, decision = $3, resolution_notes = $4, resolved_by = $5, resolved_at = $6
			WHERE id = $1
			RETURNING *
		`, dispute.ID, models.DisputeStatusResolved, params.Decision, params.Notes, params.ResolvedBy, now)
		if err != nil {
			return fmt.Errorf("dispute repository: resolve %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &dispute, &escrow, nil
}

// CreateEvidence сохраняет метаданные файла, приложенного к спору.
func (r *DisputeRepository) CreateEvidence(ctx context.Context, ev *models.DisputeEvidence) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO dispute_evidence (dispute_id, uploaded_by, file_name, file_path, mime_type, size_bytes)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`, ev.DisputeID, ev.UploadedBy, ev.FileName, ev.FilePath, ev.MimeType, ev.SizeBytes).Scan(&ev.ID, &ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("dispute repository: create evidence %w", err)
	}
	return nil
}

// ListEvidence возвращает файлы спора.
func (r *DisputeRepository) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	var evidence []models.DisputeEvidence
	err := r.db.SelectContext(ctx, &evidence, `
		SELECT * FROM dispute_evidence WHERE dispute_id = $1 ORDER BY created_at ASC
	`, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute repository: list evidence %w", err)
	}
	return evidence, nil
}
