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

var ErrInvitationNotFound = errors.New("invitation not found")

// InvitationRepository отвечает за работу с приглашениями.
type InvitationRepository struct {
	db *sqlx.DB
}

// NewInvitationRepository создаёт новый экземпляр.
func NewInvitationRepository(db *sqlx.DB) *InvitationRepository {
	return &InvitationRepository{db: db}
}

// Create сохраняет приглашение. Дубликат по (job_id, freelancer_id)
// отсекается ограничением уникальности.
func (r *InvitationRepository) Create(ctx context.Context, inv *models.Invitation) error {
	query := `
		INSERT INTO invitations (job_id, client_id, freelancer_id, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRowContext(ctx, query, inv.JobID, inv.ClientID, inv.FreelancerID, inv.Status).
		Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("invitation repository: create %w", err)
	}
	return nil
}

// GetByID возвращает приглашение по идентификатору.
func (r *InvitationRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	return common.GetByID[models.Invitation](ctx, r.db, "invitations", id, ErrInvitationNotFound)
}

// ListByJob возвращает приглашения по заданию.
func (r *InvitationRepository) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.SelectContext(ctx, &invitations, `SELECT * FROM invitations WHERE job_id = $1 ORDER BY created_at ASC`, jobID)
	if err != nil {
		return nil, fmt.Errorf("invitation repository: list by job %w", err)
	}
	return invitations, nil
}

// ListByFreelancer возвращает приглашения, адресованные фрилансеру.
func (r *InvitationRepository) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Invitation, error) {
	var invitations []models.Invitation
	err := r.db.SelectContext(ctx, &invitations, `
		SELECT * FROM invitations WHERE freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, freelancerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("invitation repository: list by freelancer %w", err)
	}
	return invitations, nil
}

// SetStatus переводит приглашение из pending в указанный статус.
// Возвращает ErrInvitationNotFound, если приглашение уже отвечено:
// условный апдейт закрывает гонку двойного ответа.
func (r *InvitationRepository) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Invitation, error) {
	var inv models.Invitation
	query := `
		UPDATE invitations SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING *
	`
	err := r.db.GetContext(ctx, &inv, query, id, status, models.InvitationStatusPending)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvitationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("invitation repository: set status %w", err)
	}
	return &inv, nil
}
