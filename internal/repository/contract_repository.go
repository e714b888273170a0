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
	ErrContractNotFound    = errors.New("contract not found")
	ErrMilestoneNotFound   = errors.New("milestone not found")
	ErrMilestoneNotPending = errors.New("milestone is not pending")
	ErrEscrowFrozen        = errors.New("escrow is frozen by dispute")
)

// ContractRepository отвечает за контракты и вехи оплаты.
// Все цепочки создания контракта выполняются одной транзакцией:
// уникальность contracts.job_id гарантирует не более одного контракта
// на задание даже при конкурентных принятиях.
type ContractRepository struct {
	db *sqlx.DB
}

// NewContractRepository создаёт новый экземпляр.
func NewContractRepository(db *sqlx.DB) *ContractRepository {
	return &ContractRepository{db: db}
}

// insertContractTx вставляет контракт с вехами и переводит задание
// в IN_PROGRESS с назначением фрилансера.
func insertContractTx(ctx context.Context, tx *sqlx.Tx, contract *models.Contract, milestones []models.Milestone) error {
	query := `
		INSERT INTO contracts (job_id, client_id, freelancer_id, agreed_rate, payment_type, terms, deliverables, status, start_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at, updated_at
	`
	err := tx.QueryRowContext(ctx, query,
		contract.JobID, contract.ClientID, contract.FreelancerID, contract.AgreedRate,
		contract.PaymentType, contract.Terms, contract.Deliverables, contract.Status, contract.StartDate).
		Scan(&contract.ID, &contract.CreatedAt, &contract.UpdatedAt)
	if err != nil {
		if common.IsUniqueViolation(err) {
			return common.ErrAlreadyExists
		}
		return fmt.Errorf("contract repository: insert contract %w", err)
	}

	for i := range milestones {
		m := &milestones[i]
		m.ContractID = contract.ID
		m.Position = i
		if m.Status == "" {
			m.Status = models.MilestoneStatusPending
		}
		err := tx.QueryRowContext(ctx, `
			INSERT INTO contract_milestones (contract_id, position, name, amount, due_date, status)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING id, created_at
		`, m.ContractID, m.Position, m.Name, m.Amount, m.DueDate, m.Status).Scan(&m.ID, &m.CreatedAt)
		if err != nil {
			return fmt.Errorf("contract repository: insert milestone %w", err)
		}
	}
	contract.Milestones = milestones

	_, err = tx.ExecContext(ctx, `
		UPDATE jobs SET status = $2, assigned_freelancer_id = $3, updated_at = NOW() WHERE id = $1
	`, contract.JobID, models.JobStatusInProgress, contract.FreelancerID)
	if err != nil {
		return fmt.Errorf("contract repository: assign job %w", err)
	}
	return nil
}

// defaultMilestones формирует две вехи 50/50 от ставки.
func defaultMilestones(rate float64) []models.Milestone {
	first, second := models.SplitRate(rate)
	return []models.Milestone{
		{Name: models.MilestoneNameInitial, Amount: first, Status: models.MilestoneStatusPending},
		{Name: models.MilestoneNameFinal, Amount: second, Status: models.MilestoneStatusPending},
	}
}

// CreateFromBidAcceptance выполняет принятие отклика как одну
// атомарную транзакцию: контракт, accepted/rejected по откликам,
// перевод задания в работу. Ни один шаг не сохраняется без остальных.
func (r *ContractRepository) CreateFromBidAcceptance(ctx context.Context, bid *models.Bid, clientID uuid.UUID) (*models.Contract, error) {
	contract := &models.Contract{
		JobID:        bid.JobID,
		ClientID:     clientID,
		FreelancerID: bid.FreelancerID,
		AgreedRate:   bid.Amount,
		PaymentType:  models.PaymentTypeMilestone,
		Status:       models.ContractStatusActive,
		StartDate:    time.Now(),
	}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertContractTx(ctx, tx, contract, defaultMilestones(bid.Amount)); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE bids SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
		`, bid.ID, models.BidStatusAccepted, models.BidStatusPending)
		if err != nil {
			return fmt.Errorf("contract repository: accept bid %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrBidNotFound
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE bids SET status = $2, updated_at = NOW() WHERE job_id = $1 AND id <> $3
		`, bid.JobID, models.BidStatusRejected, bid.ID)
		if err != nil {
			return fmt.Errorf("contract repository: reject other bids %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// CreateFromInvitation создаёт контракт по принятому приглашению.
// Ставка равна бюджету задания, вехи 50/50.
func (r *ContractRepository) CreateFromInvitation(ctx context.Context, inv *models.Invitation, rate float64) (*models.Contract, error) {
	contract := &models.Contract{
		JobID:        inv.JobID,
		ClientID:     inv.ClientID,
		FreelancerID: inv.FreelancerID,
		AgreedRate:   rate,
		PaymentType:  models.PaymentTypeMilestone,
		Status:       models.ContractStatusActive,
		StartDate:    time.Now(),
	}

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		if err := insertContractTx(ctx, tx, contract, defaultMilestones(rate)); err != nil {
			return err
		}

		res, err := tx.ExecContext(ctx, `
			UPDATE invitations SET status = $2, updated_at = NOW() WHERE id = $1 AND status = $3
		`, inv.ID, models.InvitationStatusAccepted, models.InvitationStatusPending)
		if err != nil {
			return fmt.Errorf("contract repository: accept invitation %w", err)
		}
		affected, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if affected == 0 {
			return ErrInvitationNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return contract, nil
}

// Create создаёт контракт напрямую (без отклика и приглашения).
func (r *ContractRepository) Create(ctx context.Context, contract *models.Contract, milestones []models.Milestone) error {
	return common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		return insertContractTx(ctx, tx, contract, milestones)
	})
}

// GetByID возвращает контракт с вехами.
func (r *ContractRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	contract, err := common.GetByID[models.Contract](ctx, r.db, "contracts", id, ErrContractNotFound)
	if err != nil {
		return nil, err
	}
	milestones, err := r.ListMilestones(ctx, id)
	if err != nil {
		return nil, err
	}
	contract.Milestones = milestones
	return contract, nil
}

// GetByJobID возвращает контракт задания, если он существует.
func (r *ContractRepository) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Contract, error) {
	contract, err := common.GetByField[models.Contract](ctx, r.db, "contracts", "job_id", jobID, ErrContractNotFound)
	if err != nil {
		return nil, err
	}
	milestones, err := r.ListMilestones(ctx, contract.ID)
	if err != nil {
		return nil, err
	}
	contract.Milestones = milestones
	return contract, nil
}

// ListByUser возвращает контракты, где пользователь выступает стороной.
func (r *ContractRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	var contracts []models.Contract
	err := r.db.SelectContext(ctx, &contracts, `
		SELECT * FROM contracts WHERE client_id = $1 OR freelancer_id = $1
		ORDER BY created_at DESC LIMIT $2 OFFSET $3
	`, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("contract repository: list by user %w", err)
	}
	return contracts, nil
}

// ListMilestones возвращает вехи контракта в порядке следования.
func (r *ContractRepository) ListMilestones(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var milestones []models.Milestone
	err := r.db.SelectContext(ctx, &milestones, `
		SELECT * FROM contract_milestones WHERE contract_id = $1 ORDER BY position ASC
	`, contractID)
	if err != nil {
		return nil, fmt.Errorf("contract repository: list milestones %w", err)
	}
	return milestones, nil
}

// UpdateStatus меняет статус контракта и синхронно статус задания.
func (r *ContractRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Contract, error) {
	var contract models.Contract
	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		query := `
			UPDATE contracts SET status = $2, updated_at = NOW(),
				end_date = CASE WHEN $2 = 'completed' THEN NOW() ELSE end_date END
			WHERE id = $1
			RETURNING *
		`
		if err := tx.GetContext(ctx, &contract, query, id, status); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrContractNotFound
			}
			return fmt.Errorf("contract repository: update status %w", err)
		}

		jobStatus := ""
		switch status {
		case models.ContractStatusCompleted:
			jobStatus = models.JobStatusCompleted
		case models.ContractStatusCancelled:
			jobStatus = models.JobStatusCancelled
		case models.ContractStatusDisputed:
			jobStatus = models.JobStatusDisputed
		case models.ContractStatusActive:
			jobStatus = models.JobStatusInProgress
		}
		if jobStatus != "" {
			if _, err := tx.ExecContext(ctx, `UPDATE jobs SET status = $2, updated_at = NOW() WHERE id = $1`, contract.JobID, jobStatus); err != nil {
				return fmt.Errorf("contract repository: sync job status %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &contract, nil
}

// AddMilestone добавляет веху в конец контракта.
func (r *ContractRepository) AddMilestone(ctx context.Context, contractID uuid.UUID, m *models.Milestone) error {
	m.ContractID = contractID
	m.Status = models.MilestoneStatusPending
	query := `
		INSERT INTO contract_milestones (contract_id, position, name, amount, due_date, status)
		VALUES ($1, (SELECT COALESCE(MAX(position) + 1, 0) FROM contract_milestones WHERE contract_id = $1), $2, $3, $4, $5)
		RETURNING id, position, created_at
	`
	err := r.db.QueryRowContext(ctx, query, contractID, m.Name, m.Amount, m.DueDate, m.Status).
		Scan(&m.ID, &m.Position, &m.CreatedAt)
	if err != nil {
		return fmt.Errorf("contract repository: add milestone %w", err)
	}
	return nil
}

// ReleaseMilestone отмечает веху выплаченной и в той же транзакции
// переносит её сумму из held в released соответствующего escrow,
// сохраняя инвариант held + released + refunded == total.
// Блокировка строки escrow сериализует выплату вех со спорами.
func (r *ContractRepository) ReleaseMilestone(ctx context.Context, contractID uuid.UUID, position int) (*models.Milestone, *models.Escrow, error) {
	var milestone models.Milestone
	var escrow *models.Escrow

	err := common.WithTransaction(ctx, r.db, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &milestone, `
			SELECT * FROM contract_milestones WHERE contract_id = $1 AND position = $2 FOR UPDATE
		`, contractID, position)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrMilestoneNotFound
		}
		if err != nil {
			return fmt.Errorf("contract repository: lock milestone %w", err)
		}
		if milestone.Status != models.MilestoneStatusPending {
			return ErrMilestoneNotPending
		}

		var contract models.Contract
		if err := tx.GetContext(ctx, &contract, `SELECT * FROM contracts WHERE id = $1`, contractID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrContractNotFound
			}
			return fmt.Errorf("contract repository: get contract %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE contract_milestones SET status = $3 WHERE contract_id = $1 AND position = $2
		`, contractID, position, models.MilestoneStatusReleased)
		if err != nil {
			return fmt.Errorf("contract repository: release milestone %w", err)
		}
		milestone.Status = models.MilestoneStatusReleased

		// Движение средств только при существующем escrow: без него
		// выплата вехи остаётся бухгалтерской отметкой.
		var e models.Escrow
		err = tx.GetContext(ctx, &e, `SELECT * FROM escrow WHERE job_id = $1 FOR UPDATE`, contract.JobID)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("contract repository: lock escrow %w", err)
		}

		if e.Status == models.EscrowStatusDisputed {
			return ErrEscrowFrozen
		}
		if e.Status != models.EscrowStatusOnHold && e.Status != models.EscrowStatusPartiallyReleased {
			return ErrEscrowNotHeld
		}
		if e.HeldAmount < milestone.Amount {
			return ErrInsufficientFunds
		}

		e.HeldAmount -= milestone.Amount
		e.ReleasedAmount += milestone.Amount
		if e.HeldAmount > 0 {
			e.Status = models.EscrowStatusPartiallyReleased
		} else {
			e.Status = models.EscrowStatusReleased
			now := time.Now()
			e.ClosedAt = &now
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE escrow SET held_amount = $2, released_amount = $3, status = $4, closed_at = $5 WHERE id = $1
		`, e.ID, e.HeldAmount, e.ReleasedAmount, e.Status, e.ClosedAt)
		if err != nil {
			return fmt.Errorf("contract repository: move escrow funds %w", err)
		}
		escrow = &e
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return &milestone, escrow, nil
}
