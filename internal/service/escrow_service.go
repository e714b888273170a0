package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/events"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

// EscrowRepository описывает взаимодействие сервиса с хранилищем escrow.
type EscrowRepository interface {
	Create(ctx context.Context, escrow *models.Escrow) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error)
	Release(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
	Refund(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
}

// ContractReader читает контракт задания для привязки escrow.
type ContractReader interface {
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Contract, error)
}

// EscrowService содержит бизнес-логику защищённых сделок.
type EscrowService struct {
	escrows   EscrowRepository
	jobs      JobReader
	contracts ContractReader
	sink      events.Sink
}

// NewEscrowService создаёт новый сервис escrow.
func NewEscrowService(escrows EscrowRepository, jobs JobReader, contracts ContractReader, sink events.Sink) *EscrowService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &EscrowService{escrows: escrows, jobs: jobs, contracts: contracts, sink: sink}
}

// Fund создаёт escrow c полным удержанием суммы. Требует заключённого
// контракта: фрилансерская сторона сделки берётся из него.
func (s *EscrowService) Fund(ctx context.Context, jobID uuid.UUID, amount float64, clientID uuid.UUID) (*models.Escrow, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма пополнения должна быть положительной")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsOwnedBy(clientID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "пополнять escrow может только владелец задания")
	}

	contract, err := s.contracts.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "escrow создаётся только после заключения контракта")
		}
		return nil, err
	}

	escrow := &models.Escrow{
		JobID:        jobID,
		ClientID:     clientID,
		FreelancerID: contract.FreelancerID,
		TotalAmount:  amount,
		HeldAmount:   amount,
		Status:       models.EscrowStatusOnHold,
	}
	if err := s.escrows.Create(ctx, escrow); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.ErrEscrowExists
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать escrow")
	}

	s.sink.Emit(ctx, events.EscrowFunded, events.Payload{
		Recipients:   []uuid.UUID{escrow.FreelancerID},
		RelatedID:    escrow.ID,
		RelatedModel: models.RelatedModelEscrow,
		Data:         escrow,
	})
	return escrow, nil
}

// GetEscrow возвращает escrow стороне сделки или администратору.
func (s *EscrowService) GetEscrow(ctx context.Context, escrowID, callerID uuid.UUID, role string) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	if !escrow.IsParty(callerID) && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "escrow доступен только сторонам сделки")
	}
	return escrow, nil
}

// GetJobEscrow возвращает escrow задания.
func (s *EscrowService) GetJobEscrow(ctx context.Context, jobID, callerID uuid.UUID, role string) (*models.Escrow, error) {
	escrow, err := s.escrows.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	if !escrow.IsParty(callerID) && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "escrow доступен только сторонам сделки")
	}
	return escrow, nil
}

// ListMyEscrows возвращает сделки пользователя.
func (s *EscrowService) ListMyEscrows(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.escrows.ListByUser(ctx, userID, limit, offset)
}

// Release полностью выплачивает удержанные средства фрилансеру.
// Административная операция.
func (s *EscrowService) Release(ctx context.Context, escrowID uuid.UUID, role string) (*models.Escrow, error) {
	if role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "полная выплата escrow доступна только администратору")
	}
	escrow, err := s.escrows.Release(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "не удалось выплатить средства")
	}
	return escrow, nil
}

// Refund полностью возвращает удержанные средства клиенту.
// Административная операция.
func (s *EscrowService) Refund(ctx context.Context, escrowID uuid.UUID, role string) (*models.Escrow, error) {
	if role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "возврат средств escrow доступен только администратору")
	}
	escrow, err := s.escrows.Refund(ctx, escrowID)
	if err != nil {
		return nil, mapEscrowError(err, "не удалось вернуть средства")
	}
	return escrow, nil
}

// mapEscrowError переводит ошибки репозитория escrow в apperror.
func mapEscrowError(err error, fallback string) error {
	switch {
	case errors.Is(err, repository.ErrEscrowNotFound):
		return apperror.ErrEscrowNotFound
	case errors.Is(err, repository.ErrEscrowTerminal):
		return apperror.New(apperror.ErrCodeInvalidState, "escrow уже закрыт")
	case errors.Is(err, repository.ErrEscrowNotHeld):
		return apperror.New(apperror.ErrCodeInvalidState, "escrow не находится в статусе удержания")
	default:
		return apperror.Wrap(err, apperror.ErrCodeDatabaseError, fallback)
	}
}
