package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/events"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

// ContractRepository описывает взаимодействие сервиса с хранилищем контрактов.
type ContractRepository interface {
	Create(ctx context.Context, contract *models.Contract, milestones []models.Milestone) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Contract, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status string) (*models.Contract, error)
	AddMilestone(ctx context.Context, contractID uuid.UUID, m *models.Milestone) error
	ReleaseMilestone(ctx context.Context, contractID uuid.UUID, position int) (*models.Milestone, *models.Escrow, error)
}

// ContractService содержит бизнес-логику контрактов и вех оплаты.
type ContractService struct {
	contracts ContractRepository
	jobs      JobReader
	sink      events.Sink
}

// NewContractService создаёт новый сервис контрактов.
func NewContractService(contracts ContractRepository, jobs JobReader, sink events.Sink) *ContractService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &ContractService{contracts: contracts, jobs: jobs, sink: sink}
}

// CreateContractInput описывает входные данные прямого создания контракта.
type CreateContractInput struct {
	JobID        uuid.UUID
	FreelancerID uuid.UUID
	AgreedRate   float64
	PaymentType  string
	Terms        *string
	Deliverables *string
	Milestones   []models.Milestone
}

// CreateContract создаёт контракт напрямую, минуя отклики и
// приглашения. Задание переводится в работу той же транзакцией.
func (s *ContractService) CreateContract(ctx context.Context, callerID uuid.UUID, in CreateContractInput) (*models.Contract, error) {
	job, err := s.jobs.GetByID(ctx, in.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsOwnedBy(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "создавать контракт может только владелец задания")
	}
	if in.FreelancerID == callerID {
		return nil, apperror.New(apperror.ErrCodeValidation, "нельзя заключить контракт с самим собой")
	}
	if in.AgreedRate <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "ставка контракта должна быть положительной")
	}
	if _, ok := models.ValidPaymentTypes[in.PaymentType]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "тип оплаты должен быть fixed, hourly или milestone")
	}

	milestones := in.Milestones
	if in.PaymentType == models.PaymentTypeMilestone {
		if len(milestones) == 0 {
			first, second := models.SplitRate(in.AgreedRate)
			milestones = []models.Milestone{
				{Name: models.MilestoneNameInitial, Amount: first},
				{Name: models.MilestoneNameFinal, Amount: second},
			}
		} else {
			var total float64
			for _, m := range milestones {
				if m.Amount <= 0 {
					return nil, apperror.New(apperror.ErrCodeValidation, "сумма вехи должна быть положительной")
				}
				total += m.Amount
			}
			if diff := total - in.AgreedRate; diff > 0.005 || diff < -0.005 {
				return nil, apperror.New(apperror.ErrCodeValidation, "сумма вех должна совпадать со ставкой контракта")
			}
		}
	}

	contract := &models.Contract{
		JobID:        in.JobID,
		ClientID:     callerID,
		FreelancerID: in.FreelancerID,
		AgreedRate:   in.AgreedRate,
		PaymentType:  in.PaymentType,
		Terms:        in.Terms,
		Deliverables: in.Deliverables,
		Status:       models.ContractStatusActive,
		StartDate:    time.Now(),
	}
	if err := s.contracts.Create(ctx, contract, milestones); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.ErrContractExists
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать контракт")
	}

	s.sink.Emit(ctx, events.ContractCreated, events.Payload{
		Recipients:   []uuid.UUID{contract.ClientID, contract.FreelancerID},
		RelatedID:    contract.ID,
		RelatedModel: models.RelatedModelContract,
		Data:         contract,
	})
	return contract, nil
}

// GetContract возвращает контракт стороне или администратору.
func (s *ContractService) GetContract(ctx context.Context, contractID, callerID uuid.UUID, role string) (*models.Contract, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !contract.IsParty(callerID) && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт доступен только его сторонам")
	}
	return contract, nil
}

// GetJobContract возвращает контракт задания.
func (s *ContractService) GetJobContract(ctx context.Context, jobID, callerID uuid.UUID, role string) (*models.Contract, error) {
	contract, err := s.contracts.GetByJobID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !contract.IsParty(callerID) && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "контракт доступен только его сторонам")
	}
	return contract, nil
}

// ListMyContracts возвращает контракты пользователя.
func (s *ContractService) ListMyContracts(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Contract, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.contracts.ListByUser(ctx, userID, limit, offset)
}

// UpdateStatus переводит контракт в новый статус от имени стороны.
// Статус задания синхронизируется в той же транзакции; completed
// проставляет дату окончания.
func (s *ContractService) UpdateStatus(ctx context.Context, contractID, callerID uuid.UUID, newStatus string) (*models.Contract, error) {
	if _, ok := models.ValidContractStatuses[newStatus]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "недопустимый статус контракта")
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if !contract.IsParty(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "менять статус контракта могут только его стороны")
	}
	if contract.Status == models.ContractStatusCompleted || contract.Status == models.ContractStatusCancelled {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "контракт уже завершён")
	}

	updated, err := s.contracts.UpdateStatus(ctx, contractID, newStatus)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	return updated, nil
}

// AddMilestone добавляет веху оплаты. Доступно только клиенту контракта.
func (s *ContractService) AddMilestone(ctx context.Context, contractID, clientID uuid.UUID, name string, amount float64, dueDate *time.Time) (*models.Milestone, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "название вехи обязательно")
	}
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма вехи должна быть положительной")
	}

	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, apperror.ErrContractNotFound
		}
		return nil, err
	}
	if contract.ClientID != clientID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "добавлять вехи может только клиент контракта")
	}
	if contract.Status != models.ContractStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "вехи добавляются только к активному контракту")
	}

	m := &models.Milestone{Name: strings.TrimSpace(name), Amount: amount, DueDate: dueDate}
	if err := s.contracts.AddMilestone(ctx, contractID, m); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось добавить веху")
	}
	return m, nil
}

// CompleteMilestone отмечает веху выплаченной. Если по заданию
// существует escrow, сумма вехи переносится из held в released той же
// транзакцией: инвариант сохранения средств держится всегда.
func (s *ContractService) CompleteMilestone(ctx context.Context, contractID, clientID uuid.UUID, position int) (*models.Milestone, *models.Escrow, error) {
	contract, err := s.contracts.GetByID(ctx, contractID)
	if err != nil {
		if errors.Is(err, repository.ErrContractNotFound) {
			return nil, nil, apperror.ErrContractNotFound
		}
		return nil, nil, err
	}
	if contract.ClientID != clientID {
		return nil, nil, apperror.New(apperror.ErrCodeForbidden, "закрывать вехи может только клиент контракта")
	}
	if position < 0 || position >= len(contract.Milestones) {
		return nil, nil, apperror.New(apperror.ErrCodeNotFound, "веха с таким номером не существует")
	}

	milestone, escrow, err := s.contracts.ReleaseMilestone(ctx, contractID, position)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrMilestoneNotFound):
			return nil, nil, apperror.New(apperror.ErrCodeNotFound, "веха с таким номером не существует")
		case errors.Is(err, repository.ErrMilestoneNotPending):
			return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "веха уже закрыта")
		case errors.Is(err, repository.ErrEscrowFrozen):
			return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "выплаты заморожены открытым спором")
		case errors.Is(err, repository.ErrEscrowNotHeld):
			return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "escrow не находится в статусе удержания")
		case errors.Is(err, repository.ErrInsufficientFunds):
			return nil, nil, apperror.New(apperror.ErrCodeConflict, "в escrow недостаточно удержанных средств")
		default:
			return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось закрыть веху")
		}
	}

	s.sink.Emit(ctx, events.MilestoneReleased, events.Payload{
		Recipients:   []uuid.UUID{contract.FreelancerID},
		RelatedID:    contract.ID,
		RelatedModel: models.RelatedModelContract,
		Data:         milestone,
	})
	return milestone, escrow, nil
}
