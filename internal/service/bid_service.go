package service

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/events"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

// BidRepository описывает взаимодействие сервиса с хранилищем откликов.
type BidRepository interface {
	Create(ctx context.Context, bid *models.Bid) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error)
	GetWithJob(ctx context.Context, id uuid.UUID) (*models.BidWithJob, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.BidWithJob, error)
	Update(ctx context.Context, id uuid.UUID, amount float64, coverLetter string) (*models.Bid, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// ContractCreator создаёт контракт атомарной транзакцией принятия.
type ContractCreator interface {
	CreateFromBidAcceptance(ctx context.Context, bid *models.Bid, clientID uuid.UUID) (*models.Contract, error)
}

// JobReader читает задания для проверок предусловий.
type JobReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
}

// BidService содержит бизнес-логику откликов на открытые задания.
type BidService struct {
	bids      BidRepository
	jobs      JobReader
	contracts ContractCreator
	sink      events.Sink
}

// NewBidService создаёт новый сервис откликов.
func NewBidService(bids BidRepository, jobs JobReader, contracts ContractCreator, sink events.Sink) *BidService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &BidService{bids: bids, jobs: jobs, contracts: contracts, sink: sink}
}

// PlaceBid создаёт отклик фрилансера на открытое задание.
func (s *BidService) PlaceBid(ctx context.Context, jobID, freelancerID uuid.UUID, role string, amount float64, coverLetter string) (*models.Bid, error) {
	if role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeForbidden, "откликаться на задания могут только фрилансеры")
	}
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма отклика должна быть положительной")
	}

	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if job.Type != models.JobTypeOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "отклики принимаются только на задания типа OPEN")
	}
	if job.Status != models.JobStatusActive {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "задание не принимает отклики")
	}
	if job.ClientID == freelancerID {
		return nil, apperror.New(apperror.ErrCodeBadRequest, "нельзя откликнуться на собственное задание")
	}

	bid := &models.Bid{
		JobID:        jobID,
		FreelancerID: freelancerID,
		Amount:       amount,
		CoverLetter:  strings.TrimSpace(coverLetter),
		Status:       models.BidStatusPending,
	}
	if err := s.bids.Create(ctx, bid); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.ErrBidExists
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать отклик")
	}

	s.sink.Emit(ctx, events.BidPlaced, events.Payload{
		Recipients:   []uuid.UUID{job.ClientID},
		RelatedID:    bid.ID,
		RelatedModel: models.RelatedModelBid,
		Data:         bid,
	})
	return bid, nil
}

// AcceptBid принимает отклик: создаёт контракт, отклоняет остальные
// отклики и переводит задание в работу одной атомарной транзакцией.
// При гонке конкурентных принятий выигрывает ровно одно: проигравшие
// получают конфликт "контракт уже существует".
func (s *BidService) AcceptBid(ctx context.Context, bidID, clientID uuid.UUID) (*models.Contract, error) {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, err
	}

	job, err := s.jobs.GetByID(ctx, bid.JobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsOwnedBy(clientID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "принимать отклики может только владелец задания")
	}
	if job.Type != models.JobTypeOpen {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "принятие откликов доступно только для заданий типа OPEN")
	}
	if !bid.IsPending() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "отклик уже обработан")
	}

	contract, err := s.contracts.CreateFromBidAcceptance(ctx, bid, clientID)
	if err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyExists):
			return nil, apperror.ErrContractExists
		case errors.Is(err, repository.ErrBidNotFound):
			// Отклик перестал быть pending между чтением и транзакцией.
			return nil, apperror.New(apperror.ErrCodeInvalidState, "отклик уже обработан")
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось принять отклик")
		}
	}

	s.sink.Emit(ctx, events.BidAccepted, events.Payload{
		Recipients:   []uuid.UUID{bid.FreelancerID},
		RelatedID:    bid.ID,
		RelatedModel: models.RelatedModelBid,
		Data:         bid,
	})
	s.sink.Emit(ctx, events.ContractCreated, events.Payload{
		Recipients:   []uuid.UUID{contract.ClientID, contract.FreelancerID},
		RelatedID:    contract.ID,
		RelatedModel: models.RelatedModelContract,
		Data:         contract,
	})
	return contract, nil
}

// UpdateBid изменяет сумму или сопроводительное письмо отклика.
// Доступно только владельцу и только пока отклик pending.
func (s *BidService) UpdateBid(ctx context.Context, bidID, freelancerID uuid.UUID, amount float64, coverLetter string) (*models.Bid, error) {
	if amount <= 0 {
		return nil, apperror.New(apperror.ErrCodeValidation, "сумма отклика должна быть положительной")
	}

	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, err
	}
	if bid.FreelancerID != freelancerID {
		return nil, apperror.New(apperror.ErrCodeForbidden, "изменять отклик может только его автор")
	}
	if !bid.IsPending() {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "изменять можно только отклики в статусе pending")
	}

	updated, err := s.bids.Update(ctx, bidID, amount, strings.TrimSpace(coverLetter))
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.New(apperror.ErrCodeInvalidState, "изменять можно только отклики в статусе pending")
		}
		return nil, err
	}
	return updated, nil
}

// DeleteBid удаляет отклик владельца, пока он pending.
func (s *BidService) DeleteBid(ctx context.Context, bidID, freelancerID uuid.UUID) error {
	bid, err := s.bids.GetByID(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return apperror.ErrBidNotFound
		}
		return err
	}
	if bid.FreelancerID != freelancerID {
		return apperror.New(apperror.ErrCodeForbidden, "удалять отклик может только его автор")
	}
	if !bid.IsPending() {
		return apperror.New(apperror.ErrCodeInvalidState, "удалять можно только отклики в статусе pending")
	}
	return s.bids.Delete(ctx, bidID)
}

// ListJobBids возвращает отклики на задание. Полный список видит
// только владелец задания или администратор.
func (s *BidService) ListJobBids(ctx context.Context, jobID, callerID uuid.UUID, role string) ([]models.Bid, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsOwnedBy(callerID) && role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "отклики видит только владелец задания")
	}
	return s.bids.ListByJob(ctx, jobID)
}

// ListMyBids возвращает отклики фрилансера вместе с заданиями.
func (s *BidService) ListMyBids(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.BidWithJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bids.ListByFreelancer(ctx, freelancerID, limit, offset)
}

// GetBidWithJob возвращает отклик вместе с заданием.
func (s *BidService) GetBidWithJob(ctx context.Context, bidID uuid.UUID) (*models.BidWithJob, error) {
	row, err := s.bids.GetWithJob(ctx, bidID)
	if err != nil {
		if errors.Is(err, repository.ErrBidNotFound) {
			return nil, apperror.ErrBidNotFound
		}
		return nil, err
	}
	return row, nil
}
