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

// InvitationRepository описывает взаимодействие сервиса с хранилищем приглашений.
type InvitationRepository interface {
	Create(ctx context.Context, inv *models.Invitation) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error)
	ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Invitation, error)
	ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Invitation, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Invitation, error)
}

// InvitationContractCreator создаёт контракт по принятому приглашению.
type InvitationContractCreator interface {
	CreateFromInvitation(ctx context.Context, inv *models.Invitation, rate float64) (*models.Contract, error)
}

// UserReader читает пользователей для проверки роли приглашаемого.
type UserReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// InvitationService содержит бизнес-логику приглашений на DIRECT задания.
type InvitationService struct {
	invitations InvitationRepository
	jobs        JobReader
	users       UserReader
	contracts   InvitationContractCreator
	sink        events.Sink
}

// NewInvitationService создаёт новый сервис приглашений.
func NewInvitationService(invitations InvitationRepository, jobs JobReader, users UserReader, contracts InvitationContractCreator, sink events.Sink) *InvitationService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &InvitationService{invitations: invitations, jobs: jobs, users: users, contracts: contracts, sink: sink}
}

// SendInvitation отправляет фрилансеру приглашение на DIRECT задание.
func (s *InvitationService) SendInvitation(ctx context.Context, jobID, freelancerID, clientID uuid.UUID) (*models.Invitation, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if job.Type != models.JobTypeDirect {
		return nil, apperror.New(apperror.ErrCodeInvalidState, "приглашения доступны только для заданий типа DIRECT")
	}
	if !job.IsOwnedBy(clientID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "приглашать может только владелец задания")
	}

	invitee, err := s.users.GetByID(ctx, freelancerID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, apperror.ErrUserNotFound
		}
		return nil, err
	}
	if invitee.Role != models.RoleFreelancer {
		return nil, apperror.New(apperror.ErrCodeValidation, "приглашать можно только фрилансеров")
	}

	inv := &models.Invitation{
		JobID:        jobID,
		ClientID:     clientID,
		FreelancerID: freelancerID,
		Status:       models.InvitationStatusPending,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		if errors.Is(err, common.ErrAlreadyExists) {
			return nil, apperror.ErrInviteExists
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать приглашение")
	}

	s.sink.Emit(ctx, events.InvitationSent, events.Payload{
		Recipients:   []uuid.UUID{freelancerID},
		RelatedID:    inv.ID,
		RelatedModel: models.RelatedModelJob,
		Data:         inv,
	})
	return inv, nil
}

// RespondToInvitation принимает или отклоняет приглашение от имени
// приглашённого фрилансера. Принятие создаёт контракт со ставкой,
// равной бюджету задания, в одной атомарной транзакции.
func (s *InvitationService) RespondToInvitation(ctx context.Context, invitationID, freelancerID uuid.UUID, action string) (*models.Invitation, *models.Contract, error) {
	inv, err := s.invitations.GetByID(ctx, invitationID)
	if err != nil {
		if errors.Is(err, repository.ErrInvitationNotFound) {
			return nil, nil, apperror.ErrInvitationNotFound
		}
		return nil, nil, err
	}
	if inv.FreelancerID != freelancerID {
		return nil, nil, apperror.New(apperror.ErrCodeForbidden, "отвечать на приглашение может только приглашённый фрилансер")
	}
	if !inv.IsPending() {
		return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "приглашение уже отвечено")
	}

	switch action {
	case models.InvitationActionAccept:
		job, err := s.jobs.GetByID(ctx, inv.JobID)
		if err != nil {
			if errors.Is(err, repository.ErrJobNotFound) {
				return nil, nil, apperror.ErrJobNotFound
			}
			return nil, nil, err
		}
		if job.Budget <= 0 {
			return nil, nil, apperror.New(apperror.ErrCodeValidation, "бюджет задания должен быть положительным")
		}

		contract, err := s.contracts.CreateFromInvitation(ctx, inv, job.Budget)
		if err != nil {
			switch {
			case errors.Is(err, common.ErrAlreadyExists):
				return nil, nil, apperror.ErrContractExists
			case errors.Is(err, repository.ErrInvitationNotFound):
				// Приглашение перестало быть pending между чтением и транзакцией.
				return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "приглашение уже отвечено")
			default:
				return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось принять приглашение")
			}
		}
		inv.Status = models.InvitationStatusAccepted

		s.sink.Emit(ctx, events.InvitationResponded, events.Payload{
			Recipients:   []uuid.UUID{inv.ClientID},
			RelatedID:    inv.ID,
			RelatedModel: models.RelatedModelJob,
			Data:         inv,
		})
		s.sink.Emit(ctx, events.ContractCreated, events.Payload{
			Recipients:   []uuid.UUID{contract.ClientID, contract.FreelancerID},
			RelatedID:    contract.ID,
			RelatedModel: models.RelatedModelContract,
			Data:         contract,
		})
		return inv, contract, nil

	case models.InvitationActionReject:
		updated, err := s.invitations.SetStatus(ctx, invitationID, models.InvitationStatusRejected)
		if err != nil {
			if errors.Is(err, repository.ErrInvitationNotFound) {
				return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "приглашение уже отвечено")
			}
			return nil, nil, err
		}

		s.sink.Emit(ctx, events.InvitationResponded, events.Payload{
			Recipients:   []uuid.UUID{inv.ClientID},
			RelatedID:    inv.ID,
			RelatedModel: models.RelatedModelJob,
			Data:         updated,
		})
		return updated, nil, nil

	default:
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "действие должно быть accept или reject")
	}
}

// ListJobInvitations возвращает приглашения по заданию владельца.
func (s *InvitationService) ListJobInvitations(ctx context.Context, jobID, callerID uuid.UUID) ([]models.Invitation, error) {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	if !job.IsOwnedBy(callerID) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "приглашения видит только владелец задания")
	}
	return s.invitations.ListByJob(ctx, jobID)
}

// ListMyInvitations возвращает приглашения, адресованные фрилансеру.
func (s *InvitationService) ListMyInvitations(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Invitation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.invitations.ListByFreelancer(ctx, freelancerID, limit, offset)
}
