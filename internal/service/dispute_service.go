package service

import (
	"context"
	"errors"
	"math"

	"github.com/google/uuid"

	"github.com/ignatzorin/freelance-core/internal/events"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

// amountEpsilon допуск при сверке денежных сумм.
const amountEpsilon = 0.005

// DisputeRepository описывает взаимодействие сервиса со спорами.
type DisputeRepository interface {
	Create(ctx context.Context, d *models.Dispute) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error)
	ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error)
	Resolve(ctx context.Context, params repository.ResolveParams) (*models.Dispute, *models.Escrow, error)
	CreateEvidence(ctx context.Context, ev *models.DisputeEvidence) error
	ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error)
}

// EscrowReader читает escrow для проверок доступа и сумм.
type EscrowReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error)
}

// DisputeService содержит бизнес-логику споров.
type DisputeService struct {
	disputes DisputeRepository
	escrows  EscrowReader
	sink     events.Sink
}

// NewDisputeService создаёт новый сервис споров.
func NewDisputeService(disputes DisputeRepository, escrows EscrowReader, sink events.Sink) *DisputeService {
	if sink == nil {
		sink = events.NopSink{}
	}
	return &DisputeService{disputes: disputes, escrows: escrows, sink: sink}
}

// CreateDispute открывает спор по escrow. Escrow замораживается до
// решения администратора.
func (s *DisputeService) CreateDispute(ctx context.Context, escrowID, raisedBy uuid.UUID, reason string) (*models.Dispute, error) {
	if reason == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "укажите причину спора")
	}

	escrow, err := s.escrows.GetByID(ctx, escrowID)
	if err != nil {
		if errors.Is(err, repository.ErrEscrowNotFound) {
			return nil, apperror.ErrEscrowNotFound
		}
		return nil, err
	}
	if !escrow.IsParty(raisedBy) {
		return nil, apperror.New(apperror.ErrCodeForbidden, "открыть спор может только сторона сделки")
	}

	dispute := &models.Dispute{
		EscrowID: escrowID,
		RaisedBy: raisedBy,
		Reason:   reason,
		Status:   models.DisputeStatusPending,
	}
	if err := s.disputes.Create(ctx, dispute); err != nil {
		switch {
		case errors.Is(err, common.ErrAlreadyExists):
			return nil, apperror.ErrDisputeIsOpen
		case errors.Is(err, repository.ErrEscrowTerminal):
			return nil, apperror.New(apperror.ErrCodeInvalidState, "escrow уже закрыт, спор открыть нельзя")
		case errors.Is(err, repository.ErrEscrowNotFound):
			return nil, apperror.ErrEscrowNotFound
		default:
			return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось открыть спор")
		}
	}

	other := escrow.ClientID
	if raisedBy == escrow.ClientID {
		other = escrow.FreelancerID
	}
	s.sink.Emit(ctx, events.DisputeCreated, events.Payload{
		Recipients:   []uuid.UUID{other},
		RelatedID:    dispute.ID,
		RelatedModel: models.RelatedModelDispute,
		Data:         dispute,
	})
	return dispute, nil
}

// GetDispute возвращает спор стороне сделки или администратору.
func (s *DisputeService) GetDispute(ctx context.Context, disputeID, callerID uuid.UUID, role string) (*models.Dispute, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin {
		if err := s.ensureParty(ctx, dispute, callerID); err != nil {
			return nil, err
		}
	}
	return dispute, nil
}

// ListMyDisputes возвращает споры по сделкам пользователя.
func (s *DisputeService) ListMyDisputes(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListByUser(ctx, userID, limit, offset)
}

// ListOpenDisputes возвращает очередь открытых споров администратору.
func (s *DisputeService) ListOpenDisputes(ctx context.Context, role string, limit, offset int) ([]models.Dispute, error) {
	if role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "очередь споров доступна только администратору")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.disputes.ListOpen(ctx, limit, offset)
}

// StartReview переводит спор в рассмотрение.
func (s *DisputeService) StartReview(ctx context.Context, disputeID uuid.UUID, role string) (*models.Dispute, error) {
	return s.moveOpenDispute(ctx, disputeID, role, models.DisputeStatusInReview)
}

// Escalate помечает спор эскалированным, не закрывая его.
func (s *DisputeService) Escalate(ctx context.Context, disputeID uuid.UUID, role string) (*models.Dispute, error) {
	return s.moveOpenDispute(ctx, disputeID, role, models.DisputeStatusEscalated)
}

func (s *DisputeService) moveOpenDispute(ctx context.Context, disputeID uuid.UUID, role, status string) (*models.Dispute, error) {
	if role != models.RoleAdmin {
		return nil, apperror.New(apperror.ErrCodeForbidden, "управлять спором может только администратор")
	}
	dispute, err := s.disputes.SetStatus(ctx, disputeID, status)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotOpen) {
			return nil, apperror.ErrDisputeResolved
		}
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось обновить статус спора")
	}
	return dispute, nil
}

// ResolveDisputeInput входные данные решения по спору.
type ResolveDisputeInput struct {
	Decision         string
	Notes            string
	ClientAmount     float64
	FreelancerAmount float64
}

// ResolveDispute фиксирует решение администратора и распределяет
// удержанные средства. При решении split суммы задаются явно и должны
// в точности покрывать удержанный остаток.
func (s *DisputeService) ResolveDispute(ctx context.Context, disputeID, adminID uuid.UUID, role string, in ResolveDisputeInput) (*models.Dispute, *models.Escrow, error) {
	if role != models.RoleAdmin {
		return nil, nil, apperror.New(apperror.ErrCodeForbidden, "разрешать споры может только администратор")
	}
	if _, ok := models.ValidDisputeDecisions[in.Decision]; !ok {
		return nil, nil, apperror.New(apperror.ErrCodeValidation, "недопустимое решение по спору")
	}

	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, nil, apperror.ErrDisputeNotFound
		}
		return nil, nil, err
	}
	if !dispute.IsOpen() {
		return nil, nil, apperror.ErrDisputeResolved
	}

	if in.Decision == models.DisputeDecisionSplit {
		escrow, err := s.escrows.GetByID(ctx, dispute.EscrowID)
		if err != nil {
			return nil, nil, err
		}
		if in.ClientAmount < 0 || in.FreelancerAmount < 0 {
			return nil, nil, apperror.New(apperror.ErrCodeValidation, "суммы распределения не могут быть отрицательными")
		}
		if math.Abs(in.ClientAmount+in.FreelancerAmount-escrow.HeldAmount) > amountEpsilon {
			return nil, nil, apperror.New(apperror.ErrCodeValidation, "суммы распределения должны покрывать удержанный остаток")
		}
	}

	resolved, escrow, err := s.disputes.Resolve(ctx, repository.ResolveParams{
		DisputeID:        disputeID,
		Decision:         in.Decision,
		Notes:            in.Notes,
		ResolvedBy:       adminID,
		ClientAmount:     in.ClientAmount,
		FreelancerAmount: in.FreelancerAmount,
	})
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrDisputeNotOpen):
			return nil, nil, apperror.ErrDisputeResolved
		case errors.Is(err, repository.ErrEscrowNotDisputed):
			return nil, nil, apperror.New(apperror.ErrCodeInvalidState, "escrow не заморожен спором")
		default:
			return nil, nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось разрешить спор")
		}
	}

	s.sink.Emit(ctx, events.DisputeResolved, events.Payload{
		Recipients:   []uuid.UUID{escrow.ClientID, escrow.FreelancerID},
		RelatedID:    resolved.ID,
		RelatedModel: models.RelatedModelDispute,
		Data:         resolved,
	})
	return resolved, escrow, nil
}

// AddEvidence прикладывает файл к открытому спору.
func (s *DisputeService) AddEvidence(ctx context.Context, disputeID, uploadedBy uuid.UUID, fileName, filePath, mimeType string, sizeBytes int64) (*models.DisputeEvidence, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if !dispute.IsOpen() {
		return nil, apperror.ErrDisputeResolved
	}
	if err := s.ensureParty(ctx, dispute, uploadedBy); err != nil {
		return nil, err
	}

	ev := &models.DisputeEvidence{
		DisputeID:  disputeID,
		UploadedBy: uploadedBy,
		FileName:   fileName,
		FilePath:   filePath,
		MimeType:   mimeType,
		SizeBytes:  sizeBytes,
	}
	if err := s.disputes.CreateEvidence(ctx, ev); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось сохранить файл спора")
	}
	return ev, nil
}

// ListEvidence возвращает файлы спора стороне сделки или администратору.
func (s *DisputeService) ListEvidence(ctx context.Context, disputeID, callerID uuid.UUID, role string) ([]models.DisputeEvidence, error) {
	dispute, err := s.disputes.GetByID(ctx, disputeID)
	if err != nil {
		if errors.Is(err, repository.ErrDisputeNotFound) {
			return nil, apperror.ErrDisputeNotFound
		}
		return nil, err
	}
	if role != models.RoleAdmin {
		if err := s.ensureParty(ctx, dispute, callerID); err != nil {
			return nil, err
		}
	}
	return s.disputes.ListEvidence(ctx, disputeID)
}

// ensureParty проверяет, что пользователь является стороной сделки спора.
func (s *DisputeService) ensureParty(ctx context.Context, dispute *models.Dispute, userID uuid.UUID) error {
	escrow, err := s.escrows.GetByID(ctx, dispute.EscrowID)
	if err != nil {
		return err
	}
	if !escrow.IsParty(userID) {
		return apperror.New(apperror.ErrCodeForbidden, "спор доступен только сторонам сделки")
	}
	return nil
}
