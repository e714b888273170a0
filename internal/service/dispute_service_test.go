package service

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-core/internal/events"
	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

type mockDisputeRepo struct {
	mock.Mock
}

func (m *mockDisputeRepo) Create(ctx context.Context, d *models.Dispute) error {
	args := m.Called(ctx, d)
	return args.Error(0)
}

func (m *mockDisputeRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) ListOpen(ctx context.Context, limit, offset int) ([]models.Dispute, error) {
	args := m.Called(ctx, limit, offset)
	return args.Get(0).([]models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Dispute, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Dispute), args.Error(1)
}

func (m *mockDisputeRepo) Resolve(ctx context.Context, params repository.ResolveParams) (*models.Dispute, *models.Escrow, error) {
	args := m.Called(ctx, params)
	var dispute *models.Dispute
	var escrow *models.Escrow
	if args.Get(0) != nil {
		dispute = args.Get(0).(*models.Dispute)
	}
	if args.Get(1) != nil {
		escrow = args.Get(1).(*models.Escrow)
	}
	return dispute, escrow, args.Error(2)
}

func (m *mockDisputeRepo) CreateEvidence(ctx context.Context, ev *models.DisputeEvidence) error {
	args := m.Called(ctx, ev)
	return args.Error(0)
}

func (m *mockDisputeRepo) ListEvidence(ctx context.Context, disputeID uuid.UUID) ([]models.DisputeEvidence, error) {
	args := m.Called(ctx, disputeID)
	return args.Get(0).([]models.DisputeEvidence), args.Error(1)
}

type mockEscrowReader struct {
	mock.Mock
}

func (m *mockEscrowReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func heldEscrow(clientID, freelancerID uuid.UUID) *models.Escrow {
	return &models.Escrow{
		ID:           uuid.New(),
		JobID:        uuid.New(),
		ClientID:     clientID,
		FreelancerID: freelancerID,
		TotalAmount:  10000,
		HeldAmount:   10000,
		Status:       models.EscrowStatusOnHold,
	}
}

func TestDisputeService_CreateDispute_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	sink := &recordingSink{}
	svc := NewDisputeService(disputes, escrows, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	escrow := heldEscrow(clientID, freelancerID)

	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(nil)

	dispute, err := svc.CreateDispute(ctx, escrow.ID, clientID, "работа не сдана в срок")
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusPending, dispute.Status)
	assert.Equal(t, []string{events.DisputeCreated}, sink.events)
	// Уведомляется вторая сторона сделки
	assert.Equal(t, []uuid.UUID{freelancerID}, sink.payloads[0].Recipients)
}

func TestDisputeService_CreateDispute_OnlyParties(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	escrow := heldEscrow(uuid.New(), uuid.New())
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)

	_, err := svc.CreateDispute(ctx, escrow.ID, uuid.New(), "причина")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	disputes.AssertNotCalled(t, "Create")
}

func TestDisputeService_CreateDispute_AlreadyOpen(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	escrow := heldEscrow(clientID, uuid.New())
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(common.ErrAlreadyExists)

	_, err := svc.CreateDispute(ctx, escrow.ID, clientID, "причина")
	assert.ErrorIs(t, err, apperror.ErrDisputeIsOpen)
}

func TestDisputeService_CreateDispute_TerminalEscrow(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	escrow := heldEscrow(clientID, uuid.New())
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)
	disputes.On("Create", ctx, mock.AnythingOfType("*models.Dispute")).Return(repository.ErrEscrowTerminal)

	_, err := svc.CreateDispute(ctx, escrow.ID, clientID, "причина")
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestDisputeService_StartReview_AdminOnly(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockEscrowReader), nil)

	_, err := svc.StartReview(context.Background(), uuid.New(), models.RoleClient)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	disputes.AssertNotCalled(t, "SetStatus")
}

func TestDisputeService_StartReview_ClosedDispute(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockEscrowReader), nil)
	ctx := context.Background()
	disputeID := uuid.New()

	disputes.On("SetStatus", ctx, disputeID, models.DisputeStatusInReview).Return(nil, repository.ErrDisputeNotOpen)

	_, err := svc.StartReview(ctx, disputeID, models.RoleAdmin)
	assert.ErrorIs(t, err, apperror.ErrDisputeResolved)
}

func TestDisputeService_Resolve_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	sink := &recordingSink{}
	svc := NewDisputeService(disputes, escrows, sink)
	ctx := context.Background()

	adminID := uuid.New()
	clientID := uuid.New()
	freelancerID := uuid.New()
	escrow := heldEscrow(clientID, freelancerID)
	dispute := &models.Dispute{ID: uuid.New(), EscrowID: escrow.ID, RaisedBy: clientID, Status: models.DisputeStatusInReview}
	resolved := &models.Dispute{ID: dispute.ID, EscrowID: escrow.ID, Status: models.DisputeStatusResolved}
	closed := &models.Escrow{ID: escrow.ID, ClientID: clientID, FreelancerID: freelancerID, TotalAmount: 10000, RefundedAmount: 10000, Status: models.EscrowStatusRefunded}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	disputes.On("Resolve", ctx, repository.ResolveParams{
		DisputeID:  dispute.ID,
		Decision:   models.DisputeDecisionClient,
		Notes:      "возврат клиенту",
		ResolvedBy: adminID,
	}).Return(resolved, closed, nil)

	gotDispute, gotEscrow, err := svc.ResolveDispute(ctx, dispute.ID, adminID, models.RoleAdmin, ResolveDisputeInput{
		Decision: models.DisputeDecisionClient,
		Notes:    "возврат клиенту",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, gotDispute.Status)
	assert.True(t, gotEscrow.IsBalanced())
	assert.Equal(t, []string{events.DisputeResolved}, sink.events)
	assert.ElementsMatch(t, []uuid.UUID{clientID, freelancerID}, sink.payloads[0].Recipients)
}

func TestDisputeService_Resolve_AdminOnly(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeRepo), new(mockEscrowReader), nil)

	_, _, err := svc.ResolveDispute(context.Background(), uuid.New(), uuid.New(), models.RoleClient, ResolveDisputeInput{Decision: models.DisputeDecisionClient})
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestDisputeService_Resolve_InvalidDecision(t *testing.T) {
	svc := NewDisputeService(new(mockDisputeRepo), new(mockEscrowReader), nil)

	_, _, err := svc.ResolveDispute(context.Background(), uuid.New(), uuid.New(), models.RoleAdmin, ResolveDisputeInput{Decision: "coin-flip"})
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestDisputeService_Resolve_SplitMustCoverHeld(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	escrow := heldEscrow(clientID, uuid.New())
	dispute := &models.Dispute{ID: uuid.New(), EscrowID: escrow.ID, Status: models.DisputeStatusPending}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)

	_, _, err := svc.ResolveDispute(ctx, dispute.ID, uuid.New(), models.RoleAdmin, ResolveDisputeInput{
		Decision:         models.DisputeDecisionSplit,
		ClientAmount:     3000,
		FreelancerAmount: 3000,
	})
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
	disputes.AssertNotCalled(t, "Resolve")
}

func TestDisputeService_Resolve_SplitExact(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	adminID := uuid.New()
	clientID := uuid.New()
	freelancerID := uuid.New()
	escrow := heldEscrow(clientID, freelancerID)
	dispute := &models.Dispute{ID: uuid.New(), EscrowID: escrow.ID, Status: models.DisputeStatusInReview}
	resolved := &models.Dispute{ID: dispute.ID, EscrowID: escrow.ID, Status: models.DisputeStatusResolved}
	closed := &models.Escrow{ID: escrow.ID, ClientID: clientID, FreelancerID: freelancerID, TotalAmount: 10000, ReleasedAmount: 6000, RefundedAmount: 4000, Status: models.EscrowStatusReleased}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)
	disputes.On("Resolve", ctx, repository.ResolveParams{
		DisputeID:        dispute.ID,
		Decision:         models.DisputeDecisionSplit,
		ResolvedBy:       adminID,
		ClientAmount:     4000,
		FreelancerAmount: 6000,
	}).Return(resolved, closed, nil)

	_, gotEscrow, err := svc.ResolveDispute(ctx, dispute.ID, adminID, models.RoleAdmin, ResolveDisputeInput{
		Decision:         models.DisputeDecisionSplit,
		ClientAmount:     4000,
		FreelancerAmount: 6000,
	})
	assert.NoError(t, err)
	assert.True(t, gotEscrow.IsBalanced())
}

func TestDisputeService_Resolve_EscalatedDispute(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	sink := &recordingSink{}
	svc := NewDisputeService(disputes, escrows, sink)
	ctx := context.Background()

	adminID := uuid.New()
	clientID := uuid.New()
	freelancerID := uuid.New()
	escrow := heldEscrow(clientID, freelancerID)
	// Эскалация не закрывает спор: решение по нему всё ещё возможно.
	dispute := &models.Dispute{ID: uuid.New(), EscrowID: escrow.ID, RaisedBy: freelancerID, Status: models.DisputeStatusEscalated}
	resolved := &models.Dispute{ID: dispute.ID, EscrowID: escrow.ID, Status: models.DisputeStatusResolved}
	closed := &models.Escrow{ID: escrow.ID, ClientID: clientID, FreelancerID: freelancerID, TotalAmount: 10000, ReleasedAmount: 10000, Status: models.EscrowStatusReleased}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	disputes.On("Resolve", ctx, repository.ResolveParams{
		DisputeID:  dispute.ID,
		Decision:   models.DisputeDecisionFreelancer,
		Notes:      "работа выполнена",
		ResolvedBy: adminID,
	}).Return(resolved, closed, nil)

	gotDispute, gotEscrow, err := svc.ResolveDispute(ctx, dispute.ID, adminID, models.RoleAdmin, ResolveDisputeInput{
		Decision: models.DisputeDecisionFreelancer,
		Notes:    "работа выполнена",
	})
	assert.NoError(t, err)
	assert.Equal(t, models.DisputeStatusResolved, gotDispute.Status)
	assert.True(t, gotEscrow.IsBalanced())
	disputes.AssertExpectations(t)
}

func TestDisputeService_Resolve_AlreadyResolved(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockEscrowReader), nil)
	ctx := context.Background()

	dispute := &models.Dispute{ID: uuid.New(), Status: models.DisputeStatusResolved}
	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, _, err := svc.ResolveDispute(ctx, dispute.ID, uuid.New(), models.RoleAdmin, ResolveDisputeInput{Decision: models.DisputeDecisionContinue})
	assert.ErrorIs(t, err, apperror.ErrDisputeResolved)
}

func TestDisputeService_AddEvidence_OpenDisputeOnly(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	dispute := &models.Dispute{ID: uuid.New(), EscrowID: uuid.New(), Status: models.DisputeStatusResolved}
	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)

	_, err := svc.AddEvidence(ctx, dispute.ID, uuid.New(), "screen.png", "disputes/x/screen.png", "image/png", 1024)
	assert.ErrorIs(t, err, apperror.ErrDisputeResolved)
	disputes.AssertNotCalled(t, "CreateEvidence")
}

func TestDisputeService_AddEvidence_Success(t *testing.T) {
	disputes := new(mockDisputeRepo)
	escrows := new(mockEscrowReader)
	svc := NewDisputeService(disputes, escrows, nil)
	ctx := context.Background()

	clientID := uuid.New()
	escrow := heldEscrow(clientID, uuid.New())
	dispute := &models.Dispute{ID: uuid.New(), EscrowID: escrow.ID, Status: models.DisputeStatusPending}

	disputes.On("GetByID", ctx, dispute.ID).Return(dispute, nil)
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)
	disputes.On("CreateEvidence", ctx, mock.AnythingOfType("*models.DisputeEvidence")).Return(nil)

	ev, err := svc.AddEvidence(ctx, dispute.ID, clientID, "screen.png", "disputes/x/screen.png", "image/png", 1024)
	assert.NoError(t, err)
	assert.Equal(t, "screen.png", ev.FileName)
	assert.Equal(t, clientID, ev.UploadedBy)
}

func TestDisputeService_ListOpenDisputes_AdminOnly(t *testing.T) {
	disputes := new(mockDisputeRepo)
	svc := NewDisputeService(disputes, new(mockEscrowReader), nil)
	ctx := context.Background()

	_, err := svc.ListOpenDisputes(ctx, models.RoleFreelancer, 20, 0)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))

	disputes.On("ListOpen", ctx, 20, 0).Return([]models.Dispute{}, nil)
	_, err = svc.ListOpenDisputes(ctx, models.RoleAdmin, 20, 0)
	assert.NoError(t, err)
}
