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

type mockEscrowRepo struct {
	mock.Mock
}

func (m *mockEscrowRepo) Create(ctx context.Context, escrow *models.Escrow) error {
	args := m.Called(ctx, escrow)
	return args.Error(0)
}

func (m *mockEscrowRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]models.Escrow, error) {
	args := m.Called(ctx, userID, limit, offset)
	return args.Get(0).([]models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Release(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

func (m *mockEscrowRepo) Refund(ctx context.Context, id uuid.UUID) (*models.Escrow, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Escrow), args.Error(1)
}

type mockContractReader struct {
	mock.Mock
}

func (m *mockContractReader) GetByJobID(ctx context.Context, jobID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func TestEscrowService_Fund_Success(t *testing.T) {
	escrows := new(mockEscrowRepo)
	jobs := new(mockJobReader)
	contracts := new(mockContractReader)
	sink := &recordingSink{}
	svc := NewEscrowService(escrows, jobs, contracts, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := openJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("GetByJobID", ctx, job.ID).Return(&models.Contract{JobID: job.ID, ClientID: clientID, FreelancerID: freelancerID}, nil)
	escrows.On("Create", ctx, mock.AnythingOfType("*models.Escrow")).Return(nil)

	escrow, err := svc.Fund(ctx, job.ID, 10000, clientID)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusOnHold, escrow.Status)
	assert.Equal(t, freelancerID, escrow.FreelancerID)
	assert.Equal(t, escrow.TotalAmount, escrow.HeldAmount)
	assert.True(t, escrow.IsBalanced())
	assert.Equal(t, []string{events.EscrowFunded}, sink.events)
	assert.Equal(t, []uuid.UUID{freelancerID}, sink.payloads[0].Recipients)
}

func TestEscrowService_Fund_RequiresContract(t *testing.T) {
	escrows := new(mockEscrowRepo)
	jobs := new(mockJobReader)
	contracts := new(mockContractReader)
	svc := NewEscrowService(escrows, jobs, contracts, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("GetByJobID", ctx, job.ID).Return(nil, repository.ErrContractNotFound)

	_, err := svc.Fund(ctx, job.ID, 10000, clientID)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
	escrows.AssertNotCalled(t, "Create")
}

func TestEscrowService_Fund_OnlyJobOwner(t *testing.T) {
	escrows := new(mockEscrowRepo)
	jobs := new(mockJobReader)
	svc := NewEscrowService(escrows, jobs, new(mockContractReader), nil)
	ctx := context.Background()

	job := openJob(uuid.New())
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.Fund(ctx, job.ID, 10000, uuid.New())
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestEscrowService_Fund_NonPositiveAmount(t *testing.T) {
	svc := NewEscrowService(new(mockEscrowRepo), new(mockJobReader), new(mockContractReader), nil)

	_, err := svc.Fund(context.Background(), uuid.New(), 0, uuid.New())
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestEscrowService_Fund_Duplicate(t *testing.T) {
	escrows := new(mockEscrowRepo)
	jobs := new(mockJobReader)
	contracts := new(mockContractReader)
	svc := NewEscrowService(escrows, jobs, contracts, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("GetByJobID", ctx, job.ID).Return(&models.Contract{JobID: job.ID, FreelancerID: uuid.New()}, nil)
	escrows.On("Create", ctx, mock.AnythingOfType("*models.Escrow")).Return(common.ErrAlreadyExists)

	_, err := svc.Fund(ctx, job.ID, 10000, clientID)
	assert.ErrorIs(t, err, apperror.ErrEscrowExists)
}

func TestEscrowService_GetEscrow_OnlyPartiesOrAdmin(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)
	ctx := context.Background()

	escrow := &models.Escrow{ID: uuid.New(), ClientID: uuid.New(), FreelancerID: uuid.New()}
	escrows.On("GetByID", ctx, escrow.ID).Return(escrow, nil)

	_, err := svc.GetEscrow(ctx, escrow.ID, uuid.New(), models.RoleClient)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))

	got, err := svc.GetEscrow(ctx, escrow.ID, escrow.ClientID, models.RoleClient)
	assert.NoError(t, err)
	assert.Equal(t, escrow, got)

	got, err = svc.GetEscrow(ctx, escrow.ID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, escrow, got)
}

func TestEscrowService_Release_AdminOnly(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)

	_, err := svc.Release(context.Background(), uuid.New(), models.RoleClient)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	escrows.AssertNotCalled(t, "Release")
}

func TestEscrowService_Release_Success(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)
	ctx := context.Background()
	escrowID := uuid.New()

	released := &models.Escrow{ID: escrowID, TotalAmount: 10000, ReleasedAmount: 10000, Status: models.EscrowStatusReleased}
	escrows.On("Release", ctx, escrowID).Return(released, nil)

	got, err := svc.Release(ctx, escrowID, models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusReleased, got.Status)
	assert.True(t, got.IsBalanced())
}

func TestEscrowService_Release_TerminalEscrow(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)
	ctx := context.Background()
	escrowID := uuid.New()

	escrows.On("Release", ctx, escrowID).Return(nil, repository.ErrEscrowTerminal)

	_, err := svc.Release(ctx, escrowID, models.RoleAdmin)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestEscrowService_Refund_Success(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)
	ctx := context.Background()
	escrowID := uuid.New()

	refunded := &models.Escrow{ID: escrowID, TotalAmount: 10000, RefundedAmount: 10000, Status: models.EscrowStatusRefunded}
	escrows.On("Refund", ctx, escrowID).Return(refunded, nil)

	got, err := svc.Refund(ctx, escrowID, models.RoleAdmin)
	assert.NoError(t, err)
	assert.Equal(t, models.EscrowStatusRefunded, got.Status)
	assert.True(t, got.IsBalanced())
}

func TestEscrowService_ListMyEscrows_NormalizesPagination(t *testing.T) {
	escrows := new(mockEscrowRepo)
	svc := NewEscrowService(escrows, new(mockJobReader), new(mockContractReader), nil)
	ctx := context.Background()
	userID := uuid.New()

	escrows.On("ListByUser", ctx, userID, 20, 0).Return([]models.Escrow{}, nil)

	_, err := svc.ListMyEscrows(ctx, userID, 500, -3)
	assert.NoError(t, err)
	escrows.AssertExpectations(t)
}
