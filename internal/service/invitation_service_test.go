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
	"github.com/ignatzorin/freelance-core/internal/repository/common"
)

type mockInvitationRepo struct {
	mock.Mock
}

func (m *mockInvitationRepo) Create(ctx context.Context, inv *models.Invitation) error {
	args := m.Called(ctx, inv)
	return args.Error(0)
}

func (m *mockInvitationRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Invitation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Invitation, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.Invitation, error) {
	args := m.Called(ctx, freelancerID, limit, offset)
	return args.Get(0).([]models.Invitation), args.Error(1)
}

func (m *mockInvitationRepo) SetStatus(ctx context.Context, id uuid.UUID, status string) (*models.Invitation, error) {
	args := m.Called(ctx, id, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Invitation), args.Error(1)
}

type mockUserReader struct {
	mock.Mock
}

func (m *mockUserReader) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

type mockInvitationContractCreator struct {
	mock.Mock
}

func (m *mockInvitationContractCreator) CreateFromInvitation(ctx context.Context, inv *models.Invitation, rate float64) (*models.Contract, error) {
	args := m.Called(ctx, inv, rate)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func directJob(clientID uuid.UUID) *models.Job {
	return &models.Job{
		ID:       uuid.New(),
		ClientID: clientID,
		Type:     models.JobTypeDirect,
		Status:   models.JobStatusActive,
		Budget:   10000,
	}
}

func TestInvitationService_SendInvitation_Success(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	users := new(mockUserReader)
	sink := &recordingSink{}
	svc := NewInvitationService(invitations, jobs, users, nil, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := directJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	users.On("GetByID", ctx, freelancerID).Return(&models.User{ID: freelancerID, Role: models.RoleFreelancer}, nil)
	invitations.On("Create", ctx, mock.AnythingOfType("*models.Invitation")).Return(nil)

	inv, err := svc.SendInvitation(ctx, job.ID, freelancerID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, models.InvitationStatusPending, inv.Status)
	assert.Equal(t, []string{events.InvitationSent}, sink.events)
	assert.Equal(t, []uuid.UUID{freelancerID}, sink.payloads[0].Recipients)
}

func TestInvitationService_SendInvitation_OpenJobRejected(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	svc := NewInvitationService(invitations, jobs, new(mockUserReader), nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := directJob(clientID)
	job.Type = models.JobTypeOpen
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.SendInvitation(ctx, job.ID, uuid.New(), clientID)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestInvitationService_SendInvitation_OnlyFreelancers(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	users := new(mockUserReader)
	svc := NewInvitationService(invitations, jobs, users, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	inviteeID := uuid.New()
	job := directJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	users.On("GetByID", ctx, inviteeID).Return(&models.User{ID: inviteeID, Role: models.RoleClient}, nil)

	_, err := svc.SendInvitation(ctx, job.ID, inviteeID, clientID)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestInvitationService_SendInvitation_Duplicate(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	users := new(mockUserReader)
	svc := NewInvitationService(invitations, jobs, users, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := directJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	users.On("GetByID", ctx, freelancerID).Return(&models.User{ID: freelancerID, Role: models.RoleFreelancer}, nil)
	invitations.On("Create", ctx, mock.AnythingOfType("*models.Invitation")).Return(common.ErrAlreadyExists)

	_, err := svc.SendInvitation(ctx, job.ID, freelancerID, clientID)
	assert.ErrorIs(t, err, apperror.ErrInviteExists)
}

func TestInvitationService_Respond_AcceptCreatesContract(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	contracts := new(mockInvitationContractCreator)
	sink := &recordingSink{}
	svc := NewInvitationService(invitations, jobs, new(mockUserReader), contracts, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := directJob(clientID)
	inv := &models.Invitation{ID: uuid.New(), JobID: job.ID, ClientID: clientID, FreelancerID: freelancerID, Status: models.InvitationStatusPending}
	contract := &models.Contract{ID: uuid.New(), JobID: job.ID, ClientID: clientID, FreelancerID: freelancerID, AgreedRate: job.Budget}

	invitations.On("GetByID", ctx, inv.ID).Return(inv, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("CreateFromInvitation", ctx, inv, job.Budget).Return(contract, nil)

	gotInv, gotContract, err := svc.RespondToInvitation(ctx, inv.ID, freelancerID, models.InvitationActionAccept)
	assert.NoError(t, err)
	assert.Equal(t, models.InvitationStatusAccepted, gotInv.Status)
	assert.Equal(t, contract, gotContract)
	assert.Equal(t, []string{events.InvitationResponded, events.ContractCreated}, sink.events)
}

func TestInvitationService_Respond_Reject(t *testing.T) {
	invitations := new(mockInvitationRepo)
	svc := NewInvitationService(invitations, new(mockJobReader), new(mockUserReader), nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	inv := &models.Invitation{ID: uuid.New(), ClientID: uuid.New(), FreelancerID: freelancerID, Status: models.InvitationStatusPending}
	rejected := &models.Invitation{ID: inv.ID, FreelancerID: freelancerID, Status: models.InvitationStatusRejected}

	invitations.On("GetByID", ctx, inv.ID).Return(inv, nil)
	invitations.On("SetStatus", ctx, inv.ID, models.InvitationStatusRejected).Return(rejected, nil)

	gotInv, gotContract, err := svc.RespondToInvitation(ctx, inv.ID, freelancerID, models.InvitationActionReject)
	assert.NoError(t, err)
	assert.Nil(t, gotContract)
	assert.Equal(t, models.InvitationStatusRejected, gotInv.Status)
}

func TestInvitationService_Respond_OnlyInvitee(t *testing.T) {
	invitations := new(mockInvitationRepo)
	svc := NewInvitationService(invitations, new(mockJobReader), new(mockUserReader), nil, nil)
	ctx := context.Background()

	inv := &models.Invitation{ID: uuid.New(), FreelancerID: uuid.New(), Status: models.InvitationStatusPending}
	invitations.On("GetByID", ctx, inv.ID).Return(inv, nil)

	_, _, err := svc.RespondToInvitation(ctx, inv.ID, uuid.New(), models.InvitationActionAccept)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestInvitationService_Respond_AlreadyAnswered(t *testing.T) {
	invitations := new(mockInvitationRepo)
	svc := NewInvitationService(invitations, new(mockJobReader), new(mockUserReader), nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	inv := &models.Invitation{ID: uuid.New(), FreelancerID: freelancerID, Status: models.InvitationStatusAccepted}
	invitations.On("GetByID", ctx, inv.ID).Return(inv, nil)

	_, _, err := svc.RespondToInvitation(ctx, inv.ID, freelancerID, models.InvitationActionReject)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestInvitationService_Respond_InvalidAction(t *testing.T) {
	invitations := new(mockInvitationRepo)
	svc := NewInvitationService(invitations, new(mockJobReader), new(mockUserReader), nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	inv := &models.Invitation{ID: uuid.New(), FreelancerID: freelancerID, Status: models.InvitationStatusPending}
	invitations.On("GetByID", ctx, inv.ID).Return(inv, nil)

	_, _, err := svc.RespondToInvitation(ctx, inv.ID, freelancerID, "maybe")
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestInvitationService_ListJobInvitations_OnlyOwner(t *testing.T) {
	invitations := new(mockInvitationRepo)
	jobs := new(mockJobReader)
	svc := NewInvitationService(invitations, jobs, new(mockUserReader), nil, nil)
	ctx := context.Background()

	job := directJob(uuid.New())
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.ListJobInvitations(ctx, job.ID, uuid.New())
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}
