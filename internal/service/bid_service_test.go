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

// recordingSink накапливает события для проверок в тестах.
type recordingSink struct {
	events   []string
	payloads []events.Payload
}

func (s *recordingSink) Emit(ctx context.Context, event string, payload events.Payload) {
	s.events = append(s.events, event)
	s.payloads = append(s.payloads, payload)
}

type mockJobReader struct {
	mock.Mock
}

func (m *mockJobReader) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

type mockBidRepo struct {
	mock.Mock
}

func (m *mockBidRepo) Create(ctx context.Context, bid *models.Bid) error {
	args := m.Called(ctx, bid)
	return args.Error(0)
}

func (m *mockBidRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Bid, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) GetWithJob(ctx context.Context, id uuid.UUID) (*models.BidWithJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.BidWithJob), args.Error(1)
}

func (m *mockBidRepo) ListByJob(ctx context.Context, jobID uuid.UUID) ([]models.Bid, error) {
	args := m.Called(ctx, jobID)
	return args.Get(0).([]models.Bid), args.Error(1)
}

func (m *mockBidRepo) ListByFreelancer(ctx context.Context, freelancerID uuid.UUID, limit, offset int) ([]models.BidWithJob, error) {
	args := m.Called(ctx, freelancerID, limit, offset)
	return args.Get(0).([]models.BidWithJob), args.Error(1)
}

func (m *mockBidRepo) Update(ctx context.Context, id uuid.UUID, amount float64, coverLetter string) (*models.Bid, error) {
	args := m.Called(ctx, id, amount, coverLetter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Bid), args.Error(1)
}

func (m *mockBidRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type mockContractCreator struct {
	mock.Mock
}

func (m *mockContractCreator) CreateFromBidAcceptance(ctx context.Context, bid *models.Bid, clientID uuid.UUID) (*models.Contract, error) {
	args := m.Called(ctx, bid, clientID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Contract), args.Error(1)
}

func openJob(clientID uuid.UUID) *models.Job {
	return &models.Job{
		ID:       uuid.New(),
		ClientID: clientID,
		Type:     models.JobTypeOpen,
		Status:   models.JobStatusActive,
	}
}

func TestBidService_PlaceBid_Success(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	sink := &recordingSink{}
	svc := NewBidService(bids, jobs, nil, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := openJob(clientID)

	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	bids.On("Create", ctx, mock.AnythingOfType("*models.Bid")).Return(nil)

	bid, err := svc.PlaceBid(ctx, job.ID, freelancerID, models.RoleFreelancer, 3000, "возьмусь за неделю")
	assert.NoError(t, err)
	assert.Equal(t, models.BidStatusPending, bid.Status)
	assert.Equal(t, []string{events.BidPlaced}, sink.events)
	assert.Equal(t, []uuid.UUID{clientID}, sink.payloads[0].Recipients)
}

func TestBidService_PlaceBid_ClientForbidden(t *testing.T) {
	svc := NewBidService(new(mockBidRepo), new(mockJobReader), nil, nil)

	_, err := svc.PlaceBid(context.Background(), uuid.New(), uuid.New(), models.RoleClient, 3000, "")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestBidService_PlaceBid_DirectJobRejected(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, nil, nil)
	ctx := context.Background()

	job := openJob(uuid.New())
	job.Type = models.JobTypeDirect
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.PlaceBid(ctx, job.ID, uuid.New(), models.RoleFreelancer, 3000, "")
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestBidService_PlaceBid_OwnJobRejected(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.PlaceBid(ctx, job.ID, clientID, models.RoleFreelancer, 3000, "")
	assert.Equal(t, apperror.ErrCodeBadRequest, apperror.CodeOf(err))
}

func TestBidService_PlaceBid_Duplicate(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, nil, nil)
	ctx := context.Background()

	job := openJob(uuid.New())
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	bids.On("Create", ctx, mock.AnythingOfType("*models.Bid")).Return(common.ErrAlreadyExists)

	_, err := svc.PlaceBid(ctx, job.ID, uuid.New(), models.RoleFreelancer, 3000, "")
	assert.ErrorIs(t, err, apperror.ErrBidExists)
}

func TestBidService_AcceptBid_Success(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	contracts := new(mockContractCreator)
	sink := &recordingSink{}
	svc := NewBidService(bids, jobs, contracts, sink)
	ctx := context.Background()

	clientID := uuid.New()
	freelancerID := uuid.New()
	job := openJob(clientID)
	bid := &models.Bid{ID: uuid.New(), JobID: job.ID, FreelancerID: freelancerID, Amount: 3000, Status: models.BidStatusPending}
	contract := &models.Contract{ID: uuid.New(), JobID: job.ID, ClientID: clientID, FreelancerID: freelancerID, AgreedRate: 3000}

	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("CreateFromBidAcceptance", ctx, bid, clientID).Return(contract, nil)

	got, err := svc.AcceptBid(ctx, bid.ID, clientID)
	assert.NoError(t, err)
	assert.Equal(t, contract, got)
	assert.Equal(t, []string{events.BidAccepted, events.ContractCreated}, sink.events)
}

func TestBidService_AcceptBid_NotOwner(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, new(mockContractCreator), nil)
	ctx := context.Background()

	job := openJob(uuid.New())
	bid := &models.Bid{ID: uuid.New(), JobID: job.ID, Status: models.BidStatusPending}

	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.AcceptBid(ctx, bid.ID, uuid.New())
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
}

func TestBidService_AcceptBid_ContractAlreadyExists(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	contracts := new(mockContractCreator)
	svc := NewBidService(bids, jobs, contracts, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)
	bid := &models.Bid{ID: uuid.New(), JobID: job.ID, FreelancerID: uuid.New(), Status: models.BidStatusPending}

	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)
	contracts.On("CreateFromBidAcceptance", ctx, bid, clientID).Return(nil, common.ErrAlreadyExists)

	_, err := svc.AcceptBid(ctx, bid.ID, clientID)
	assert.ErrorIs(t, err, apperror.ErrContractExists)
}

func TestBidService_AcceptBid_AlreadyProcessed(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, new(mockContractCreator), nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)
	bid := &models.Bid{ID: uuid.New(), JobID: job.ID, Status: models.BidStatusRejected}

	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.AcceptBid(ctx, bid.ID, clientID)
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestBidService_UpdateBid_OnlyAuthorWhilePending(t *testing.T) {
	bids := new(mockBidRepo)
	svc := NewBidService(bids, new(mockJobReader), nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	bid := &models.Bid{ID: uuid.New(), FreelancerID: freelancerID, Status: models.BidStatusAccepted}
	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)

	_, err := svc.UpdateBid(ctx, bid.ID, uuid.New(), 4000, "")
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))

	_, err = svc.UpdateBid(ctx, bid.ID, freelancerID, 4000, "")
	assert.Equal(t, apperror.ErrCodeInvalidState, apperror.CodeOf(err))
}

func TestBidService_DeleteBid_Success(t *testing.T) {
	bids := new(mockBidRepo)
	svc := NewBidService(bids, new(mockJobReader), nil, nil)
	ctx := context.Background()

	freelancerID := uuid.New()
	bid := &models.Bid{ID: uuid.New(), FreelancerID: freelancerID, Status: models.BidStatusPending}
	bids.On("GetByID", ctx, bid.ID).Return(bid, nil)
	bids.On("Delete", ctx, bid.ID).Return(nil)

	err := svc.DeleteBid(ctx, bid.ID, freelancerID)
	assert.NoError(t, err)
	bids.AssertExpectations(t)
}

func TestBidService_ListJobBids_OwnerOrAdmin(t *testing.T) {
	bids := new(mockBidRepo)
	jobs := new(mockJobReader)
	svc := NewBidService(bids, jobs, nil, nil)
	ctx := context.Background()

	clientID := uuid.New()
	job := openJob(clientID)
	jobs.On("GetByID", ctx, job.ID).Return(job, nil)

	_, err := svc.ListJobBids(ctx, job.ID, uuid.New(), models.RoleFreelancer)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))

	bids.On("ListByJob", ctx, job.ID).Return([]models.Bid{}, nil)
	_, err = svc.ListJobBids(ctx, job.ID, uuid.New(), models.RoleAdmin)
	assert.NoError(t, err)
}

func TestBidService_ListMyBids_NormalizesPagination(t *testing.T) {
	bids := new(mockBidRepo)
	svc := NewBidService(bids, new(mockJobReader), nil, nil)
	ctx := context.Background()
	freelancerID := uuid.New()

	bids.On("ListByFreelancer", ctx, freelancerID, 20, 0).Return([]models.BidWithJob{}, nil)

	_, err := svc.ListMyBids(ctx, freelancerID, -5, -1)
	assert.NoError(t, err)
	bids.AssertExpectations(t)
}

func TestBidService_GetBidWithJob_NotFound(t *testing.T) {
	bids := new(mockBidRepo)
	svc := NewBidService(bids, new(mockJobReader), nil, nil)
	ctx := context.Background()
	bidID := uuid.New()

	bids.On("GetWithJob", ctx, bidID).Return(nil, repository.ErrBidNotFound)

	_, err := svc.GetBidWithJob(ctx, bidID)
	assert.ErrorIs(t, err, apperror.ErrBidNotFound)
}
