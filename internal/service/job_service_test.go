package service

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
)

type mockJobRepo struct {
	mock.Mock
}

func (m *mockJobRepo) Create(ctx context.Context, job *models.Job) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *mockJobRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Job), args.Error(1)
}

func (m *mockJobRepo) List(ctx context.Context, params repository.JobListParams) ([]models.Job, error) {
	args := m.Called(ctx, params)
	return args.Get(0).([]models.Job), args.Error(1)
}

func (m *mockJobRepo) Delete(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func validJobInput() CreateJobInput {
	return CreateJobInput{
		Title:       "Разработка API маркетплейса",
		Description: "Спроектировать и реализовать REST API для маркетплейса услуг.",
		Budget:      50000,
		Category:    "backend",
		Type:        models.JobTypeOpen,
	}
}

func TestJobService_CreateJob_Success(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	clientID := uuid.New()

	repo.On("Create", ctx, mock.AnythingOfType("*models.Job")).Return(nil)

	job, err := svc.CreateJob(ctx, clientID, models.RoleClient, validJobInput())
	assert.NoError(t, err)
	assert.Equal(t, clientID, job.ClientID)
	assert.Equal(t, models.JobStatusActive, job.Status)
	repo.AssertExpectations(t)
}

func TestJobService_CreateJob_FreelancerForbidden(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)

	_, err := svc.CreateJob(context.Background(), uuid.New(), models.RoleFreelancer, validJobInput())
	assert.Error(t, err)
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	repo.AssertNotCalled(t, "Create")
}

func TestJobService_CreateJob_Validation(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	clientID := uuid.New()

	in := validJobInput()
	in.Title = "api"
	_, err := svc.CreateJob(ctx, clientID, models.RoleClient, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))

	in = validJobInput()
	in.Budget = 5
	_, err = svc.CreateJob(ctx, clientID, models.RoleClient, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))

	in = validJobInput()
	in.Type = "URGENT"
	_, err = svc.CreateJob(ctx, clientID, models.RoleClient, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))

	in = validJobInput()
	past := time.Now().Add(-time.Hour)
	in.DeadlineAt = &past
	_, err = svc.CreateJob(ctx, clientID, models.RoleClient, in)
	assert.Equal(t, apperror.ErrCodeValidation, apperror.CodeOf(err))
}

func TestJobService_GetJob_NotFound(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	jobID := uuid.New()

	repo.On("GetByID", ctx, jobID).Return(nil, repository.ErrJobNotFound)

	_, err := svc.GetJob(ctx, jobID)
	assert.ErrorIs(t, err, apperror.ErrJobNotFound)
}

func TestJobService_ListJobs_DefaultLimit(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()

	repo.On("List", ctx, repository.JobListParams{Limit: 20}).Return([]models.Job{}, nil)

	_, err := svc.ListJobs(ctx, repository.JobListParams{Limit: 0})
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestJobService_DeleteJob_OnlyOwner(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	jobID := uuid.New()
	ownerID := uuid.New()

	repo.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: ownerID}, nil)

	err := svc.DeleteJob(ctx, jobID, uuid.New())
	assert.Equal(t, apperror.ErrCodeForbidden, apperror.CodeOf(err))
	repo.AssertNotCalled(t, "Delete")
}

func TestJobService_DeleteJob_WithContractConflict(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	jobID := uuid.New()
	ownerID := uuid.New()

	repo.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: ownerID}, nil)
	repo.On("Delete", ctx, jobID).Return(repository.ErrJobHasContract)

	err := svc.DeleteJob(ctx, jobID, ownerID)
	assert.Equal(t, apperror.ErrCodeConflict, apperror.CodeOf(err))
}

func TestJobService_DeleteJob_Success(t *testing.T) {
	repo := new(mockJobRepo)
	svc := NewJobService(repo)
	ctx := context.Background()
	jobID := uuid.New()
	ownerID := uuid.New()

	repo.On("GetByID", ctx, jobID).Return(&models.Job{ID: jobID, ClientID: ownerID}, nil)
	repo.On("Delete", ctx, jobID).Return(nil)

	err := svc.DeleteJob(ctx, jobID, ownerID)
	assert.NoError(t, err)
	repo.AssertExpectations(t)
}
