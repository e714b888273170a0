package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/ignatzorin/freelance-core/internal/models"
	"github.com/ignatzorin/freelance-core/internal/pkg/apperror"
	"github.com/ignatzorin/freelance-core/internal/repository"
)

// Минимальные требования к полям задания.
const (
	MinJobTitleLen       = 5
	MinJobDescriptionLen = 20
	MinJobBudget         = 10.0
)

// JobRepository описывает взаимодействие сервиса с хранилищем заданий.
type JobRepository interface {
	Create(ctx context.Context, job *models.Job) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Job, error)
	List(ctx context.Context, params repository.JobListParams) ([]models.Job, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// JobService содержит бизнес-логику работы с заданиями.
type JobService struct {
	repo JobRepository
}

// NewJobService создаёт новый сервис заданий.
func NewJobService(repo JobRepository) *JobService {
	return &JobService{repo: repo}
}

// CreateJobInput описывает входные данные.
type CreateJobInput struct {
	Title           string
	Description     string
	Budget          float64
	Category        string
	Type            string
	Skills          []string
	ExperienceLevel string
	DeadlineAt      *time.Time
}

// CreateJob создаёт задание от имени клиента.
func (s *JobService) CreateJob(ctx context.Context, clientID uuid.UUID, role string, in CreateJobInput) (*models.Job, error) {
	if role != models.RoleClient {
		return nil, apperror.New(apperror.ErrCodeForbidden, "размещать задания могут только клиенты")
	}

	if len(strings.TrimSpace(in.Title)) < MinJobTitleLen {
		return nil, apperror.New(apperror.ErrCodeValidation, "заголовок задания должен быть не короче 5 символов")
	}
	if len(strings.TrimSpace(in.Description)) < MinJobDescriptionLen {
		return nil, apperror.New(apperror.ErrCodeValidation, "описание задания должно быть не короче 20 символов")
	}
	if in.Budget < MinJobBudget {
		return nil, apperror.New(apperror.ErrCodeValidation, "бюджет задания должен быть не меньше 10")
	}
	if strings.TrimSpace(in.Category) == "" {
		return nil, apperror.New(apperror.ErrCodeValidation, "категория задания обязательна")
	}
	if _, ok := models.ValidJobTypes[in.Type]; !ok {
		return nil, apperror.New(apperror.ErrCodeValidation, "тип задания должен быть OPEN или DIRECT")
	}
	if in.DeadlineAt != nil && in.DeadlineAt.Before(time.Now()) {
		return nil, apperror.New(apperror.ErrCodeValidation, "дедлайн не может быть в прошлом")
	}

	job := &models.Job{
		ClientID:        clientID,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Budget:          in.Budget,
		Category:        in.Category,
		Type:            in.Type,
		Status:          models.JobStatusActive,
		Skills:          pq.StringArray(in.Skills),
		ExperienceLevel: in.ExperienceLevel,
		DeadlineAt:      in.DeadlineAt,
	}

	if err := s.repo.Create(ctx, job); err != nil {
		return nil, apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось создать задание")
	}
	return job, nil
}

// GetJob возвращает задание по идентификатору.
func (s *JobService) GetJob(ctx context.Context, id uuid.UUID) (*models.Job, error) {
	job, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return nil, apperror.ErrJobNotFound
		}
		return nil, err
	}
	return job, nil
}

// ListJobs возвращает задания по фильтрам.
func (s *JobService) ListJobs(ctx context.Context, params repository.JobListParams) ([]models.Job, error) {
	if params.Limit <= 0 || params.Limit > 100 {
		params.Limit = 20
	}
	if params.Offset < 0 {
		params.Offset = 0
	}
	return s.repo.List(ctx, params)
}

// ListMyJobs возвращает задания клиента.
func (s *JobService) ListMyJobs(ctx context.Context, clientID uuid.UUID, limit, offset int) ([]models.Job, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.repo.List(ctx, repository.JobListParams{ClientID: &clientID, Limit: limit, Offset: offset})
}

// DeleteJob удаляет задание владельца вместе с откликами и
// уведомлениями. Каскад атомарен: выполняется одной транзакцией
// на уровне репозитория.
func (s *JobService) DeleteJob(ctx context.Context, jobID, callerID uuid.UUID) error {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			return apperror.ErrJobNotFound
		}
		return err
	}
	if !job.IsOwnedBy(callerID) {
		return apperror.New(apperror.ErrCodeForbidden, "удалять задание может только его владелец")
	}

	if err := s.repo.Delete(ctx, jobID); err != nil {
		switch {
		case errors.Is(err, repository.ErrJobNotFound):
			return apperror.ErrJobNotFound
		case errors.Is(err, repository.ErrJobHasContract):
			return apperror.New(apperror.ErrCodeConflict, "нельзя удалить задание с заключённым контрактом")
		default:
			return apperror.Wrap(err, apperror.ErrCodeDatabaseError, "не удалось удалить задание")
		}
	}
	return nil
}
