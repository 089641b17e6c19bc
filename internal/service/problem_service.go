package service

import (
	"context"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
)

// ProblemService exposes the problem bank for browsing and administration.
type ProblemService struct {
	problemRepo domain.ProblemRepository
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewProblemService creates a new problem service
func NewProblemService(problemRepo domain.ProblemRepository, tracer trace.Tracer, logger *zap.Logger) *ProblemService {
	return &ProblemService{
		problemRepo: problemRepo,
		tracer:      tracer,
		logger:      logger,
	}
}

// List returns every problem in the bank.
func (s *ProblemService) List(ctx context.Context) ([]domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.List")
	defer span.End()

	return s.problemRepo.FindAll()
}

// GetByID returns a single problem.
func (s *ProblemService) GetByID(ctx context.Context, id uuid.UUID) (*domain.Problem, error) {
	ctx, span := s.tracer.Start(ctx, "ProblemService.GetByID")
	defer span.End()

	span.SetAttributes(attribute.String("problem.id", id.String()))
	return s.problemRepo.FindByID(id)
}

// Create adds a problem to the bank.
func (s *ProblemService) Create(ctx context.Context, problem *domain.Problem) error {
	ctx, span := s.tracer.Start(ctx, "ProblemService.Create")
	defer span.End()

	if problem.Name == "" || problem.Slug == "" || len(problem.SampleTests) == 0 {
		return domain.ErrMissingFields
	}
	if err := s.problemRepo.Create(problem); err != nil {
		return err
	}

	s.logger.Info("Problem added to bank",
		zap.String("problem_id", problem.ID.String()),
		zap.String("slug", problem.Slug),
		zap.Int("rating", problem.Rating),
	)
	return nil
}
