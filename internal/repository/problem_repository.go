package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/codeclash/backend/internal/domain"
)

// problemRepository implements domain.ProblemRepository using GORM
type problemRepository struct {
	db *gorm.DB
}

// NewProblemRepository creates a new problem repository
func NewProblemRepository(db *gorm.DB) domain.ProblemRepository {
	return &problemRepository{db: db}
}

// Create creates a new problem in the database
func (r *problemRepository) Create(problem *domain.Problem) error {
	return r.db.Create(problem).Error
}

// CreateBatch creates multiple problems in a single insert
func (r *problemRepository) CreateBatch(problems []domain.Problem) error {
	if len(problems) == 0 {
		return nil
	}
	return r.db.Create(&problems).Error
}

// FindByID finds a problem by its ID
func (r *problemRepository) FindByID(id uuid.UUID) (*domain.Problem, error) {
	var problem domain.Problem
	result := r.db.Where("id = ?", id).First(&problem)
	if result.Error != nil {
		if errors.Is(result.Error, gorm.ErrRecordNotFound) {
			return nil, domain.ErrProblemNotFound
		}
		return nil, result.Error
	}
	return &problem, nil
}

// FindAll returns every problem in the bank ordered by rating
func (r *problemRepository) FindAll() ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.Order("rating ASC").Find(&problems)
	return problems, result.Error
}

// Sample returns up to count random verified, quality-filtered problems
// within the rating band. Sampling happens database-side so contest
// creation stays a one-shot read.
func (r *problemRepository) Sample(count, minRating, maxRating int) ([]domain.Problem, error) {
	var problems []domain.Problem
	result := r.db.
		Where("rating >= ? AND rating <= ? AND verified = ? AND quality_score >= ?",
			minRating, maxRating, true, domain.MinQualityScore).
		Order("RANDOM()").
		Limit(count).
		Find(&problems)
	return problems, result.Error
}

// Count returns the total number of problems in the bank
func (r *problemRepository) Count() (int64, error) {
	var count int64
	result := r.db.Model(&domain.Problem{}).Count(&count)
	return count, result.Error
}

// WithContext returns a repository with the given context for tracing
func (r *problemRepository) WithContext(ctx context.Context) domain.ProblemRepository {
	return &problemRepository{db: r.db.WithContext(ctx)}
}
