package data

import (
	_ "embed"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/codeclash/backend/internal/domain"
)

//go:embed problems.json
var problemsData []byte

// problemJSON represents the JSON structure for seeded problems
type problemJSON struct {
	Name          string              `json:"name"`
	Slug          string              `json:"slug"`
	Rating        int                 `json:"rating"`
	Tags          []string            `json:"tags"`
	TimeLimitMs   int                 `json:"time_limit"`
	MemoryLimitMB int                 `json:"memory_limit"`
	Statement     string              `json:"statement"`
	InputFormat   string              `json:"input_format"`
	OutputFormat  string              `json:"output_format"`
	SampleTests   []domain.SampleTest `json:"sample_tests"`
	QualityScore  int                 `json:"quality_score"`
}

// Seeder handles database seeding operations
type Seeder struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSeeder creates a new database seeder
func NewSeeder(db *gorm.DB, logger *zap.Logger) *Seeder {
	return &Seeder{
		db:     db,
		logger: logger,
	}
}

// SeedProblems loads the starter problem bank. Seeded problems are marked
// verified so they pass the sampling filter. Skips when the bank is not
// empty, so an operator-curated bank is never overwritten.
func (s *Seeder) SeedProblems() error {
	s.logger.Info("Starting to seed problems...")

	var count int64
	if err := s.db.Model(&domain.Problem{}).Count(&count).Error; err != nil {
		return err
	}

	if count > 0 {
		s.logger.Info("Problems already seeded, skipping",
			zap.Int64("count", count),
		)
		return nil
	}

	problems, err := GetEmbeddedProblems()
	if err != nil {
		return err
	}

	if err := s.db.CreateInBatches(problems, 50).Error; err != nil {
		return err
	}

	s.logger.Info("Successfully seeded problems",
		zap.Int("count", len(problems)),
	)

	return nil
}

// GetEmbeddedProblems returns the embedded starter problem bank.
// Useful for testing or direct access
func GetEmbeddedProblems() ([]domain.Problem, error) {
	var problemsJSON []problemJSON
	if err := json.Unmarshal(problemsData, &problemsJSON); err != nil {
		return nil, err
	}

	problems := make([]domain.Problem, len(problemsJSON))
	for i, p := range problemsJSON {
		problems[i] = domain.Problem{
			ID:            uuid.New(),
			Name:          p.Name,
			Slug:          p.Slug,
			Rating:        p.Rating,
			Tags:          pq.StringArray(p.Tags),
			TimeLimitMs:   p.TimeLimitMs,
			MemoryLimitMB: p.MemoryLimitMB,
			Statement:     p.Statement,
			InputFormat:   p.InputFormat,
			OutputFormat:  p.OutputFormat,
			SampleTests:   p.SampleTests,
			Verified:      true,
			QualityScore:  p.QualityScore,
		}
	}

	return problems, nil
}
