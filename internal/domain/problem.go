package domain

import (
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// DifficultyBand is a rating band users pick when configuring a room.
type DifficultyBand string

const (
	Band800to1200  DifficultyBand = "800-1200"
	Band1200to1600 DifficultyBand = "1200-1600"
	Band1600to2000 DifficultyBand = "1600-2000"
	Band2000to2400 DifficultyBand = "2000-2400"
	Band2400Plus   DifficultyBand = "2400+"
)

// MinQualityScore filters the bank down to problems worth serving.
const MinQualityScore = 3

// Valid reports whether the band is one of the defined choices.
func (b DifficultyBand) Valid() bool {
	switch b {
	case Band800to1200, Band1200to1600, Band1600to2000, Band2000to2400, Band2400Plus:
		return true
	}
	return false
}

// RatingRange maps the band to its inclusive rating bounds. An unknown
// band falls back to the lowest band rather than failing.
func (b DifficultyBand) RatingRange() (min, max int) {
	switch b {
	case Band1200to1600:
		return 1200, 1600
	case Band1600to2000:
		return 1600, 2000
	case Band2000to2400:
		return 2000, 2400
	case Band2400Plus:
		return 2400, 5000
	default:
		return 800, 1200
	}
}

// Problem is a bank problem. Contests never reference these rows directly;
// they embed a ContestProblem snapshot at creation time.
type Problem struct {
	ID            uuid.UUID      `json:"id" gorm:"type:uuid;primary_key;default:gen_random_uuid()"`
	Name          string         `json:"name" gorm:"not null"`
	Slug          string         `json:"slug" gorm:"uniqueIndex;not null"`
	Rating        int            `json:"rating" gorm:"not null;index"`
	Tags          pq.StringArray `json:"tags" gorm:"type:text[]"`
	TimeLimitMs   int            `json:"time_limit" gorm:"not null;default:2000"`
	MemoryLimitMB int            `json:"memory_limit" gorm:"not null;default:256"`
	Statement     string         `json:"statement" gorm:"type:text"`
	InputFormat   string         `json:"input_format" gorm:"type:text"`
	OutputFormat  string         `json:"output_format" gorm:"type:text"`
	SampleTests   SampleTests    `json:"sample_tests" gorm:"type:jsonb"`
	Verified      bool           `json:"verified" gorm:"not null;default:false"`
	QualityScore  int            `json:"quality_score" gorm:"not null;default:0"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Problem) TableName() string {
	return "problems"
}

// Snapshot freezes the problem into a contest-embedded copy.
func (p *Problem) Snapshot(orderIndex int) ContestProblem {
	return ContestProblem{
		ProblemID:     p.ID.String(),
		Name:          p.Name,
		Rating:        p.Rating,
		Difficulty:    p.DifficultyLabel(),
		Tags:          append(pq.StringArray(nil), p.Tags...),
		TimeLimitMs:   p.TimeLimitMs,
		MemoryLimitMB: p.MemoryLimitMB,
		Statement:     p.Statement,
		InputFormat:   p.InputFormat,
		OutputFormat:  p.OutputFormat,
		SampleTests:   append(SampleTests(nil), p.SampleTests...),
		OrderIndex:    orderIndex,
	}
}

// DifficultyLabel renders the rating as display text.
func (p *Problem) DifficultyLabel() string {
	if p.Rating <= 0 {
		return "Unknown"
	}
	return strconv.Itoa(p.Rating)
}

// ProblemRepository defines the interface for problem bank access.
type ProblemRepository interface {
	Create(problem *Problem) error
	CreateBatch(problems []Problem) error
	FindByID(id uuid.UUID) (*Problem, error)
	FindAll() ([]Problem, error)
	// Sample returns up to count random verified, quality-filtered problems
	// with rating in [minRating, maxRating].
	Sample(count, minRating, maxRating int) ([]Problem, error)
	Count() (int64, error)
}
