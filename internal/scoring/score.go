// Package scoring grades a judged run. Everything here is pure: identical
// inputs always produce bit-identical scores.
package scoring

import (
	"strings"

	"github.com/codeclash/backend/internal/domain"
)

// Weighting of the total score. Code quality is an informational dimension
// and is deliberately excluded from the total.
const (
	correctnessWeight = 0.7
	timeWeight        = 0.2
	memoryWeight      = 0.1
)

// Score maps a run summary plus the submitted code to a multi-dimensional
// grade.
func Score(summary *domain.RunSummary, code string, language domain.Language) domain.Score {
	s := domain.Score{
		Correctness:      correctness(summary),
		TimeEfficiency:   clamp(100 - summary.ExecutionTime*10),
		MemoryEfficiency: clamp(100 - float64(summary.MemoryKB)/1000),
		CodeQuality:      CodeQuality(code, language),
	}
	s.Total = correctnessWeight*s.Correctness + timeWeight*s.TimeEfficiency + memoryWeight*s.MemoryEfficiency
	return s
}

// Zero is the score of a submission whose judging never produced results.
func Zero() domain.Score {
	return domain.Score{}
}

func correctness(summary *domain.RunSummary) float64 {
	if summary.Total == 0 {
		return 0
	}
	return 100 * float64(summary.Passed) / float64(summary.Total)
}

// CodeQuality is a crude proxy for code hygiene, not static analysis: it
// rewards the presence of comments and short solutions, and penalizes very
// long ones. Replace the heuristic wholesale rather than tuning it.
func CodeQuality(code string, language domain.Language) float64 {
	quality := 70.0

	if hasCommentMarker(code, language) {
		quality += 10
	}
	switch {
	case len(code) < 200:
		quality += 10
	case len(code) > 1000:
		quality -= 10
	}
	if hasLanguageIdiom(code, language) {
		quality += 5
	}

	return clamp(quality)
}

func hasCommentMarker(code string, language domain.Language) bool {
	switch language {
	case domain.LanguagePython:
		return strings.Contains(code, "#")
	default:
		return strings.Contains(code, "//") || strings.Contains(code, "/*")
	}
}

func hasLanguageIdiom(code string, language domain.Language) bool {
	switch language {
	case domain.LanguageCPP:
		return strings.Contains(code, "using namespace") || strings.Contains(code, "#include")
	case domain.LanguageJava:
		return strings.Contains(code, "class ")
	case domain.LanguagePython:
		return strings.Contains(code, "def ")
	default:
		return false
	}
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
