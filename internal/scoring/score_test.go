package scoring

import (
	"math"
	"testing"

	"github.com/codeclash/backend/internal/domain"
)

const floatTolerance = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < floatTolerance
}

func TestScore(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name            string
		summary         domain.RunSummary
		wantCorrectness float64
		wantTime        float64
		wantMemory      float64
		wantTotal       float64
	}{
		{
			name:            "all passed fast and lean",
			summary:         domain.RunSummary{Passed: 3, Total: 3, ExecutionTime: 0.5, MemoryKB: 10000},
			wantCorrectness: 100,
			wantTime:        95,
			wantMemory:      90,
			wantTotal:       0.7*100 + 0.2*95 + 0.1*90,
		},
		{
			name:            "partial pass",
			summary:         domain.RunSummary{Passed: 1, Total: 2, ExecutionTime: 1, MemoryKB: 50000},
			wantCorrectness: 50,
			wantTime:        90,
			wantMemory:      50,
			wantTotal:       0.7*50 + 0.2*90 + 0.1*50,
		},
		{
			name:            "slow run clamps time efficiency to zero",
			summary:         domain.RunSummary{Passed: 2, Total: 2, ExecutionTime: 30, MemoryKB: 1000},
			wantCorrectness: 100,
			wantTime:        0,
			wantMemory:      99,
			wantTotal:       0.7*100 + 0.2*0 + 0.1*99,
		},
		{
			name:            "huge memory clamps to zero",
			summary:         domain.RunSummary{Passed: 2, Total: 2, ExecutionTime: 0, MemoryKB: 200000},
			wantCorrectness: 100,
			wantTime:        100,
			wantMemory:      0,
			wantTotal:       0.7*100 + 0.2*100 + 0.1*0,
		},
		{
			name:            "zero total tests scores zero correctness",
			summary:         domain.RunSummary{Passed: 0, Total: 0, ExecutionTime: 0, MemoryKB: 0},
			wantCorrectness: 0,
			wantTime:        100,
			wantMemory:      100,
			wantTotal:       0.2*100 + 0.1*100,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Score(&tt.summary, "int main() {}", domain.LanguageCPP)
			if !almostEqual(got.Correctness, tt.wantCorrectness) {
				t.Fatalf("correctness: expected %v, got %v", tt.wantCorrectness, got.Correctness)
			}
			if !almostEqual(got.TimeEfficiency, tt.wantTime) {
				t.Fatalf("time efficiency: expected %v, got %v", tt.wantTime, got.TimeEfficiency)
			}
			if !almostEqual(got.MemoryEfficiency, tt.wantMemory) {
				t.Fatalf("memory efficiency: expected %v, got %v", tt.wantMemory, got.MemoryEfficiency)
			}
			if !almostEqual(got.Total, tt.wantTotal) {
				t.Fatalf("total: expected %v, got %v", tt.wantTotal, got.Total)
			}
		})
	}
}

func TestScoreTotalExcludesCodeQuality(t *testing.T) {
	t.Parallel()
	summary := domain.RunSummary{Passed: 2, Total: 2, ExecutionTime: 1, MemoryKB: 10000}

	plain := Score(&summary, "x", domain.LanguageCPP)
	commented := Score(&summary, "// well documented\nx", domain.LanguageCPP)

	if plain.CodeQuality == commented.CodeQuality {
		t.Fatalf("expected different code quality for commented code")
	}
	if !almostEqual(plain.Total, commented.Total) {
		t.Fatalf("total must not depend on code quality: %v vs %v", plain.Total, commented.Total)
	}
}

func TestCodeQuality(t *testing.T) {
	t.Parallel()
	long := make([]byte, 1100)
	for i := range long {
		long[i] = 'x'
	}

	tests := []struct {
		name     string
		code     string
		language domain.Language
		want     float64
	}{
		{
			name:     "short commented cpp with idiom",
			code:     "#include <iostream>\n// solve\nint main() {}",
			language: domain.LanguageCPP,
			want:     95, // 70 + 10 comment + 10 short + 5 idiom
		},
		{
			name:     "short python with def",
			code:     "def solve():\n    pass",
			language: domain.LanguagePython,
			want:     85, // 70 + 10 short + 5 idiom
		},
		{
			name:     "python comment marker is hash",
			code:     "# note\ndef solve():\n    pass",
			language: domain.LanguagePython,
			want:     95,
		},
		{
			name:     "long bare code penalized",
			code:     string(long),
			language: domain.LanguageJava,
			want:     60, // 70 - 10 long
		},
		{
			name:     "java class idiom",
			code:     "class Main {}",
			language: domain.LanguageJava,
			want:     85,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := CodeQuality(tt.code, tt.language); !almostEqual(got, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestZero(t *testing.T) {
	t.Parallel()
	z := Zero()
	if z.Total != 0 || z.Correctness != 0 || z.TimeEfficiency != 0 || z.MemoryEfficiency != 0 {
		t.Fatalf("zero score must be all zeros, got %+v", z)
	}
}
