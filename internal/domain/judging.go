package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
)

// Language identifies a submission language. The set is closed: anything
// outside it is rejected at the boundary, before any judge call.
type Language string

const (
	LanguageCPP    Language = "cpp"
	LanguageJava   Language = "java"
	LanguagePython Language = "python"
)

// Valid reports whether the language is one of the supported tags.
func (l Language) Valid() bool {
	switch l {
	case LanguageCPP, LanguageJava, LanguagePython:
		return true
	}
	return false
}

// Verdict is the closed-set outcome of judging a submission.
type Verdict string

const (
	VerdictAccepted          Verdict = "Accepted"
	VerdictWrongAnswer       Verdict = "WrongAnswer"
	VerdictTimeLimitExceeded Verdict = "TimeLimitExceeded"
	VerdictCompilationError  Verdict = "CompilationError"
	VerdictRuntimeError      Verdict = "RuntimeError"
	VerdictInternalError     Verdict = "InternalError"
	VerdictUnknown           Verdict = "Unknown"
)

// TestResult is the outcome of running one sample test.
type TestResult struct {
	Input          string  `json:"input"`
	ExpectedOutput string  `json:"expected_output"`
	ActualOutput   string  `json:"actual_output"`
	Passed         bool    `json:"passed"`
	ExecutionTime  float64 `json:"execution_time"`
	MemoryKB       int     `json:"memory"`
	Verdict        Verdict `json:"verdict"`
	Error          string  `json:"error,omitempty"`
}

// RunSummary aggregates the results of executing every sample test for one
// submission. ExecutionTime and MemoryKB are the worst case across tests.
type RunSummary struct {
	Passed        int     `json:"passed"`
	Total         int     `json:"total"`
	ExecutionTime float64 `json:"execution_time"`
	MemoryKB      int     `json:"memory_used"`
	Verdict       Verdict `json:"verdict" gorm:"type:varchar(20)"`

	// Details are returned to the submitting client but not persisted.
	Details []TestResult `json:"details,omitempty" gorm:"-"`
}

// Score is the multi-dimensional grade of one submission. CodeQuality is a
// crude informational heuristic and is excluded from Total.
type Score struct {
	Correctness      float64 `json:"correctness"`
	TimeEfficiency   float64 `json:"time_efficiency"`
	MemoryEfficiency float64 `json:"memory_efficiency"`
	CodeQuality      float64 `json:"code_quality"`
	Total            float64 `json:"total"`
}

// SampleTest is one input/expected-output pair of a problem.
type SampleTest struct {
	Input  string `json:"input"`
	Output string `json:"output"`
}

// SampleTests is stored as a jsonb column.
type SampleTests []SampleTest

// Value implements driver.Valuer for jsonb serialization.
func (t SampleTests) Value() (driver.Value, error) {
	if t == nil {
		return "[]", nil
	}
	data, err := json.Marshal(t)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements sql.Scanner for jsonb deserialization.
func (t *SampleTests) Scan(value interface{}) error {
	if value == nil {
		*t = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		return json.Unmarshal(v, t)
	case string:
		return json.Unmarshal([]byte(v), t)
	default:
		return fmt.Errorf("unsupported type %T for SampleTests", value)
	}
}
