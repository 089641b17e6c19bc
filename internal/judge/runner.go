package judge

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
)

// Runner executes every sample test of one submission and aggregates the
// results into a run summary.
type Runner interface {
	RunTestCases(ctx context.Context, code string, language domain.Language, tests []domain.SampleTest) (*domain.RunSummary, error)
}

// TestRunner drives an Executor over a submission's sample tests. Tests run
// sequentially with a fixed inter-call delay so the remote judge's rate
// limits are respected; parallelizing here would get the API key throttled.
type TestRunner struct {
	executor Executor
	delay    time.Duration
	perTest  time.Duration
	logger   *zap.Logger
}

// NewTestRunner creates a runner around the given executor. perTest is the
// local ceiling on one judge round-trip, enforced independently of whatever
// the remote judge promises.
func NewTestRunner(executor Executor, delay, perTest time.Duration, logger *zap.Logger) *TestRunner {
	return &TestRunner{
		executor: executor,
		delay:    delay,
		perTest:  perTest,
		logger:   logger,
	}
}

// RunTestCases runs the tests in order. A judge failure on one test marks
// that test failed and moves on; it never aborts the remaining tests. The
// only error returned is context cancellation of the whole run.
func (r *TestRunner) RunTestCases(ctx context.Context, code string, language domain.Language, tests []domain.SampleTest) (*domain.RunSummary, error) {
	// Ceiling for the whole submission, independent of the judge's promise.
	deadline := time.Duration(len(tests))*(r.perTest+r.delay) + 5*time.Second
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	summary := &domain.RunSummary{
		Total:   len(tests),
		Verdict: domain.VerdictWrongAnswer,
		Details: make([]domain.TestResult, 0, len(tests)),
	}

	var worst domain.Verdict
	var judgeFailures int
	for i, test := range tests {
		if i > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(r.delay):
			}
		}

		detail, failed := r.runOne(ctx, code, language, test)
		summary.Details = append(summary.Details, detail)
		if failed {
			judgeFailures++
		}

		if detail.Passed {
			summary.Passed++
		} else if worst == "" {
			if detail.Verdict != domain.VerdictAccepted {
				worst = detail.Verdict
			} else {
				// Judge said accepted but the trimmed outputs differ.
				worst = domain.VerdictWrongAnswer
			}
		}
		if detail.ExecutionTime > summary.ExecutionTime {
			summary.ExecutionTime = detail.ExecutionTime
		}
		if detail.MemoryKB > summary.MemoryKB {
			summary.MemoryKB = detail.MemoryKB
		}
	}

	// One unreachable test is that test's problem; a judge that failed on
	// every test is a judge outage and the whole run fails.
	if summary.Total > 0 && judgeFailures == summary.Total {
		return nil, fmt.Errorf("%w: all %d test executions failed", domain.ErrJudgeUnavailable, summary.Total)
	}

	if summary.Total > 0 && summary.Passed == summary.Total {
		summary.Verdict = domain.VerdictAccepted
	} else if worst != "" {
		summary.Verdict = worst
	}

	return summary, nil
}

// runOne executes a single test, converting executor failures into a failed
// result rather than an error. The second return reports whether the judge
// itself was unreachable for this test.
func (r *TestRunner) runOne(ctx context.Context, code string, language domain.Language, test domain.SampleTest) (domain.TestResult, bool) {
	detail := domain.TestResult{
		Input:          test.Input,
		ExpectedOutput: test.Output,
		Verdict:        domain.VerdictUnknown,
	}

	execCtx, cancel := context.WithTimeout(ctx, r.perTest)
	defer cancel()

	result, err := r.executor.Execute(execCtx, code, language, test.Input, test.Output)
	if err != nil {
		r.logger.Warn("Judge execution failed for test",
			zap.String("language", string(language)),
			zap.Error(err),
		)
		detail.Error = err.Error()
		return detail, true
	}

	detail.ActualOutput = result.Stdout
	detail.ExecutionTime = result.ExecutionTime
	detail.MemoryKB = result.MemoryKB
	detail.Verdict = result.Verdict
	if result.Stderr != "" {
		detail.Error = result.Stderr
	} else if result.CompileOutput != "" {
		detail.Error = result.CompileOutput
	}

	// A test passes only when the judge reported success and the trimmed
	// outputs match exactly.
	actual := strings.TrimSpace(result.Stdout)
	expected := strings.TrimSpace(test.Output)
	detail.Passed = result.Success && actual == expected

	return detail, false
}
