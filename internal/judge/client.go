package judge

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/codeclash/backend/internal/domain"
	"github.com/codeclash/backend/internal/infrastructure"
)

// languageIDs maps supported language tags to Judge0 runtime ids.
var languageIDs = map[domain.Language]int{
	domain.LanguageCPP:    54, // C++ (GCC 9.2.0)
	domain.LanguageJava:   62, // Java (OpenJDK 13.0.1)
	domain.LanguagePython: 71, // Python (3.8.1)
}

// statusVerdicts maps Judge0 numeric status ids to the closed verdict set.
// Ids 7 through 12 are the runtime-error family (SIGSEGV, SIGXFSZ, ...).
var statusVerdicts = map[int]domain.Verdict{
	3:  domain.VerdictAccepted,
	4:  domain.VerdictWrongAnswer,
	5:  domain.VerdictTimeLimitExceeded,
	6:  domain.VerdictCompilationError,
	7:  domain.VerdictRuntimeError,
	8:  domain.VerdictRuntimeError,
	9:  domain.VerdictRuntimeError,
	10: domain.VerdictRuntimeError,
	11: domain.VerdictRuntimeError,
	12: domain.VerdictRuntimeError,
	13: domain.VerdictInternalError,
	14: domain.VerdictRuntimeError, // exec format error
}

// LanguageID resolves the Judge0 runtime id for a language tag.
func LanguageID(language domain.Language) (int, error) {
	id, ok := languageIDs[language]
	if !ok {
		return 0, domain.ErrUnsupportedLanguage
	}
	return id, nil
}

// VerdictForStatus maps a remote status id to a verdict. Unknown ids map
// to VerdictUnknown, never to Accepted.
func VerdictForStatus(statusID int) domain.Verdict {
	if v, ok := statusVerdicts[statusID]; ok {
		return v
	}
	return domain.VerdictUnknown
}

// ExecutionResult is one decoded judge response.
type ExecutionResult struct {
	StatusID      int
	Status        string
	Verdict       domain.Verdict
	ExecutionTime float64 // seconds
	MemoryKB      int
	Stdout        string
	Stderr        string
	CompileOutput string
	Success       bool
}

// Executor submits one (code, language, stdin, expected output) unit to a
// remote execution service. Implementations are stateless per call; any
// transport or judge-side failure surfaces as domain.ErrJudgeUnavailable.
type Executor interface {
	Execute(ctx context.Context, sourceCode string, language domain.Language, stdin, expectedOutput string) (*ExecutionResult, error)
}

// Client talks to a Judge0-compatible service over HTTP.
type Client struct {
	httpClient *http.Client
	config     *infrastructure.JudgeConfig
	metrics    *infrastructure.TelemetryMetrics
	logger     *zap.Logger
}

// NewClient creates a judge client. metrics may be nil in tests.
func NewClient(config *infrastructure.JudgeConfig, metrics *infrastructure.TelemetryMetrics, logger *zap.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: config.RequestTimeout},
		config:     config,
		metrics:    metrics,
		logger:     logger,
	}
}

// submissionRequest is the Judge0 wire format. All payloads are base64
// encoded; the transport is never trusted with raw text.
type submissionRequest struct {
	SourceCode     string  `json:"source_code"`
	LanguageID     int     `json:"language_id"`
	Stdin          string  `json:"stdin,omitempty"`
	ExpectedOutput string  `json:"expected_output,omitempty"`
	CPUTimeLimit   float64 `json:"cpu_time_limit"`
	MemoryLimit    int     `json:"memory_limit"`
	WallTimeLimit  float64 `json:"wall_time_limit"`
}

type submissionResponse struct {
	Status *struct {
		ID          int    `json:"id"`
		Description string `json:"description"`
	} `json:"status"`
	Time          string `json:"time"`
	Memory        int    `json:"memory"`
	Stdout        string `json:"stdout"`
	Stderr        string `json:"stderr"`
	CompileOutput string `json:"compile_output"`
}

// Execute submits one unit of work and waits for the verdict.
func (c *Client) Execute(ctx context.Context, sourceCode string, language domain.Language, stdin, expectedOutput string) (*ExecutionResult, error) {
	languageID, err := LanguageID(language)
	if err != nil {
		return nil, err
	}

	payload := submissionRequest{
		SourceCode:    base64.StdEncoding.EncodeToString([]byte(sourceCode)),
		LanguageID:    languageID,
		CPUTimeLimit:  c.config.CPUTimeLimit,
		MemoryLimit:   c.config.MemoryLimitKB,
		WallTimeLimit: c.config.WallTimeLimit,
	}
	if stdin != "" {
		payload.Stdin = base64.StdEncoding.EncodeToString([]byte(stdin))
	}
	if expectedOutput != "" {
		payload.ExpectedOutput = base64.StdEncoding.EncodeToString([]byte(expectedOutput))
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrJudgeUnavailable, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.config.RequestTimeout)
	defer cancel()

	url := c.config.URL + "/submissions?base64_encoded=true&wait=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", domain.ErrJudgeUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.config.APIKey != "" {
		req.Header.Set("X-RapidAPI-Key", c.config.APIKey)
		req.Header.Set("X-RapidAPI-Host", c.config.APIHost)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrJudgeUnavailable, err)
	}
	defer resp.Body.Close()

	c.recordDuration(ctx, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.logger.Warn("Judge returned non-success status",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("body", snippet),
		)
		return nil, fmt.Errorf("%w: judge returned HTTP %d", domain.ErrJudgeUnavailable, resp.StatusCode)
	}

	var decoded submissionResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", domain.ErrJudgeUnavailable, err)
	}

	return decodeResult(&decoded), nil
}

// decodeResult converts the wire response into an ExecutionResult,
// decoding the base64 output fields.
func decodeResult(resp *submissionResponse) *ExecutionResult {
	result := &ExecutionResult{
		Verdict:  domain.VerdictUnknown,
		MemoryKB: resp.Memory,
	}
	if resp.Status != nil {
		result.StatusID = resp.Status.ID
		result.Status = resp.Status.Description
		result.Verdict = VerdictForStatus(resp.Status.ID)
	}
	if t, err := parseFloat(resp.Time); err == nil {
		result.ExecutionTime = t
	}
	result.Stdout = decodeBase64(resp.Stdout)
	result.Stderr = decodeBase64(resp.Stderr)
	result.CompileOutput = decodeBase64(resp.CompileOutput)
	result.Success = result.Verdict == domain.VerdictAccepted
	return result
}

func (c *Client) recordDuration(ctx context.Context, d time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.JudgeRequestDuration.Record(ctx, d.Seconds(), metric.WithAttributes())
}

func decodeBase64(s string) string {
	if s == "" {
		return ""
	}
	data, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		// Some deployments return plain text despite base64_encoded=true.
		return s
	}
	return string(data)
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}
