package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"safereport/internal/config"
	"safereport/internal/models"
	"safereport/internal/observability"
	contextutils "safereport/internal/utils"

	"github.com/sony/gobreaker"
	"github.com/xeipuuv/gojsonschema"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/attribute"
)

// ScoringRequest is everything the oracle is told about one report
type ScoringRequest struct {
	ReportID   string
	Text       string
	UserID     *string
	MediaFiles []string
	// Credibility is the reporter's stored score, nil for anonymous or unknown reporters
	Credibility *float64
	// History holds earlier descriptions by the same reporter, newest first
	History []string
}

// ScoringServiceInterface turns a report into an Analysis. It never fails:
// any oracle problem yields the fallback record.
type ScoringServiceInterface interface {
	Analyze(ctx context.Context, req ScoringRequest) *models.Analysis
	BreakerState() string
}

type oracleHistoryItem struct {
	Text string `json:"text"`
}

type oracleRequest struct {
	ReportID        string              `json:"reportId"`
	Text            string              `json:"text"`
	UserID          *string             `json:"userId"`
	MediaFiles      []string            `json:"mediaFiles"`
	UserCredibility float64             `json:"userCredibility"`
	ReportHistory   []oracleHistoryItem `json:"reportHistory"`
}

type oracleResponse struct {
	TextSeverityScore    float64 `json:"textSeverityScore"`
	MediaSeverityScore   float64 `json:"mediaSeverityScore"`
	UserCredibilityScore float64 `json:"userCredibilityScore"`
	SpamProbability      float64 `json:"spamProbability"`
	EmergencyScore       float64 `json:"emergencyScore"`
	AINotes              *string `json:"aiNotes"`
}

const oracleResponseSchema = `{
  "type": "object",
  "required": ["textSeverityScore", "mediaSeverityScore", "userCredibilityScore", "spamProbability", "emergencyScore"],
  "properties": {
    "textSeverityScore": {"type": "number"},
    "mediaSeverityScore": {"type": "number"},
    "userCredibilityScore": {"type": "number"},
    "spamProbability": {"type": "number"},
    "emergencyScore": {"type": "number"},
    "aiNotes": {"type": ["string", "null"]}
  }
}`

// ScoringService calls the external scoring oracle behind a circuit breaker
type ScoringService struct {
	cfg      config.OracleConfig
	client   *http.Client
	breaker  *gobreaker.CircuitBreaker
	schema   *gojsonschema.Schema
	logger   *observability.Logger
	metrics  *observability.ReportMetrics
	endpoint string
}

var _ ScoringServiceInterface = (*ScoringService)(nil)

// NewScoringService creates a new ScoringService instance
func NewScoringService(cfg config.OracleConfig, logger *observability.Logger, metrics *observability.ReportMetrics) *ScoringService {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(oracleResponseSchema))
	if err != nil {
		panic(fmt.Sprintf("invalid oracle response schema: %v", err))
	}

	s := &ScoringService{
		cfg: cfg,
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		schema:   schema,
		logger:   logger,
		metrics:  metrics,
		endpoint: strings.TrimRight(cfg.URL, "/") + "/analyze",
	}

	if !cfg.BreakerDisabled {
		s.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "scoring-oracle",
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
				return counts.Requests >= cfg.BreakerMinRequests && failureRatio >= cfg.BreakerFailureRatio
			},
			OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
				logger.Warn(context.Background(), "Circuit breaker state changed", map[string]interface{}{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				})
			},
		})
	}

	logger.Info(context.Background(), "Scoring oracle configured", map[string]interface{}{
		"endpoint": s.endpoint,
		"timeout":  cfg.Timeout.String(),
		"api_key":  contextutils.MaskAPIKey(cfg.APIKey),
		"breaker":  !cfg.BreakerDisabled,
	})

	return s
}

// BreakerState returns "closed", "half-open", "open" or "disabled"
func (s *ScoringService) BreakerState() string {
	if s.breaker == nil {
		return "disabled"
	}
	return s.breaker.State().String()
}

// Analyze scores a report. Oracle failures are logged and replaced by the fallback analysis.
func (s *ScoringService) Analyze(ctx context.Context, req ScoringRequest) *models.Analysis {
	ctx, span := observability.TraceScoringFunction(ctx, "analyze",
		observability.AttributeReportID(req.ReportID),
		observability.AttributeMediaCount(len(req.MediaFiles)),
		attribute.Bool("oracle.anonymous", req.UserID == nil),
	)
	defer span.End()

	start := time.Now()
	resp, err := s.execute(ctx, req)
	elapsed := time.Since(start)

	if err != nil {
		reason := fallbackReason(err)
		s.logger.Warn(ctx, "Scoring oracle unavailable, using fallback analysis", map[string]interface{}{
			"report_id": req.ReportID,
			"reason":    reason,
			"error":     err.Error(),
			"elapsed":   elapsed.String(),
		})
		s.metrics.RecordOracleCall(ctx, observability.OracleOutcomeFallback, elapsed)
		span.SetAttributes(attribute.Bool("oracle.fallback", true), attribute.String("oracle.fallback_reason", reason))
		return models.FallbackAnalysis(req.ReportID, req.Credibility, reason)
	}

	analysis := s.toAnalysis(ctx, req.ReportID, resp)
	outcome := observability.OracleOutcomeOK
	if analysis.IsSpam() {
		outcome = observability.OracleOutcomeSpam
	}
	s.metrics.RecordOracleCall(ctx, outcome, elapsed)
	span.SetAttributes(
		attribute.Bool("oracle.fallback", false),
		observability.AttributeEmergencyScore(analysis.EmergencyScore),
		attribute.Bool("oracle.spam", analysis.IsSpam()),
	)
	return analysis
}

func (s *ScoringService) execute(ctx context.Context, req ScoringRequest) (*oracleResponse, error) {
	if s.cfg.URL == "" {
		return nil, contextutils.WrapError(contextutils.ErrOracleUnavailable, "oracle not configured")
	}
	if s.breaker == nil {
		return s.call(ctx, req)
	}

	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.call(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*oracleResponse), nil
}

func (s *ScoringService) call(ctx context.Context, req ScoringRequest) (*oracleResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	payload, err := json.Marshal(s.buildRequest(req))
	if err != nil {
		return nil, contextutils.WrapError(err, "failed to marshal oracle request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, contextutils.WrapError(contextutils.ErrOracleUnavailable, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	httpResp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeOracleUnavailable, contextutils.SeverityWarn,
			"oracle request failed", err.Error(), err)
	}
	defer func() {
		if closeErr := httpResp.Body.Close(); closeErr != nil {
			s.logger.Warn(ctx, "Failed to close oracle response body", map[string]interface{}{"error": closeErr.Error()})
		}
	}()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, s.cfg.MaxResponseBytes+1))
	if err != nil {
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeOracleUnavailable, contextutils.SeverityWarn,
			"failed to read oracle response", err.Error(), err)
	}

	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeOracleUnavailable, contextutils.SeverityWarn,
			fmt.Sprintf("oracle returned status %d", httpResp.StatusCode), "")
	}
	if int64(len(body)) > s.cfg.MaxResponseBytes {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeOracleInvalidResponse, contextutils.SeverityWarn,
			"oracle response too large", fmt.Sprintf("limit %d bytes", s.cfg.MaxResponseBytes))
	}

	return s.decode(body)
}

func (s *ScoringService) buildRequest(req ScoringRequest) oracleRequest {
	credibility := models.DefaultCredibility
	if req.Credibility != nil {
		credibility = models.ClampCredibility(*req.Credibility)
	}

	mediaFiles := req.MediaFiles
	if mediaFiles == nil {
		mediaFiles = []string{}
	}

	history := make([]oracleHistoryItem, 0, len(req.History))
	for _, text := range req.History {
		if s.cfg.HistorySize > 0 && len(history) >= s.cfg.HistorySize {
			break
		}
		history = append(history, oracleHistoryItem{Text: text})
	}

	return oracleRequest{
		ReportID:        req.ReportID,
		Text:            req.Text,
		UserID:          req.UserID,
		MediaFiles:      mediaFiles,
		UserCredibility: credibility,
		ReportHistory:   history,
	}
}

func (s *ScoringService) decode(body []byte) (*oracleResponse, error) {
	if !json.Valid(body) {
		return nil, contextutils.NewAppError(contextutils.ErrorCodeOracleInvalidResponse, contextutils.SeverityWarn,
			"oracle response is not JSON", "")
	}

	result, err := s.schema.Validate(gojsonschema.NewBytesLoader(body))
	if err != nil {
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeOracleInvalidResponse, contextutils.SeverityWarn,
			"oracle response could not be validated", err.Error(), err)
	}
	if !result.Valid() {
		problems := make([]string, 0, len(result.Errors()))
		for _, validationErr := range result.Errors() {
			problems = append(problems, fmt.Sprintf("%s: %s", validationErr.Field(), validationErr.Description()))
		}
		return nil, contextutils.NewAppError(contextutils.ErrorCodeOracleInvalidResponse, contextutils.SeverityWarn,
			"oracle response failed schema validation", strings.Join(problems, "; "))
	}

	var resp oracleResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, contextutils.NewAppErrorWithCause(contextutils.ErrorCodeOracleInvalidResponse, contextutils.SeverityWarn,
			"failed to decode oracle response", err.Error(), err)
	}
	return &resp, nil
}

// toAnalysis range-checks the oracle's numbers. The composite is kept as the oracle computed it.
func (s *ScoringService) toAnalysis(ctx context.Context, reportID string, resp *oracleResponse) *models.Analysis {
	clampField := func(name string, value float64, clamp func(float64) float64) float64 {
		clamped := clamp(value)
		if clamped != value {
			s.logger.Warn(ctx, "Oracle score out of range, clamped", map[string]interface{}{
				"report_id": reportID,
				"field":     name,
				"value":     value,
				"clamped":   clamped,
			})
		}
		return clamped
	}

	analysis := &models.Analysis{
		ReportID:             reportID,
		TextSeverityScore:    clampField("textSeverityScore", resp.TextSeverityScore, models.ClampSeverity),
		MediaSeverityScore:   clampField("mediaSeverityScore", resp.MediaSeverityScore, models.ClampSeverity),
		UserCredibilityScore: clampField("userCredibilityScore", resp.UserCredibilityScore, models.ClampCredibility),
		SpamProbability:      clampField("spamProbability", resp.SpamProbability, models.ClampProbability),
		EmergencyScore:       clampField("emergencyScore", resp.EmergencyScore, models.ClampEmergencyScore),
	}
	if resp.AINotes != nil {
		analysis.AINotes = *resp.AINotes
	}

	if !analysis.CompositeMatches() {
		expected := analysis.ExpectedEmergencyScore()
		s.logger.Warn(ctx, "Oracle composite differs from weighted components", map[string]interface{}{
			"report_id":  reportID,
			"oracle":     analysis.EmergencyScore,
			"expected":   expected,
			"difference": math.Abs(analysis.EmergencyScore - expected),
		})
	}

	return analysis
}

// fallbackReason is the short cause recorded in the fallback notes
func fallbackReason(err error) string {
	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return "circuit open"
	case errors.Is(err, context.DeadlineExceeded), isTimeout(err):
		return "timeout"
	}

	var appErr *contextutils.AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

func isTimeout(err error) bool {
	var timeout interface{ Timeout() bool }
	return errors.As(err, &timeout) && timeout.Timeout()
}
