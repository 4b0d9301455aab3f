package monitoring

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/claimwatch/claim-analysis/pkg/models"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// AlertSeverity grades how urgent an alert is.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// Alert is one monitoring finding derived from recorded results.
type Alert struct {
	ID        string        `json:"id"`
	Severity  AlertSeverity `json:"severity"`
	Message   string        `json:"message"`
	Timestamp time.Time     `json:"timestamp"`
	ClaimID   string        `json:"claim_id,omitempty"`
}

// Metrics is an aggregate view over the full claim history, recomputed on
// every request rather than maintained incrementally.
type Metrics struct {
	TotalClaims      int      `json:"total_claims"`
	FraudulentClaims int      `json:"fraudulent_claims"`
	FraudRate        float64  `json:"fraud_rate"`
	AvgRiskScore     float64  `json:"avg_risk_score"`
	TopIndicators    []string `json:"top_indicators"`
}

// Notifier pushes alerts to live subscribers.
type Notifier interface {
	BroadcastEvent(eventType string, payload interface{})
}

const (
	maxAlerts         = 100
	patternWindow     = 10
	patternRepeatMin  = 3
	spikeWindow       = 20
	spikeRate         = 0.3
	criticalThreshold = 80
	highThreshold     = 60
	defaultAlertLimit = 10
	topIndicatorCount = 5
)

// Service owns the claim history and alert list. All access is serialized
// through its mutex; callers receive copies, never internal slices.
type Service struct {
	mu      sync.Mutex
	history []*models.AnalysisResult
	alerts  []*Alert

	// patternAlerted tracks which indicators already produced a repetition
	// alert so a sustained pattern alerts once, not on every record.
	patternAlerted map[string]bool

	notifier Notifier
	log      *zap.Logger
}

// NewService creates a monitoring service. notifier may be nil.
func NewService(notifier Notifier, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		patternAlerted: make(map[string]bool),
		notifier:       notifier,
		log:            log,
	}
}

// Record appends a result to the history and evaluates every alert rule
// synchronously: score thresholds first, then pattern repetition over the
// last 10 results, then the fraud-rate spike over the last 20.
func (s *Service) Record(result *models.AnalysisResult, claimID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append(s.history, result)
	recordedTotal.Inc()

	if result.RiskScore >= criticalThreshold {
		s.emitAlert(SeverityCritical, fmt.Sprintf("Critical fraud risk detected (%d/100)", result.RiskScore), claimID)
	} else if result.RiskScore >= highThreshold {
		s.emitAlert(SeverityHigh, fmt.Sprintf("High fraud risk detected (%d/100)", result.RiskScore), claimID)
	}

	s.checkPatternRepetition(claimID)
	s.checkFraudRateSpike(claimID)
}

// emitAlert prepends a new alert and caps the list. Callers hold the lock.
func (s *Service) emitAlert(severity AlertSeverity, message string, claimID string) {
	alert := &Alert{
		ID:        uuid.New().String(),
		Severity:  severity,
		Message:   message,
		Timestamp: time.Now().UTC(),
		ClaimID:   claimID,
	}

	s.alerts = append([]*Alert{alert}, s.alerts...)
	if len(s.alerts) > maxAlerts {
		s.alerts = s.alerts[:maxAlerts]
	}

	alertsTotal.WithLabelValues(string(severity)).Inc()
	s.log.Info("fraud alert emitted",
		zap.String("severity", string(severity)),
		zap.String("message", message),
		zap.String("claim_id", claimID),
	)

	if s.notifier != nil {
		s.notifier.BroadcastEvent("fraud_alert", alert)
	}
}

// checkPatternRepetition emits one medium alert for the first indicator
// (in first-seen order) that appears in at least 3 of the last 10 results.
// An indicator alerts again only after its count drops below the threshold.
func (s *Service) checkPatternRepetition(claimID string) {
	window := s.history
	if len(window) > patternWindow {
		window = window[len(window)-patternWindow:]
	}

	counts := make(map[string]int)
	var order []string
	for _, result := range window {
		for _, indicator := range result.Indicators {
			if _, seen := counts[indicator]; !seen {
				order = append(order, indicator)
			}
			counts[indicator]++
		}
	}

	for indicator := range s.patternAlerted {
		if counts[indicator] < patternRepeatMin {
			delete(s.patternAlerted, indicator)
		}
	}

	for _, indicator := range order {
		if counts[indicator] < patternRepeatMin || s.patternAlerted[indicator] {
			continue
		}
		s.patternAlerted[indicator] = true
		s.emitAlert(SeverityMedium, fmt.Sprintf("Pattern detected: %s appears in multiple recent claims", indicator), claimID)
		return
	}
}

// checkFraudRateSpike emits a high alert when more than 30% of the last 20
// results are flagged as fraudulent.
func (s *Service) checkFraudRateSpike(claimID string) {
	window := s.history
	if len(window) > spikeWindow {
		window = window[len(window)-spikeWindow:]
	}
	if len(window) == 0 {
		return
	}

	flagged := 0
	for _, result := range window {
		if result.IsFraudulent() {
			flagged++
		}
	}

	rate := float64(flagged) / float64(len(window))
	if rate > spikeRate {
		s.emitAlert(SeverityHigh, fmt.Sprintf("Fraud rate spike detected: %.1f%% of recent claims flagged", rate*100), claimID)
	}
}

// GetMetrics recomputes the aggregate metrics from the full history.
func (s *Service) GetMetrics() *Metrics {
	s.mu.Lock()
	defer s.mu.Unlock()

	metrics := &Metrics{
		TotalClaims:   len(s.history),
		TopIndicators: []string{},
	}

	if len(s.history) == 0 {
		return metrics
	}

	scoreSum := 0
	counts := make(map[string]int)
	var order []string

	for _, result := range s.history {
		scoreSum += result.RiskScore
		if result.IsFraudulent() {
			metrics.FraudulentClaims++
		}
		for _, indicator := range result.Indicators {
			if _, seen := counts[indicator]; !seen {
				order = append(order, indicator)
			}
			counts[indicator]++
		}
	}

	metrics.FraudRate = float64(metrics.FraudulentClaims) / float64(metrics.TotalClaims)
	metrics.AvgRiskScore = float64(scoreSum) / float64(metrics.TotalClaims)

	// Stable sort keeps first-seen order as the tie break
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topIndicatorCount {
		order = order[:topIndicatorCount]
	}
	metrics.TopIndicators = order

	return metrics
}

// GetRecentAlerts returns up to limit alerts, most recent first.
func (s *Service) GetRecentAlerts(limit int) []*Alert {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 {
		limit = defaultAlertLimit
	}
	if limit > len(s.alerts) {
		limit = len(s.alerts)
	}

	recent := make([]*Alert, limit)
	copy(recent, s.alerts[:limit])
	return recent
}

// ClearAlerts drops all retained alerts. History is unaffected.
func (s *Service) ClearAlerts() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
}

// HistorySize reports how many results have been recorded.
func (s *Service) HistorySize() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.history)
}
