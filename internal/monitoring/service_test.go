package monitoring

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimwatch/claim-analysis/pkg/models"
)

func makeResult(score int, indicators ...string) *models.AnalysisResult {
	return &models.AnalysisResult{
		RiskScore:         score,
		Indicators:        indicators,
		RecommendedAction: models.ActionForScore(score),
	}
}

func alertsBySeverity(alerts []*Alert, severity AlertSeverity) []*Alert {
	var matched []*Alert
	for _, alert := range alerts {
		if alert.Severity == severity {
			matched = append(matched, alert)
		}
	}
	return matched
}

func TestRecord_CriticalAlert(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(85), "claim-1")

	alerts := alertsBySeverity(service.GetRecentAlerts(0), SeverityCritical)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Critical fraud risk detected (85/100)", alerts[0].Message)
	assert.Equal(t, "claim-1", alerts[0].ClaimID)
	assert.NotEmpty(t, alerts[0].ID)
}

func TestRecord_HighAlert(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(65), "claim-2")

	alerts := service.GetRecentAlerts(0)
	require.Len(t, alerts, 1)
	assert.Equal(t, SeverityHigh, alerts[0].Severity)
	assert.Equal(t, "High fraud risk detected (65/100)", alerts[0].Message)
}

func TestRecord_NoAlertBelowThresholds(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(59), "claim-3")

	assert.Empty(t, service.GetRecentAlerts(0))
}

func TestRecord_PatternAlertFiresExactlyOnce(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 10; i++ {
		service.Record(makeResult(10, "Vague claim details"), fmt.Sprintf("claim-%d", i))
	}

	alerts := alertsBySeverity(service.GetRecentAlerts(100), SeverityMedium)
	require.Len(t, alerts, 1)
	assert.Equal(t, "Pattern detected: Vague claim details appears in multiple recent claims", alerts[0].Message)
}

func TestRecord_PatternAlertRearmsAfterIndicatorFades(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 3; i++ {
		service.Record(makeResult(10, "History of multiple claims"), "claim-a")
	}
	require.Len(t, alertsBySeverity(service.GetRecentAlerts(100), SeverityMedium), 1)

	// Push the indicator out of the rolling window, then bring it back.
	for i := 0; i < 10; i++ {
		service.Record(makeResult(10), "claim-b")
	}
	for i := 0; i < 3; i++ {
		service.Record(makeResult(10, "History of multiple claims"), "claim-c")
	}

	assert.Len(t, alertsBySeverity(service.GetRecentAlerts(100), SeverityMedium), 2)
}

func TestRecord_PatternAlertNamesFirstSeenIndicator(t *testing.T) {
	service := NewService(nil, nil)

	// Both indicators cross the threshold on the same record; the one seen
	// first in the window wins.
	for i := 0; i < 2; i++ {
		service.Record(makeResult(10, "Vague claim details", "History of multiple claims"), "claim-x")
	}
	service.Record(makeResult(10, "Vague claim details", "History of multiple claims"), "claim-x")

	alerts := alertsBySeverity(service.GetRecentAlerts(100), SeverityMedium)
	require.NotEmpty(t, alerts)
	assert.Contains(t, alerts[len(alerts)-1].Message, "Vague claim details")
}

func TestRecord_FraudRateSpike(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 13; i++ {
		service.Record(makeResult(10), "clean")
	}
	for i := 0; i < 7; i++ {
		service.Record(makeResult(90), "flagged")
	}

	var spikes int
	for _, alert := range service.GetRecentAlerts(100) {
		if strings.HasPrefix(alert.Message, "Fraud rate spike detected") {
			spikes++
		}
	}
	assert.GreaterOrEqual(t, spikes, 1)
}

func TestRecord_NoSpikeBelowRate(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 15; i++ {
		service.Record(makeResult(10), "clean")
	}
	for i := 0; i < 5; i++ {
		service.Record(makeResult(72), "flagged")
	}

	for _, alert := range service.GetRecentAlerts(100) {
		assert.NotContains(t, alert.Message, "Fraud rate spike")
	}
}

func TestRecord_AlertListCappedAt100(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 150; i++ {
		service.Record(makeResult(85), fmt.Sprintf("claim-%d", i))
	}

	alerts := service.GetRecentAlerts(500)
	assert.Len(t, alerts, 100)
	assert.Equal(t, "claim-149", alerts[0].ClaimID)
}

func TestGetMetrics_Empty(t *testing.T) {
	service := NewService(nil, nil)

	metrics := service.GetMetrics()

	assert.Equal(t, 0, metrics.TotalClaims)
	assert.Equal(t, 0, metrics.FraudulentClaims)
	assert.Zero(t, metrics.FraudRate)
	assert.Zero(t, metrics.AvgRiskScore)
	assert.Empty(t, metrics.TopIndicators)
}

func TestGetMetrics_Aggregates(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(10, "alpha"), "c1")
	service.Record(makeResult(50, "alpha", "beta"), "c2")
	service.Record(makeResult(90, "gamma"), "c3")

	metrics := service.GetMetrics()

	assert.Equal(t, 3, metrics.TotalClaims)
	assert.Equal(t, 1, metrics.FraudulentClaims)
	assert.InDelta(t, 1.0/3.0, metrics.FraudRate, 1e-9)
	assert.InDelta(t, 50.0, metrics.AvgRiskScore, 1e-9)
	// alpha appears twice; beta and gamma tie and keep first-seen order
	assert.Equal(t, []string{"alpha", "beta", "gamma"}, metrics.TopIndicators)
}

func TestGetMetrics_TopIndicatorsLimitedToFive(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(10, "a", "b", "c", "d", "e", "f", "g"), "c1")

	metrics := service.GetMetrics()
	assert.Len(t, metrics.TopIndicators, 5)
	assert.Equal(t, []string{"a", "b", "c", "d", "e"}, metrics.TopIndicators)
}

func TestGetRecentAlerts_DefaultLimit(t *testing.T) {
	service := NewService(nil, nil)

	for i := 0; i < 15; i++ {
		service.Record(makeResult(85), fmt.Sprintf("claim-%d", i))
	}

	assert.Len(t, service.GetRecentAlerts(0), 10)
	assert.Len(t, service.GetRecentAlerts(3), 3)
}

func TestClearAlerts(t *testing.T) {
	service := NewService(nil, nil)

	service.Record(makeResult(85), "claim-1")
	require.NotEmpty(t, service.GetRecentAlerts(0))

	service.ClearAlerts()

	assert.Empty(t, service.GetRecentAlerts(0))
	assert.Equal(t, 1, service.HistorySize())
}
