package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimwatch/claim-analysis/pkg/config"
	"github.com/claimwatch/claim-analysis/pkg/models"
	"github.com/claimwatch/claim-analysis/pkg/resilience"
)

func completionBody(content string) string {
	body, _ := json.Marshal(map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	})
	return string(body)
}

func newTestClient(t *testing.T, baseURL string, failureThreshold int) *OpenRouterClient {
	t.Helper()
	cfg := &config.RemoteConfig{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Model:   "test-model",
		Timeout: 5,
	}
	breaker := resilience.NewBreaker(
		resilience.BuildSettings("remote-scorer-test", 60, 30, failureThreshold, 1),
		nil,
	)
	return NewOpenRouterClient(cfg, breaker, nil, nil)
}

func TestScore_ParsesVerdict(t *testing.T) {
	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		content := `Here is the assessment: {"riskScore":72,"suspiciousIndicators":["staged incident"],"riskBreakdown":"elevated","recommendedAction":"Investigate"}`
		fmt.Fprint(w, completionBody(content))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	result, err := client.Score(context.Background(), "some claim narrative", nil)

	require.NoError(t, err)
	assert.Equal(t, "Bearer test-key", gotAuth)
	assert.Equal(t, 72, result.RiskScore)
	assert.Equal(t, []string{"staged incident"}, result.Indicators)
	assert.Equal(t, "elevated", result.Breakdown)
	assert.Equal(t, models.ActionInvestigate, result.RecommendedAction)
}

func TestScore_ServerErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	_, err := client.Score(context.Background(), "some claim narrative", nil)

	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestScore_NoJSONInContentIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody("I cannot assess this claim."))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	_, err := client.Score(context.Background(), "some claim narrative", nil)

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestScore_InvalidActionIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(`{"riskScore":40,"suspiciousIndicators":[],"riskBreakdown":"","recommendedAction":"Escalate"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	_, err := client.Score(context.Background(), "some claim narrative", nil)

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestScore_OutOfRangeScoreIsMalformed(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, completionBody(`{"riskScore":140,"suspiciousIndicators":[],"riskBreakdown":"","recommendedAction":"Reject"}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 5)

	_, err := client.Score(context.Background(), "some claim narrative", nil)

	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestScore_OpenBreakerIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, 1)

	_, err := client.Score(context.Background(), "some claim narrative", nil)
	require.ErrorIs(t, err, ErrUnavailable)

	// The breaker tripped on the first failure; the next call short-circuits.
	_, err = client.Score(context.Background(), "some claim narrative", nil)
	require.ErrorIs(t, err, ErrUnavailable)
	assert.ErrorIs(t, err, resilience.ErrCircuitOpen)
}

func TestParseVerdict_EmptyIndicatorsNormalized(t *testing.T) {
	raw := []byte(completionBody(`{"riskScore":5,"riskBreakdown":"clean","recommendedAction":"Approve"}`))

	result, err := parseVerdict(raw)

	require.NoError(t, err)
	assert.NotNil(t, result.Indicators)
	assert.Empty(t, result.Indicators)
}
