package engine

import (
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/claimwatch/claim-analysis/pkg/models"
)

// neutralText is long enough to pass the detail heuristics and avoids
// every pattern and keyword the engine scores on.
const neutralText = "The package arrived at the warehouse on Tuesday morning and the team " +
	"unloaded it onto the dock before moving it into the storage section where " +
	"it stayed until the following week without anyone touching it again."

func newTestEngine(seed int64) *Engine {
	return NewEngine(NewEvaluator(), rand.New(rand.NewSource(seed)))
}

func TestAnalyze_BaseScoreRange(t *testing.T) {
	eng := newTestEngine(1)

	for i := 0; i < 50; i++ {
		result, err := eng.Analyze(neutralText, nil)

		require.NoError(t, err)
		assert.GreaterOrEqual(t, result.RiskScore, 5)
		assert.LessOrEqual(t, result.RiskScore, 15)
		assert.Equal(t, models.ActionApprove, result.RecommendedAction)
	}
}

func TestAnalyze_PlaceholderIndicatorWhenNothingFires(t *testing.T) {
	eng := newTestEngine(1)

	result, err := eng.Analyze(neutralText, nil)

	require.NoError(t, err)
	require.Len(t, result.Indicators, 1)
	assert.Equal(t, PlaceholderIndicator, result.Indicators[0])
}

func TestAnalyze_SameSeedProducesIdenticalResults(t *testing.T) {
	first, err := newTestEngine(42).Analyze(neutralText, nil)
	require.NoError(t, err)

	second, err := newTestEngine(42).Analyze(neutralText, nil)
	require.NoError(t, err)

	assert.Equal(t, first.RiskScore, second.RiskScore)
	assert.Equal(t, first.Indicators, second.Indicators)
	assert.Equal(t, first.Breakdown, second.Breakdown)
	assert.Equal(t, first.RecommendedAction, second.RecommendedAction)
}

func TestAnalyze_ScoreClampedAt100(t *testing.T) {
	eng := newTestEngine(7)

	// Stacks enough rules and heuristics to push the raw total past 100
	text := "Desperate claimant with a history of multiple claims filed this claim immediately " +
		"on a new policy, the receipt is missing, there was no witness, it happened in a " +
		"remote area, and the hospital somehow billed ₹500,000 for the accident."

	result, err := eng.Analyze(text, nil)

	require.NoError(t, err)
	assert.Equal(t, 100, result.RiskScore)
	assert.Equal(t, models.ActionReject, result.RecommendedAction)
}

func TestAnalyze_EmotionalAndHedgingHeuristics(t *testing.T) {
	eng := newTestEngine(3)

	text := "It was an urgent situation and the driver was maybe going too fast when the truck " +
		"rolled down the hill past the fence and came to rest near the barn on the far side " +
		"of the field where the neighbors keep their equipment stored through winter."

	result, err := eng.Analyze(text, nil)

	require.NoError(t, err)
	assert.Contains(t, result.Indicators, "Emotional manipulation detected")
	assert.Contains(t, result.Indicators, "Vague claim details")
}

func TestAnalyze_ShortTextFlagged(t *testing.T) {
	eng := newTestEngine(3)

	result, err := eng.Analyze("The bike fell over.", nil)

	require.NoError(t, err)
	assert.Contains(t, result.Indicators, "Insufficient claim details provided")
}

func TestAnalyze_VerboseTextFlagged(t *testing.T) {
	eng := newTestEngine(3)

	text := strings.Repeat("the shipment sat in the yard for another day ", 25)

	result, err := eng.Analyze(text, nil)

	require.NoError(t, err)
	assert.Contains(t, result.Indicators, "Unusually verbose claim description")
}

func TestAnalyze_BreakdownContents(t *testing.T) {
	eng := newTestEngine(9)

	text := "The customer with multiple claims says the receipt is missing " +
		"and nobody at the office remembers seeing the delivery arrive that afternoon " +
		"even though the gate log shows a truck entering before noon."

	result, err := eng.Analyze(text, nil)

	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(result.Breakdown, "FRAUD RISK ASSESSMENT REPORT\n"))
	assert.Contains(t, result.Breakdown, "Overall Risk Score:")
	assert.Contains(t, result.Breakdown, "SCORING BREAKDOWN:")
	assert.Contains(t, result.Breakdown, "DETAILED FINDINGS:")
	assert.Contains(t, result.Breakdown, "1. Critical documentation missing or unavailable")
	assert.Contains(t, result.Breakdown, "2. History of multiple claims")
	assert.Contains(t, result.Breakdown, "CLAIM ANALYSIS:")
	assert.Contains(t, result.Breakdown, "RECOMMENDATION:")
}

func TestAnalyze_AttachmentDoesNotAffectScore(t *testing.T) {
	attachment := &models.Attachment{MimeType: "image/png", Data: []byte{1, 2, 3}}

	withAttachment, err := newTestEngine(11).Analyze(neutralText, attachment)
	require.NoError(t, err)

	without, err := newTestEngine(11).Analyze(neutralText, nil)
	require.NoError(t, err)

	assert.Equal(t, without, withAttachment)
}
