package engine

import (
	"regexp"
	"strconv"
	"strings"
)

// medicalBillThreshold is the currency-neutral amount above which a billed
// figure is treated as potential medical inflation.
const medicalBillThreshold = 100000

// PatternRule is one fraud heuristic: a predicate over the raw claim text,
// the weight it contributes to the risk score, and the indicator text
// reported when it fires.
type PatternRule struct {
	Name        string
	Weight      int
	Match       func(text string) bool
	Description string
}

var amountPattern = regexp.MustCompile(`(?i)[₹$]\s*[\d,]+|\d+\s*(rupees|dollars)`)

func matchPattern(expr string) func(string) bool {
	re := regexp.MustCompile(expr)
	return re.MatchString
}

// checkMedicalInflation extracts currency-like amounts from the text and
// reports whether any exceeds the medical billing threshold. This is the
// only rule that needs numeric extraction instead of a pure pattern match.
func checkMedicalInflation(text string) bool {
	for _, raw := range amountPattern.FindAllString(text, -1) {
		var digits strings.Builder
		for _, r := range raw {
			if r >= '0' && r <= '9' {
				digits.WriteRune(r)
			}
		}
		amount, err := strconv.Atoi(digits.String())
		if err != nil {
			continue
		}
		if amount > medicalBillThreshold {
			return true
		}
	}
	return false
}

// defaultRules returns the reference rule table. Order matters: indicators
// are reported in table order, not by severity.
func defaultRules() []PatternRule {
	return []PatternRule{
		{
			Name:        "timing_anomaly",
			Weight:      25,
			Match:       matchPattern(`(?i)claim.{0,20}(immediately|same day|within hours|right after)`),
			Description: "Claim submitted unusually quickly after incident",
		},
		{
			Name:        "round_amounts",
			Weight:      20,
			Match:       matchPattern(`(?i)₹\s*\d+[05]0{3,}|₹\s*[1-9]\.0+\s*L|\$\s*\d+[05]0{3,}|\d+[05]0{3,}\s*(rupees|dollars)`),
			Description: "Suspiciously round billing amounts",
		},
		{
			Name:        "documentation_gaps",
			Weight:      30,
			Match:       matchPattern(`(?i)(missing|lost|unavailable|no receipt|no bill|destroyed|stolen documents)`),
			Description: "Critical documentation missing or unavailable",
		},
		{
			Name:        "medical_inflation",
			Weight:      35,
			Match:       checkMedicalInflation,
			Description: "Potential medical billing inflation detected",
		},
		{
			Name:        "repeat_claimant",
			Weight:      40,
			Match:       matchPattern(`(?i)(previous claim|multiple claims|frequent claimant|history of claims)`),
			Description: "History of multiple claims",
		},
		{
			Name:        "witness_issues",
			Weight:      25,
			Match:       matchPattern(`(?i)(no witness|witnesses unavailable|family witness|friend witness)`),
			Description: "Questionable or missing witness testimony",
		},
		{
			Name:        "location_risk",
			Weight:      20,
			Match:       matchPattern(`(?i)(remote area|isolated location|no CCTV|dark area)`),
			Description: "Incident occurred in high-risk location",
		},
		{
			Name:        "policy_timing",
			Weight:      35,
			Match:       matchPattern(`(?i)(new policy|recent policy|just purchased|within days)`),
			Description: "Claim on recently purchased policy",
		},
	}
}

// Evaluator runs the fixed pattern rule table over claim text. It is
// stateless and safe for concurrent use.
type Evaluator struct {
	rules []PatternRule
}

// NewEvaluator creates an evaluator with the reference rule set
func NewEvaluator() *Evaluator {
	return &Evaluator{rules: defaultRules()}
}

// Evaluate applies every rule in table order and returns the triggered
// indicator descriptions plus the summed score contribution.
func (e *Evaluator) Evaluate(text string) ([]string, int) {
	var indicators []string
	contribution := 0

	for _, rule := range e.rules {
		if rule.Match(text) {
			contribution += rule.Weight
			indicators = append(indicators, rule.Description)
		}
	}

	return indicators, contribution
}
