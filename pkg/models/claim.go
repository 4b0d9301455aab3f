package models

// RecommendedAction is the insurer-facing disposition derived from a risk score.
type RecommendedAction string

const (
	ActionApprove     RecommendedAction = "Approve"
	ActionInvestigate RecommendedAction = "Investigate"
	ActionReject      RecommendedAction = "Reject"
)

// Risk score thresholds shared by the scoring engine and the monitoring service.
const (
	RejectThreshold      = 75
	InvestigateThreshold = 35
)

// ActionForScore maps a risk score to its recommended action.
// The mapping is monotonic: Reject >= 75 > Investigate >= 35 > Approve.
func ActionForScore(score int) RecommendedAction {
	switch {
	case score >= RejectThreshold:
		return ActionReject
	case score >= InvestigateThreshold:
		return ActionInvestigate
	default:
		return ActionApprove
	}
}

// Attachment is a supporting document submitted alongside a claim narrative.
// It is validated at the API boundary and forwarded opaquely to scorers.
type Attachment struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"-"`
}

// ClaimInput is a single claim narrative to be analyzed.
type ClaimInput struct {
	ClaimID    string      `json:"claim_id,omitempty"`
	Details    string      `json:"details"`
	Attachment *Attachment `json:"attachment,omitempty"`
}

// AnalysisResult is the outcome of scoring one claim. Once produced it is
// never mutated; the monitoring service and alert stream share the same value.
type AnalysisResult struct {
	RiskScore         int               `json:"risk_score"`
	Indicators        []string          `json:"suspicious_indicators"`
	Breakdown         string            `json:"risk_breakdown"`
	RecommendedAction RecommendedAction `json:"recommended_action"`
}

// IsFraudulent reports whether a result counts toward fraud-rate metrics.
func (r *AnalysisResult) IsFraudulent() bool {
	return r.RecommendedAction == ActionReject || r.RiskScore >= 70
}
