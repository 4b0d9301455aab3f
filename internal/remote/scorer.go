// Package remote integrates the external LLM scoring oracle. The rest of
// the service only depends on the Scorer capability; provider identity,
// authentication and response parsing stay behind it.
package remote

import (
	"context"
	"errors"

	"github.com/claimwatch/claim-analysis/pkg/models"
)

// Scorer is the outbound capability consumed by the analysis orchestrator.
type Scorer interface {
	Score(ctx context.Context, text string, attachment *models.Attachment) (*models.AnalysisResult, error)
}

var (
	// ErrUnavailable means the provider could not be reached or answered
	// with a non-success status. Always recoverable by local fallback.
	ErrUnavailable = errors.New("remote scorer unavailable")

	// ErrMalformedResponse means the provider answered but the payload did
	// not contain a valid analysis verdict.
	ErrMalformedResponse = errors.New("remote scorer returned malformed response")
)
