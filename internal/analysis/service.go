package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/claimwatch/claim-analysis/pkg/models"
	"go.uber.org/zap"
)

// fingerprintLen is how many leading characters of the claim text form the
// deduplication key. Deliberately weak: two claims sharing a prefix
// coalesce. Kept for compatibility with existing consumers.
const fingerprintLen = 50

var (
	// ErrInvalidInput is returned for empty or whitespace-only claim text,
	// before any scoring starts.
	ErrInvalidInput = errors.New("claim text must not be empty")

	// ErrBothSourcesFailed is surfaced when the local engine and the remote
	// gateway both fail for one request. Fatal to that request only.
	ErrBothSourcesFailed = errors.New("both analysis sources failed")
)

// LocalScorer is the deterministic in-process engine.
type LocalScorer interface {
	Analyze(text string, attachment *models.Attachment) (*models.AnalysisResult, error)
}

// RemoteScorer is the external scoring oracle.
type RemoteScorer interface {
	Score(ctx context.Context, text string, attachment *models.Attachment) (*models.AnalysisResult, error)
}

// Recorder consumes every produced result, typically the monitoring service.
type Recorder interface {
	Record(result *models.AnalysisResult, claimID string)
}

// Notifier pushes completion events to live subscribers.
type Notifier interface {
	BroadcastEvent(eventType string, payload interface{})
}

// Config holds orchestrator tuning.
type Config struct {
	// RemoteTimeout bounds the only unbounded-latency call. Expiry fails
	// the remote source for that request, never the process.
	RemoteTimeout time.Duration
}

// pendingAnalysis is one in-flight computation shared by every caller
// whose claim text maps to the same fingerprint.
type pendingAnalysis struct {
	done   chan struct{}
	result *models.AnalysisResult
	err    error
}

// Service coalesces concurrent identical requests and arbitrates between
// the local engine and the remote gateway.
type Service struct {
	local    LocalScorer
	remote   RemoteScorer
	monitor  Recorder
	notifier Notifier
	cfg      Config
	log      *zap.Logger

	mu      sync.Mutex
	pending map[string]*pendingAnalysis
}

// NewService creates the analysis orchestrator. monitor and notifier may be
// nil; remote may be nil when remote scoring is disabled, in which case
// every request resolves from the local engine.
func NewService(local LocalScorer, remote RemoteScorer, monitor Recorder, notifier Notifier, cfg Config, log *zap.Logger) *Service {
	if cfg.RemoteTimeout <= 0 {
		cfg.RemoteTimeout = 20 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		local:    local,
		remote:   remote,
		monitor:  monitor,
		notifier: notifier,
		cfg:      cfg,
		log:      log,
		pending:  make(map[string]*pendingAnalysis),
	}
}

// fingerprint derives the coalescing key from the leading claim text.
func fingerprint(text string) string {
	runes := []rune(text)
	if len(runes) > fingerprintLen {
		runes = runes[:fingerprintLen]
	}
	return string(runes)
}

// AnalyzeFast scores one claim, sharing any in-flight computation with the
// same fingerprint. Cancelling ctx detaches only this caller; the shared
// computation keeps running for other waiters.
func (s *Service) AnalyzeFast(ctx context.Context, input models.ClaimInput) (*models.AnalysisResult, error) {
	if strings.TrimSpace(input.Details) == "" {
		return nil, ErrInvalidInput
	}

	key := fingerprint(input.Details)

	s.mu.Lock()
	if call, ok := s.pending[key]; ok {
		s.mu.Unlock()
		coalescedTotal.Inc()
		return s.wait(ctx, call)
	}

	call := &pendingAnalysis{done: make(chan struct{})}
	s.pending[key] = call
	s.mu.Unlock()

	// The computation runs detached from the caller's context so that one
	// waiter's cancellation cannot abort it for the others.
	go s.run(call, key, input)

	return s.wait(ctx, call)
}

func (s *Service) wait(ctx context.Context, call *pendingAnalysis) (*models.AnalysisResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-call.done:
		return call.result, call.err
	}
}

// run executes one shared computation: both sources concurrently, wait for
// both, pick by policy, then unregister before resolving any waiter.
func (s *Service) run(call *pendingAnalysis, key string, input models.ClaimInput) {
	start := time.Now()

	var (
		localResult, remoteResult *models.AnalysisResult
		localErr, remoteErr       error
	)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		localResult, localErr = s.local.Analyze(input.Details, input.Attachment)
	}()

	go func() {
		defer wg.Done()
		if s.remote == nil {
			remoteErr = errors.New("remote scoring disabled")
			return
		}
		rctx, cancel := context.WithTimeout(context.Background(), s.cfg.RemoteTimeout)
		defer cancel()
		remoteResult, remoteErr = s.remote.Score(rctx, input.Details, input.Attachment)
	}()

	// Both sources always run to completion; the remote result overrides a
	// local success by policy, so cancelling the loser would change nothing
	// except observable latency.
	wg.Wait()

	result, err := selectResult(localResult, localErr, remoteResult, remoteErr)

	source := "remote"
	if err == nil && result == localResult {
		source = "local"
	}

	// Unregister before any waiter observes the outcome so a follow-up
	// request with the same fingerprint starts a fresh computation.
	s.mu.Lock()
	delete(s.pending, key)
	s.mu.Unlock()

	if err != nil {
		analysisFailuresTotal.Inc()
		s.log.Warn("claim analysis failed",
			zap.String("claim_id", input.ClaimID),
			zap.Error(err),
		)
	} else {
		analysesTotal.WithLabelValues(source, string(result.RecommendedAction)).Inc()
		analysisDuration.WithLabelValues(source).Observe(time.Since(start).Seconds())

		if s.monitor != nil {
			s.monitor.Record(result, input.ClaimID)
		}
		if s.notifier != nil {
			s.notifier.BroadcastEvent("analysis_completed", completionEvent{
				ClaimID:           input.ClaimID,
				RiskScore:         result.RiskScore,
				RecommendedAction: result.RecommendedAction,
				Source:            source,
			})
		}
	}

	call.result, call.err = result, err
	close(call.done)
}

// selectResult applies the fixed precedence policy: a remote success is
// authoritative, a local success is pure fallback, a double failure
// aggregates both causes.
func selectResult(localResult *models.AnalysisResult, localErr error, remoteResult *models.AnalysisResult, remoteErr error) (*models.AnalysisResult, error) {
	if remoteErr == nil && remoteResult != nil {
		return remoteResult, nil
	}
	if localErr == nil && localResult != nil {
		return localResult, nil
	}
	return nil, fmt.Errorf("%w: local: %v; remote: %v", ErrBothSourcesFailed, localErr, remoteErr)
}

// completionEvent is the payload broadcast to live subscribers after each
// successful analysis.
type completionEvent struct {
	ClaimID           string                   `json:"claim_id,omitempty"`
	RiskScore         int                      `json:"risk_score"`
	RecommendedAction models.RecommendedAction `json:"recommended_action"`
	Source            string                   `json:"source"`
}

// AnalyzeBatch scores every claim concurrently and preserves input order
// in the returned slice. A failure of any claim fails the whole batch with
// the lowest-index error.
func (s *Service) AnalyzeBatch(ctx context.Context, claims []models.ClaimInput) ([]*models.AnalysisResult, error) {
	results := make([]*models.AnalysisResult, len(claims))
	errs := make([]error, len(claims))

	var wg sync.WaitGroup
	for i, claim := range claims {
		wg.Add(1)
		go func(i int, claim models.ClaimInput) {
			defer wg.Done()
			results[i], errs[i] = s.AnalyzeFast(ctx, claim)
		}(i, claim)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}

	return results, nil
}

// PendingCount reports how many computations are currently in flight.
func (s *Service) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}
