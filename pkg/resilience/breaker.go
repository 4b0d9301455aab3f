package resilience

import (
	"context"
	"errors"

	"github.com/sony/gobreaker"
)

// ErrCircuitOpen is returned when the breaker rejects an execution.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Operation is a unit of work executed through a breaker.
type Operation func(ctx context.Context) (interface{}, error)

// Breaker wraps gobreaker with metrics and an optional fallback.
type Breaker struct {
	name     string
	cb       *gobreaker.CircuitBreaker
	fallback FallbackFunc
}

// NewBreaker creates a circuit breaker from settings. A nil fallback
// defaults to NoopFallback.
func NewBreaker(settings Settings, fallback FallbackFunc) *Breaker {
	name := nextBreakerName(settings.Name)
	if fallback == nil {
		fallback = NoopFallback
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: settings.SuccessThreshold,
		Interval:    settings.Interval,
		Timeout:     settings.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			recordBreakerStateChange(name, from, to)
		},
	})

	recordBreakerState(name, cb.State())

	return &Breaker{name: name, cb: cb, fallback: fallback}
}

// Name returns the breaker's registered name.
func (b *Breaker) Name() string {
	return b.name
}

// Execute runs the operation through the breaker. When the breaker is open
// the fallback decides the outcome.
func (b *Breaker) Execute(ctx context.Context, op Operation) (interface{}, error) {
	recordBreakerRequest(b.name)

	result, err := b.cb.Execute(func() (interface{}, error) {
		return op(ctx)
	})

	if err != nil {
		recordBreakerFailure(b.name)
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			recordBreakerFallback(b.name)
			return b.fallback(ctx, ErrCircuitOpen)
		}
		return nil, err
	}

	return result, nil
}
