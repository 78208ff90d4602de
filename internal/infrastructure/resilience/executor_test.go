package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func fastConfig(attempts int, breaker bool) Config {
	return Config{
		RetryMaxAttempts:        attempts,
		RetryInitialBackoff:     time.Millisecond,
		RetryMaxBackoff:         2 * time.Millisecond,
		RetryMultiplier:         2,
		BreakerEnabled:          breaker,
		BreakerMinRequests:      2,
		BreakerFailureRatio:     0.5,
		BreakerOpenTimeout:      50 * time.Millisecond,
		BreakerHalfOpenMaxCalls: 1,
	}
}

func TestExecuteRetryBehaviour(t *testing.T) {
	errTemp := errors.New("temporary")
	errPermanent := errors.New("permanent")

	tests := []struct {
		name         string
		failures     int
		failWith     error
		wantAttempts int
		wantErr      error
	}{
		{name: "recovers after temporary failures", failures: 2, failWith: errTemp, wantAttempts: 3},
		{name: "gives up after max attempts", failures: 5, failWith: errTemp, wantAttempts: 3, wantErr: errTemp},
		{name: "permanent failure is not retried", failures: 5, failWith: errPermanent, wantAttempts: 1, wantErr: errPermanent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			exec := NewExecutor(fastConfig(3, false), nil)
			attempts := 0
			err := exec.Execute(context.Background(), "store.match_chunks", func(context.Context) error {
				attempts++
				if attempts <= tt.failures {
					return tt.failWith
				}
				return nil
			}, func(err error) ErrorClassification {
				return ErrorClassification{Retryable: errors.Is(err, errTemp), RecordFailure: true}
			})

			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if attempts != tt.wantAttempts {
				t.Fatalf("expected %d attempts, got %d", tt.wantAttempts, attempts)
			}
		})
	}
}

func TestExecuteStopsRetryingWhenContextEnds(t *testing.T) {
	exec := NewExecutor(fastConfig(5, false), nil)
	ctx, cancel := context.WithCancel(context.Background())

	attempts := 0
	err := exec.Execute(ctx, "embed.query", func(context.Context) error {
		attempts++
		cancel()
		return errors.New("temporary")
	}, func(error) ErrorClassification {
		return ErrorClassification{Retryable: true, RecordFailure: true}
	})
	if err == nil {
		t.Fatalf("expected error after cancellation")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt, got %d", attempts)
	}
}

func TestExecuteOpensCircuitAndNotifiesObserver(t *testing.T) {
	var (
		mu          sync.Mutex
		transitions []bool
	)
	exec := NewExecutor(fastConfig(1, true), nil).WithStateObserver(func(operation string, open bool) {
		mu.Lock()
		defer mu.Unlock()
		if operation != "store.anchor_chunks" {
			t.Errorf("unexpected operation %q", operation)
		}
		transitions = append(transitions, open)
	})

	errTemp := errors.New("temporary")
	classifier := func(error) ErrorClassification {
		return ErrorClassification{Retryable: false, RecordFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Execute(context.Background(), "store.anchor_chunks", func(context.Context) error {
			return errTemp
		}, classifier)
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Execute(context.Background(), "store.anchor_chunks", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, classifier)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsCircuitOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(transitions) != 1 || !transitions[0] {
		t.Fatalf("expected one open transition, got %v", transitions)
	}
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	got := Config{RetryInitialBackoff: time.Second}.normalize()
	def := DefaultConfig()
	if got.RetryMaxAttempts != def.RetryMaxAttempts || got.RetryMaxBackoff != time.Second {
		t.Fatalf("unexpected normalized retry config: %+v", got)
	}
	if got.BreakerMinRequests != def.BreakerMinRequests || got.BreakerOpenTimeout != def.BreakerOpenTimeout {
		t.Fatalf("unexpected normalized breaker config: %+v", got)
	}
}
