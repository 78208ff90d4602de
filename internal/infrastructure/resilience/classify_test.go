package resilience

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/kirillkom/hybrid-retrieval/internal/core/domain"
)

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

func TestClassifyHTTPError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClassification
	}{
		{name: "canceled", err: context.Canceled, want: ErrorClassification{}},
		{name: "deadline", err: fmt.Errorf("call: %w", context.DeadlineExceeded), want: ErrorClassification{}},
		{name: "breaker open", err: gobreaker.ErrOpenState, want: ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "503", err: fmt.Errorf("embed: %w", statusErr{code: http.StatusServiceUnavailable}), want: ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "429", err: statusErr{code: http.StatusTooManyRequests}, want: ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "400", err: statusErr{code: http.StatusBadRequest}, want: ErrorClassification{}},
		{name: "network", err: &net.OpError{Op: "dial", Err: errors.New("refused")}, want: ErrorClassification{Retryable: true, RecordFailure: true}},
		{name: "other", err: errors.New("decode"), want: ErrorClassification{RecordFailure: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyHTTPError(tt.err); got != tt.want {
				t.Fatalf("ClassifyHTTPError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestWrapTemporaryIfNeeded(t *testing.T) {
	retryable := statusErr{code: http.StatusBadGateway}
	wrapped := WrapTemporaryIfNeeded("embed", retryable, nil)
	if !domain.IsKind(wrapped, domain.ErrTemporary) {
		t.Fatalf("expected temporary kind, got %v", wrapped)
	}
	if again := WrapTemporaryIfNeeded("embed", wrapped, nil); again != wrapped {
		t.Fatalf("expected already temporary error to be returned unchanged")
	}

	permanent := statusErr{code: http.StatusNotFound}
	if got := WrapTemporaryIfNeeded("embed", permanent, nil); domain.IsKind(got, domain.ErrTemporary) {
		t.Fatalf("permanent error must not be marked temporary: %v", got)
	}
	if WrapTemporaryIfNeeded("embed", nil, nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
}

func TestCallReturnsValueAfterRetry(t *testing.T) {
	exec := NewExecutor(Config{
		RetryMaxAttempts:    2,
		RetryInitialBackoff: time.Millisecond,
		RetryMaxBackoff:     time.Millisecond,
		RetryMultiplier:     2,
	}, nil)

	attempts := 0
	got, err := Call(context.Background(), exec, "embed", func(context.Context) (int, error) {
		attempts++
		if attempts == 1 {
			return 0, statusErr{code: http.StatusServiceUnavailable}
		}
		return 42, nil
	}, ClassifyHTTPError)
	if err != nil {
		t.Fatalf("Call() error = %v", err)
	}
	if got != 42 || attempts != 2 {
		t.Fatalf("unexpected result %d after %d attempts", got, attempts)
	}
}

func TestCallWithoutExecutorRunsOnce(t *testing.T) {
	attempts := 0
	_, err := Call(context.Background(), nil, "embed", func(context.Context) (string, error) {
		attempts++
		return "", statusErr{code: http.StatusServiceUnavailable}
	}, ClassifyHTTPError)
	if err == nil || attempts != 1 {
		t.Fatalf("expected one failing attempt, got %d attempts err=%v", attempts, err)
	}
}
