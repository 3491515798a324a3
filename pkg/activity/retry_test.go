package activity

import (
	"context"
	"testing"
	"time"

	"designflow/pkg/config"
)

func fastRetry(attempts int) config.Retry {
	return config.Retry{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestRetryingGateway_EventualSuccess(t *testing.T) {
	mock := NewMockGateway()
	mock.FailTimes(NameGenerateDesigns, 2, NewError(ErrorTypeTransient, NameGenerateDesigns, "flaky"))

	gw := NewRetryingGateway(mock, fastRetry(3))
	options, err := gw.GenerateDesigns(context.Background(), GenerateRequest{ProjectID: "p1"})
	if err != nil {
		t.Fatalf("Expected success after retries, got %v", err)
	}
	if len(options) != OptionCount {
		t.Errorf("Expected %d options, got %d", OptionCount, len(options))
	}
	if got := len(mock.Calls()); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestRetryingGateway_ExhaustsAttempts(t *testing.T) {
	mock := NewMockGateway()
	mock.AlwaysFail(NameEditDesign, NewError(ErrorTypeTransient, NameEditDesign, "still down"))

	gw := NewRetryingGateway(mock, fastRetry(3))
	_, err := gw.EditDesign(context.Background(), EditRequest{ProjectID: "p1"})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if got := len(mock.Calls()); got != 3 {
		t.Errorf("Expected 3 attempts, got %d", got)
	}
}

func TestRetryingGateway_NonRetryableBreaksImmediately(t *testing.T) {
	mock := NewMockGateway()
	mock.AlwaysFail(NameGenerateDesigns, NewError(ErrorTypeContentPolicy, NameGenerateDesigns, "blocked"))

	gw := NewRetryingGateway(mock, fastRetry(5))
	_, err := gw.GenerateDesigns(context.Background(), GenerateRequest{ProjectID: "p1"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if IsRetryable(err) {
		t.Error("Expected non-retryable error")
	}
	if got := len(mock.Calls()); got != 1 {
		t.Errorf("Expected a single attempt for a terminal error, got %d", got)
	}
}

func TestRetryingGateway_ContextCancelStopsBackoff(t *testing.T) {
	mock := NewMockGateway()
	mock.AlwaysFail(NameGenerateShoppingList, NewError(ErrorTypeTransient, NameGenerateShoppingList, "down"))

	cfg := config.Retry{
		MaxAttempts:    10,
		InitialBackoff: time.Hour,
		MaxBackoff:     time.Hour,
	}
	gw := NewRetryingGateway(mock, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	start := time.Now()
	_, err := gw.GenerateShoppingList(ctx, ShoppingRequest{ProjectID: "p1"})
	if err == nil {
		t.Fatal("Expected error")
	}
	if time.Since(start) > time.Second {
		t.Error("Cancel should interrupt the backoff sleep")
	}
}

func TestBackoff_Capped(t *testing.T) {
	gw := NewRetryingGateway(NewMockGateway(), config.Retry{
		MaxAttempts:    5,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
	})

	if got := gw.backoff(1); got != 100*time.Millisecond {
		t.Errorf("backoff(1) = %s", got)
	}
	if got := gw.backoff(2); got != 200*time.Millisecond {
		t.Errorf("backoff(2) = %s", got)
	}
	if got := gw.backoff(4); got != 300*time.Millisecond {
		t.Errorf("backoff(4) should cap at max, got %s", got)
	}
}
