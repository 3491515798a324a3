package activity

import (
	"context"
	"math"
	"time"

	"designflow/pkg/config"
	"designflow/pkg/logx"
	"designflow/pkg/proto"
)

// RetryingGateway wraps a Gateway with bounded exponential-backoff
// retries. Non-retryable errors break out immediately; the last error is
// returned once attempts are exhausted.
type RetryingGateway struct {
	inner  Gateway
	cfg    config.Retry
	logger *logx.Logger
}

// NewRetryingGateway wraps gw with the given retry configuration.
func NewRetryingGateway(gw Gateway, cfg config.Retry) *RetryingGateway {
	return &RetryingGateway{
		inner:  gw,
		cfg:    cfg,
		logger: logx.NewLogger("activity"),
	}
}

func (r *RetryingGateway) backoff(attempt int) time.Duration {
	delay := time.Duration(float64(r.cfg.InitialBackoff) * math.Pow(2.0, float64(attempt-1)))
	if delay > r.cfg.MaxBackoff {
		delay = r.cfg.MaxBackoff
	}
	return delay
}

// call runs fn up to MaxAttempts times. The activity name is only used
// for logging; classification lives on the returned error.
func (r *RetryingGateway) call(ctx context.Context, name string, fn func(context.Context) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(r.backoff(attempt - 1)):
			}
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !IsRetryable(lastErr) {
			return lastErr
		}
		r.logger.Warn("%s attempt %d/%d failed: %v", name, attempt, r.cfg.MaxAttempts, lastErr)
	}

	return lastErr
}

func (r *RetryingGateway) AnalyzeRoomPhotos(ctx context.Context, req AnalyzeRequest) (*proto.RoomAnalysis, error) {
	var out *proto.RoomAnalysis
	err := r.call(ctx, NameAnalyzeRoomPhotos, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.AnalyzeRoomPhotos(ctx, req)
		return callErr
	})
	return out, err
}

func (r *RetryingGateway) GenerateDesigns(ctx context.Context, req GenerateRequest) ([]proto.DesignOption, error) {
	var out []proto.DesignOption
	err := r.call(ctx, NameGenerateDesigns, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.GenerateDesigns(ctx, req)
		return callErr
	})
	return out, err
}

func (r *RetryingGateway) EditDesign(ctx context.Context, req EditRequest) (*EditResult, error) {
	var out *EditResult
	err := r.call(ctx, NameEditDesign, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.EditDesign(ctx, req)
		return callErr
	})
	return out, err
}

func (r *RetryingGateway) GenerateShoppingList(ctx context.Context, req ShoppingRequest) (*proto.ShoppingList, error) {
	var out *proto.ShoppingList
	err := r.call(ctx, NameGenerateShoppingList, func(ctx context.Context) error {
		var callErr error
		out, callErr = r.inner.GenerateShoppingList(ctx, req)
		return callErr
	})
	return out, err
}

// PurgeProjectData retries like any other call; callers still treat the
// final failure as non-fatal.
func (r *RetryingGateway) PurgeProjectData(ctx context.Context, projectID string) error {
	return r.call(ctx, NamePurgeProjectData, func(ctx context.Context) error {
		return r.inner.PurgeProjectData(ctx, projectID)
	})
}
