package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
	"github.com/prometheus/common/model"
)

// ProjectMetrics represents aggregated activity metrics for one project.
type ProjectMetrics struct {
	ProjectID        string  `json:"project_id"`
	ActivityCalls    int64   `json:"activity_calls"`
	ActivityFailures int64   `json:"activity_failures"`
	ActivitySeconds  float64 `json:"activity_seconds"`
}

// QueryService provides methods to query metrics from Prometheus.
type QueryService struct {
	client   api.Client
	queryAPI v1.API
}

// NewQueryService creates a new metrics query service.
func NewQueryService(prometheusURL string) (*QueryService, error) {
	client, err := api.NewClient(api.Config{
		Address: prometheusURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Prometheus client: %w", err)
	}

	return &QueryService{
		client:   client,
		queryAPI: v1.NewAPI(client),
	}, nil
}

// GetProjectMetrics aggregates activity call counts, failures, and total
// activity wall time for one project across all engine instances.
func (q *QueryService) GetProjectMetrics(ctx context.Context, projectID string) (*ProjectMetrics, error) {
	metrics := &ProjectMetrics{
		ProjectID: projectID,
	}

	callsQuery := fmt.Sprintf(`sum(designflow_activity_duration_seconds_count{project_id=%q})`, projectID)
	callsResult, _, err := q.queryAPI.Query(ctx, callsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query activity calls: %w", err)
	}
	if vector, ok := callsResult.(model.Vector); ok && len(vector) > 0 {
		metrics.ActivityCalls = int64(vector[0].Value)
	}

	failuresQuery := fmt.Sprintf(`sum(designflow_activity_failures_total{project_id=%q})`, projectID)
	failuresResult, _, err := q.queryAPI.Query(ctx, failuresQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query activity failures: %w", err)
	}
	if vector, ok := failuresResult.(model.Vector); ok && len(vector) > 0 {
		metrics.ActivityFailures = int64(vector[0].Value)
	}

	secondsQuery := fmt.Sprintf(`sum(designflow_activity_duration_seconds_sum{project_id=%q})`, projectID)
	secondsResult, _, err := q.queryAPI.Query(ctx, secondsQuery, time.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to query activity seconds: %w", err)
	}
	if vector, ok := secondsResult.(model.Vector); ok && len(vector) > 0 {
		metrics.ActivitySeconds = float64(vector[0].Value)
	}

	return metrics, nil
}
