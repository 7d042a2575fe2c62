package services

import (
	"context"
	"time"
)

// MetricsRecorder is the subset of the CloudWatch metrics client used for
// business counters.
type MetricsRecorder interface {
	RecordCount(ctx context.Context, metricName string, dimensions map[string]string) error
}

// recordCount sends a counter asynchronously so request latency does not
// depend on CloudWatch.
func recordCount(m MetricsRecorder, metricName string, dimensions map[string]string) {
	if m == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.RecordCount(ctx, metricName, dimensions)
	}()
}
