package metrics

import (
	"strconv"
	"time"

	obserrors "github.com/todoproduction/todo-client/internal/observability/errors"
	"github.com/todoproduction/todo-client/internal/observability/statsd"
)

// Metric names emitted by the API client.
const (
	MetricRequest            = "api.request"
	MetricRequestDuration    = "api.request.duration"
	MetricRefresh            = "api.refresh"
	MetricSessionInvalidated = "api.session_invalidated"
)

// Result constants for metric tagging.
const (
	ResultSuccess = "success"
	ResultError   = "error"
)

// RequestMetric captures one completed API call (after any refresh and retry).
type RequestMetric struct {
	Method   string
	Status   int
	Retried  bool
	Duration time.Duration
	Err      error
}

// EmitRequest emits the request counter and duration timing.
func EmitRequest(sink statsd.Sink, in RequestMetric) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"method":       in.Method,
		"status_class": StatusClass(in.Status),
		"retried":      strconv.FormatBool(in.Retried),
		"result":       ResultSuccess,
	}
	if in.Err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count(MetricRequest, 1, tags)
	if in.Duration > 0 {
		sink.Timing(MetricRequestDuration, in.Duration, CloneTags(tags))
	}
}

// EmitRefresh counts one refresh outcome. Coalesced marks callers that shared
// another caller's in-flight refresh instead of issuing their own.
func EmitRefresh(sink statsd.Sink, err error, coalesced bool) {
	if sink == nil {
		return
	}
	tags := map[string]string{
		"result":    ResultSuccess,
		"coalesced": strconv.FormatBool(coalesced),
	}
	if err != nil {
		tags["result"] = ResultError
		if class := obserrors.Classify(err); class != "" {
			tags["error_class"] = class
		}
	}
	sink.Count(MetricRefresh, 1, tags)
}

// EmitSessionInvalidated counts a session that was cleared after a failed refresh.
func EmitSessionInvalidated(sink statsd.Sink) {
	if sink == nil {
		return
	}
	sink.Count(MetricSessionInvalidated, 1, nil)
}

// StatusClass buckets an HTTP status as "2xx", "4xx", ... or "none" when no response arrived.
func StatusClass(status int) string {
	if status < 100 || status > 599 {
		return "none"
	}
	return strconv.Itoa(status/100) + "xx"
}

// CloneTags creates a shallow copy of a tag map.
func CloneTags(src map[string]string) map[string]string {
	if len(src) == 0 {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
