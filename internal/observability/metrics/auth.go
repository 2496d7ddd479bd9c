package metrics

import (
	"time"

	obserrors "github.com/linkstash/authkit/internal/observability/errors"
	"github.com/linkstash/authkit/internal/observability/statsd"
)

// Result constants for metric tagging.
const (
	ResultSuccess   = "success"
	ResultError     = "error"
	ResultCancelled = "cancelled"
	ResultNoop      = "noop"
)

// Operation names used as metric tags.
const (
	OpBootstrap = "bootstrap"
	OpLogin     = "login"
	OpRegister  = "register"
	OpRefresh   = "refresh"
	OpLogout    = "logout"
)

// AuthEvent captures details about a session operation for metric emission.
type AuthEvent struct {
	Operation string
	Result    string
	Duration  time.Duration
	Err       error
}

// EmitAuthEvent emits standardised session lifecycle metrics.
func EmitAuthEvent(sink statsd.Sink, in AuthEvent) {
	if sink == nil {
		return
	}

	tags := map[string]string{
		"operation": in.Operation,
		"result":    in.Result,
	}

	if in.Err != nil && in.Result == ResultError {
		if class := obserrors.Classify(in.Err); class != "" {
			tags["error_class"] = class
		}
	}

	sink.Count("auth.operation", 1, tags)

	if in.Duration > 0 {
		sink.Timing("auth.operation.duration", in.Duration, CloneTags(tags))
	}
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
