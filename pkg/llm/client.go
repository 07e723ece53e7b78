package llm

import (
	"context"
	"errors"
	"net"
	"strings"
)

// Request is one completion call. Model may be empty to use the provider
// default. JSONMode asks the provider for a machine-parseable JSON payload;
// the caller must still treat the response as possibly malformed.
type Request struct {
	System   string
	Prompt   string
	Model    string
	JSONMode bool
}

// Client is the language capability consumed by the pipeline. Both calls are
// fallible, latency-bearing and non-deterministic; every call site must have
// a heuristic fallback path.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
	Embed(ctx context.Context, text string) ([]float64, error)
}

// ErrUnavailable signals that no provider could serve the call.
var ErrUnavailable = errors.New("no language provider available")

// isConnectionError checks if the error is a network/connection error
func isConnectionError(err error) bool {
	if err == nil {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	errStr := strings.ToLower(err.Error())
	connectionIndicators := []string{
		"connection refused",
		"no such host",
		"network is unreachable",
		"connection reset",
		"timeout",
		"dial tcp",
		"eof",
	}
	for _, indicator := range connectionIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}

// isQuotaError checks if the error indicates API quota exhaustion (429)
func isQuotaError(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())
	quotaIndicators := []string{
		"429",
		"quota",
		"rate limit",
		"too many requests",
		"resource exhausted",
	}
	for _, indicator := range quotaIndicators {
		if strings.Contains(errStr, indicator) {
			return true
		}
	}
	return false
}
