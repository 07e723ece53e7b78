package retry

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
)

// Policy bounds calls across the capability boundary (mailbox, model):
// a per-attempt timeout and a single retry after a fixed backoff.
type Policy struct {
	Timeout time.Duration
	Backoff time.Duration
	Retries uint64
}

func DefaultPolicy(timeout time.Duration) Policy {
	return Policy{
		Timeout: timeout,
		Backoff: 2 * time.Second,
		Retries: 1,
	}
}

// Do runs op under the policy. Every error from op is treated as retryable;
// exhausting the retry budget surfaces the last error.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	backoff := retry.WithMaxRetries(p.Retries, retry.NewConstant(p.Backoff))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attemptCtx := ctx
		if p.Timeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, p.Timeout)
			defer cancel()
		}
		if err := op(attemptCtx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
}
