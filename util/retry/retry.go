package retry

import (
	"context"
	"time"

	"github.com/bsv-blockchain/shardledger/errors"
	"github.com/bsv-blockchain/shardledger/ulogger"
)

// Retry calls f up to retryCount times, sleeping with BackoffAndSleep between attempts. It stops
// early when f succeeds, when ctx is done or when shouldRetry rejects the error. A nil
// shouldRetry retries every error.
func Retry[T any](ctx context.Context, logger ulogger.Logger, f func() (T, error), retryCount int, backoffMultiplier int,
	backoffDurationType time.Duration, shouldRetry func(error) bool, retryMessage string) (T, error) {
	var (
		result T
		err    error
	)

	for i := 0; i < retryCount; i++ {
		if ctx.Err() != nil {
			return result, errors.FromContext(ctx, "%s: stopped after %d attempts", retryMessage, i)
		}

		result, err = f()
		if err == nil {
			return result, nil
		}

		if shouldRetry != nil && !shouldRetry(err) {
			return result, err
		}

		if i == retryCount-1 {
			break
		}

		logger.Warnf("%s (attempt %d of %d): %v", retryMessage, i+1, retryCount, err)

		if sleepErr := BackoffAndSleep(ctx, i, backoffMultiplier, backoffDurationType); sleepErr != nil {
			return result, errors.FromContext(ctx, "%s: stopped after %d attempts", retryMessage, i+1)
		}
	}

	return result, err
}
