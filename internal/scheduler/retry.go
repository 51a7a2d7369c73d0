package scheduler

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"

	"tweetbridge/internal/model"
	"tweetbridge/internal/sink"
	"tweetbridge/internal/source"
)

const (
	// transientRetryDelay is the default pause between retries of a failed
	// fetch. Transient failures are retried until the context is cancelled.
	transientRetryDelay = 1 * time.Second
	// rateLimitMargin is the default slack added to the upstream's reset
	// time before retrying.
	rateLimitMargin = 1 * time.Second
	// sendRetryLimit bounds retries of a transient delivery failure.
	sendRetryLimit = 3
	sendRetryDelay = 500 * time.Millisecond
)

// fetchWithRetry wraps one fetch against the content source. Rate limits
// suspend just this fetch until the reported reset time plus a margin;
// transient failures retry on a fixed delay; fatal errors and cancellation
// surface to the caller.
func (s *Scheduler) fetchWithRetry(ctx context.Context, feedID string) ([]model.Item, error) {
	var items []model.Item
	err := retry.Do(ctx, retry.NewConstant(s.retryDelay), func(ctx context.Context) error {
		res, err := s.source.FetchRecent(ctx, feedID)
		if err == nil {
			items = res
			return nil
		}
		if rl, ok := source.AsRateLimited(err); ok {
			s.log.Warn("rate limited", "feed", feedID, "reset_at", rl.ResetAt)
			if werr := sleepUntil(ctx, rl.ResetAt.Add(s.rateMargin)); werr != nil {
				return werr
			}
			return retry.RetryableError(err)
		}
		if source.IsTransient(err) {
			s.log.Warn("fetch failed, will retry", "feed", feedID, "error", err)
			return retry.RetryableError(err)
		}
		return err
	})
	return items, err
}

// send delivers one item, retrying transient sink failures a bounded number
// of times. Fatal sink errors are returned as-is.
func (s *Scheduler) send(ctx context.Context, chatID int64, it model.Item) error {
	backoff := retry.WithMaxRetries(sendRetryLimit, retry.NewConstant(sendRetryDelay))
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := sink.SendItem(s.sink, chatID, it)
		if err == nil || sink.IsFatal(err) {
			return err
		}
		return retry.RetryableError(err)
	})
}

// sleepUntil blocks until t or until ctx is cancelled.
func sleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
