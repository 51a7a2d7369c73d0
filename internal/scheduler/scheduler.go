// Package scheduler drives the periodic poll/dedup/filter/deliver loop.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"tweetbridge/internal/filter"
	"tweetbridge/internal/model"
	"tweetbridge/internal/sink"
	"tweetbridge/internal/source"
	"tweetbridge/internal/state"
)

const (
	// fetchConcurrencyLimit bounds the fan-out of per-subscription fetches
	// within one tick.
	fetchConcurrencyLimit = 10
	// interSendDelay keeps deliveries under Telegram's per-chat send limits.
	interSendDelay = 50 * time.Millisecond
)

// Scheduler wakes on a fixed interval, fans out one fetch per
// (chat, subscription) pair, and forwards new matching items in order.
type Scheduler struct {
	reg        *state.Registry
	source     source.Source
	sink       sink.Sink
	log        *slog.Logger
	tick       time.Duration
	retryDelay time.Duration
	rateMargin time.Duration
	backfill   bool
}

// New creates a Scheduler with the default 60s tick.
func New(reg *state.Registry, src source.Source, snk sink.Sink, log *slog.Logger) *Scheduler {
	return &Scheduler{
		reg:        reg,
		source:     src,
		sink:       snk,
		log:        log,
		tick:       60 * time.Second,
		retryDelay: transientRetryDelay,
		rateMargin: rateLimitMargin,
	}
}

// SetTickInterval overrides the default poll interval.
func (s *Scheduler) SetTickInterval(d time.Duration) {
	s.tick = d
}

// SetRetryTiming overrides the transient retry delay and the rate-limit
// safety margin (useful for testing).
func (s *Scheduler) SetRetryTiming(delay, margin time.Duration) {
	s.retryDelay = delay
	s.rateMargin = margin
}

// SetBackfill switches the cold-start policy: when enabled, the first fetch
// for a new subscription delivers everything it returns instead of only
// recording the newest item id.
func (s *Scheduler) SetBackfill(enabled bool) {
	s.backfill = enabled
}

// Run starts the scheduler loop, blocking until ctx is cancelled. It returns
// a non-nil error only when persistence fails, which the process must treat
// as fatal.
func (s *Scheduler) Run(ctx context.Context) error {
	if err := s.tickOnce(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.tickOnce(ctx); err != nil {
				return err
			}
		}
	}
}

// job is one (chat, subscription) pair captured at the start of a tick.
type job struct {
	chatID int64
	name   string
	feedID string
	cursor int64
	terms  []string
}

// delivery is the outcome of one job's fetch: either items to send,
// oldest-first, or a cold-start baseline to record.
type delivery struct {
	job
	ok       bool
	items    []model.Item
	baseline int64
}

// tickOnce runs a single poll cycle. Fetches fan out concurrently; delivery
// and cursor advancement happen per subscription afterwards, so a failure in
// one pair never blocks the others.
func (s *Scheduler) tickOnce(ctx context.Context) error {
	var jobs []job
	for _, st := range s.reg.Snapshot() {
		for name, feedID := range st.Subscriptions {
			jobs = append(jobs, job{
				chatID: st.ChatID,
				name:   name,
				feedID: feedID,
				cursor: st.Cursors[name],
				terms:  st.Filters[name],
			})
		}
	}
	if len(jobs) == 0 {
		return nil
	}

	results := make([]delivery, len(jobs))
	var g errgroup.Group
	g.SetLimit(fetchConcurrencyLimit)
	for i, j := range jobs {
		i, j := i, j
		g.Go(func() error {
			results[i] = s.fetchJob(ctx, j)
			return nil
		})
	}
	_ = g.Wait()

	for _, d := range results {
		if ctx.Err() != nil {
			return nil
		}
		if !d.ok {
			continue
		}
		if err := s.deliver(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

// fetchJob fetches one subscription and narrows the result through the
// cursor and the filters. Fetch failures are logged and isolated here; they
// never fail the tick.
func (s *Scheduler) fetchJob(ctx context.Context, j job) delivery {
	items, err := s.fetchWithRetry(ctx, j.feedID)
	if err != nil {
		if ctx.Err() == nil {
			s.log.Error("fetch failed", "chat_id", j.chatID, "subscription", j.name, "feed", j.feedID, "error", err)
		}
		return delivery{job: j}
	}

	d := delivery{job: j, ok: true}

	// Cold start: no cursor yet. Unless backfill is on, record the newest
	// id and deliver nothing, so a fresh subscription does not flood the
	// chat with old posts.
	if j.cursor == 0 && !s.backfill {
		for _, it := range items {
			if it.ID > d.baseline {
				d.baseline = it.ID
			}
		}
		return d
	}

	// The source returns newest-first; collect the accepted items and
	// reverse so the chat history reads chronologically.
	var accepted []model.Item
	for _, it := range items {
		if it.ID <= j.cursor {
			continue
		}
		if !filter.Deliverable(it, j.terms) {
			continue
		}
		accepted = append(accepted, it)
	}
	for i, k := 0, len(accepted)-1; i < k; i, k = i+1, k-1 {
		accepted[i], accepted[k] = accepted[k], accepted[i]
	}
	d.items = accepted
	return d
}

// deliver sends one subscription's batch oldest-first and advances the
// cursor past what was actually delivered. Only persistence errors are
// returned. The advance is written with a cancellation-free context: the
// watermark for already-sent items must survive a shutdown that lands
// mid-batch, or they would repeat after restart.
func (s *Scheduler) deliver(ctx context.Context, d delivery) error {
	if d.baseline > 0 {
		return s.reg.AdvanceCursor(context.WithoutCancel(ctx), d.chatID, d.name, d.baseline)
	}

	var delivered int64
	for _, it := range d.items {
		if ctx.Err() != nil {
			break
		}
		if err := s.send(ctx, d.chatID, it); err != nil {
			if sink.IsFatal(err) {
				s.log.Error("chat unreachable, dropping batch", "chat_id", d.chatID, "subscription", d.name, "error", err)
			} else if ctx.Err() == nil {
				s.log.Error("send failed", "chat_id", d.chatID, "subscription", d.name, "item_id", it.ID, "error", err)
			}
			break
		}
		delivered = it.ID
		sleep(ctx, interSendDelay)
	}

	if delivered == 0 {
		return nil
	}
	s.log.Info("forwarded items", "chat_id", d.chatID, "subscription", d.name, "last_id", delivered)
	return s.reg.AdvanceCursor(context.WithoutCancel(ctx), d.chatID, d.name, delivered)
}

func sleep(ctx context.Context, d time.Duration) {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
