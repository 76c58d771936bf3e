// Package notify delivers best-effort promotion notifications.
//
// Announcements flow through a bounded queue drained by dispatcher
// workers, so a slow platform call never blocks webhook handling. Direct
// messages stay synchronous in the request so delivery failures can be
// reported back as soft errors.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/okian/giteval/internal/adapters/platform"
	"github.com/okian/giteval/internal/domain/model"
	"github.com/okian/giteval/pkg/logger"
	"github.com/okian/giteval/pkg/metrics"
)

// Default dispatcher configuration constants.
const (
	defaultQueueSize   = 1024
	defaultWorkerCount = 2
)

// Dispatcher fans promotion events out to the announcement channel and
// composes evaluation DMs.
type Dispatcher struct {
	client  platform.Client
	channel string // announcement channel; empty disables broadcasts

	queueSize   int
	workerCount int
	log         logger.Logger

	mu      sync.Mutex
	queue   chan model.Promotion
	wg      sync.WaitGroup
	started bool
}

// Option applies a configuration option to the Dispatcher.
type Option func(*Dispatcher)

// WithQueueSize bounds the pending announcement queue.
func WithQueueSize(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.queueSize = n
		}
	}
}

// WithWorkerCount sets the number of dispatch workers.
func WithWorkerCount(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.workerCount = n
		}
	}
}

// WithLogger sets a custom logger.
func WithLogger(log logger.Logger) Option {
	return func(d *Dispatcher) {
		if log != nil {
			d.log = log
		}
	}
}

// NewDispatcher creates a Dispatcher posting to the given channel.
func NewDispatcher(client platform.Client, channel string, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		client:      client,
		channel:     channel,
		queueSize:   defaultQueueSize,
		workerCount: defaultWorkerCount,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = logger.Named("notify")
	}
	return d
}

// Start launches the dispatch workers.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.queue = make(chan model.Promotion, d.queueSize)
	for i := 0; i < d.workerCount; i++ {
		d.wg.Add(1)
		go d.run(ctx)
	}
	d.started = true
}

// Stop drains the queue and waits for the workers to finish.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.started {
		d.mu.Unlock()
		return
	}
	close(d.queue)
	d.started = false
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for promo := range d.queue {
		metrics.UpdateAnnounceQueueDepth(len(d.queue))
		d.announce(ctx, promo)
	}
}

// EnqueuePromotion queues a broadcast for the promotion. Returns false
// when the dispatcher is stopped or the queue is full; the announcement is
// dropped in that case, which is acceptable for a best-effort broadcast.
func (d *Dispatcher) EnqueuePromotion(_ context.Context, promo model.Promotion) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.channel == "" {
		return false
	}
	select {
	case d.queue <- promo:
		metrics.UpdateAnnounceQueueDepth(len(d.queue))
		return true
	default:
		metrics.RecordAnnouncementDropped()
		return false
	}
}

// announce posts one promotion broadcast. An unresolved channel is a
// silent skip per the notification contract.
func (d *Dispatcher) announce(ctx context.Context, promo model.Promotion) {
	msg := fmt.Sprintf("<@%s> has been promoted to rank %s (%s)!",
		promo.ExternalIdentity, promo.NewRank, promo.RankName)
	if err := d.client.Announce(ctx, d.channel, msg); err != nil {
		if errors.Is(err, platform.ErrChannelNotFound) {
			d.log.Debug(ctx, "announcement channel unresolved, skipping",
				logger.String("channel", d.channel))
			return
		}
		d.log.Warn(ctx, "failed to post promotion announcement",
			logger.String("identity", promo.ExternalIdentity), logger.Error(err))
	}
}

// SendEvaluationDM delivers the evaluation summary to the user. A
// recipient who blocks DMs is a silent skip; any other failure is returned
// so the caller can surface it as a soft error.
func (d *Dispatcher) SendEvaluationDM(ctx context.Context, report model.EvaluationReport, tr model.Transition, rankName string) error {
	var b strings.Builder
	if tr.Promoted() {
		fmt.Fprintf(&b, "Evaluation result (promoted: %s -> %s!)\n", tr.OldRank, tr.NewRank)
	} else {
		b.WriteString("Evaluation result\n")
	}
	fmt.Fprintf(&b, "Score: +%d pt (total: %d pt)\n", report.ScoreDelta, tr.Score)
	fmt.Fprintf(&b, "Rank: %s (%s)\n", tr.NewRank, rankName)
	if report.FeedbackText != "" {
		fmt.Fprintf(&b, "\nFeedback:\n%s", report.FeedbackText)
	}

	err := d.client.DirectMessage(ctx, tr.ExternalIdentity, b.String())
	if err != nil {
		if errors.Is(err, platform.ErrDMForbidden) {
			d.log.Debug(ctx, "recipient blocks DMs, skipping",
				logger.String("identity", tr.ExternalIdentity))
			return nil
		}
		metrics.RecordDMFailure()
		return fmt.Errorf("send evaluation DM: %w", err)
	}
	return nil
}
