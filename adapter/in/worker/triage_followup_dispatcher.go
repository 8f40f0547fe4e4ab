// Package worker drains due follow-ups in the background.
package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/pool"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"triage_server/core/domain"
	"triage_server/core/port/out"
	"triage_server/core/service/followup"
	"triage_server/core/service/reply"
	"triage_server/pkg/keylock"
	"triage_server/pkg/metrics"
)

// DispatcherConfig holds dispatcher configuration.
type DispatcherConfig struct {
	ScanInterval   time.Duration // 스캔 주기
	Stage1Delay    time.Duration // 마지막 고객 메시지 후 STAGE1까지
	Stage2Delay    time.Duration // STAGE1 발송 후 STAGE2까지
	Workers        int           // 동시 발송 워커 수
	JobTimeout     time.Duration // 작업 하나의 타임아웃
	WorkerChanSize int
}

// DefaultDispatcherConfig returns default dispatcher configuration.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		ScanInterval:   time.Minute,
		Stage1Delay:    time.Hour,
		Stage2Delay:    24 * time.Hour,
		Workers:        4,
		JobTimeout:     30 * time.Second,
		WorkerChanSize: 16,
	}
}

// DispatchResult counts what one scan did.
type DispatchResult struct {
	Users   int `json:"users"`
	Due     int `json:"due"`
	Sent    int `json:"sent"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// followUpJob is one due task handed to the pool.
type followUpJob struct {
	User      string
	Kind      domain.FollowUpKind
	CreatedAt int64
}

// Dispatcher finds due follow-ups and sends them.
//
// Every job runs under the same per-user lock as inbound turns, so a customer message and
// a follow-up for that customer never interleave.
type Dispatcher struct {
	store     out.ConversationStore
	scheduler *followup.Scheduler
	renderer  *reply.Renderer
	messenger out.ReplyMessenger
	locks     *keylock.KeyLock
	metrics   *metrics.DispatchMetrics

	config DispatcherConfig
	now    func() time.Time
	log    zerolog.Logger

	sf     singleflight.Group
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDispatcher creates a new follow-up dispatcher.
func NewDispatcher(
	store out.ConversationStore,
	scheduler *followup.Scheduler,
	renderer *reply.Renderer,
	messenger out.ReplyMessenger,
	locks *keylock.KeyLock,
	config DispatcherConfig,
	log zerolog.Logger,
) *Dispatcher {
	def := DefaultDispatcherConfig()
	if config.ScanInterval <= 0 {
		config.ScanInterval = def.ScanInterval
	}
	if config.Stage1Delay <= 0 {
		config.Stage1Delay = def.Stage1Delay
	}
	if config.Stage2Delay <= 0 {
		config.Stage2Delay = def.Stage2Delay
	}
	if config.Workers <= 0 {
		config.Workers = def.Workers
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = def.JobTimeout
	}
	if config.WorkerChanSize <= 0 {
		config.WorkerChanSize = def.WorkerChanSize
	}
	if locks == nil {
		locks = keylock.New()
	}

	return &Dispatcher{
		store:     store,
		scheduler: scheduler,
		renderer:  renderer,
		messenger: messenger,
		locks:     locks,
		metrics:   metrics.NewDispatchMetrics(),
		config:    config,
		now:       time.Now,
		log:       log.With().Str("component", "followup_dispatcher").Logger(),
	}
}

// WithClock overrides the time source (tests).
func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Metrics returns cumulative counters.
func (d *Dispatcher) Metrics() *metrics.DispatchMetrics {
	return d.metrics
}

// Start runs a scan every ScanInterval until Stop.
func (d *Dispatcher) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	d.cancel = cancel

	d.log.Info().Dur("interval", d.config.ScanInterval).Int("workers", d.config.Workers).Msg("follow-up dispatcher started")

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ticker := time.NewTicker(d.config.ScanInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := d.DispatchDue(ctx); err != nil && !errors.Is(err, context.Canceled) {
					d.log.Error().Err(err).Msg("follow-up scan failed")
				}
			}
		}
	}()
}

// Stop ends the ticker loop and waits for an in-flight scan.
func (d *Dispatcher) Stop() {
	if d.cancel == nil {
		return
	}
	d.cancel()
	d.wg.Wait()
	d.log.Info().Msg("follow-up dispatcher stopped")
}

// DispatchDue runs one scan. Concurrent callers (ticker and admin trigger) share the
// result of the scan already in flight.
func (d *Dispatcher) DispatchDue(ctx context.Context) (DispatchResult, error) {
	v, err, _ := d.sf.Do("dispatch", func() (interface{}, error) {
		return d.scan(ctx)
	})
	if err != nil {
		return DispatchResult{}, err
	}
	return v.(DispatchResult), nil
}

func (d *Dispatcher) scan(ctx context.Context) (DispatchResult, error) {
	start := time.Now()
	now := d.now()

	var res DispatchResult
	var jobs []followUpJob
	users := d.store.GetUsers(ctx)
	res.Users = len(users)
	for _, user := range users {
		for _, t := range followup.DueTasks(d.store.GetFollowQueue(ctx, user), now) {
			jobs = append(jobs, followUpJob{User: user, Kind: t.Kind, CreatedAt: t.CreatedAt})
		}
	}
	res.Due = len(jobs)
	if len(jobs) == 0 {
		return res, nil
	}

	var sent, skipped, failed int64
	worker := pool.WorkerFunc[followUpJob](func(ctx context.Context, job followUpJob) error {
		outcome, err := d.process(ctx, job)
		switch {
		case err != nil:
			atomic.AddInt64(&failed, 1)
			d.log.Warn().Err(err).Str("user", job.User).Str("kind", string(job.Kind)).Msg("follow-up failed")
		case outcome == outcomeSent:
			atomic.AddInt64(&sent, 1)
		case outcome == outcomeSkipped:
			atomic.AddInt64(&skipped, 1)
		}
		return nil
	})

	p := pool.New[followUpJob](d.config.Workers, worker).
		WithWorkerChanSize(d.config.WorkerChanSize).
		WithContinueOnError()
	if err := p.Go(ctx); err != nil {
		return res, fmt.Errorf("start follow-up pool: %w", err)
	}
	for _, job := range jobs {
		p.Submit(job)
	}
	if err := p.Close(ctx); err != nil {
		return res, fmt.Errorf("drain follow-up pool: %w", err)
	}

	res.Sent = int(sent)
	res.Skipped = int(skipped)
	res.Failed = int(failed)
	d.metrics.RecordScan(res.Due, res.Sent, res.Skipped, res.Failed, time.Since(start))

	d.log.Info().
		Int("due", res.Due).
		Int("sent", res.Sent).
		Int("skipped", res.Skipped).
		Int("failed", res.Failed).
		Dur("took", time.Since(start)).
		Msg("follow-up scan done")
	return res, nil
}

type outcome int

const (
	outcomeNone outcome = iota
	outcomeSent
	outcomeSkipped
)

// process delivers one task under the user's lock.
func (d *Dispatcher) process(ctx context.Context, job followUpJob) (outcome, error) {
	unlock := d.locks.Lock(job.User)
	defer unlock()

	ctx, cancel := context.WithTimeout(ctx, d.config.JobTimeout)
	defer cancel()

	now := d.now()

	// The queue may have changed since the scan.
	if !domain.HasPending(d.store.GetFollowQueue(ctx, job.User), job.Kind) {
		return outcomeNone, nil
	}

	// A customer who wrote again is already in a live conversation.
	if meta := d.store.GetMeta(ctx, job.User); job.CreatedAt > 0 && meta.LastInboundAt > job.CreatedAt {
		if _, err := d.scheduler.MarkSent(ctx, job.User, job.Kind, now, true); err != nil {
			return outcomeNone, err
		}
		d.log.Debug().Str("user", job.User).Str("kind", string(job.Kind)).Msg("follow-up skipped, customer replied")
		d.requeueAfterReply(ctx, job, meta)
		return outcomeSkipped, nil
	}

	text := d.renderer.Render(domain.FollowUpTemplateFor(job.Kind))
	if err := d.messenger.Send(ctx, job.User, text); err != nil {
		return outcomeNone, fmt.Errorf("send follow-up: %w", err)
	}

	if _, err := d.scheduler.MarkSent(ctx, job.User, job.Kind, now, false); err != nil {
		return outcomeNone, err
	}
	if err := d.store.AddMessage(ctx, job.User, domain.NewChatMessage(domain.RoleAssistant, text, now)); err != nil {
		d.log.Warn().Err(err).Str("user", job.User).Msg("append follow-up message failed")
	}

	if job.Kind == domain.FollowUpStage1 {
		if _, err := d.scheduler.ScheduleFollowUp(ctx, job.User, now.Add(d.config.Stage2Delay), domain.FollowUpStage2); err != nil {
			d.log.Warn().Err(err).Str("user", job.User).Msg("failed to schedule stage 2")
		}
	}
	return outcomeSent, nil
}

// requeueAfterReply restarts STAGE1 from the customer's latest message. The reply that
// caused the skip could not schedule its own STAGE1 while this one was still pending.
// A reply that went to an operator gets no follow-up, as in the inbound path.
func (d *Dispatcher) requeueAfterReply(ctx context.Context, job followUpJob, meta domain.ConversationMeta) {
	if job.Kind != domain.FollowUpStage1 || meta.LastHandoff {
		return
	}
	dueAt := time.UnixMilli(meta.LastInboundAt).Add(d.config.Stage1Delay)
	if _, err := d.scheduler.ScheduleFollowUp(ctx, job.User, dueAt, domain.FollowUpStage1); err != nil {
		d.log.Warn().Err(err).Str("user", job.User).Msg("failed to requeue stage 1")
	}
}
