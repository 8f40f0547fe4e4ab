package bootstrap

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"triage_server/adapter/in/worker"
	"triage_server/adapter/out/messaging"
	"triage_server/pkg/logger"
)

const consumerGroup = "triage-workers"

// Worker runs the follow-up dispatcher and, with Redis, the outbound stream consumer.
type Worker struct {
	dispatcher *worker.Dispatcher
	consumer   *messaging.Consumer
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	zlog       zerolog.Logger
}

func NewWorker(deps *Dependencies) *Worker {
	cfg := deps.Config
	zlog := logger.Component("worker")

	ctx, cancel := context.WithCancel(context.Background())
	w := &Worker{
		dispatcher: deps.Dispatcher,
		ctx:        ctx,
		cancel:     cancel,
		zlog:       zlog,
	}

	// Redis Stream Consumer 설정 (Redis가 있을 때만)
	if deps.Redis != nil {
		w.consumer = messaging.NewConsumer(deps.Redis, &messaging.ConsumerConfig{
			Group:                consumerGroup,
			Consumer:             cfg.WorkerID,
			Streams:              []string{messaging.StreamOutbound},
			Handler:              messaging.NewOutboundHandler(deps.Sender),
			Logger:               zlog,
			Block:                time.Duration(cfg.ConsumerBlockMS) * time.Millisecond,
			BatchSize:            int64(cfg.ConsumerBatchSize),
			PendingCheckInterval: time.Duration(cfg.ConsumerPendingCheckSec) * time.Second,
			MaxRetries:           cfg.ConsumerMaxRetries,
		})
	} else {
		logger.Info("Redis not configured, outbound messages are sent inline")
	}

	return w
}

// Start runs until Stop is called.
func (w *Worker) Start() {
	if w.consumer != nil {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			if err := w.consumer.Run(w.ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.zlog.Error().Err(err).Msg("outbound consumer stopped")
			}
		}()
	}

	w.dispatcher.Start()
	w.zlog.Info().Bool("consumer", w.consumer != nil).Msg("worker started")

	<-w.ctx.Done()
}

func (w *Worker) Stop() {
	w.cancel()
	w.dispatcher.Stop()
	w.wg.Wait()
}
