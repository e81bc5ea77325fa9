package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/ordercast/wadispatch/internal/queue"
)

const minWorkerConcurrency = 1

// Worker consumes send jobs and executes them through the dispatch service.
type Worker struct {
	dispatch    *DispatchService
	consumer    queue.Consumer
	concurrency int
	logger      *zap.Logger
}

func NewWorker(dispatch *DispatchService, consumer queue.Consumer, concurrency int, logger *zap.Logger) (*Worker, error) {
	if dispatch == nil {
		return nil, fmt.Errorf("dispatch service is required")
	}
	if consumer == nil {
		return nil, fmt.Errorf("consumer is required")
	}
	if concurrency < minWorkerConcurrency {
		concurrency = minWorkerConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Worker{
		dispatch:    dispatch,
		consumer:    consumer,
		concurrency: concurrency,
		logger:      logger,
	}, nil
}

// Start consumes the send queue until context cancellation.
func (w *Worker) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	g, groupCtx := errgroup.WithContext(ctx)
	for i := 0; i < w.concurrency; i++ {
		workerID := i + 1

		g.Go(func() error {
			w.logger.Info("worker started",
				zap.Int("workerId", workerID),
				zap.String("queue", queue.SendQueueName),
			)

			err := w.consumer.Consume(groupCtx, queue.SendQueueName, w.dispatch.ExecuteSend)
			if err != nil {
				w.logger.Error("worker stopped with error",
					zap.Int("workerId", workerID),
					zap.Error(err),
				)
				return err
			}

			w.logger.Info("worker stopped", zap.Int("workerId", workerID))
			return nil
		})
	}

	return g.Wait()
}
