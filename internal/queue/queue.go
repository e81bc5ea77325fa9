package queue

import (
	"context"
	"fmt"
)

const (
	// SendQueueName is the work queue for template sends.
	SendQueueName = "dispatch.send"
	// SendWaitQueueName parks retry jobs until their delay elapses; expired
	// messages dead-letter back into the work queue.
	SendWaitQueueName = "dispatch.send.wait"
)

// DLQName returns the dead-letter queue for a work queue, e.g. dlq.dispatch.send.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// Scheduler enqueues send jobs for asynchronous execution.
type Scheduler interface {
	// ScheduleSend enqueues a job for immediate pickup.
	ScheduleSend(ctx context.Context, job SendJob) error
	// ScheduleSendIn enqueues a job that becomes visible after delaySeconds.
	ScheduleSendIn(ctx context.Context, job SendJob, delaySeconds int) error
	Close() error
}

// JobHandler handles a consumed send job.
type JobHandler func(ctx context.Context, job SendJob) error

// Consumer consumes send jobs from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler JobHandler) error
	Close() error
}
