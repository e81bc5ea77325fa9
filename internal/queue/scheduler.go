package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

type RabbitMQScheduler struct {
	client *RabbitMQ
}

func NewRabbitMQScheduler(client *RabbitMQ) *RabbitMQScheduler {
	return &RabbitMQScheduler{client: client}
}

func (s *RabbitMQScheduler) ScheduleSend(ctx context.Context, job SendJob) error {
	return s.publish(ctx, SendQueueName, job, 0)
}

func (s *RabbitMQScheduler) ScheduleSendIn(ctx context.Context, job SendJob, delaySeconds int) error {
	if delaySeconds <= 0 {
		return s.ScheduleSend(ctx, job)
	}
	return s.publish(ctx, SendWaitQueueName, job, delaySeconds)
}

func (s *RabbitMQScheduler) publish(ctx context.Context, queue string, job SendJob, delaySeconds int) error {
	if s == nil || s.client == nil {
		return fmt.Errorf("scheduler is not initialized")
	}
	if err := job.Validate(); err != nil {
		return fmt.Errorf("invalid send job: %w", err)
	}

	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal send job: %w", err)
	}

	ch, err := s.client.channel(ctx)
	if err != nil {
		return err
	}
	defer ch.Close()

	publishing := amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now().UTC(),
		MessageId:    fmt.Sprintf("%d:%s:%d", job.OrderID, job.EventKey, job.Attempt),
		Body:         payload,
	}
	if delaySeconds > 0 {
		publishing.Expiration = strconv.Itoa(delaySeconds * 1000)
	}

	if err := ch.PublishWithContext(ctx, "", queue, false, false, publishing); err != nil {
		return fmt.Errorf("failed to publish job to queue %q: %w", queue, err)
	}

	return nil
}

func (s *RabbitMQScheduler) Close() error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Close()
}
