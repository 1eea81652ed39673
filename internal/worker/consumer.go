package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// RunMessage is the body of a run-now request
type RunMessage struct {
	JobID string `json:"job_id"`
}

// setupConsumer sets QoS and starts consuming run-now requests
func (w *Worker) setupConsumer() (<-chan amqp.Delivery, error) {
	if w.queue == nil {
		return nil, fmt.Errorf("no run-now queue configured")
	}

	// per-consumer prefetch, no byte limit
	if err := w.queue.Qos(w.prefetchCount); err != nil {
		return nil, fmt.Errorf("failed to set QoS: %w", err)
	}

	deliveries, err := w.queue.Consume(w.workerID)
	if err != nil {
		return nil, fmt.Errorf("failed to start consuming: %w", err)
	}

	w.logger.Info("RabbitMQ consumer started",
		slog.Int("prefetch_count", w.prefetchCount),
	)

	return deliveries, nil
}

// startMessageDispatcher listens to deliveries and hands valid requests to
// the worker pool. Malformed messages are dropped without requeue.
func (w *Worker) startMessageDispatcher(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("Message dispatcher stopped - context canceled")
			return

		case <-w.stopChan:
			w.logger.Info("Message dispatcher stopped - worker stopping")
			return

		case delivery, ok := <-deliveries:
			if !ok {
				w.logger.Warn("RabbitMQ delivery channel closed")
				return
			}

			var msg RunMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				w.logger.Error("Failed to parse message JSON",
					slog.Any("error", err),
					slog.String("body", string(delivery.Body)),
				)
				w.reject(delivery)
				continue
			}

			if _, err := uuid.Parse(msg.JobID); err != nil {
				w.logger.Error("Invalid job_id format - not a UUID",
					slog.String("job_id", msg.JobID),
				)
				w.reject(delivery)
				continue
			}

			select {
			case w.jobsChan <- &runRequest{JobID: msg.JobID, Delivery: delivery}:
			case <-ctx.Done():
				// hand the message back for another consumer
				if err := delivery.Nack(false, true); err != nil {
					w.logger.Error("Failed to NACK message on shutdown", slog.Any("error", err))
				}
				return
			case <-w.stopChan:
				if err := delivery.Nack(false, true); err != nil {
					w.logger.Error("Failed to NACK message on shutdown", slog.Any("error", err))
				}
				return
			}
		}
	}
}

func (w *Worker) reject(delivery amqp.Delivery) {
	if err := delivery.Nack(false, false); err != nil {
		w.logger.Error("Failed to NACK malformed message", slog.Any("error", err))
	}
}
