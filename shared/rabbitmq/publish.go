package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	defaultPublishRetries = 3
	defaultPublishDelay   = 100 * time.Millisecond
	defaultBackoffMult    = 2.0
)

// backoff returns the wait before retry number attempt (zero based)
func (c *Config) backoff(attempt int) time.Duration {
	delay := c.PublishRetryDelay
	if delay <= 0 {
		delay = defaultPublishDelay
	}
	mult := c.PublishBackoffMult
	if mult <= 0 {
		mult = defaultBackoffMult
	}

	d := float64(delay)
	for i := 0; i < attempt; i++ {
		d *= mult
	}
	return time.Duration(d)
}

func (c *Config) publishRetries() int {
	if c.PublishRetries <= 0 {
		return defaultPublishRetries
	}
	return c.PublishRetries
}

// PublishWithRetry publishes a persistent message, retrying with exponential
// backoff. It gives up early when ctx is done.
func (c *Client) PublishWithRetry(ctx context.Context, body []byte, contentType string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	retries := c.config.publishRetries()

	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		lastErr = c.channel.PublishWithContext(ctx, c.config.ExchangeName, c.config.RoutingKey, false, false,
			amqp.Publishing{
				ContentType:  contentType,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    time.Now(),
			},
		)
		if lastErr == nil {
			c.logger.Debug("Run-now request published",
				slog.Int("attempt", attempt+1),
				slog.Int("body_size", len(body)),
			)
			return nil
		}

		if attempt == retries {
			break
		}

		wait := c.config.backoff(attempt)
		c.logger.Warn("Publish failed, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("retry_after", wait),
			slog.Any("error", lastErr),
		)

		select {
		case <-ctx.Done():
			return fmt.Errorf("publish cancelled: %w", ctx.Err())
		case <-time.After(wait):
		}
	}

	return fmt.Errorf("failed to publish message after %d attempts: %w", retries+1, lastErr)
}

// Qos limits unacknowledged deliveries per consumer
func (c *Client) Qos(prefetchCount int) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	return c.channel.Qos(prefetchCount, 0, false)
}

// Consume starts a manual-ack consumer on the run-now queue
func (c *Client) Consume(consumerTag string) (<-chan amqp.Delivery, error) {
	if !c.IsConnected() {
		return nil, ErrNotConnected
	}

	deliveries, err := c.channel.Consume(c.config.QueueName, consumerTag, false, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to consume messages: %w", err)
	}

	c.logger.Info("Consuming run-now requests",
		slog.String("queue", c.config.QueueName),
		slog.String("consumer_tag", consumerTag),
	)

	return deliveries, nil
}
