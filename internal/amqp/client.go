package amqp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Circuit breaker states.
const (
	StateClosed int32 = iota
	StateOpen
	StateHalfOpen
)

const (
	// maxFailures is the number of consecutive publish failures before the
	// circuit opens and publishes are rejected without touching the broker.
	maxFailures = 5
	// openTimeout is how long the circuit stays open before a probe is allowed.
	openTimeout = 30 * time.Second
)

type Client struct {
	url          string
	conn         *amqp091.Connection
	channel      *amqp091.Channel
	exchangeName string
	entryQueue   string
	scanQueue    string

	failureCount int64
	state        int32
	mu           sync.Mutex
	lastFailure  time.Time
}

// NewClient connects to the broker and declares the exchange plus the two
// queues used by the engine: one for entry-recorded events, one for scan
// requests.
func NewClient(url, exchangeName, entryQueue, scanQueue string) (*Client, error) {
	conn, err := amqp091.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	client := &Client{
		url:          url,
		conn:         conn,
		channel:      channel,
		exchangeName: exchangeName,
		entryQueue:   entryQueue,
		scanQueue:    scanQueue,
	}

	if err := client.setup(); err != nil {
		client.Close()
		return nil, fmt.Errorf("setup exchange and queues: %w", err)
	}

	return client, nil
}

func (c *Client) setup() error {
	err := c.channel.ExchangeDeclare(
		c.exchangeName, // name
		"direct",       // type
		true,           // durable
		false,          // auto-deleted
		false,          // internal
		false,          // no-wait
		nil,            // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	for _, queue := range []string{c.entryQueue, c.scanQueue} {
		_, err = c.channel.QueueDeclare(
			queue, // name
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,   // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", queue, err)
		}

		// Routing key is the queue name, direct exchange.
		err = c.channel.QueueBind(queue, queue, c.exchangeName, false, nil)
		if err != nil {
			return fmt.Errorf("bind queue %s: %w", queue, err)
		}
	}

	return nil
}

// PublishEntryRecorded publishes an entry-recorded event so the worker can
// re-evaluate the user's spending flag.
func (c *Client) PublishEntryRecorded(ctx context.Context, entryID, userID, entryType string) error {
	msg := NewEntryRecordedMessage(entryID, userID, entryType)
	body, err := msg.ToJSON()
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.entryQueue, body); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Published entry recorded message",
		"entry_id", entryID,
		"user_id", userID,
		"exchange", c.exchangeName,
		"queue", c.entryQueue)

	return nil
}

// PublishScanRequest publishes a vulnerability scan request.
func (c *Client) PublishScanRequest(ctx context.Context, lookbackDays int, requestedBy string) (string, error) {
	msg := NewScanRequestMessage(lookbackDays, requestedBy)
	body, err := msg.ToJSON()
	if err != nil {
		return "", fmt.Errorf("marshal message: %w", err)
	}

	if err := c.publish(ctx, c.scanQueue, body); err != nil {
		return "", err
	}

	slog.InfoContext(ctx, "Published scan request",
		"request_id", msg.RequestID,
		"lookback_days", lookbackDays,
		"exchange", c.exchangeName,
		"queue", c.scanQueue)

	return msg.RequestID, nil
}

func (c *Client) publish(ctx context.Context, routingKey string, body []byte) error {
	if c.isCircuitOpen() {
		return fmt.Errorf("circuit breaker is open, refusing to publish to %s", routingKey)
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	err := c.channel.PublishWithContext(
		ctx,
		c.exchangeName, // exchange
		routingKey,     // routing key
		false,          // mandatory
		false,          // immediate
		amqp091.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp091.Persistent,
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
	if err != nil {
		c.recordFailure()
		return fmt.Errorf("publish message: %w", err)
	}

	c.recordSuccess()
	return nil
}

// ConsumeEntryRecorded consumes entry-recorded events and invokes the handler
// for each one. Messages that fail to decode are rejected without requeue;
// handler failures requeue the delivery.
func (c *Client) ConsumeEntryRecorded(ctx context.Context, handler func(*EntryRecordedMessage) error) error {
	return c.consume(ctx, c.entryQueue, func(body []byte) error {
		msg, err := EntryRecordedMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return handler(msg)
	})
}

// ConsumeScanRequests consumes vulnerability scan requests.
func (c *Client) ConsumeScanRequests(ctx context.Context, handler func(*ScanRequestMessage) error) error {
	return c.consume(ctx, c.scanQueue, func(body []byte) error {
		msg, err := ScanRequestMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: %v", errBadMessage, err)
		}
		return handler(msg)
	})
}

var errBadMessage = fmt.Errorf("malformed message")

func (c *Client) consume(ctx context.Context, queue string, handle func([]byte) error) error {
	for attempt := 0; ; attempt++ {
		err := c.consumeOnce(ctx, queue, handle)
		if err == nil || ctx.Err() != nil {
			return ctx.Err()
		}
		if !isConnectionError(err) {
			return err
		}

		backoff := exponentialBackoff(attempt)
		slog.ErrorContext(ctx, "Consumer lost connection, retrying",
			"queue", queue,
			"error", err,
			"backoff", backoff)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}

		if err := c.reconnect(); err != nil {
			slog.ErrorContext(ctx, "Reconnect failed", "queue", queue, "error", err)
			continue
		}
		attempt = 0
	}
}

func (c *Client) consumeOnce(ctx context.Context, queue string, handle func([]byte) error) error {
	msgs, err := c.channel.Consume(
		queue, // queue
		"",    // consumer
		false, // auto-ack (we want manual ack)
		false, // exclusive
		false, // no-local
		false, // no-wait
		nil,   // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	slog.InfoContext(ctx, "Started consuming messages", "queue", queue)

	for {
		select {
		case <-ctx.Done():
			slog.InfoContext(ctx, "Stopping message consumption", "reason", ctx.Err())
			return nil
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed: connection closed")
			}

			if err := handle(delivery.Body); err != nil {
				if strings.Contains(err.Error(), errBadMessage.Error()) {
					slog.ErrorContext(ctx, "Failed to decode message", "queue", queue, "error", err)
					delivery.Nack(false, false) // reject and don't requeue
					continue
				}
				slog.ErrorContext(ctx, "Failed to handle message", "queue", queue, "error", err)
				delivery.Nack(false, true) // reject and requeue
				continue
			}

			delivery.Ack(false)
		}
	}
}

func (c *Client) reconnect() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	conn, err := amqp091.Dial(c.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}

	channel, err := conn.Channel()
	if err != nil {
		conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	c.conn = conn
	c.channel = channel
	return c.setup()
}

func (c *Client) isCircuitOpen() bool {
	state := atomic.LoadInt32(&c.state)
	if state != StateOpen {
		return false
	}

	c.mu.Lock()
	last := c.lastFailure
	c.mu.Unlock()

	if time.Since(last) > openTimeout {
		atomic.StoreInt32(&c.state, StateHalfOpen)
		return false
	}
	return true
}

func (c *Client) recordSuccess() {
	atomic.StoreInt64(&c.failureCount, 0)
	atomic.StoreInt32(&c.state, StateClosed)
}

func (c *Client) recordFailure() {
	count := atomic.AddInt64(&c.failureCount, 1)
	c.mu.Lock()
	c.lastFailure = time.Now()
	c.mu.Unlock()

	if count >= maxFailures {
		atomic.StoreInt32(&c.state, StateOpen)
	}
}

// exponentialBackoff returns the wait before a reconnect attempt, capped at
// the circuit open timeout.
func exponentialBackoff(attempt int) time.Duration {
	if attempt > 4 {
		return 30 * time.Second
	}
	return time.Duration(1<<uint(attempt)) * time.Second
}

func isConnectionError(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{
		"connection refused",
		"connection closed",
		"EOF",
		"broken pipe",
		"use of closed network connection",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

func (c *Client) Close() error {
	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
