// Package queue consumes document enrichment requests from a redis list.
package queue

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	apperrors "go-image-enricher/internal/errors"
	"go-image-enricher/internal/logger"
	"go-image-enricher/pkg/models"
)

const (
	defaultPollTimeout = time.Second
	defaultRetryDelay  = time.Second
	poisonSuffix       = "-poison"
)

// Handler processes one decoded message.
type Handler func(ctx context.Context, msg models.QueueMessage)

// Config holds connection settings for the redis queue.
type Config struct {
	Addr     string
	Password string
	DB       int
	Queue    string
}

// Consumer pops messages from a redis list and hands valid ones to a Handler. Messages that
// fail to decode are moved to the poison list.
type Consumer struct {
	client      *redis.Client
	queue       string
	validate    *validator.Validate
	pollTimeout time.Duration
	retryDelay  time.Duration
}

// NewConsumer connects to redis and verifies the connection.
func NewConsumer(ctx context.Context, cfg Config) (*Consumer, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address required")
	}
	if cfg.Queue == "" {
		return nil, fmt.Errorf("queue name required")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Consumer{
		client:      client,
		queue:       cfg.Queue,
		validate:    validator.New(),
		pollTimeout: defaultPollTimeout,
		retryDelay:  defaultRetryDelay,
	}, nil
}

// Queue returns the list name the consumer reads from.
func (c *Consumer) Queue() string { return c.queue }

// PoisonQueue returns the list undecodable messages are moved to.
func (c *Consumer) PoisonQueue() string { return c.queue + poisonSuffix }

// Push enqueues a message.
func (c *Consumer) Push(ctx context.Context, msg models.QueueMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return c.client.RPush(ctx, c.queue, data).Err()
}

// Run blocks popping messages until ctx is cancelled. Each valid message is passed to handle on
// the calling goroutine.
func (c *Consumer) Run(ctx context.Context, handle Handler) error {
	log := logger.WithField("queue", c.queue)
	log.Info("Queue consumer started")

	for {
		if ctx.Err() != nil {
			log.Info("Queue consumer stopped")
			return nil
		}

		result, err := c.client.BLPop(ctx, c.pollTimeout, c.queue).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			log.WithError(err).Warn("Queue pop failed")
			select {
			case <-ctx.Done():
			case <-time.After(c.retryDelay):
			}
			continue
		}

		// BLPOP replies with [key, value]
		payload := []byte(result[1])
		msg, err := c.Decode(payload)
		if err != nil {
			log.WithError(err).WithField("payload_bytes", len(payload)).Error("Discarding undecodable queue message")
			if perr := c.client.RPush(context.WithoutCancel(ctx), c.PoisonQueue(), payload).Err(); perr != nil {
				log.WithError(perr).Error("Failed to move message to poison queue")
			}
			continue
		}

		handle(ctx, msg)
	}
}

// Decode parses a queue payload. Payloads may be raw JSON or base64-encoded JSON.
func (c *Consumer) Decode(payload []byte) (models.QueueMessage, error) {
	var msg models.QueueMessage

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) > 0 && trimmed[0] != '{' {
		decoded, err := base64.StdEncoding.DecodeString(string(trimmed))
		if err != nil {
			return msg, apperrors.NewValidationError("queue message is neither JSON nor base64", err)
		}
		trimmed = decoded
	}

	if err := json.Unmarshal(trimmed, &msg); err != nil {
		return msg, apperrors.NewValidationError("invalid queue message JSON", err)
	}
	if err := c.validate.Struct(msg); err != nil {
		return msg, apperrors.NewValidationError("queue message missing required fields", err)
	}
	return msg, nil
}

// Close releases the redis connection.
func (c *Consumer) Close() error {
	return c.client.Close()
}
