// Package queue feeds processing jobs from a Kafka topic into the studio.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/reelsmith/reelsmith/internal/media"
)

// Job is the message body on the jobs topic.
type Job struct {
	RequestID   string                   `json:"requestId"`
	InputPath   string                   `json:"inputPath"`
	Transitions []media.TransitionSpec   `json:"transitions"`
	Audios      []media.AudioOverlaySpec `json:"audios"`
}

func (j Job) validate() error {
	if strings.TrimSpace(j.InputPath) == "" {
		return errors.New("inputPath is required")
	}
	return nil
}

// JobRunner runs one decoded job to completion.
type JobRunner interface {
	RunJob(ctx context.Context, job Job) error
}

// Config holds Kafka consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Consumer pulls jobs from a consumer group one message at a time.
type Consumer struct {
	group  sarama.ConsumerGroup
	runner JobRunner
	topic  string
	logger *slog.Logger
}

func NewConsumer(cfg Config, runner JobRunner, logger *slog.Logger) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no kafka brokers configured")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true
	// Renders can take minutes; keep the member alive between messages.
	sc.Consumer.MaxProcessingTime = 30 * time.Minute

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, fmt.Errorf("create consumer group: %w", err)
	}

	return &Consumer{
		group:  group,
		runner: runner,
		topic:  cfg.Topic,
		logger: logger.With("component", "queue", "topic", cfg.Topic, "group", cfg.GroupID),
	}, nil
}

// Run consumes until ctx is cancelled.
func (c *Consumer) Run(ctx context.Context) error {
	go func() {
		for err := range c.group.Errors() {
			c.logger.Error("consumer group error", "error", err)
		}
	}()

	h := &groupHandler{runner: c.runner, logger: c.logger}
	c.logger.Info("kafka consumer started")
	for {
		if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
			if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
				return nil
			}
			c.logger.Error("consume failed", "error", err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (c *Consumer) Close() error {
	return c.group.Close()
}

type groupHandler struct {
	runner JobRunner
	logger *slog.Logger
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error   { return nil }
func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok || msg == nil {
				return nil
			}
			h.logger.Debug("received message", "partition", msg.Partition, "offset", msg.Offset)
			if h.handle(session.Context(), msg.Value) {
				session.MarkMessage(msg, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// handle reports whether the message should be marked consumed. Malformed
// messages and failed runs are marked; a run interrupted by shutdown is not,
// so it is redelivered.
func (h *groupHandler) handle(ctx context.Context, value []byte) bool {
	var job Job
	if err := json.Unmarshal(value, &job); err != nil {
		h.logger.Warn("dropping malformed job", "error", err)
		return true
	}
	if err := job.validate(); err != nil {
		h.logger.Warn("dropping invalid job", "request_id", job.RequestID, "error", err)
		return true
	}

	err := h.runner.RunJob(ctx, job)
	switch {
	case err == nil:
		return true
	case ctx.Err() != nil:
		h.logger.Info("job interrupted, leaving for redelivery", "request_id", job.RequestID)
		return false
	default:
		h.logger.Error("job failed", "request_id", job.RequestID, "error", err)
		return true
	}
}
