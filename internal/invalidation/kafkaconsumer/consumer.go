// Package kafkaconsumer applies dataset update notifications from Kafka to
// the dataset caches.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	obs "github.com/mohammed-shakir/bikeways-nearby/internal/core/observability"
	"github.com/mohammed-shakir/bikeways-nearby/internal/invalidation"
)

// Invalidator drops or reloads one named dataset.
type Invalidator interface {
	InvalidateDataset(ctx context.Context, name string) error
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	target Invalidator
	dedupe *invalidation.Dedupe
}

func New(cfg Config, logger *slog.Logger, target Invalidator) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	cfg = cfg.withDefaults()
	return &Consumer{
		cfg:    cfg,
		logger: logger.With("component", "kafka_consumer"),
		target: target,
		dedupe: invalidation.NewDedupe(cfg.DedupeSize),
	}
}

// Start joins the consumer group and blocks until ctx is done.
func (c *Consumer) Start(ctx context.Context) error {
	if c.target == nil {
		return errors.New("kafkaconsumer: missing invalidation target")
	}

	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}
	c.logger.Info("dataset invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("dataset invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "err", err, "topic", c.cfg.Topic)
				select {
				case <-ctx.Done():
				case <-time.After(2 * time.Second):
				}
			}
		}
	}
}

// ProcessOne applies a single message. Malformed, stale and unknown-dataset
// messages are skipped; only a failing invalidation is returned as an error.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	start := time.Now()

	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		obs.ObserveInvalidation("", "decode_error", time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "skipping undecodable message",
			"partition", msg.Partition, "offset", msg.Offset, "err", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		obs.ObserveInvalidation(ev.Dataset, "invalid", time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "skipping invalid event",
			"dataset", ev.Dataset, "offset", msg.Offset, "err", err)
		return nil
	}
	if !c.dedupe.ShouldApply(ev.Dataset, ev.Revision) {
		obs.ObserveInvalidation(ev.Dataset, "stale", time.Since(start).Seconds())
		c.logger.DebugContext(ctx, "stale revision", "dataset", ev.Dataset, "revision", ev.Revision)
		return nil
	}

	err := c.target.InvalidateDataset(ctx, ev.Dataset)
	switch {
	case errors.Is(err, invalidation.ErrUnknownDataset):
		obs.ObserveInvalidation(ev.Dataset, "unknown", time.Since(start).Seconds())
		c.logger.WarnContext(ctx, "event for unknown dataset", "dataset", ev.Dataset)
		return nil
	case err != nil:
		c.dedupe.Forget(ev.Dataset, ev.Revision)
		obs.ObserveInvalidation(ev.Dataset, "error", time.Since(start).Seconds())
		return fmt.Errorf("invalidate %s: %w", ev.Dataset, err)
	}

	obs.ObserveInvalidation(ev.Dataset, "applied", time.Since(start).Seconds())
	c.logger.InfoContext(ctx, "dataset invalidated",
		"dataset", ev.Dataset, "op", ev.Op, "revision", ev.Revision)
	return nil
}
