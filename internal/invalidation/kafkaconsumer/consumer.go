package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"
	"github.com/rs/zerolog"

	"github.com/mohammed-shakir/autocomplete-gateway/internal/core/model"
	obs "github.com/mohammed-shakir/autocomplete-gateway/internal/core/observability"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/invalidation"
	mylog "github.com/mohammed-shakir/autocomplete-gateway/internal/logger"
	"github.com/mohammed-shakir/autocomplete-gateway/internal/mapper"
)

// Invalidator drops cached results for a dataset, optionally only those
// keyed by the given cells.
type Invalidator interface {
	Invalidate(ctx context.Context, dataset string, cells model.Cells) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	inv    Invalidator
	mapper mapper.Interface
	res    int
	zlog   *zerolog.Logger
	dedupe *versionDedupe
}

// New wires a consumer; res is the H3 resolution result keys are built with.
// zl may be nil.
func New(cfg Config, logger *slog.Logger, zl *zerolog.Logger, inv Invalidator, m mapper.Interface, res int) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	base := mylog.WithComponent(context.Background(), "kafka_consumer")
	return &Consumer{
		cfg:    cfg,
		logger: logger,
		inv:    inv,
		mapper: m,
		res:    res,
		zlog:   mylog.FromContext(base, zl),
		dedupe: newVersionDedupe(cfg.DedupeSize),
	}
}

// consumes invalidation events from kafka until ctx is done
func (c *Consumer) Start(ctx context.Context) error {
	if c.inv == nil || c.mapper == nil {
		return errors.New("kafkaconsumer: missing dependencies (invalidator/mapper)")
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

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) {
					return nil
				}
				c.zlog.Error().Err(err).
					Strs("brokers", c.cfg.Brokers).
					Str("topic", c.cfg.Topic).
					Msg("kafka consumer error")
				select {
				case <-ctx.Done():
				case <-time.After(c.cfg.RetryBackoff):
				}
			}
		}
	}
}

// ProcessOne applies a single dataset-update message. Undecodable or invalid
// events are counted and skipped so they cannot stall the partition; a failed
// invalidation is returned so the message is redelivered.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		c.skip(ctx, msg, "decode", err)
		return nil
	}
	if err := ev.Validate(); err != nil {
		c.skip(ctx, msg, "validate", err)
		return nil
	}

	dkey, version := dedupeKey(ev), ev.TS.UnixNano()
	if c.dedupe.seen(dkey, version) {
		c.logger.Debug("duplicate invalidation event (skipping)", "dataset", ev.Dataset, "op", ev.Op)
		return nil
	}

	var cells model.Cells
	if bb, ok := ev.Area(); ok {
		var err error
		cells, err = c.mapper.CellsForBBox(bb, c.res)
		if err != nil {
			// fall back to dropping the whole dataset
			c.logger.Warn("bbox to cells failed, invalidating dataset", "dataset", ev.Dataset, "err", err)
			cells = nil
		}
	}

	n, err := c.inv.Invalidate(mylog.WithDataset(ctx, ev.Dataset), ev.Dataset, cells)
	obs.ObserveInvalidation(ev.Op, err, n)
	if err != nil {
		obs.IncKafkaConsumerError("invalidate")
		mylog.FromContext(ctx, c.zlog).Error().Err(err).
			Str("kind", "invalidate").
			Str("dataset", ev.Dataset).
			Int32("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("kafka error")
		return fmt.Errorf("invalidate dataset %q: %w", ev.Dataset, err)
	}
	c.dedupe.record(dkey, version)

	mylog.FromContext(ctx, c.zlog).Info().
		Str("event", "invalidation").
		Str("op", ev.Op).Str("dataset", ev.Dataset).
		Int("cells", len(cells)).Int("keys", n).
		Msg("invalidated keys")
	return nil
}

func (c *Consumer) skip(ctx context.Context, msg *sarama.ConsumerMessage, stage string, err error) {
	obs.IncKafkaConsumerError(stage)
	mylog.FromContext(ctx, c.zlog).Error().Err(err).
		Str("kind", stage).
		Str("topic", msg.Topic).
		Int32("partition", msg.Partition).
		Int64("offset", msg.Offset).
		Msg("skipping kafka message")
}
