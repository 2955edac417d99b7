package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"github.com/IBM/sarama"
)

// MessageHandler processes one consumed message. shouldMark reports whether
// the offset may be committed; unmarked messages are redelivered.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) (shouldMark bool, err error)
}

// Consumer reads run triggers from a topic as part of a consumer group.
type Consumer struct {
	group   sarama.ConsumerGroup
	handler MessageHandler
	topic   string
	groupID string
	ready   chan struct{}
}

type ConsumerConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Handler MessageHandler
}

func NewConsumer(cfg ConsumerConfig) (*Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("kafka: no brokers configured")
	}
	if cfg.Handler == nil {
		return nil, errors.New("kafka: handler is required")
	}

	sc := sarama.NewConfig()
	sc.Version = sarama.V3_6_0_0
	sc.Consumer.Group.Rebalance.GroupStrategies = []sarama.BalanceStrategy{sarama.NewBalanceStrategyRoundRobin()}
	sc.Consumer.Offsets.Initial = sarama.OffsetNewest
	sc.Consumer.Return.Errors = true

	group, err := sarama.NewConsumerGroup(cfg.Brokers, cfg.GroupID, sc)
	if err != nil {
		return nil, err
	}

	return &Consumer{
		group:   group,
		handler: cfg.Handler,
		topic:   cfg.Topic,
		groupID: cfg.GroupID,
		ready:   make(chan struct{}),
	}, nil
}

// Start consumes in the background until ctx is cancelled. It returns once
// the first session is set up.
func (c *Consumer) Start(ctx context.Context) error {
	h := &groupHandler{handler: c.handler, ready: c.ready}

	go func() {
		for {
			if err := c.group.Consume(ctx, []string{c.topic}, h); err != nil {
				if errors.Is(err, sarama.ErrClosedConsumerGroup) || errors.Is(err, context.Canceled) {
					return
				}
				slog.Error("kafka consume failed", "topic", c.topic, "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			h.ready = make(chan struct{})
		}
	}()

	go func() {
		for err := range c.group.Errors() {
			slog.Error("kafka consumer error", "error", err)
		}
	}()

	select {
	case <-c.ready:
	case <-ctx.Done():
		return ctx.Err()
	}
	slog.Info("kafka consumer started", "group", c.groupID, "topic", c.topic)
	return nil
}

func (c *Consumer) Close() error {
	slog.Info("closing kafka consumer", "group", c.groupID)
	return c.group.Close()
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	handler MessageHandler
	ready   chan struct{}
}

func (h *groupHandler) Setup(sarama.ConsumerGroupSession) error {
	close(h.ready)
	return nil
}

func (h *groupHandler) Cleanup(sarama.ConsumerGroupSession) error { return nil }

func (h *groupHandler) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			slog.Debug("kafka message received", "partition", msg.Partition, "offset", msg.Offset, "key", string(msg.Key))

			mark, err := h.handler.HandleMessage(session.Context(), msg.Value)
			if err != nil {
				slog.Error("failed to handle kafka message", "offset", msg.Offset, "error", err)
			}
			if mark {
				session.MarkMessage(msg, "")
			}
		case <-session.Context().Done():
			return nil
		}
	}
}

// TypedMessageHandler decodes JSON messages into T before processing them.
type TypedMessageHandler[T any] struct {
	// Validate rejects messages that should not be processed.
	Validate func(msg *T) bool
	Process  func(ctx context.Context, msg *T) error
	// AlwaysMark commits undecodable and invalid messages so they are not retried.
	AlwaysMark bool
}

func (h *TypedMessageHandler[T]) HandleMessage(ctx context.Context, message []byte) (bool, error) {
	var msg T
	if err := json.Unmarshal(message, &msg); err != nil {
		slog.Warn("dropping undecodable kafka message", "error", err)
		return h.AlwaysMark, nil
	}
	if h.Validate != nil && !h.Validate(&msg) {
		return h.AlwaysMark, nil
	}
	if err := h.Process(ctx, &msg); err != nil {
		return false, err
	}
	return true, nil
}
