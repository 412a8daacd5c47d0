package consumers

import (
	"context"
	"strings"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cart-service/config"
	"cart-service/datasource"
	"cart-service/rabbitmq"
)

const revalidateTimeout = 30 * time.Second

type Consumer struct {
	revalidators map[datasource.Policy]datasource.Revalidator
	logger       *zap.Logger
}

func NewConsumer(revalidators map[datasource.Policy]datasource.Revalidator, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Consumer{revalidators: revalidators, logger: logger}
}

// Revalidators 从数据源中挑出支持重新验证的模式
func Revalidators(sources map[datasource.Policy]datasource.Source) map[datasource.Policy]datasource.Revalidator {
	out := make(map[datasource.Policy]datasource.Revalidator)
	for policy, src := range sources {
		if rv, ok := src.(datasource.Revalidator); ok {
			out[policy] = rv
		}
	}
	return out
}

func (c *Consumer) Start(ch *amqp.Channel, cfg *config.Config) error {
	// 消费重新验证队列
	msgs, err := ch.Consume(
		cfg.RevalidateQueue,
		"cart-service", // consumer tag
		false,          // auto-ack
		false,          // exclusive
		false,          // no-local
		false,          // no-wait
		nil,
	)
	if err != nil {
		return err
	}

	go func() {
		for msg := range msgs {
			c.processMessage(msg)
		}
	}()

	// 消费死信队列
	dlqMsgs, err := ch.Consume(
		cfg.DeadLetterQueue,
		"cart-service-dlq", // consumer tag
		false,              // auto-ack
		false,              // exclusive
		false,              // no-local
		false,              // no-wait
		nil,
	)
	if err != nil {
		c.logger.Warn("failed to register DLQ consumer", zap.Error(err))
		return nil
	}

	go func() {
		for msg := range dlqMsgs {
			c.processDeadLetterMessage(msg)
		}
	}()
	return nil
}

func (c *Consumer) processMessage(msg amqp.Delivery) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("recovered from panic in message processing", zap.Any("panic", r))
			_ = msg.Nack(false, false)
		}
	}()

	parts := strings.Split(string(msg.Body), "|")
	if len(parts) < 2 || (parts[1] != rabbitmq.EventRevalidate && parts[1] != rabbitmq.EventRefresh) {
		c.logger.Warn("invalid message format", zap.ByteString("body", msg.Body))
		// 拒绝消息，不重新入队，进入死信队列
		_ = msg.Nack(false, false)
		return
	}

	policy := datasource.Policy(parts[0])
	rv, ok := c.revalidators[policy]
	if !ok {
		c.logger.Warn("no revalidator for mode", zap.String("mode", parts[0]))
		_ = msg.Nack(false, false)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), revalidateTimeout)
	defer cancel()
	run := rv.Revalidate
	if parts[1] == rabbitmq.EventRefresh {
		run = rv.Refresh
	}
	if err := run(ctx); err != nil {
		// 失败时保留旧快照，下次请求会再次触发
		c.logger.Warn("revalidation failed", zap.String("mode", parts[0]), zap.String("event", parts[1]), zap.Error(err))
	} else {
		c.logger.Info("snapshot revalidated", zap.String("mode", parts[0]), zap.String("event", parts[1]))
	}

	// 处理完成后确认消息
	_ = msg.Ack(false)
}

func (c *Consumer) processDeadLetterMessage(msg amqp.Delivery) {
	c.logger.Warn("received dead letter", zap.ByteString("body", msg.Body))
	_ = msg.Ack(false)
}
