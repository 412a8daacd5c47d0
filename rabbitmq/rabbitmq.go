package rabbitmq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"cart-service/config"
	"cart-service/datasource"
)

const (
	// EventRevalidate 定时到期的重新验证
	EventRevalidate = "revalidate"
	// EventRefresh 按需立即刷新
	EventRefresh = "refresh"
)

// Publisher 发布消息的最小接口，便于测试
type Publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

type RabbitMQ struct {
	Conn    *amqp.Connection
	Channel *amqp.Channel
	Cfg     *config.Config

	publisher Publisher
	logger    *zap.Logger
}

func NewRabbitMQ(cfg *config.Config, logger *zap.Logger) (*RabbitMQ, error) {
	conn, err := amqp.Dial(cfg.RabbitMQURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, err
	}

	return &RabbitMQ{
		Conn:      conn,
		Channel:   ch,
		Cfg:       cfg,
		publisher: ch,
		logger:    logger,
	}, nil
}

// NewWithPublisher 使用自定义发布者（测试或复用已有通道）
func NewWithPublisher(cfg *config.Config, p Publisher, logger *zap.Logger) *RabbitMQ {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RabbitMQ{Cfg: cfg, publisher: p, logger: logger}
}

func (r *RabbitMQ) SetupQueues() error {
	// 声明死信交换机和队列
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DeadLetterQueue+"_exchange",
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	_, err := r.Channel.QueueDeclare(
		r.Cfg.DeadLetterQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-queue-type": "classic",
		},
	)
	if err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.DeadLetterQueue,
		"",
		r.Cfg.DeadLetterQueue+"_exchange",
		false,
		nil,
	); err != nil {
		return err
	}

	if err := r.Channel.ExchangeDeclare(
		r.Cfg.CartsExchange,
		"direct",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	); err != nil {
		return err
	}

	// 声明延迟交换机（需要RabbitMQ安装延迟插件）
	delayed := true
	if err := r.Channel.ExchangeDeclare(
		r.Cfg.DelayExchange,
		"x-delayed-message",
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		amqp.Table{"x-delayed-type": "direct"},
	); err != nil {
		delayed = false
		r.logger.Warn("delayed exchange not supported", zap.Error(err))
		// 声明失败会关闭通道
		if r.Channel.IsClosed() {
			ch, chErr := r.Conn.Channel()
			if chErr != nil {
				return chErr
			}
			r.Channel = ch
			r.publisher = ch
		}
	}

	// 声明重新验证队列（带优先级和死信）
	_, err = r.Channel.QueueDeclare(
		r.Cfg.RevalidateQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		amqp.Table{
			"x-max-priority":            r.Cfg.MaxPriority,
			"x-dead-letter-exchange":    r.Cfg.DeadLetterQueue + "_exchange",
			"x-dead-letter-routing-key": r.Cfg.DeadLetterQueue,
		},
	)
	if err != nil {
		return err
	}

	if err := r.Channel.QueueBind(
		r.Cfg.RevalidateQueue,
		"",
		r.Cfg.CartsExchange,
		false,
		nil,
	); err != nil {
		return err
	}

	if delayed {
		if err := r.Channel.QueueBind(
			r.Cfg.RevalidateQueue,
			"",
			r.Cfg.DelayExchange,
			false,
			nil,
		); err != nil {
			return err
		}
	}

	return nil
}

func messageBody(policy datasource.Policy, event string) []byte {
	return []byte(string(policy) + "|" + event)
}

// PublishRevalidateEvent 立即投递一条带优先级的刷新消息
func (r *RabbitMQ) PublishRevalidateEvent(policy datasource.Policy, priority int) error {
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "text/plain",
		Body:         messageBody(policy, EventRefresh),
		Priority:     uint8(priority),
	}

	return r.publisher.Publish(
		r.Cfg.CartsExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

func (r *RabbitMQ) PublishDelayedRevalidate(policy datasource.Policy, delay time.Duration) error {
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		Timestamp:    time.Now(),
		ContentType:  "text/plain",
		Body:         messageBody(policy, EventRevalidate),
		Headers: amqp.Table{
			"x-delay": delay.Milliseconds(), // 延迟时间（毫秒）
		},
	}

	return r.publisher.Publish(
		r.Cfg.DelayExchange,
		"",
		false, // mandatory
		false, // immediate
		msg,
	)
}

// ScheduleRevalidate 实现 datasource.RevalidationScheduler
func (r *RabbitMQ) ScheduleRevalidate(policy datasource.Policy, after time.Duration) error {
	return r.PublishDelayedRevalidate(policy, after)
}

// RequestRefresh 以最高优先级排队，插在定时消息之前处理
func (r *RabbitMQ) RequestRefresh(policy datasource.Policy) error {
	return r.PublishRevalidateEvent(policy, r.Cfg.MaxPriority)
}

func (r *RabbitMQ) Close() {
	if r.Channel != nil {
		err := r.Channel.Close()
		if err != nil {
			return
		}
	}
	if r.Conn != nil {
		err := r.Conn.Close()
		if err != nil {
			return
		}
	}
}
