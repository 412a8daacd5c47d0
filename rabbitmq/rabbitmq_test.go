package rabbitmq

import (
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cart-service/config"
	"cart-service/datasource"
)

type published struct {
	exchange string
	msg      amqp.Publishing
}

type recordingPublisher struct {
	sent []published
}

func (p *recordingPublisher) Publish(exchange, _ string, _, _ bool, msg amqp.Publishing) error {
	p.sent = append(p.sent, published{exchange: exchange, msg: msg})
	return nil
}

func testConfig() *config.Config {
	return &config.Config{
		CartsExchange: "carts_exchange",
		DelayExchange: "carts_delay_exchange",
	}
}

func TestPublishRevalidateEvent(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewWithPublisher(testConfig(), pub, nil)

	require.NoError(t, r.PublishRevalidateEvent(datasource.PolicyStatic, 7))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "carts_exchange", pub.sent[0].exchange)
	assert.Equal(t, "static|refresh", string(pub.sent[0].msg.Body))
	assert.Equal(t, uint8(7), pub.sent[0].msg.Priority)
	assert.Equal(t, amqp.Persistent, pub.sent[0].msg.DeliveryMode)
}

func TestRequestRefreshUsesMaxPriority(t *testing.T) {
	pub := &recordingPublisher{}
	cfg := testConfig()
	cfg.MaxPriority = 10
	r := NewWithPublisher(cfg, pub, nil)

	require.NoError(t, r.RequestRefresh(datasource.PolicyStatic))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "carts_exchange", pub.sent[0].exchange)
	assert.Equal(t, uint8(10), pub.sent[0].msg.Priority)
	assert.Equal(t, "static|refresh", string(pub.sent[0].msg.Body))
}

func TestScheduleRevalidateUsesDelayExchange(t *testing.T) {
	pub := &recordingPublisher{}
	r := NewWithPublisher(testConfig(), pub, nil)

	require.NoError(t, r.ScheduleRevalidate(datasource.PolicyStatic, time.Minute))
	require.Len(t, pub.sent, 1)
	assert.Equal(t, "carts_delay_exchange", pub.sent[0].exchange)
	assert.Equal(t, int64(60000), pub.sent[0].msg.Headers["x-delay"])
	assert.Equal(t, "static|revalidate", string(pub.sent[0].msg.Body))
}
