package consumers

import (
	"context"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"

	"cart-service/datasource"
	"cart-service/models"
)

type ackRecorder struct {
	acked, nacked, requeued int
}

func (a *ackRecorder) Ack(uint64, bool) error { a.acked++; return nil }

func (a *ackRecorder) Nack(_ uint64, _ bool, requeue bool) error {
	a.nacked++
	if requeue {
		a.requeued++
	}
	return nil
}

func (a *ackRecorder) Reject(uint64, bool) error { return nil }

type countingRevalidator struct {
	calls     int
	refreshes int
	err       error
}

func (c *countingRevalidator) Revalidate(context.Context) error {
	c.calls++
	return c.err
}

func (c *countingRevalidator) Refresh(context.Context) error {
	c.refreshes++
	return c.err
}

func delivery(body string, ack amqp.Acknowledger) amqp.Delivery {
	return amqp.Delivery{Acknowledger: ack, Body: []byte(body)}
}

func TestProcessMessageRevalidatesAndAcks(t *testing.T) {
	rv := &countingRevalidator{}
	c := NewConsumer(map[datasource.Policy]datasource.Revalidator{datasource.PolicyStatic: rv}, nil)
	ack := &ackRecorder{}

	c.processMessage(delivery("static|revalidate", ack))
	assert.Equal(t, 1, rv.calls)
	assert.Equal(t, 1, ack.acked)
	assert.Zero(t, ack.nacked)
}

func TestProcessMessageRefreshesOnDemand(t *testing.T) {
	rv := &countingRevalidator{}
	c := NewConsumer(map[datasource.Policy]datasource.Revalidator{datasource.PolicyStatic: rv}, nil)
	ack := &ackRecorder{}

	c.processMessage(delivery("static|refresh", ack))
	assert.Equal(t, 1, rv.refreshes)
	assert.Zero(t, rv.calls)
	assert.Equal(t, 1, ack.acked)
}

func TestProcessMessageAcksWhenRevalidationFails(t *testing.T) {
	rv := &countingRevalidator{err: errors.New("upstream down")}
	c := NewConsumer(map[datasource.Policy]datasource.Revalidator{datasource.PolicyStatic: rv}, nil)
	ack := &ackRecorder{}

	c.processMessage(delivery("static|revalidate", ack))
	assert.Equal(t, 1, rv.calls)
	assert.Equal(t, 1, ack.acked)
}

func TestProcessMessageRejectsMalformed(t *testing.T) {
	rv := &countingRevalidator{}
	c := NewConsumer(map[datasource.Policy]datasource.Revalidator{datasource.PolicyStatic: rv}, nil)

	for _, body := range []string{"garbage", "static|explode", "dynamic|revalidate"} {
		ack := &ackRecorder{}
		c.processMessage(delivery(body, ack))
		assert.Equal(t, 1, ack.nacked, body)
		assert.Zero(t, ack.requeued, body)
		assert.Zero(t, ack.acked, body)
	}
	assert.Zero(t, rv.calls)
	assert.Zero(t, rv.refreshes)
}

func TestProcessDeadLetterAcks(t *testing.T) {
	c := NewConsumer(nil, nil)
	ack := &ackRecorder{}
	c.processDeadLetterMessage(delivery("garbage", ack))
	assert.Equal(t, 1, ack.acked)
}

type plainSource struct{}

func (plainSource) Carts(context.Context) (*models.CartsResponse, error) { return nil, nil }
func (plainSource) Policy() datasource.Policy                            { return datasource.PolicyClient }

type revalidatingSource struct {
	plainSource
	*countingRevalidator
}

func TestRevalidatorsPicksStatic(t *testing.T) {
	static := revalidatingSource{countingRevalidator: &countingRevalidator{}}
	got := Revalidators(map[datasource.Policy]datasource.Source{
		datasource.PolicyClient: plainSource{},
		datasource.PolicyStatic: static,
	})
	assert.Len(t, got, 1)
	assert.Contains(t, got, datasource.PolicyStatic)
}
