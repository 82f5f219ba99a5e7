package rabbitmq

import (
	"errors"
	"testing"

	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type acknowledgerFake struct {
	acked    bool
	nacked   bool
	requeued bool
}

func (a *acknowledgerFake) Ack(tag uint64, multiple bool) error {
	a.acked = true
	return nil
}

func (a *acknowledgerFake) Nack(tag uint64, multiple bool, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func (a *acknowledgerFake) Reject(tag uint64, requeue bool) error {
	a.nacked = true
	a.requeued = requeue
	return nil
}

func TestHandleDelivery_AcksOnSuccess(t *testing.T) {
	ack := &acknowledgerFake{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	handleDelivery(delivery, func([]byte) error { return nil })

	assert.True(t, ack.acked)
	assert.False(t, ack.nacked)
}

func TestHandleDelivery_NacksWithoutRequeueOnError(t *testing.T) {
	ack := &acknowledgerFake{}
	delivery := amqp.Delivery{Acknowledger: ack, DeliveryTag: 1, Body: []byte(`{}`)}

	handleDelivery(delivery, func([]byte) error { return errors.New("chat not found") })

	require.True(t, ack.nacked)
	assert.False(t, ack.requeued)
	assert.False(t, ack.acked)
}
