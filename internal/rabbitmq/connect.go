// Package rabbitmq содержит подключение к RabbitMQ и настройку
// очереди рассылок: админские пики публикуются в обменник broadcasts
// и доставляются подписчикам воркером-отправителем.
package rabbitmq

import (
	"fmt"
	"time"

	"github.com/streadway/amqp"
)

// Имена обменника, очереди и ключа маршрутизации рассылок.
const (
	BroadcastExchange   = "broadcasts"
	BroadcastQueue      = "broadcasts.picks"
	BroadcastRoutingKey = "picks"
)

func Connect(connection string, retries int, delay time.Duration) (*amqp.Connection, error) {
	const op = "rabbitmq.Connect"
	var conn *amqp.Connection
	var err error

	for range retries {
		conn, err = amqp.Dial(connection)
		if err == nil {
			return conn, nil
		}
		time.Sleep(delay)
	}

	return nil, fmt.Errorf("%s: %w", op, err)
}
