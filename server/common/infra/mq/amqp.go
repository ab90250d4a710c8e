package mq

import (
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// NewConnection dials the broker and tags the connection with the service name.
func NewConnection(url, connectionName string) (*amqp.Connection, error) {
	props := amqp.NewConnectionProperties()
	props.SetClientConnectionName(connectionName)
	return amqp.DialConfig(url, amqp.Config{
		Heartbeat:  10 * time.Second,
		Locale:     "en_US",
		Properties: props,
	})
}
