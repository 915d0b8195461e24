package brokers

import (
	"fmt"

	"github.com/streadway/amqp"
)

// RabbitMQBroker publishes decode events on a topic exchange.
// Connection is dialed once at process start, channels are per publish.
type RabbitMQBroker struct {
	Conn     *amqp.Connection
	Exchange string // topic exchange the decode events go out on, typically amq.topic
}

// RabbitConnDial dials the rabbit server and returns a broker bound to the amq.topic exchange.
func RabbitConnDial(user, passwd, server string) (*RabbitMQBroker, error) {
	conn, err := amqp.Dial(fmt.Sprintf("amqp://%s:%s@%s/", user, passwd, server))
	if err != nil {
		return nil, fmt.Errorf("failed dialing the amqp server %s: %s", server, err)
	}
	return &RabbitMQBroker{Conn: conn, Exchange: "amq.topic"}, nil
}

// CloseConn : call this when winding down the application
func (rbmq *RabbitMQBroker) CloseConn() error {
	if rbmq.Conn == nil {
		return nil
	}
	return rbmq.Conn.Close()
}

// Publish : one fresh channel per publish, the connection itself is reused
func (rbmq *RabbitMQBroker) Publish(routingKey string, byt []byte) error {
	if rbmq.Conn == nil {
		return fmt.Errorf("nil broker connection, cannot publish")
	}
	if byt == nil {
		return fmt.Errorf("nil/invalid message to publish, cannot continue")
	}
	// Starting a new channel
	ch, err := rbmq.Conn.Channel()
	if err != nil || ch == nil {
		return fmt.Errorf("error creating a new channel to Rabbit, %s", err)
	}
	defer ch.Close()

	err = ch.Publish(rbmq.Exchange, routingKey, false, false, amqp.Publishing{
		ContentType: "application/json",
		Body:        byt,
	})
	if err != nil {
		return fmt.Errorf("failed publishing message on rabbit channel, %s", err)
	}
	return nil
}

// BindAQueue : declares a durable queue and binds it to the exchange under the routing key.
// Consumers of decode events call this before listening.
func (rbmq *RabbitMQBroker) BindAQueue(qname, exchange, routingKey string) error {
	ch, err := rbmq.Conn.Channel()
	if err != nil || ch == nil {
		return fmt.Errorf("error creating a new channel to Rabbit, %s", err)
	}
	defer ch.Close()
	_, err = ch.QueueDeclare(qname, true, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("error declaring new queue: %s", err)
	}
	if err := ch.QueueBind(qname, routingKey, exchange, false, nil); err != nil {
		return fmt.Errorf("error binding queue %s to exchange %s: %s", qname, exchange, err)
	}
	return nil
}
