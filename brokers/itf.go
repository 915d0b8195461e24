package brokers

// Broker fans decode events out to downstream services.
// The routing key carries the bot uid so consumers can bind per bot.
type Broker interface {
	Publish(routingKey string, byt []byte) error
}

// Brokers that need queues, need this interface to perform q operations
type QueuedBroker interface {
	BindAQueue(qname, exchange, routingKey string) error
}
