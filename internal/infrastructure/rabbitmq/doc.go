// Package rabbitmq publishes timeline notifications to a durable RabbitMQ
// queue.
//
// It is one of the notify sinks: notify.AMQPSink encodes the envelope and
// calls Publisher.PublishJSON. Messages are persistent and carry the event
// name in the AMQP Type property.
//
// # Usage
//
//	pub, err := rabbitmq.Connect(cfg.RabbitMQ)
//	if err != nil {
//	    return err
//	}
//	defer pub.Close()
//
//	sink := notify.NewAMQPSink(pub, "weddingcue")
package rabbitmq
