package consumer

import (
	"context"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"
)

const pollTimeoutMs = 100

// MessageHandler processes one raw message. Returning an error leaves the
// message eligible for redelivery; handlers swallow errors for payloads that
// can never succeed.
type MessageHandler interface {
	HandleMessage(ctx context.Context, message []byte) error
}

// KafkaConsumer drives a MessageHandler from a subscribed topic.
type KafkaConsumer struct {
	consumer *kafka.Consumer
	topic    string
	handler  MessageHandler
}

func NewKafkaConsumer(consumer *kafka.Consumer, topic string, handler MessageHandler) (*KafkaConsumer, error) {
	if err := consumer.SubscribeTopics([]string{topic}, nil); err != nil {
		return nil, err
	}
	log.WithField("topic", topic).Info("Subscribed to Kafka topic")
	return &KafkaConsumer{consumer: consumer, topic: topic, handler: handler}, nil
}

// Start polls until the context is cancelled or a fatal broker error occurs.
func (c *KafkaConsumer) Start(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			log.Info("Kafka consumer stopping due to context cancellation")
			return ctx.Err()
		default:
			ev := c.consumer.Poll(pollTimeoutMs)
			if ev == nil {
				continue
			}

			switch e := ev.(type) {
			case *kafka.Message:
				if err := c.handler.HandleMessage(ctx, e.Value); err != nil {
					log.WithError(err).Error("Failed to handle message")
				}
			case kafka.Error:
				log.WithError(e).Error("Kafka error")
				if e.IsFatal() {
					return e
				}
			}
		}
	}
}

func (c *KafkaConsumer) Close() error {
	return c.consumer.Close()
}
