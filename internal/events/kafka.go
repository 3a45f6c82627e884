package events

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/IBM/sarama"
	"github.com/sirupsen/logrus"

	"github.com/omslab/order-service/internal/circuitbreaker"
)

// KafkaSink forwards bus messages to Kafka so downstream systems can react
// to order changes. Publishing is best-effort: errors are logged, breaker
// rejections are dropped silently once logged, and the caller is never
// failed.
type KafkaSink struct {
	producer sarama.SyncProducer
	breaker  *circuitbreaker.CircuitBreaker
	logger   *logrus.Logger
}

func NewKafkaSink(brokers string, logger *logrus.Logger) (*KafkaSink, error) {
	config := sarama.NewConfig()
	config.Producer.RequiredAcks = sarama.WaitForAll
	config.Producer.Retry.Max = 3
	config.Producer.Return.Successes = true
	config.Version = sarama.V2_6_0_0

	producer, err := sarama.NewSyncProducer(strings.Split(brokers, ","), config)
	if err != nil {
		return nil, err
	}

	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:        "kafka-sink",
		MaxFailures: 5,
		Timeout:     30 * time.Second,
		MaxRequests: 1,
	}, logger)

	return &KafkaSink{producer: producer, breaker: breaker, logger: logger}, nil
}

// envelope is the wire shape on the Kafka topics.
type envelope struct {
	Topic     string          `json:"topic"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

func (s *KafkaSink) Publish(topic string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.logger.WithError(err).WithField("topic", topic).Error("Failed to marshal event payload")
		return
	}
	value, err := json.Marshal(envelope{Topic: topic, Payload: data, Timestamp: time.Now().UTC()})
	if err != nil {
		s.logger.WithError(err).WithField("topic", topic).Error("Failed to marshal event envelope")
		return
	}

	err = s.breaker.Execute(func() error {
		msg := &sarama.ProducerMessage{
			Topic: topic,
			Value: sarama.ByteEncoder(value),
		}
		partition, offset, err := s.producer.SendMessage(msg)
		if err != nil {
			return err
		}
		s.logger.WithFields(logrus.Fields{
			"topic":     topic,
			"partition": partition,
			"offset":    offset,
		}).Debug("Event published to Kafka")
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("topic", topic).Warn("Dropped Kafka event")
	}
}

func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
