// order-events-worker tails the order topics from Kafka and logs every
// event. It stands in for downstream consumers (notification senders,
// reporting feeds) when wiring up an environment.
package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/omslab/order-service/internal/events"
)

type logHandler struct {
	logger *logrus.Logger
}

func (h *logHandler) HandleOrderEvent(topic string, payload json.RawMessage) error {
	h.logger.WithFields(logrus.Fields{
		"topic":   topic,
		"payload": string(payload),
	}).Info("Order event received")
	return nil
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetLevel(logrus.InfoLevel)

	brokers := getEnv("KAFKA_BROKERS", "localhost:9092")
	groupID := getEnv("CONSUMER_GROUP", "order-events-worker")

	consumer, err := events.NewKafkaConsumer(brokers, groupID, &logHandler{logger: logger}, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create Kafka consumer")
	}
	defer consumer.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		<-sigChan
		logger.Info("Shutting down worker...")
		cancel()
	}()

	logger.WithField("brokers", brokers).Info("Starting order events worker")
	if err := consumer.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Consumer stopped with error")
	}
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
