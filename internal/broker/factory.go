package broker

import (
	"fmt"

	"eventintake/internal/config"
	"eventintake/internal/logger"
)

// NewProducer returns a Kafka producer, or an error when no brokers are
// configured.
func NewProducer(cfg config.KafkaConfig, log logger.Logger) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("no kafka brokers configured")
	}
	return NewKafkaProducer(cfg, log), nil
}
