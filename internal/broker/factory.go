package broker

import (
	"fmt"

	"duplicator/internal/config"
	"duplicator/internal/logger"
)

func NewProducer(cfg config.KafkaConfig, log logger.Logger) (Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka producer: no brokers configured")
	}
	return NewKafkaProducer(cfg, log), nil
}

func NewConsumer(cfg config.KafkaConfig, log logger.Logger) (Consumer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("kafka consumer: no brokers configured")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("kafka consumer: group_id is required")
	}
	return NewKafkaConsumer(cfg, log), nil
}
