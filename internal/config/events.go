package config

import (
	"fmt"
	"log/slog"

	"github.com/prepdesk/exam-service/internal/events"
)

// EventConfig holds event publishing configuration.
type EventConfig struct {
	PublisherType string // "kafka" or "mock"
	KafkaBrokers  []string
	KafkaTopic    string
}

// CreateEventPublisher creates an event publisher based on configuration.
func (c *EventConfig) CreateEventPublisher(logger *slog.Logger) (events.EventPublisher, error) {
	switch c.PublisherType {
	case "kafka":
		return events.NewKafkaEventPublisher(c.KafkaBrokers, c.KafkaTopic, logger)
	case "mock", "":
		return events.NewMockEventPublisher(logger), nil
	default:
		return nil, fmt.Errorf("unknown event publisher type: %s", c.PublisherType)
	}
}
