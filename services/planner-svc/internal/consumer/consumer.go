package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/segmentio/kafka-go"

	"fleetrouting/pkg/config"
	"fleetrouting/pkg/logger"
	"fleetrouting/services/planner-svc/internal/store"
)

// ShipmentCreator persists incoming shipments.
type ShipmentCreator interface {
	Create(ctx context.Context, s *store.Shipment) error
}

// OrderEvent is the orders.created wire format.
type OrderEvent struct {
	OrderID     string   `json:"order_id"`
	Origin      *Point   `json:"origin"`
	Destination *Point   `json:"destination"`
	Demand      *float64 `json:"demand"`
}

// Point is a coordinate pair in an order event.
type Point struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// Consumer reads orders.created events and stores them as pending
// shipments. Malformed events are logged and skipped, never retried.
type Consumer struct {
	reader    *kafka.Reader
	shipments ShipmentCreator
}

// New creates a group consumer for the configured topic.
func New(cfg *config.KafkaConfig, shipments ShipmentCreator) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		GroupID:  cfg.GroupID,
		Topic:    cfg.Topic,
		MinBytes: cfg.MinBytes,
		MaxBytes: cfg.MaxBytes,
	})
	return &Consumer{reader: reader, shipments: shipments}
}

// Run consumes until the context is cancelled. Offsets are committed after
// handling so a crash replays at-least-once; bad payloads are committed too
// so they cannot wedge the partition.
func (c *Consumer) Run(ctx context.Context) error {
	logger.Log.Info("Order consumer started",
		"topic", c.reader.Config().Topic,
		"group", c.reader.Config().GroupID,
	)

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Log.Info("Order consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to fetch message: %w", err)
		}

		if err := c.handle(ctx, msg.Value); err != nil {
			logger.Log.Warn("Order event skipped",
				"partition", msg.Partition,
				"offset", msg.Offset,
				"error", err,
			)
		}

		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return fmt.Errorf("failed to commit offset: %w", err)
		}
	}
}

func (c *Consumer) handle(ctx context.Context, payload []byte) error {
	shipment, err := decodeOrder(payload)
	if err != nil {
		return err
	}

	if err := c.shipments.Create(ctx, shipment); err != nil {
		return fmt.Errorf("failed to store shipment: %w", err)
	}

	logger.Log.Info("Order accepted",
		"shipment", shipment.ID,
		"demand", shipment.Demand,
	)
	return nil
}

// Close shuts the reader down, committing the final offsets.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

// decodeOrder validates an event and maps it to a pending shipment.
// Negative or missing demand collapses to zero.
func decodeOrder(payload []byte) (*store.Shipment, error) {
	var event OrderEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, fmt.Errorf("malformed order event: %w", err)
	}

	if event.OrderID == "" {
		return nil, errors.New("order event has no order_id")
	}
	if !event.Origin.valid() || !event.Destination.valid() {
		return nil, fmt.Errorf("order %s is missing coordinates", event.OrderID)
	}

	demand := 0.0
	if event.Demand != nil && *event.Demand > 0 {
		demand = *event.Demand
	}

	return &store.Shipment{
		ID:             event.OrderID,
		OriginLat:      *event.Origin.Lat,
		OriginLng:      *event.Origin.Lng,
		DestinationLat: *event.Destination.Lat,
		DestinationLng: *event.Destination.Lng,
		Demand:         demand,
		Status:         store.ShipmentPending,
	}, nil
}

func (p *Point) valid() bool {
	return p != nil && p.Lat != nil && p.Lng != nil
}
