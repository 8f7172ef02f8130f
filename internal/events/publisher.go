package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/pricehawk-th/pricehawk/internal/database"
)

// EventType represents the type of event
type EventType string

const (
	// EventTypePriceChanged is published when a tracked product's price moves
	EventTypePriceChanged EventType = "PRICE_CHANGED"
	// EventTypeProductDiscovered is published the first time a product is seen
	EventTypeProductDiscovered EventType = "PRODUCT_DISCOVERED"
)

const (
	// StreamPriceChanges carries PRICE_CHANGED events
	StreamPriceChanges = "stream:price_changes"
	// StreamProductDiscovery carries PRODUCT_DISCOVERED events
	StreamProductDiscovery = "stream:product_discovery"
)

// Price represents product pricing information
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// PriceChangedPayload represents the payload for PRICE_CHANGED events
type PriceChangedPayload struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	Timestamp    time.Time `json:"timestamp"`
	ProductID    int64     `json:"product_id"`
	RetailerID   string    `json:"retailer_id"`
	SKU          string    `json:"sku"`
	Name         string    `json:"name,omitempty"`
	Link         string    `json:"link,omitempty"`
	OldPrice     *float64  `json:"old_price,omitempty"`
	NewPrice     float64   `json:"new_price"`
	LowestPrice  *float64  `json:"lowest_price,omitempty"`
	HighestPrice *float64  `json:"highest_price,omitempty"`
	Source       string    `json:"source"`
}

// ProductDiscoveredPayload represents the payload for PRODUCT_DISCOVERED events
type ProductDiscoveredPayload struct {
	EventID    string    `json:"event_id"`
	EventType  string    `json:"event_type"`
	Timestamp  time.Time `json:"timestamp"`
	ProductID  int64     `json:"product_id"`
	RetailerID string    `json:"retailer_id"`
	SKU        string    `json:"sku"`
	Name       string    `json:"name"`
	Brand      string    `json:"brand,omitempty"`
	Category   string    `json:"category,omitempty"`
	Link       string    `json:"link"`
	Price      *Price    `json:"price,omitempty"`
	Images     []string  `json:"images,omitempty"`
	Source     string    `json:"source"`
}

// txRunner runs a function inside a database transaction (for testing)
type txRunner interface {
	Transaction(ctx context.Context, fn func(pgx.Tx) error) error
}

// outboxInserter writes events into the transactional outbox (for testing)
type outboxInserter interface {
	InsertWithTx(ctx context.Context, tx pgx.Tx, event *database.OutboxEvent) error
}

// Publisher handles event publishing using the transactional outbox pattern
type Publisher struct {
	db     txRunner
	outbox outboxInserter
	logger *slog.Logger
}

// NewPublisher creates a new event publisher with database connection
func NewPublisher(db *database.DB, logger *slog.Logger) *Publisher {
	return &Publisher{
		db:     db,
		outbox: database.NewOutboxRepository(db),
		logger: logger.With("component", "event_publisher"),
	}
}

// PublishPriceChanged publishes a PRICE_CHANGED event in its own transaction
func (p *Publisher) PublishPriceChanged(ctx context.Context, payload *PriceChangedPayload) error {
	return p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.PublishPriceChangedTx(ctx, tx, payload)
	})
}

// PublishPriceChangedTx publishes a PRICE_CHANGED event inside a caller-owned
// transaction so the outbox write commits atomically with the price update
func (p *Publisher) PublishPriceChangedTx(ctx context.Context, tx pgx.Tx, payload *PriceChangedPayload) error {
	fillDefaults(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypePriceChanged)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   strconv.FormatInt(payload.ProductID, 10),
		EventType:     string(EventTypePriceChanged),
		Payload:       data,
		TargetStream:  StreamPriceChanges,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"product_id", payload.ProductID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

// PublishProductDiscovered publishes a PRODUCT_DISCOVERED event in its own transaction
func (p *Publisher) PublishProductDiscovered(ctx context.Context, payload *ProductDiscoveredPayload) error {
	return p.db.Transaction(ctx, func(tx pgx.Tx) error {
		return p.PublishProductDiscoveredTx(ctx, tx, payload)
	})
}

// PublishProductDiscoveredTx publishes a PRODUCT_DISCOVERED event inside a
// caller-owned transaction
func (p *Publisher) PublishProductDiscoveredTx(ctx context.Context, tx pgx.Tx, payload *ProductDiscoveredPayload) error {
	fillDefaults(&payload.EventID, &payload.EventType, &payload.Timestamp, &payload.Source, EventTypeProductDiscovered)

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	outboxEvent := &database.OutboxEvent{
		AggregateType: "product",
		AggregateID:   strconv.FormatInt(payload.ProductID, 10),
		EventType:     string(EventTypeProductDiscovered),
		Payload:       data,
		TargetStream:  StreamProductDiscovery,
	}

	if err := p.outbox.InsertWithTx(ctx, tx, outboxEvent); err != nil {
		return fmt.Errorf("failed to insert outbox event: %w", err)
	}

	p.logger.Info("event published to outbox",
		"type", payload.EventType,
		"event_id", payload.EventID,
		"product_id", payload.ProductID,
		"outbox_id", outboxEvent.ID,
	)

	return nil
}

func fillDefaults(eventID, eventType *string, ts *time.Time, source *string, typ EventType) {
	if *eventID == "" {
		*eventID = uuid.New().String()
	}
	if *eventType == "" {
		*eventType = string(typ)
	}
	if ts.IsZero() {
		*ts = time.Now()
	}
	if *source == "" {
		*source = "scraper"
	}
}
