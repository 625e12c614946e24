package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"catalog-service/internal/models"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"
)

const (
	StreamCatalog = "CATALOG_EVENTS"

	ProductCreated  = "product.created"
	ProductUpdated  = "product.updated"
	ProductDeleted  = "product.deleted"
	ProductImported = "product.imported"
	ImportCompleted = "import.completed"
	CategoryCreated = "category.created"
	CategoryUpdated = "category.updated"
	CategoryDeleted = "category.deleted"
)

// Event is the envelope of every message on the catalog stream.
type Event struct {
	ID         string      `json:"id"`
	Type       string      `json:"type"`
	OccurredAt time.Time   `json:"occurredAt"`
	Data       interface{} `json:"data"`
}

type ProductEvent struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	CategoryID   string `json:"categoryId"`
	VariantCount int    `json:"variantCount"`
	ImportID     string `json:"importId,omitempty"`
}

type CategoryEvent struct {
	CategoryID       string  `json:"categoryId"`
	Name             string  `json:"name"`
	Slug             string  `json:"slug"`
	ParentCategoryID *string `json:"parentCategoryId,omitempty"`
}

// ImportCompletedEvent summarizes one finished import.
type ImportCompletedEvent struct {
	ImportID     string `json:"importId"`
	CategoryID   string `json:"categoryId"`
	FileName     string `json:"fileName"`
	RowCount     int    `json:"rowCount"`
	ProductCount int    `json:"productCount"`
	VariantCount int    `json:"variantCount"`
	DurationMs   int64  `json:"durationMs"`
}

// Publisher publishes catalog events to JetStream. A nil *Publisher is valid
// and drops every event, which is how the service runs without NATS.
type Publisher struct {
	nc     *nats.Conn
	js     jetstream.JetStream
	logger *logrus.Entry
}

// NewPublisher connects to NATS and makes sure the catalog stream exists.
func NewPublisher(natsURL string, logger *logrus.Logger) (*Publisher, error) {
	entry := logger.WithField("component", "catalog_events")

	nc, err := nats.Connect(natsURL,
		nats.Name("catalog-service"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			entry.WithField("url", nc.ConnectedUrl()).Info("NATS reconnected")
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			entry.WithError(err).Warn("NATS disconnected")
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:      StreamCatalog,
		Subjects:  []string{"catalog.>"},
		Retention: jetstream.LimitsPolicy,
		MaxAge:    24 * time.Hour * 7,
		Storage:   jetstream.FileStorage,
		Replicas:  1,
	})
	if err != nil {
		entry.WithError(err).Warn("Failed to ensure catalog stream (may already exist)")
	}

	return &Publisher{nc: nc, js: js, logger: entry}, nil
}

// Close closes the NATS connection
func (p *Publisher) Close() {
	if p != nil && p.nc != nil {
		p.nc.Drain()
	}
}

func (p *Publisher) PublishProductImported(ctx context.Context, product *models.Product, importID string) error {
	data := NewProductEvent(product)
	data.ImportID = importID
	return p.publish(ctx, ProductImported, data)
}

func (p *Publisher) PublishImportCompleted(ctx context.Context, summary *ImportCompletedEvent) error {
	return p.publish(ctx, ImportCompleted, summary)
}

// PublishProductChanged publishes product.created, product.updated or product.deleted.
func (p *Publisher) PublishProductChanged(ctx context.Context, eventType string, product *models.Product) error {
	return p.publish(ctx, eventType, NewProductEvent(product))
}

// PublishCategoryChanged publishes category.created, category.updated or category.deleted.
func (p *Publisher) PublishCategoryChanged(ctx context.Context, eventType string, category *models.Category) error {
	return p.publish(ctx, eventType, NewCategoryEvent(category))
}

func NewProductEvent(product *models.Product) *ProductEvent {
	return &ProductEvent{
		ProductID:    product.ID.String(),
		Name:         product.Name,
		Slug:         product.Slug,
		CategoryID:   product.CategoryID.String(),
		VariantCount: len(product.Variants),
	}
}

func NewCategoryEvent(category *models.Category) *CategoryEvent {
	event := &CategoryEvent{
		CategoryID: category.ID.String(),
		Name:       category.Name,
		Slug:       category.Slug,
	}
	if category.ParentCategoryID != nil {
		parent := category.ParentCategoryID.String()
		event.ParentCategoryID = &parent
	}
	return event
}

// Subject maps an event type to its subject on the catalog stream.
func Subject(eventType string) string {
	return "catalog." + eventType
}

func (p *Publisher) publish(ctx context.Context, eventType string, data interface{}) error {
	if p == nil || p.js == nil {
		return nil
	}

	event := Event{
		ID:         uuid.New().String(),
		Type:       eventType,
		OccurredAt: time.Now().UTC(),
		Data:       data,
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", eventType, err)
	}

	// Publish asynchronously to not block the main flow
	go func() {
		pubCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if _, err := p.js.Publish(pubCtx, Subject(eventType), payload, jetstream.WithMsgID(event.ID)); err != nil {
			p.logger.WithFields(logrus.Fields{
				"eventType": eventType,
				"eventID":   event.ID,
			}).WithError(err).Error("Failed to publish catalog event")
			return
		}
		p.logger.WithFields(logrus.Fields{
			"eventType": eventType,
			"eventID":   event.ID,
		}).Debug("Catalog event published")
	}()

	return nil
}
