// Package event publishes console audit events.
package event

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/ivankomartin/deposit-console/internal/domain"
	pkgkafka "github.com/ivankomartin/deposit-console/pkg/kafka"
	"github.com/ivankomartin/deposit-console/pkg/logger"
)

// TopicProductCreated is the default topic for creation audit events.
var TopicProductCreated = pkgkafka.Topic("product", "created")

// EventTypeProductCreated is the event_type of creation events.
const EventTypeProductCreated = "product.created"

// AggregateTypeProduct is the aggregate type of product events.
const AggregateTypeProduct = "product"

// SourceConsole identifies events published by the console.
const SourceConsole = "deposit-console"

// ProductCreatedData is the payload of a product.created event.
type ProductCreatedData struct {
	ID             int64  `json:"id"`
	Name           string `json:"name"`
	Packaging      string `json:"packaging"`
	Deposit        int64  `json:"deposit"`
	Volume         int64  `json:"volume"`
	CompanyID      int64  `json:"company_id"`
	RegisteredByID int64  `json:"registered_by_id"`
	Active         bool   `json:"active"`
}

// Publisher records audit events for console mutations.
type Publisher interface {
	PublishProductCreated(ctx context.Context, product *domain.Product) error
}

// Producer publishes audit events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	topic  string
	logger *slog.Logger
}

// NewProducer creates a Kafka audit producer writing to topic. An empty topic
// uses TopicProductCreated.
func NewProducer(kafka *pkgkafka.Producer, topic string, logger *slog.Logger) *Producer {
	if topic == "" {
		topic = TopicProductCreated
	}
	return &Producer{
		kafka:  kafka,
		topic:  topic,
		logger: logger,
	}
}

// PublishProductCreated publishes a product.created event carrying the
// request's correlation and session ids.
func (p *Producer) PublishProductCreated(ctx context.Context, product *domain.Product) error {
	data := ProductCreatedData{
		ID:             product.ID,
		Name:           product.Name,
		Packaging:      string(product.Packaging),
		Deposit:        product.Deposit,
		Volume:         product.Volume,
		CompanyID:      product.CompanyID,
		RegisteredByID: product.RegisteredByID,
		Active:         product.Active,
	}

	id := strconv.FormatInt(product.ID, 10)
	event, err := pkgkafka.NewEvent(SourceConsole, EventTypeProductCreated, AggregateTypeProduct, id, data)
	if err != nil {
		return fmt.Errorf("create product.created event: %w", err)
	}
	event.CorrelationID = logger.CorrelationIDFromContext(ctx)
	event.SessionID = logger.SessionIDFromContext(ctx)
	event.SetAttribute("company_id", strconv.FormatInt(product.CompanyID, 10))

	if err := p.kafka.Publish(ctx, p.topic, event); err != nil {
		return fmt.Errorf("publish product.created event: %w", err)
	}

	p.logger.DebugContext(ctx, "published product.created event",
		slog.Int64("product_id", product.ID),
		slog.String("topic", p.topic),
	)
	return nil
}

// Nop discards events. It is used when no brokers are configured.
type Nop struct{}

// PublishProductCreated does nothing.
func (Nop) PublishProductCreated(context.Context, *domain.Product) error { return nil }
