// Package events fans proposal lifecycle changes out to in-process
// subscribers (email notifications, websocket broadcast).
package events

import (
	"time"

	"github.com/asaskevich/EventBus"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	TopicProposalSent      = "proposal:sent"
	TopicProposalResponded = "proposal:responded"
	TopicInvoicePaid       = "invoice:paid"
)

// ProposalEvent describes a proposal status change.
type ProposalEvent struct {
	InvoiceID     uuid.UUID       `json:"invoiceId"`
	InvoiceNumber string          `json:"invoiceNumber"`
	OrderID       uuid.UUID       `json:"orderId"`
	Status        string          `json:"status"`
	ClientName    string          `json:"clientName"`
	ClientEmail   string          `json:"clientEmail"`
	Token         uuid.UUID       `json:"-"`
	Total         decimal.Decimal `json:"total"`
	Feedback      string          `json:"feedback,omitempty"`
	CreatedBy     uuid.UUID       `json:"createdBy"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

type Bus struct {
	bus EventBus.Bus
}

func NewBus() *Bus {
	return &Bus{bus: EventBus.New()}
}

func (b *Bus) Publish(topic string, ev ProposalEvent) {
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}
	b.bus.Publish(topic, ev)
}

// Subscribe registers fn to run asynchronously for every event on topic.
// Handlers for the same topic are not serialized.
func (b *Bus) Subscribe(topic string, fn func(ProposalEvent)) error {
	return b.bus.SubscribeAsync(topic, fn, false)
}

// SubscribeAll registers fn on every proposal topic.
func (b *Bus) SubscribeAll(fn func(topic string, ev ProposalEvent)) error {
	for _, topic := range []string{TopicProposalSent, TopicProposalResponded, TopicInvoicePaid} {
		topic := topic
		if err := b.Subscribe(topic, func(ev ProposalEvent) { fn(topic, ev) }); err != nil {
			return err
		}
	}
	return nil
}

// Wait blocks until all in-flight async handlers return.
func (b *Bus) Wait() {
	b.bus.WaitAsync()
}
