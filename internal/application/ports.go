package application

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

// GatewayTicket is what the payment gateway hands back for an initiated
// push payment. TransactionID is empty when the synchronous response could
// not be parsed; the prompt may still reach the user in that case.
type GatewayTicket struct {
	TransactionID string
	RawResponse   string
}

// GatewayClient is the port for the external push-payment gateway.
type GatewayClient interface {
	RequestPushPayment(ctx context.Context, subject domain.Subject, amount decimal.Decimal) (*GatewayTicket, error)
}

// Subscriber is the directory's view of an enrolled person.
type Subscriber struct {
	ID     string
	Email  string
	Groups []string
}

// SubscriberRecord is the shape handed to the directory on upsert.
type SubscriberRecord struct {
	Name    string
	Email   string
	Phone   string
	Group   string
	Receipt string
}

// Directory is the port for the mailing-list service the success side
// effect enrolls people into.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (*Subscriber, error)
	RemoveFromGroup(ctx context.Context, subscriberID, groupID string) error
	Upsert(ctx context.Context, record SubscriberRecord) error
}

// Alerter is the port for best-effort anomaly notifications. Notify must
// never block the caller and must swallow its own failures.
type Alerter interface {
	Notify(text string)
}

// PendingStore owns payment-intent records for their lifetime. Absence is
// modeled as "not found", never as an error.
type PendingStore interface {
	Put(key string, intent *domain.PaymentIntent)
	// Rekey atomically retires oldKey and makes the record, state advanced
	// to AwaitingCallback, visible under newKey. Reports whether oldKey held
	// a record.
	Rekey(oldKey, newKey string) bool
	// TakeIfPresent atomically looks up and removes the record under key.
	// It is the single linearization point that makes reconciliation
	// at-most-once: of two concurrent callers, exactly one observes the
	// record.
	TakeIfPresent(key string) (*domain.PaymentIntent, bool)
	SweepExpired(maxAge time.Duration) int
}
