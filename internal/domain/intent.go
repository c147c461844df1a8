// Package domain defines the domain models for the push-payment gateway.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// IntentState represents where a payment intent is in its lifecycle.
type IntentState string

const (
	// StateAwaitingGatewayID covers the window between recording the intent
	// locally and learning the gateway's own transaction identifier.
	StateAwaitingGatewayID IntentState = "AWAITING_GATEWAY_ID"
	// StateAwaitingCallback means the prompt is on the user's phone and the
	// record is keyed by the gateway's transaction identifier.
	StateAwaitingCallback IntentState = "AWAITING_CALLBACK"

	// Resolution targets. A resolved intent is removed from the store as part
	// of the same operation that decides the resolution, so these states are
	// observed on the way out, never at rest.
	StateResolvedSuccess IntentState = "RESOLVED_SUCCESS"
	StateResolvedFailure IntentState = "RESOLVED_FAILURE"
	StateResolvedExpired IntentState = "RESOLVED_EXPIRED"
)

// Subject is the identity data needed for the downstream enrollment.
// Immutable once the intent is recorded.
type Subject struct {
	Name     string
	Email    string
	Phone    string
	Category string
}

// PaymentIntent is the unit of correlation between an outbound push-payment
// request and the callback that eventually reports its outcome.
type PaymentIntent struct {
	// CorrelationKey starts as a locally generated reference and is rebound
	// exactly once to the gateway's transaction identifier.
	CorrelationKey string
	Subject        Subject
	Amount         decimal.Decimal
	State          IntentState
	CreatedAt      time.Time
}

// CanTransitionTo validates a state transition. Resolved states are terminal.
//
// Valid transitions are:
//   - AwaitingGatewayID → AwaitingCallback, ResolvedExpired
//   - AwaitingCallback → ResolvedSuccess, ResolvedFailure, ResolvedExpired
func (p *PaymentIntent) CanTransitionTo(target IntentState) error {
	switch p.State {
	case StateAwaitingGatewayID:
		if target == StateAwaitingCallback || target == StateResolvedExpired {
			return nil
		}

	case StateAwaitingCallback:
		if target == StateResolvedSuccess || target == StateResolvedFailure || target == StateResolvedExpired {
			return nil
		}
	}
	return NewInvalidTransitionError(p.State, target)
}

// ExpiredAt reports whether the intent is older than maxAge at the given
// instant.
func (p *PaymentIntent) ExpiredAt(now time.Time, maxAge time.Duration) bool {
	return now.Sub(p.CreatedAt) > maxAge
}

// CallbackEvent is an inbound report from the payment gateway. It is built
// per request and discarded after processing; it is never stored.
type CallbackEvent struct {
	SourceOrigin string
	ClaimedKey   string
	ResultCode   int
	ResultDesc   string
	// Metadata carries whatever items the gateway attached (phone number,
	// receipt, amount). The item set is open; consumers must tolerate
	// absent entries.
	Metadata map[string]string
	// AuthToken is an out-of-band credential, if the caller presented one.
	AuthToken string
}

// Succeeded reports whether the gateway says the user completed the payment.
func (e *CallbackEvent) Succeeded() bool {
	return e.ResultCode == 0
}

// Metadata item names as delivered by the gateway.
const (
	MetaPhoneNumber = "PhoneNumber"
	MetaReceipt     = "MpesaReceiptNumber"
	MetaAmount      = "Amount"
)
