package services

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/memstore"
)

// Full round trip against the real store: initiate, rekey under the
// gateway's transaction id, reconcile the callback, then take the duplicate
// delivery.
func TestSubscriptionFlow_EndToEnd(t *testing.T) {
	// Setup
	store := memstore.NewPendingStore()
	gateway := &MockGatewayClient{
		RequestPushPaymentFn: func(ctx context.Context, subject domain.Subject, amount decimal.Decimal) (*application.GatewayTicket, error) {
			return &application.GatewayTicket{TransactionID: "ws_1"}, nil
		},
	}
	directory := &MockDirectory{}
	alerter := &MockAlerter{}

	initiate := NewInitiateService(store, gateway, decimal.NewFromInt(100), testLogger())
	reconcile := NewReconcileService(
		store,
		directory,
		alerter,
		NewCallbackValidator(testCallbackConfig()),
		testCallbackConfig(),
		testDirectoryConfig(),
		testLogger(),
	)

	// Action: initiate
	result, err := initiate.Initiate(context.Background(), domain.Subject{
		Name:     "A",
		Email:    "a@x.com",
		Phone:    "254700000001",
		Category: "retail",
	})
	if err != nil {
		t.Fatalf("initiate failed: %v", err)
	}
	if result.CorrelationKey != "ws_1" {
		t.Fatalf("expected record re-keyed to ws_1, got %s", result.CorrelationKey)
	}
	if store.Len() != 1 {
		t.Fatalf("expected one pending record, got %d", store.Len())
	}

	// Action: callback arrives
	outcome := reconcile.Reconcile(context.Background(), successEvent("ws_1"))

	// Assert
	if outcome != OutcomeProcessed {
		t.Fatalf("expected PROCESSED, got %s", outcome)
	}
	if len(directory.Upserts) != 1 {
		t.Fatalf("expected one enrollment, got %d", len(directory.Upserts))
	}
	record := directory.Upserts[0]
	if record.Email != "a@x.com" || record.Group != "3" {
		t.Errorf("unexpected enrollment record: %+v", record)
	}
	if store.Len() != 0 {
		t.Errorf("expected store drained after reconciliation, holds %d", store.Len())
	}

	// Action: the gateway redelivers the same callback
	dup := reconcile.Reconcile(context.Background(), successEvent("ws_1"))

	// Assert: one enroll total, one alert for the duplicate
	if dup != OutcomeNoMatch {
		t.Errorf("expected duplicate delivery NO_MATCH, got %s", dup)
	}
	if len(directory.Upserts) != 1 {
		t.Errorf("duplicate delivery must not enroll again, got %d upserts", len(directory.Upserts))
	}
	if alerter.Count() != 1 {
		t.Errorf("expected one alert for the duplicate, got %d", alerter.Count())
	}
}
