package worker

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/domain"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/memstore"
)

func TestSweeper_ReclaimsStaleIntents(t *testing.T) {
	// Setup
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	store := memstore.NewPendingStore()

	store.Put("stale", &domain.PaymentIntent{
		CorrelationKey: "stale",
		Subject:        domain.Subject{Email: "a@x.com"},
		Amount:         decimal.NewFromInt(100),
		State:          domain.StateAwaitingCallback,
		CreatedAt:      time.Now().Add(-10 * time.Minute),
	})
	store.Put("fresh", &domain.PaymentIntent{
		CorrelationKey: "fresh",
		Subject:        domain.Subject{Email: "b@x.com"},
		Amount:         decimal.NewFromInt(100),
		State:          domain.StateAwaitingCallback,
		CreatedAt:      time.Now(),
	})

	sweeper := NewSweeper(store, 10*time.Millisecond, 5*time.Minute, logger)

	ctx, cancel := context.WithCancel(context.Background())
	go sweeper.Start(ctx)

	// Action: wait for at least one tick
	deadline := time.After(2 * time.Second)
	for store.Len() > 1 {
		select {
		case <-deadline:
			cancel()
			t.Fatal("sweeper never reclaimed the stale intent")
		case <-time.After(10 * time.Millisecond):
		}
	}
	cancel()

	// Assert
	if _, ok := store.TakeIfPresent("stale"); ok {
		t.Error("expected stale intent removed")
	}
	if _, ok := store.TakeIfPresent("fresh"); !ok {
		t.Error("expected fresh intent kept")
	}
}
