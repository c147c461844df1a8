package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/memstore"
)

// Sweeper periodically reclaims pending intents the user never confirmed,
// bounding the store's growth. Expiry is silent: the original caller was
// already told the payment is pending and nothing further is owed to them.
type Sweeper struct {
	store    *memstore.PendingStore
	interval time.Duration
	maxAge   time.Duration
	logger   *slog.Logger
}

func NewSweeper(
	store *memstore.PendingStore,
	interval time.Duration,
	maxAge time.Duration,
	logger *slog.Logger,
) *Sweeper {
	return &Sweeper{
		store:    store,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

func (w *Sweeper) Start(ctx context.Context) {
	w.logger.Info("sweep worker started", "interval", w.interval, "max_age", w.maxAge)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("sweep worker stopping")
			return
		case <-ticker.C:
			w.sweep()
		}
	}
}

func (w *Sweeper) sweep() {
	removed := w.store.SweepExpired(w.maxAge)
	if removed == 0 {
		return
	}

	stats := w.store.Stats()
	w.logger.Info("reclaimed expired intents",
		"removed", removed,
		"pending", w.store.Len(),
		"total_put", stats.Put,
		"total_taken", stats.Taken,
		"total_swept", stats.Swept,
	)
}
