package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator"

	"github.com/jmwangi/pesalink-gateway/internal/application/services"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

type SubscriptionService interface {
	Initiate(ctx context.Context, subject domain.Subject) (*services.InitiateResult, error)
}

type CallbackService interface {
	Reconcile(ctx context.Context, event *domain.CallbackEvent) services.Outcome
}

type Handlers struct {
	subscriptions SubscriptionService
	callbacks     CallbackService
	validate      *validator.Validate
	logger        *slog.Logger
}

func NewHandlers(
	subscriptions SubscriptionService,
	callbacks CallbackService,
	logger *slog.Logger,
) *Handlers {
	return &Handlers{
		subscriptions: subscriptions,
		callbacks:     callbacks,
		validate:      validator.New(),
		logger:        logger,
	}
}

func (h *Handlers) RegisterRoutes(r chi.Router) {
	r.Get("/healthz", h.HandleHealth)
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/subscriptions", h.HandleSubscribe)
		r.Post("/payments/callback", h.HandleCallback)
	})
}

func (h *Handlers) HandleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
