package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/application/services"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

// Mock services
type mockSubscriptionService struct {
	initiateFn func(ctx context.Context, subject domain.Subject) (*services.InitiateResult, error)
}

func (m *mockSubscriptionService) Initiate(ctx context.Context, subject domain.Subject) (*services.InitiateResult, error) {
	return m.initiateFn(ctx, subject)
}

type mockCallbackService struct {
	reconcileFn func(ctx context.Context, event *domain.CallbackEvent) services.Outcome
	lastEvent   *domain.CallbackEvent
}

func (m *mockCallbackService) Reconcile(ctx context.Context, event *domain.CallbackEvent) services.Outcome {
	m.lastEvent = event
	if m.reconcileFn != nil {
		return m.reconcileFn(ctx, event)
	}
	return services.OutcomeProcessed
}

func newTestRouter(subs SubscriptionService, cbs CallbackService) http.Handler {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	h := NewHandlers(subs, cbs, logger)
	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return r
}

func TestHandleSubscribe_Accepted(t *testing.T) {
	// Setup
	subs := &mockSubscriptionService{
		initiateFn: func(ctx context.Context, subject domain.Subject) (*services.InitiateResult, error) {
			if subject.Email != "a@x.com" {
				t.Errorf("expected subject email a@x.com, got %s", subject.Email)
			}
			return &services.InitiateResult{
				Status:         "pending",
				CorrelationKey: "ws_1",
				Ticket:         &application.GatewayTicket{TransactionID: "ws_1"},
			}, nil
		},
	}
	router := newTestRouter(subs, &mockCallbackService{})

	body := `{"name":"A","email":"a@x.com","phone":"254700000001","category":"retail"}`

	// Action
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Success bool              `json:"success"`
		Data    SubscribeResponse `json:"data"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response body: %v", err)
	}
	if resp.Data.Status != "pending" || resp.Data.CorrelationKey != "ws_1" {
		t.Errorf("unexpected payload: %+v", resp.Data)
	}
}

func TestHandleSubscribe_ValidationError(t *testing.T) {
	router := newTestRouter(&mockSubscriptionService{}, &mockCallbackService{})

	body := `{"name":"A","email":"not-an-email","phone":"254700000001","category":"retail"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleSubscribe_GatewayUnavailable(t *testing.T) {
	subs := &mockSubscriptionService{
		initiateFn: func(ctx context.Context, subject domain.Subject) (*services.InitiateResult, error) {
			return nil, application.NewGatewayUnavailableError(context.DeadlineExceeded)
		},
	}
	router := newTestRouter(subs, &mockCallbackService{})

	body := `{"name":"A","email":"a@x.com","phone":"254700000001","category":"retail"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/subscriptions", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
}

func darajaCallback(key string) string {
	return `{"Body":{"stkCallback":{"MerchantRequestID":"29115-34620561-1","CheckoutRequestID":"` + key + `","ResultCode":0,"ResultDesc":"The service request is processed successfully.","CallbackMetadata":{"Item":[{"Name":"Amount","Value":100.0},{"Name":"MpesaReceiptNumber","Value":"RKTQDM7W6S"},{"Name":"PhoneNumber","Value":254700000001}]}}}}`
}

func TestHandleCallback_NeutralAck(t *testing.T) {
	// Setup
	cbs := &mockCallbackService{}
	router := newTestRouter(&mockSubscriptionService{}, cbs)

	// Action
	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback?token=hunter2", bytes.NewBufferString(darajaCallback("ws_1")))
	req.Header.Set("X-Forwarded-For", "196.201.214.200, 10.0.0.2")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	// Assert
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var ack struct {
		ResultCode int    `json:"ResultCode"`
		ResultDesc string `json:"ResultDesc"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &ack); err != nil {
		t.Fatalf("invalid ack body: %v", err)
	}
	if ack.ResultCode != 0 {
		t.Errorf("ack must always carry ResultCode 0, got %d", ack.ResultCode)
	}

	event := cbs.lastEvent
	if event == nil {
		t.Fatal("expected the event to reach the reconciler")
	}
	if event.ClaimedKey != "ws_1" {
		t.Errorf("expected claimed key ws_1, got %s", event.ClaimedKey)
	}
	if event.SourceOrigin != "196.201.214.200" {
		t.Errorf("expected first forwarded-for entry, got %s", event.SourceOrigin)
	}
	if event.AuthToken != "hunter2" {
		t.Errorf("expected query token, got %q", event.AuthToken)
	}
	if event.Metadata[domain.MetaReceipt] != "RKTQDM7W6S" {
		t.Errorf("expected receipt metadata, got %q", event.Metadata[domain.MetaReceipt])
	}
	if event.Metadata[domain.MetaAmount] != "100" {
		t.Errorf("expected numeric amount normalized to 100, got %q", event.Metadata[domain.MetaAmount])
	}
	if event.Metadata[domain.MetaPhoneNumber] != "254700000001" {
		t.Errorf("expected phone metadata, got %q", event.Metadata[domain.MetaPhoneNumber])
	}
}

func TestHandleCallback_MalformedBody_StillAcked(t *testing.T) {
	cbs := &mockCallbackService{}
	router := newTestRouter(&mockSubscriptionService{}, cbs)

	for _, body := range []string{"not json at all", `{"Body":{}}`, `{}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewBufferString(body))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("body %q: expected 200, got %d", body, rec.Code)
		}
	}
	if cbs.lastEvent != nil {
		t.Error("malformed bodies must not reach the reconciler")
	}
}

func TestHandleCallback_RejectedPolicy_Forbidden(t *testing.T) {
	cbs := &mockCallbackService{
		reconcileFn: func(ctx context.Context, event *domain.CallbackEvent) services.Outcome {
			return services.OutcomeRejected
		},
	}
	router := newTestRouter(&mockSubscriptionService{}, cbs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewBufferString(darajaCallback("ws_1")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
}

func TestHandleCallback_NoMatchStillNeutral(t *testing.T) {
	cbs := &mockCallbackService{
		reconcileFn: func(ctx context.Context, event *domain.CallbackEvent) services.Outcome {
			return services.OutcomeNoMatch
		},
	}
	router := newTestRouter(&mockSubscriptionService{}, cbs)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/payments/callback", bytes.NewBufferString(darajaCallback("ws_gone")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unmatched callback must still be acked 200, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	router := newTestRouter(&mockSubscriptionService{}, &mockCallbackService{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
