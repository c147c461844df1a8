package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/application/services"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
	"github.com/jmwangi/pesalink-gateway/internal/interfaces/rest"
)

// callbackBody mirrors the gateway's webhook shape. CallbackMetadata and its
// items are optional; item values arrive as strings or numbers.
type callbackBody struct {
	Body struct {
		StkCallback *struct {
			MerchantRequestID string `json:"MerchantRequestID"`
			CheckoutRequestID string `json:"CheckoutRequestID"`
			ResultCode        int    `json:"ResultCode"`
			ResultDesc        string `json:"ResultDesc"`
			CallbackMetadata  *struct {
				Item []struct {
					Name  string      `json:"Name"`
					Value interface{} `json:"Value"`
				} `json:"Item"`
			} `json:"CallbackMetadata"`
		} `json:"stkCallback"`
	} `json:"Body"`
}

// HandleCallback receives the gateway's asynchronous verdict. The response
// is always the neutral acknowledgment so the gateway's own retry policy
// stays quiet; the one exception is the configured reject policy for
// untrusted callers.
func (h *Handlers) HandleCallback(w http.ResponseWriter, r *http.Request) {
	var body callbackBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Body.StkCallback == nil {
		// Expected background noise; acknowledge and move on.
		rest.RespondWithAck(w, "Accepted")
		return
	}

	cb := body.Body.StkCallback
	event := &domain.CallbackEvent{
		SourceOrigin: services.ClientOrigin(r.Header.Get("X-Forwarded-For"), r.RemoteAddr),
		ClaimedKey:   cb.CheckoutRequestID,
		ResultCode:   cb.ResultCode,
		ResultDesc:   cb.ResultDesc,
		Metadata:     map[string]string{},
		AuthToken:    callbackToken(r),
	}

	if cb.CallbackMetadata != nil {
		for _, item := range cb.CallbackMetadata.Item {
			event.Metadata[item.Name] = metadataValue(item.Value)
		}
	}

	outcome := h.callbacks.Reconcile(r.Context(), event)

	if outcome == services.OutcomeRejected {
		rest.RespondWithJSON(w, http.StatusForbidden, &rest.APIError{
			Code:    "FORBIDDEN",
			Message: "callback origin not permitted",
		})
		return
	}

	rest.RespondWithAck(w, ackDesc(outcome))
}

// callbackToken pulls the out-of-band credential from the query string or
// header, whichever the deployment wired.
func callbackToken(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	return r.Header.Get("X-Callback-Token")
}

func metadataValue(v interface{}) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return decimal.NewFromFloat(val).String()
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", val)
	}
}

func ackDesc(outcome services.Outcome) string {
	switch outcome {
	case services.OutcomeProcessed:
		return "Callback processed successfully"
	case services.OutcomeIgnored:
		return "Callback received"
	default:
		return "Accepted"
	}
}
