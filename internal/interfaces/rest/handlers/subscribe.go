package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
	"github.com/jmwangi/pesalink-gateway/internal/interfaces/rest"
)

type SubscribeRequest struct {
	Name     string `json:"name" validate:"required"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,numeric,min=10,max=13"`
	Category string `json:"category" validate:"required"`
}

type SubscribeResponse struct {
	Status         string         `json:"status"`
	CorrelationKey string         `json:"correlation_key"`
	GatewayTicket  *TicketPayload `json:"gateway_ticket,omitempty"`
}

type TicketPayload struct {
	TransactionID string `json:"transaction_id,omitempty"`
}

// HandleSubscribe starts a push payment and answers before the user has
// touched their phone; the outcome arrives later on the callback endpoint.
func (h *Handlers) HandleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rest.RespondWithError(w, application.NewInvalidInputError(err))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		rest.RespondWithError(w, application.NewInvalidInputError(err))
		return
	}

	result, err := h.subscriptions.Initiate(r.Context(), domain.Subject{
		Name:     req.Name,
		Email:    req.Email,
		Phone:    req.Phone,
		Category: req.Category,
	})
	if err != nil {
		rest.RespondWithError(w, err)
		return
	}

	resp := SubscribeResponse{
		Status:         result.Status,
		CorrelationKey: result.CorrelationKey,
	}
	if result.Ticket != nil {
		resp.GatewayTicket = &TicketPayload{TransactionID: result.Ticket.TransactionID}
	}

	rest.RespondWithJSON(w, http.StatusAccepted, resp)
}
