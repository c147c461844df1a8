package rest

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/jmwangi/pesalink-gateway/internal/application"
)

type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *APIError   `json:"error,omitempty"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// GatewayAck is the shape the payment gateway expects back from the callback
// endpoint. Always ResultCode 0; the webhook contract never signals failure
// back, to avoid provoking gateway-side retry storms.
type GatewayAck struct {
	ResultCode int    `json:"ResultCode"`
	ResultDesc string `json:"ResultDesc"`
}

func RespondWithJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := APIResponse{
		Success: status >= 200 && status < 300,
	}

	if response.Success {
		response.Data = data
	} else {
		if apiErr, ok := data.(*APIError); ok {
			response.Error = apiErr
		}
	}

	_ = json.NewEncoder(w).Encode(response)
}

func RespondWithError(w http.ResponseWriter, err error) {
	code := application.ErrCodeInternal
	message := "An internal error occurred"

	var svcErr *application.ServiceError
	if errors.As(err, &svcErr) {
		code = svcErr.Code
		message = svcErr.Message
		if svcErr.Err != nil {
			message = svcErr.Error()
		}
	}

	RespondWithJSON(w, application.ToHTTPStatus(err), &APIError{
		Code:    code,
		Message: message,
	})
}

// RespondWithAck writes the neutral acknowledgment. All callback-side error
// paths funnel here with an internal status string; the remote gateway sees
// success no matter what.
func RespondWithAck(w http.ResponseWriter, desc string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(GatewayAck{ResultCode: 0, ResultDesc: desc})
}
