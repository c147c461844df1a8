package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
	"github.com/jmwangi/pesalink-gateway/internal/infrastructure/daraja"
)

// InitiateResult is returned to the caller who asked for the prompt. The
// payment itself resolves later, out of band.
type InitiateResult struct {
	Status         string
	CorrelationKey string
	Ticket         *application.GatewayTicket
}

// InitiateService records a payment intent and asks the gateway to prompt
// the user's phone.
type InitiateService struct {
	store   application.PendingStore
	gateway application.GatewayClient
	amount  decimal.Decimal
	logger  *slog.Logger
}

func NewInitiateService(
	store application.PendingStore,
	gateway application.GatewayClient,
	amount decimal.Decimal,
	logger *slog.Logger,
) *InitiateService {
	return &InitiateService{
		store:   store,
		gateway: gateway,
		amount:  amount,
		logger:  logger,
	}
}

// Initiate records the intent under a locally generated reference, submits
// the push, then re-keys the record under the gateway's transaction id once
// known. A malformed gateway response is not a failure: the record stays
// under its local reference in AwaitingGatewayID and the caller is still
// told the attempt is pending, since the prompt may have reached the phone.
func (s *InitiateService) Initiate(ctx context.Context, subject domain.Subject) (*InitiateResult, error) {
	if err := validateSubject(subject); err != nil {
		return nil, application.NewInvalidInputError(err)
	}

	ref := uuid.NewString()
	s.store.Put(ref, &domain.PaymentIntent{
		CorrelationKey: ref,
		Subject:        subject,
		Amount:         s.amount,
		State:          domain.StateAwaitingGatewayID,
		CreatedAt:      time.Now(),
	})

	ticket, err := s.gateway.RequestPushPayment(ctx, subject, s.amount)
	if err != nil {
		// No prompt went out, so nothing can ever call back for this record.
		s.store.TakeIfPresent(ref)
		return nil, s.mapGatewayError(err)
	}

	key := ref
	if ticket.TransactionID != "" {
		if s.store.Rekey(ref, ticket.TransactionID) {
			key = ticket.TransactionID
		}
	} else {
		s.logger.Warn("gateway response unparseable, ticket not obtained",
			"correlation_key", ref,
			"raw_response", ticket.RawResponse,
		)
	}

	s.logger.Info("push payment initiated",
		"correlation_key", key,
		"category", subject.Category,
	)

	return &InitiateResult{
		Status:         "pending",
		CorrelationKey: key,
		Ticket:         ticket,
	}, nil
}

func (s *InitiateService) mapGatewayError(err error) error {
	if svcErr, ok := application.IsServiceError(err); ok {
		return svcErr
	}
	if gwErr, ok := daraja.IsGatewayError(err); ok {
		return application.NewGatewayRejectedError(gwErr)
	}
	return application.NewGatewayUnavailableError(err)
}

func validateSubject(subject domain.Subject) error {
	if subject.Name == "" {
		return domain.NewMissingRequiredFieldError("name")
	}
	if subject.Email == "" {
		return domain.NewMissingRequiredFieldError("email")
	}
	if subject.Phone == "" {
		return domain.NewMissingRequiredFieldError("phone")
	}
	if subject.Category == "" {
		return domain.NewMissingRequiredFieldError("category")
	}
	return nil
}
