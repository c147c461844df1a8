package services

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jmwangi/pesalink-gateway/internal/application"
	"github.com/jmwangi/pesalink-gateway/internal/config"
	"github.com/jmwangi/pesalink-gateway/internal/domain"
)

// Outcome is the internal result of processing a callback. Only Rejected is
// visible to the remote gateway; everything else funnels to the same neutral
// acknowledgment.
type Outcome string

const (
	// OutcomeProcessed means the callback matched a pending intent and the
	// success side effect ran (or failed and was alerted; the payment still
	// counts as reconciled, the money has moved).
	OutcomeProcessed Outcome = "PROCESSED"
	// OutcomeIgnored covers declined or cancelled payments. Expected,
	// unremarkable, no alert.
	OutcomeIgnored Outcome = "IGNORED"
	// OutcomeNoMatch means no pending intent held the claimed key: either a
	// duplicate delivery of something already reconciled, or a key this
	// process never issued. Alerted either way.
	OutcomeNoMatch Outcome = "NO_MATCH"
	// OutcomeMalformed is background noise, not a security signal.
	OutcomeMalformed Outcome = "MALFORMED"
	// OutcomeRejected is only produced under the reject policy for
	// untrusted callbacks.
	OutcomeRejected Outcome = "REJECTED"
)

// ReconcileService matches validated callbacks to pending intents and runs
// the enrollment side effect at most once per payment.
type ReconcileService struct {
	store     application.PendingStore
	directory application.Directory
	alerter   application.Alerter
	validator *CallbackValidator
	policy    config.UntrustedPolicy
	groups    map[string]string
	fallback  string
	logger    *slog.Logger
}

func NewReconcileService(
	store application.PendingStore,
	directory application.Directory,
	alerter application.Alerter,
	validator *CallbackValidator,
	callbackCfg config.CallbackConfig,
	directoryCfg config.DirectoryConfig,
	logger *slog.Logger,
) *ReconcileService {
	groups := make(map[string]string, len(directoryCfg.Groups))
	for category, groupID := range directoryCfg.Groups {
		groups[normalizeCategory(category)] = groupID
	}

	return &ReconcileService{
		store:     store,
		directory: directory,
		alerter:   alerter,
		validator: validator,
		policy:    callbackCfg.UntrustedPolicy,
		groups:    groups,
		fallback:  directoryCfg.DefaultGroup,
		logger:    logger,
	}
}

// Reconcile classifies the event, matches it to a pending intent, and
// decides success, failure, or no-op. Removing the record inside
// TakeIfPresent is what makes the side effect at-most-once: the second
// delivery of an already-resolved transaction finds nothing.
func (s *ReconcileService) Reconcile(ctx context.Context, event *domain.CallbackEvent) Outcome {
	verdict := s.validator.Validate(event)

	switch verdict.Trust {
	case Malformed:
		s.logger.Debug("malformed callback dropped", "reason", verdict.Reason)
		return OutcomeMalformed

	case Untrusted:
		s.alerter.Notify(fmt.Sprintf(
			"untrusted callback: %s (origin=%s, key=%s)",
			verdict.Reason, event.SourceOrigin, event.ClaimedKey,
		))
		if s.policy == config.PolicyReject {
			s.logger.Warn("untrusted callback rejected",
				"origin", event.SourceOrigin,
				"reason", verdict.Reason,
			)
			return OutcomeRejected
		}
		s.logger.Warn("untrusted callback, continuing per policy",
			"origin", event.SourceOrigin,
			"reason", verdict.Reason,
		)
	}

	intent, ok := s.store.TakeIfPresent(event.ClaimedKey)
	if !ok {
		s.alerter.Notify(fmt.Sprintf(
			"unmatched callback: key=%s origin=%s result_code=%d",
			event.ClaimedKey, event.SourceOrigin, event.ResultCode,
		))
		s.logger.Info("callback matched no pending intent",
			"correlation_key", event.ClaimedKey,
			"origin", event.SourceOrigin,
		)
		return OutcomeNoMatch
	}

	if !event.Succeeded() {
		if err := intent.CanTransitionTo(domain.StateResolvedFailure); err != nil {
			s.logger.Warn("discarding intent in unexpected state",
				"correlation_key", intent.CorrelationKey,
				"state", intent.State,
			)
		}
		intent.State = domain.StateResolvedFailure
		s.logger.Info("payment not completed",
			"correlation_key", event.ClaimedKey,
			"result_code", event.ResultCode,
			"result_desc", event.ResultDesc,
		)
		return OutcomeIgnored
	}

	intent.State = domain.StateResolvedSuccess
	if err := s.enroll(ctx, intent, event); err != nil {
		// The money has moved; from this system's point of view the payment
		// is reconciled. The enrollment failure is a human's problem now.
		s.alerter.Notify(fmt.Sprintf(
			"enrollment failed for %s (key=%s): %v",
			intent.Subject.Email, event.ClaimedKey, err,
		))
		s.logger.Error("downstream enrollment failed",
			"correlation_key", event.ClaimedKey,
			"email", intent.Subject.Email,
			"error", err,
		)
		return OutcomeProcessed
	}

	s.logger.Info("payment reconciled",
		"correlation_key", event.ClaimedKey,
		"email", intent.Subject.Email,
	)
	return OutcomeProcessed
}

// enroll runs the re-arm-don't-duplicate side effect: an existing membership
// in the target group is removed first so a repeat subscription refreshes
// recency instead of erroring on a duplicate.
func (s *ReconcileService) enroll(ctx context.Context, intent *domain.PaymentIntent, event *domain.CallbackEvent) error {
	group := s.groupFor(intent.Subject.Category)

	existing, err := s.directory.FindByEmail(ctx, intent.Subject.Email)
	if err != nil {
		return fmt.Errorf("directory lookup: %w", err)
	}

	if existing != nil && hasGroup(existing, group) {
		if err := s.directory.RemoveFromGroup(ctx, existing.ID, group); err != nil {
			return fmt.Errorf("removing existing membership: %w", err)
		}
	}

	phone := event.Metadata[domain.MetaPhoneNumber]
	if phone == "" {
		phone = intent.Subject.Phone
	}

	record := application.SubscriberRecord{
		Name:    intent.Subject.Name,
		Email:   intent.Subject.Email,
		Phone:   phone,
		Group:   group,
		Receipt: event.Metadata[domain.MetaReceipt],
	}
	if err := s.directory.Upsert(ctx, record); err != nil {
		return fmt.Errorf("upserting subscriber: %w", err)
	}

	return nil
}

func (s *ReconcileService) groupFor(category string) string {
	if group, ok := s.groups[normalizeCategory(category)]; ok {
		return group
	}
	return s.fallback
}

func normalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func hasGroup(sub *application.Subscriber, group string) bool {
	for _, g := range sub.Groups {
		if g == group {
			return true
		}
	}
	return false
}
