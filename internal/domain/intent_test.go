package domain

import (
	"testing"
	"time"
)

func TestCanTransitionTo(t *testing.T) {
	cases := []struct {
		from    IntentState
		to      IntentState
		allowed bool
	}{
		{StateAwaitingGatewayID, StateAwaitingCallback, true},
		{StateAwaitingGatewayID, StateResolvedExpired, true},
		{StateAwaitingGatewayID, StateResolvedSuccess, false},
		{StateAwaitingCallback, StateResolvedSuccess, true},
		{StateAwaitingCallback, StateResolvedFailure, true},
		{StateAwaitingCallback, StateResolvedExpired, true},
		{StateAwaitingCallback, StateAwaitingGatewayID, false},
		{StateResolvedSuccess, StateAwaitingCallback, false},
		{StateResolvedFailure, StateResolvedSuccess, false},
	}

	for _, tc := range cases {
		intent := &PaymentIntent{State: tc.from}
		err := intent.CanTransitionTo(tc.to)
		if tc.allowed && err != nil {
			t.Errorf("%s -> %s: expected allowed, got %v", tc.from, tc.to, err)
		}
		if !tc.allowed {
			if err == nil {
				t.Errorf("%s -> %s: expected error", tc.from, tc.to)
			} else if !IsErrorCode(err, ErrCodeInvalidTransition) {
				t.Errorf("%s -> %s: expected INVALID_TRANSITION, got %v", tc.from, tc.to, err)
			}
		}
	}
}

func TestExpiredAt(t *testing.T) {
	now := time.Now()
	intent := &PaymentIntent{CreatedAt: now.Add(-3 * time.Minute)}

	if intent.ExpiredAt(now, 5*time.Minute) {
		t.Error("intent younger than max age must not be expired")
	}
	if !intent.ExpiredAt(now, 2*time.Minute) {
		t.Error("intent older than max age must be expired")
	}
}

func TestCallbackEventSucceeded(t *testing.T) {
	if !(&CallbackEvent{ResultCode: 0}).Succeeded() {
		t.Error("result code 0 is success")
	}
	if (&CallbackEvent{ResultCode: 1032}).Succeeded() {
		t.Error("non-zero result code is not success")
	}
}
