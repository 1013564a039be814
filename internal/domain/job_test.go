package domain_test

import (
	"testing"

	"github.com/shiftbrew/dispatch/internal/domain"
)

func TestSubmitRequest_Validate(t *testing.T) {
	valid := domain.SubmitRequest{
		Kind:      domain.KindManagerNote,
		Recipient: "198466742",
		Payload:   domain.Payload{"text": "Shift roster updated"},
	}

	t.Run("valid request passes", func(t *testing.T) {
		r := valid
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("invalid kind", func(t *testing.T) {
		r := valid
		r.Kind = "carrier_pigeon"
		if err := r.Validate(); err != domain.ErrInvalidKind {
			t.Fatalf("expected ErrInvalidKind, got %v", err)
		}
	})

	t.Run("empty recipient", func(t *testing.T) {
		r := valid
		r.Recipient = ""
		if err := r.Validate(); err != domain.ErrEmptyRecipient {
			t.Fatalf("expected ErrEmptyRecipient, got %v", err)
		}
	})

	t.Run("empty payload", func(t *testing.T) {
		r := valid
		r.Payload = nil
		if err := r.Validate(); err != domain.ErrEmptyPayload {
			t.Fatalf("expected ErrEmptyPayload, got %v", err)
		}
	})

	t.Run("all valid kinds accepted", func(t *testing.T) {
		for _, k := range []domain.Kind{
			domain.KindRegistrationUpdate,
			domain.KindManagerNote,
			domain.KindNewBaristaAlert,
			domain.KindPing,
		} {
			r := valid
			r.Kind = k
			if err := r.Validate(); err != nil {
				t.Fatalf("kind %q: expected no error, got %v", k, err)
			}
		}
	})
}

func TestBroadcastRequest_Validate(t *testing.T) {
	t.Run("operator kind passes", func(t *testing.T) {
		r := domain.BroadcastRequest{
			Kind:    domain.KindManagerNote,
			Payload: domain.Payload{"text": "Espresso machine maintenance at 18:00"},
		}
		if err := r.Validate(); err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
	})

	t.Run("non-operator kind rejected", func(t *testing.T) {
		r := domain.BroadcastRequest{
			Kind:    domain.KindPing,
			Payload: domain.Payload{"text": "x"},
		}
		if err := r.Validate(); err != domain.ErrInvalidKind {
			t.Fatalf("expected ErrInvalidKind, got %v", err)
		}
	})

	t.Run("empty payload rejected", func(t *testing.T) {
		r := domain.BroadcastRequest{Kind: domain.KindManagerNote}
		if err := r.Validate(); err != domain.ErrEmptyPayload {
			t.Fatalf("expected ErrEmptyPayload, got %v", err)
		}
	})
}

func TestState_Terminal(t *testing.T) {
	terminal := []domain.State{domain.StateDelivered, domain.StateFailed, domain.StateExhausted}
	for _, s := range terminal {
		if !s.Terminal() {
			t.Errorf("expected %q to be terminal", s)
		}
	}

	live := []domain.State{
		domain.StateScheduled, domain.StatePending,
		domain.StateInFlight, domain.StateRetryScheduled,
	}
	for _, s := range live {
		if s.Terminal() {
			t.Errorf("expected %q to be non-terminal", s)
		}
	}
}

func TestKind_OperatorOnly(t *testing.T) {
	if !domain.KindManagerNote.OperatorOnly() || !domain.KindNewBaristaAlert.OperatorOnly() {
		t.Fatal("manager-facing kinds must be operator-gated")
	}
	if domain.KindRegistrationUpdate.OperatorOnly() || domain.KindPing.OperatorOnly() {
		t.Fatal("user-facing kinds must not be operator-gated")
	}
}

func TestJob_RetriesRemaining(t *testing.T) {
	j := &domain.Job{AttemptCount: 4, MaxAttempts: 5}
	if !j.RetriesRemaining() {
		t.Fatal("expected retries remaining at 4/5")
	}
	j.AttemptCount = 5
	if j.RetriesRemaining() {
		t.Fatal("expected no retries remaining at 5/5")
	}
}
