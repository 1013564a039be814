package domain

import "time"

// Kind identifies what a notification says and how its payload is rendered.
// The set is fixed at startup; there is no runtime kind registration.
type Kind string

const (
	// KindRegistrationUpdate tells a barista their registration was approved or rejected.
	KindRegistrationUpdate Kind = "registration_update"
	// KindManagerNote carries free-form text to a manager. Operator-gated.
	KindManagerNote Kind = "manager_note"
	// KindNewBaristaAlert tells a manager a new barista registered. Operator-gated.
	KindNewBaristaAlert Kind = "new_barista_alert"
	// KindPing is a fixed smoke-check message.
	KindPing Kind = "ping"
)

func (k Kind) IsValid() bool {
	switch k {
	case KindRegistrationUpdate, KindManagerNote, KindNewBaristaAlert, KindPing:
		return true
	}
	return false
}

// OperatorOnly reports whether the kind may only be sent to whitelisted operators.
func (k Kind) OperatorOnly() bool {
	return k == KindManagerNote || k == KindNewBaristaAlert
}

// State tracks the delivery lifecycle of a job.
type State string

const (
	StateScheduled      State = "scheduled"
	StatePending        State = "pending"
	StateInFlight       State = "in_flight"
	StateDelivered      State = "delivered"
	StateRetryScheduled State = "retry_scheduled"
	StateFailed         State = "failed"
	StateExhausted      State = "exhausted"
)

func (s State) IsValid() bool {
	switch s {
	case StateScheduled, StatePending, StateInFlight, StateDelivered,
		StateRetryScheduled, StateFailed, StateExhausted:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s State) Terminal() bool {
	switch s {
	case StateDelivered, StateFailed, StateExhausted:
		return true
	}
	return false
}

// Payload holds the render inputs for a job: message content plus whatever
// structured metadata the kind's renderer needs.
type Payload map[string]string

// Job is the core domain entity: one unit of notification work tracked
// through the state machine. Jobs are created once, mutated only by workers
// and pollers, and never deleted by the dispatch core.
type Job struct {
	ID               string     `json:"id"`
	Kind             Kind       `json:"kind"`
	Recipient        string     `json:"recipient"`
	Payload          Payload    `json:"payload"`
	State            State      `json:"state"`
	AttemptCount     int        `json:"attempt_count"`
	MaxAttempts      int        `json:"max_attempts"`
	NextAttemptAt    *time.Time `json:"next_attempt_at,omitempty"`
	DeliverAt        *time.Time `json:"deliver_at,omitempty"`
	DeliveredAt      *time.Time `json:"delivered_at,omitempty"`
	TransportMsgID   *string    `json:"transport_msg_id,omitempty"`
	LastError        *string    `json:"last_error,omitempty"`
	IdempotencyKey   *string    `json:"idempotency_key,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	LastTransitionAt time.Time  `json:"last_transition_at"`
}

// RetriesRemaining reports whether another delivery attempt is allowed.
// AttemptCount already includes the attempt that just failed.
func (j *Job) RetriesRemaining() bool {
	return j.AttemptCount < j.MaxAttempts
}

// SubmitRequest is the inbound payload for a single notification.
type SubmitRequest struct {
	Kind      Kind       `json:"kind"`
	Recipient string     `json:"recipient"`
	Payload   Payload    `json:"payload"`
	DeliverAt *time.Time `json:"deliver_at,omitempty"`
}

// Validate checks the structural rules every submission must satisfy.
// Kind-specific payload requirements are checked by the render registry.
func (r *SubmitRequest) Validate() error {
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	if r.Recipient == "" {
		return ErrEmptyRecipient
	}
	if len(r.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// BroadcastRequest fans one payload out to every whitelisted operator.
type BroadcastRequest struct {
	Kind    Kind    `json:"kind"`
	Payload Payload `json:"payload"`
}

func (r *BroadcastRequest) Validate() error {
	if !r.Kind.IsValid() {
		return ErrInvalidKind
	}
	if !r.Kind.OperatorOnly() {
		return ErrInvalidKind
	}
	if len(r.Payload) == 0 {
		return ErrEmptyPayload
	}
	return nil
}

// ListFilter holds query parameters for paginated job listing.
type ListFilter struct {
	State     *State
	Kind      *Kind
	Recipient *string
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}
