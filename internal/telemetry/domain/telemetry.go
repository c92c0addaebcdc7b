package domain

import "time"

// EventType names an authentication event.
type EventType string

const (
	EventRegister        EventType = "register"
	EventLogin           EventType = "login"
	EventLoginFederated  EventType = "login_federated"
	EventEmailLinkSent   EventType = "email_link_sent"
	EventEmailVerified   EventType = "email_verified"
	EventPasswordReset   EventType = "password_reset"
	EventPasswordChanged EventType = "password_changed"
	EventLogout          EventType = "logout"
	EventOTPIssued       EventType = "otp_issued"
	EventOTPVerified     EventType = "otp_verified"
)

// Outcomes recorded on AuthEvent.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// AuthEvent is one authentication outcome published to the event stream. It carries no
// secrets and no plaintext credentials.
type AuthEvent struct {
	ID         string    `json:"id"`
	Type       EventType `json:"type"`
	Outcome    string    `json:"outcome"`
	UserID     string    `json:"user_id,omitempty"`
	Origin     string    `json:"origin,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
