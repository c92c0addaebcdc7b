// Package email delivers verification and password-reset links.
package email

import (
	"context"
	"strings"
)

// Kind selects the email template.
type Kind string

const (
	KindEmailVerification Kind = "EMAIL_VERIFICATION"
	KindResetPassword     Kind = "RESET_PASSWORD"
)

// Valid reports whether k is a known template kind.
func (k Kind) Valid() bool {
	return k == KindEmailVerification || k == KindResetPassword
}

// linkType is the value of the type query parameter in the emailed link.
func (k Kind) linkType() string {
	if k == KindResetPassword {
		return "reset-password"
	}
	return "email-verification"
}

// Subject returns the subject line for k.
func (k Kind) Subject() string {
	if k == KindResetPassword {
		return "boilerplate Request to Reset Password"
	}
	return "boilerplate Email Address Verification"
}

// SentMessage is the caller-facing message after a successful send.
func (k Kind) SentMessage() string {
	if k == KindResetPassword {
		return "Reset password email sent successfully"
	}
	return "Verification email sent successfully"
}

// Result reports a send attempt.
type Result struct {
	Status  bool
	Message string
}

// Dispatcher sends a link email for token to recipient.
type Dispatcher interface {
	Send(ctx context.Context, recipient, token string, kind Kind, displayName string) (Result, error)
}

// DeliveryAddress strips a +tag from the local part: a+tag@x.com is delivered to a@x.com.
func DeliveryAddress(recipient string) string {
	plus := strings.Index(recipient, "+")
	at := strings.LastIndex(recipient, "@")
	if plus < 0 || at < 0 || plus > at {
		return recipient
	}
	return recipient[:plus] + recipient[at:]
}

// Link builds the frontend URL carried in the email. A + in the address is sent as %2B so it
// survives query decoding.
func Link(frontendURL string, kind Kind, recipient, token string) string {
	return strings.TrimRight(frontendURL, "/") +
		"/auth/verify?type=" + kind.linkType() +
		"&email=" + strings.ReplaceAll(recipient, "+", "%2B") +
		"&token=" + token
}
