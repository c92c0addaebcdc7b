// Package domain holds federation origins and the provider-specific email rules.
package domain

import (
	"regexp"
	"strings"
)

// Known origins. Any other provider name supplied by a caller is accepted as-is.
const (
	OriginLocal     = "local"
	OriginLinkedIn  = "linkedin"
	OriginMicrosoft = "microsoft"
)

var trailingSegment = regexp.MustCompile(`_([^_]*)$`)

// NormalizeFederatedEmail undoes the guest-address mangling of the microsoft origin:
// everything from the first '#' is dropped and the last '_'-delimited segment becomes the domain.
// For example "bob_gmail.com#EXT#@tenant.onmicrosoft.com" becomes "bob@gmail.com".
// Emails from other origins are returned unchanged.
func NormalizeFederatedEmail(email, origin string) string {
	if origin != OriginMicrosoft {
		return email
	}
	local, _, _ := strings.Cut(email, "#")
	return trailingSegment.ReplaceAllString(local, "@$1")
}
