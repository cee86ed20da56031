package domain

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// Status is the lifecycle state of a delivery. Beyond the two local states
// below it carries normalized carrier delivery-report statuses, e.g.
// delivered_to_terminal or delivery_impossible, so the type is deliberately
// open-ended.
type Status string

const (
	StatusInitiated Status = "initiated"
	StatusSent      Status = "sent"
)

func (s Status) String() string { return string(s) }

// CallbackDataLength is the length of the per-delivery correlation secret.
// The secret is the sole authentication factor for the inbound delivery
// receipt webhook, so it must stay long enough to be unguessable.
const CallbackDataLength = 32

// Delivery is one outbound SMS attempt and its latest known carrier status.
// Two independent writers mutate it: the gateway right after the send, and
// the callback receiver when the carrier reports final delivery, possibly
// minutes later.
type Delivery struct {
	ID           string
	From         string
	To           string
	Status       Status
	ResourceURL  *string
	CallbackData string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

func (d *Delivery) Validate() error {
	if strings.TrimSpace(d.From) == "" {
		return fmt.Errorf("%w: sender address is required", ErrValidation)
	}
	if strings.TrimSpace(d.To) == "" {
		return fmt.Errorf("%w: recipient is required", ErrValidation)
	}
	if strings.HasPrefix(d.To, "tel:") || strings.HasPrefix(d.From, "tel:") {
		return fmt.Errorf("%w: phone identifiers are stored without the tel: scheme", ErrValidation)
	}
	if len(d.CallbackData) != CallbackDataLength {
		return fmt.Errorf("%w: callback data must be %d characters (got %d)", ErrValidation, CallbackDataLength, len(d.CallbackData))
	}
	for _, r := range d.CallbackData {
		if !isAlphanumeric(r) {
			return fmt.Errorf("%w: callback data must be alphanumeric", ErrValidation)
		}
	}
	return nil
}

func isAlphanumeric(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
}

// NormalizePhoneNumber strips the carrier tel: scheme prefix and surrounding
// whitespace so the ledger holds plain E.164-like identifiers.
func NormalizePhoneNumber(number string) string {
	return strings.TrimPrefix(strings.TrimSpace(number), "tel:")
}

// NormalizeCarrierStatus converts the carrier's PascalCase delivery status
// vocabulary into snake_case tokens, e.g. DeliveredToTerminal becomes
// delivered_to_terminal.
func NormalizeCarrierStatus(status string) Status {
	trimmed := strings.TrimSpace(status)
	if trimmed == "" {
		return ""
	}

	var b strings.Builder
	b.Grow(len(trimmed) + 4)

	runes := []rune(trimmed)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			prevLower := i > 0 && !unicode.IsUpper(runes[i-1]) && runes[i-1] != '_'
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if i > 0 && (prevLower || (nextLower && unicode.IsUpper(runes[i-1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}

	return Status(b.String())
}
