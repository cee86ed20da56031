package telia

import (
	"fmt"
	"strconv"
	"strings"
)

// ErrorCode classifies a failed send. Policy codes come from the carrier's
// policyException messageId vocabulary; the transport/auth codes cover
// everything that never reached policy evaluation.
type ErrorCode string

const (
	ErrorServerBusy           ErrorCode = "server_busy"
	ErrorInvalidToNumber      ErrorCode = "invalid_to_number"
	ErrorDestinationWhitelist ErrorCode = "destination_whitelist"
	ErrorDestinationBlacklist ErrorCode = "destination_blacklist"
	ErrorUnknown              ErrorCode = "unknown"

	ErrorServerError  ErrorCode = "server_error"
	ErrorUnauthorized ErrorCode = "unauthorized"
)

// Carrier policy exception message identifiers.
const (
	policyMessageIDServerBusy           = "POL3003"
	policyMessageIDInvalidToNumber      = "POL3101"
	policyMessageIDDestinationWhitelist = "POL3006"
	policyMessageIDDestinationBlacklist = "POL3007"
)

func policyErrorCode(messageID string) ErrorCode {
	switch strings.TrimSpace(messageID) {
	case policyMessageIDServerBusy:
		return ErrorServerBusy
	case policyMessageIDInvalidToNumber:
		return ErrorInvalidToNumber
	case policyMessageIDDestinationWhitelist:
		return ErrorDestinationWhitelist
	case policyMessageIDDestinationBlacklist:
		return ErrorDestinationBlacklist
	default:
		return ErrorUnknown
	}
}

// PolicyError is a structured rejection from the carrier: the message was
// understood but refused for a policy reason. server_busy is the only code
// that qualifies for a deferred retry.
type PolicyError struct {
	Code      ErrorCode
	MessageID string
	Message   string
}

func (e *PolicyError) Error() string {
	if e == nil {
		return "<nil>"
	}

	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = "policy exception"
	}
	if e.MessageID != "" {
		return fmt.Sprintf("telia policy error (%s): %s", e.MessageID, msg)
	}
	return fmt.Sprintf("telia policy error: %s", msg)
}

// ServerError covers malformed or unexpected carrier responses and
// transport-level failures.
type ServerError struct {
	StatusCode int
	Cause      error
}

func (e *ServerError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := []string{"telia server error"}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *ServerError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// AuthenticationError means the carrier rejected the account credentials at
// the token endpoint. Callers must not retry with the same credentials.
type AuthenticationError struct {
	StatusCode int
}

func (e *AuthenticationError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("telia authentication failed: status=%d", e.StatusCode)
}

// formatPolicyText substitutes the carrier's ordered variables into a policy
// exception text template, e.g. "error %1, code %2".
func formatPolicyText(text string, variables []string) string {
	formatted := text
	for i, variable := range variables {
		placeholder := "%" + strconv.Itoa(i+1)
		formatted = strings.ReplaceAll(formatted, placeholder, variable)
	}
	return strings.TrimSpace(formatted)
}
