// Package apperr holds the error taxonomy shared by the wallet session and the
// transaction flows, and turns errors into the short status lines shown to users.
package apperr

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	ErrValidation          = errors.New("validation error")
	ErrNotConnected        = errors.New("wallet not connected")
	ErrProviderUnavailable = errors.New("wallet provider unavailable")
	ErrUserRejected        = errors.New("user rejected the request")
	ErrPendingRequest      = errors.New("request already pending in wallet")
	ErrChainMismatch       = errors.New("wallet is on the wrong chain")
	ErrChainSwitchFailed   = errors.New("chain switch failed")
	ErrContractCall        = errors.New("contract call failed")
	ErrTimeout             = errors.New("request timed out")
	ErrUnknown             = errors.New("unknown error")
)

// EIP-1193 / JSON-RPC provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupported       = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
	CodeRequestPending    = -32002
)

// ValidationError describes bad or missing input. It never reaches the network.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// ProviderError is an error reported by a wallet provider, carrying its code.
type ProviderError struct {
	Code    int
	Message string
}

func (e *ProviderError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider error %d", e.Code)
	}
	return fmt.Sprintf("%s (code %d)", e.Message, e.Code)
}

// Is maps the provider code onto the taxonomy so errors.Is works on raw
// provider errors too.
func (e *ProviderError) Is(target error) bool {
	return target == FromProviderCode(e.Code)
}

func NewProviderError(code int, msg string) error {
	return &ProviderError{Code: code, Message: msg}
}

// ProviderCode extracts the provider code from err, if any.
func ProviderCode(err error) (int, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

func FromProviderCode(code int) error {
	switch code {
	case CodeUserRejected:
		return ErrUserRejected
	case CodeRequestPending:
		return ErrPendingRequest
	case CodeUnrecognizedChain:
		return ErrChainMismatch
	case CodeDisconnected, CodeChainDisconnected, CodeUnauthorized:
		return ErrNotConnected
	default:
		return ErrUnknown
	}
}

// Contract marks err as a failed contract read or write.
func Contract(err error, op string) error {
	if err == nil {
		return nil
	}
	if isClassified(err) {
		return errors.Wrap(err, op)
	}
	return errors.Mark(errors.Wrap(err, op), ErrContractCall)
}

var kinds = []error{
	ErrValidation,
	ErrNotConnected,
	ErrProviderUnavailable,
	ErrUserRejected,
	ErrPendingRequest,
	ErrChainMismatch,
	ErrChainSwitchFailed,
	ErrContractCall,
	ErrTimeout,
}

func isClassified(err error) bool {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}

// Kind returns the taxonomy sentinel err belongs to, ErrUnknown otherwise.
func Kind(err error) error {
	if err == nil {
		return nil
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return ErrUnknown
}

// KindName is a stable identifier for API payloads and metrics labels.
func KindName(err error) string {
	switch Kind(err) {
	case nil:
		return ""
	case ErrValidation:
		return "validation"
	case ErrNotConnected:
		return "not_connected"
	case ErrProviderUnavailable:
		return "provider_unavailable"
	case ErrUserRejected:
		return "user_rejected"
	case ErrPendingRequest:
		return "pending_request"
	case ErrChainMismatch:
		return "chain_mismatch"
	case ErrChainSwitchFailed:
		return "chain_switch_failed"
	case ErrContractCall:
		return "contract_call"
	case ErrTimeout:
		return "timeout"
	default:
		return "unknown"
	}
}

const maxMessageLen = 120

// Message is the short, human-readable form of err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	switch Kind(err) {
	case ErrUserRejected:
		return "User rejected the request."
	case ErrPendingRequest:
		return "Request already pending in wallet."
	case ErrNotConnected:
		return "Connect your wallet first."
	}

	var ve *ValidationError
	if errors.As(err, &ve) {
		return shorten(ve.Error())
	}
	if msg := shorten(err.Error()); msg != "" {
		return msg
	}
	return "Unknown error."
}

// Status formats "<action> failed: <message>".
func Status(action string, err error) string {
	return fmt.Sprintf("%s failed: %s", action, Message(err))
}

// Detail is the full error text, for copy-to-support.
func Detail(err error) string {
	if err == nil {
		return ""
	}
	return fmt.Sprintf("%+v", err)
}

func shorten(msg string) string {
	first, _, _ := strings.Cut(msg, "\n")
	first = strings.TrimSpace(first)
	if len(first) <= maxMessageLen {
		return first
	}
	return first[:maxMessageLen-3] + "..."
}
