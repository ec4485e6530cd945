package apperr

import (
	"fmt"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
)

func TestProviderErrorMapsToTaxonomy(t *testing.T) {
	err := fmt.Errorf("connect: %w", NewProviderError(CodeUserRejected, "denied"))
	assert.ErrorIs(t, err, ErrUserRejected)
	assert.Equal(t, "User rejected the request.", Message(err))

	pending := NewProviderError(CodeRequestPending, "busy")
	assert.ErrorIs(t, pending, ErrPendingRequest)
	assert.Equal(t, "Request already pending in wallet.", Message(pending))

	code, ok := ProviderCode(errors.Wrap(NewProviderError(CodeUnrecognizedChain, "x"), "switch"))
	assert.True(t, ok)
	assert.Equal(t, CodeUnrecognizedChain, code)
}

func TestValidationError(t *testing.T) {
	err := Invalid("amount", "must be a decimal number")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, "validation", KindName(err))
	assert.Equal(t, "Purchase failed: amount: must be a decimal number", Status("Purchase", err))
}

func TestContractMarksUnclassified(t *testing.T) {
	err := Contract(errors.New("execution reverted"), "buySQMU")
	assert.ErrorIs(t, err, ErrContractCall)
	assert.Equal(t, "contract_call", KindName(err))

	rejected := Contract(NewProviderError(CodeUserRejected, "no"), "approve")
	assert.ErrorIs(t, rejected, ErrUserRejected)
	assert.Equal(t, "user_rejected", KindName(rejected))

	assert.NoError(t, Contract(nil, "noop"))
}

func TestKindDefaultsToUnknown(t *testing.T) {
	assert.Equal(t, ErrUnknown, Kind(errors.New("boom")))
	assert.Nil(t, Kind(nil))
	assert.Equal(t, "", KindName(nil))
}

func TestMessageShortensFirstLine(t *testing.T) {
	long := strings.Repeat("x", 200) + "\nsecond line"
	msg := Message(errors.New(long))
	assert.Len(t, msg, maxMessageLen)
	assert.True(t, strings.HasSuffix(msg, "..."))

	assert.Equal(t, "first", Message(errors.New("first\nsecond")))
}

func TestDetailKeepsFullText(t *testing.T) {
	err := errors.Wrap(errors.New("root cause"), "outer")
	assert.Contains(t, Detail(err), "root cause")
	assert.Equal(t, "", Detail(nil))
}
