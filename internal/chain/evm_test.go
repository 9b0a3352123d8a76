package chain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassifyEVMError_DeterministicRejectionsArePermanent(t *testing.T) {
	cases := []string{
		"execution reverted: INSUFFICIENT_OUTPUT_AMOUNT",
		"nonce too low",
		"insufficient funds for gas * price + value",
		"already known",
		"replacement transaction underpriced",
	}
	for _, msg := range cases {
		assert.Equal(t, ClassPermanent, classifyEVMError(errString(msg)), msg)
	}
}

func TestClassifyEVMError_ContextErrorsAreTransient(t *testing.T) {
	assert.Equal(t, ClassTransient, classifyEVMError(context.DeadlineExceeded))
	assert.Equal(t, ClassTransient, classifyEVMError(context.Canceled))
}

func TestClassifyEVMError_UnrecognizedDefaultsTransient(t *testing.T) {
	assert.Equal(t, ClassTransient, classifyEVMError(errors.New("dial tcp: connection refused")))
}
