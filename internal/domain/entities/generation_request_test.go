package entities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusTransitions(t *testing.T) {
	legal := []struct {
		from, to GenerationStatus
	}{
		{GenerationStatusPendingPayment, GenerationStatusQueued},
		{GenerationStatusPendingPayment, GenerationStatusPaymentError},
		{GenerationStatusPaymentError, GenerationStatusPendingPayment},
		{GenerationStatusPaid, GenerationStatusQueued},
		{GenerationStatusQueued, GenerationStatusGenerating},
		{GenerationStatusGenerating, GenerationStatusCompleted},
		{GenerationStatusGenerating, GenerationStatusError},
	}
	for _, tc := range legal {
		assert.True(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be legal", tc.from, tc.to)
	}

	illegal := []struct {
		from, to GenerationStatus
	}{
		{GenerationStatusPendingPayment, GenerationStatusGenerating},
		{GenerationStatusPendingPayment, GenerationStatusCompleted},
		{GenerationStatusQueued, GenerationStatusPendingPayment},
		{GenerationStatusQueued, GenerationStatusCompleted},
		{GenerationStatusCompleted, GenerationStatusQueued},
		{GenerationStatusError, GenerationStatusGenerating},
		{GenerationStatusPaymentError, GenerationStatusQueued},
		{GenerationStatusGenerating, GenerationStatusQueued},
	}
	for _, tc := range illegal {
		assert.False(t, tc.from.CanTransitionTo(tc.to), "%s -> %s should be illegal", tc.from, tc.to)
	}
}

func TestTerminalStatuses(t *testing.T) {
	assert.True(t, GenerationStatusCompleted.IsTerminal())
	assert.True(t, GenerationStatusError.IsTerminal())
	assert.False(t, GenerationStatusPendingPayment.IsTerminal())
	assert.False(t, GenerationStatusPaymentError.IsTerminal(), "payment_error is recoverable via operator reset")
	assert.False(t, GenerationStatusQueued.IsTerminal())
}

func TestInProgressStatuses(t *testing.T) {
	statuses := InProgressStatuses()
	assert.ElementsMatch(t, []GenerationStatus{
		GenerationStatusPaid,
		GenerationStatusQueued,
		GenerationStatusGenerating,
	}, statuses)
}
