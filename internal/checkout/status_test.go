package checkout

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransitionTo(t *testing.T) {
	tests := []struct {
		from, to Status
		allowed  bool
	}{
		{StatusCollectingAddress, StatusResolvingAddress, true},
		{StatusCollectingAddress, StatusPlacingOrder, true},
		{StatusCollectingAddress, StatusFailed, true},
		{StatusCollectingAddress, StatusCompleted, false},
		{StatusResolvingAddress, StatusPlacingOrder, true},
		{StatusResolvingAddress, StatusFailed, true},
		{StatusResolvingAddress, StatusCompleted, false},
		{StatusPlacingOrder, StatusCompleted, true},
		{StatusPlacingOrder, StatusFailed, true},
		{StatusPlacingOrder, StatusResolvingAddress, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusPlacingOrder, false},
	}
	for _, tt := range tests {
		t.Run(tt.from.String()+"->"+tt.to.String(), func(t *testing.T) {
			assert.Equal(t, tt.allowed, CanTransitionTo(tt.from, tt.to))
		})
	}
}

func TestStatus_IsTerminal(t *testing.T) {
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusCollectingAddress.IsTerminal())
	assert.False(t, StatusResolvingAddress.IsTerminal())
	assert.False(t, StatusPlacingOrder.IsTerminal())
}

func TestAttempt_IllegalTransition(t *testing.T) {
	a := newAttempt("k")
	err := a.transition(StatusCompleted)

	var illegal *IllegalTransitionError
	assert.True(t, errors.As(err, &illegal))
	assert.Equal(t, StatusCollectingAddress, illegal.From)
	assert.Equal(t, StatusCollectingAddress, a.Status)
	assert.Len(t, a.History, 1)
}
