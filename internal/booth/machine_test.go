package booth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMachine_Transitions(t *testing.T) {
	ctx := context.Background()
	rendered := 0
	m := newMachine(func() { rendered++ })

	assert.Equal(t, string(PhaseIntro), m.Current())
	assert.False(t, m.Can(eventShutter))
	assert.False(t, m.Can(eventReset))

	require.NoError(t, m.Event(ctx, eventStart))
	assert.Equal(t, string(PhaseAwaitingDevice), m.Current())
	assert.True(t, m.Can(eventRetry))
	assert.False(t, m.Can(eventStart))

	require.NoError(t, m.Event(ctx, eventDeviceAcquired))
	assert.Equal(t, string(PhaseLive), m.Current())
	assert.True(t, m.Can(eventShutter))
	assert.True(t, m.Can(eventSelectFilter))
	assert.Zero(t, rendered)

	require.NoError(t, m.Event(ctx, eventReviewDue))
	assert.Equal(t, string(PhaseReviewing), m.Current())
	assert.Equal(t, 1, rendered, "Reviewingに入ると合成が始まること")
	assert.False(t, m.Can(eventShutter))
	assert.False(t, m.Can(eventSelectFilter))

	require.NoError(t, m.Event(ctx, eventReset))
	assert.Equal(t, string(PhaseLive), m.Current())
}

func TestBooth_FireMapsErrors(t *testing.T) {
	b := &Booth{machine: newMachine(func() {})}

	// Introでは受け付けない
	assert.ErrorIs(t, b.fire(eventReset), ErrInvalidPhase)
	assert.ErrorIs(t, b.allow(eventShutter), ErrInvalidPhase)
	assert.Equal(t, PhaseIntro, b.phase())

	require.NoError(t, b.fire(eventStart))
	require.NoError(t, b.fire(eventDeviceAcquired))

	// Liveからのリセットは同じフェーズへの遷移なので成功扱い
	assert.NoError(t, b.fire(eventReset))
	assert.NoError(t, b.allow(eventShutter))
	assert.Equal(t, PhaseLive, b.phase())
}
