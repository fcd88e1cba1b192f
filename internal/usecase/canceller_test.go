package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanceller_StartCancelsPrevious(t *testing.T) {
	var c Canceller

	first, releaseFirst := c.Start(context.Background())
	second, releaseSecond := c.Start(context.Background())
	defer releaseSecond()

	assert.Error(t, first.Err(), "starting a new action cancels the old one")
	assert.NoError(t, second.Err())

	// releasing the stale action leaves the current one registered
	releaseFirst()
	assert.True(t, c.Stop())
	assert.Error(t, second.Err())
}

func TestCanceller_StopWithoutAction(t *testing.T) {
	var c Canceller
	assert.False(t, c.Stop())

	_, release := c.Start(context.Background())
	release()
	assert.False(t, c.Stop(), "released actions are not stoppable")
}
