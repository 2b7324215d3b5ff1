package world

import (
	"encoding/json"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCaptureAt_DecrementsOptimistically(t *testing.T) {
	emitter := &fakeEmitter{}
	cc := NewCaptureCoordinator(emitter, clockwork.NewFakeClock())
	profile := &models.PlayerProfile{ID: "7", RemainingCaptures: 3}

	err := cc.CaptureAt(models.Coordinate{Latitude: 40.7, Longitude: -74}, profile)
	require.NoError(t, err)
	assert.Equal(t, 2, profile.RemainingCaptures)

	sent := emitter.ofType(EventTypeCaptureRequest)
	require.Len(t, sent, 1)

	var payload CaptureRequestPayload
	require.NoError(t, json.Unmarshal(sent[0].Data, &payload))
	assert.Equal(t, CaptureRequestPayload{Latitude: 40.7, Longitude: -74, UserID: "7"}, payload)
}

func TestCaptureAt_Refusals(t *testing.T) {
	here := models.Coordinate{Latitude: 1, Longitude: 1}

	t.Run("anonymous", func(t *testing.T) {
		emitter := &fakeEmitter{}
		err := NewCaptureCoordinator(emitter, nil).CaptureAt(here, nil)
		assert.ErrorIs(t, err, ErrAnonymous)
		assert.Empty(t, emitter.ofType(EventTypeCaptureRequest))
	})

	t.Run("no allowance", func(t *testing.T) {
		emitter := &fakeEmitter{}
		profile := &models.PlayerProfile{ID: "1", RemainingCaptures: 0}
		err := NewCaptureCoordinator(emitter, nil).CaptureAt(here, profile)
		assert.ErrorIs(t, err, ErrNoAllowance)
		assert.Equal(t, 0, profile.RemainingCaptures)
		assert.Empty(t, emitter.ofType(EventTypeCaptureRequest))
	})

	t.Run("send fails", func(t *testing.T) {
		emitter := &fakeEmitter{err: ErrSendQueueFull}
		profile := &models.PlayerProfile{ID: "1", RemainingCaptures: 2}
		err := NewCaptureCoordinator(emitter, nil).CaptureAt(here, profile)
		assert.ErrorIs(t, err, ErrSendQueueFull)
		assert.Equal(t, 2, profile.RemainingCaptures)
	})

	t.Run("no emitter", func(t *testing.T) {
		profile := &models.PlayerProfile{ID: "1", RemainingCaptures: 2}
		err := NewCaptureCoordinator(nil, nil).CaptureAt(here, profile)
		assert.ErrorIs(t, err, ErrNotConnected)
		assert.Equal(t, 2, profile.RemainingCaptures)
	})
}
