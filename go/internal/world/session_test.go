package world

import (
	"errors"
	"testing"

	"github.com/mcdev12/turfwar/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionController_LoadingToReady(t *testing.T) {
	s := NewSessionController()
	assert.Equal(t, SessionLoading, s.State())

	gen := s.Begin()
	applied := s.Resolve(gen, &models.PlayerProfile{ID: "1", RemainingCaptures: 3}, nil)
	require.True(t, applied)

	assert.Equal(t, SessionReady, s.State())
	assert.Equal(t, 3, s.Profile().RemainingCaptures)
}

func TestSessionController_FailureIsAnonymous(t *testing.T) {
	s := NewSessionController()
	gen := s.Begin()
	s.Resolve(gen, &models.PlayerProfile{ID: "1", RemainingCaptures: 3}, nil)

	gen = s.Begin()
	require.True(t, s.Resolve(gen, nil, errors.New("connection refused")))

	assert.Equal(t, SessionAnonymous, s.State())
	assert.Nil(t, s.Profile())
}

func TestSessionController_NoProfileIsAnonymous(t *testing.T) {
	s := NewSessionController()
	require.True(t, s.Resolve(s.Begin(), nil, nil))
	assert.Equal(t, SessionAnonymous, s.State())
}

func TestSessionController_DropsStaleResults(t *testing.T) {
	s := NewSessionController()
	first := s.Begin()
	second := s.Begin()

	assert.False(t, s.Resolve(first, &models.PlayerProfile{ID: "old", RemainingCaptures: 1}, nil))
	assert.Equal(t, SessionLoading, s.State())

	assert.True(t, s.Resolve(second, &models.PlayerProfile{ID: "new", RemainingCaptures: 2}, nil))
	assert.Equal(t, models.ID("new"), s.Profile().ID)
}

func TestSessionController_ClampsNegativeAllowance(t *testing.T) {
	s := NewSessionController()
	s.Resolve(s.Begin(), &models.PlayerProfile{ID: "1", RemainingCaptures: -4}, nil)
	assert.Equal(t, 0, s.Profile().RemainingCaptures)
}

func TestSessionController_ExhaustAndClear(t *testing.T) {
	s := NewSessionController()
	s.Resolve(s.Begin(), &models.PlayerProfile{ID: "1", RemainingCaptures: 3}, nil)

	s.Exhaust()
	assert.True(t, s.Exhausted())
	assert.Equal(t, 0, s.Profile().RemainingCaptures)

	s.ClearExhausted()
	assert.False(t, s.Exhausted())
}

func TestSessionController_ProfileIsACopy(t *testing.T) {
	s := NewSessionController()
	s.Resolve(s.Begin(), &models.PlayerProfile{ID: "1", RemainingCaptures: 3}, nil)

	p := s.Profile()
	p.RemainingCaptures = 100
	assert.Equal(t, 3, s.Profile().RemainingCaptures)
}
