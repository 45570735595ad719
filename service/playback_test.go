package service

import (
	"context"
	"testing"
	"time"

	"macrostudio/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlaybackServicePlaysSelectedSequence(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	_, err := s.InsertAction(ctx, 0, models.Action{ID: "m", Type: models.KindKey, Key: "m", ActionState: models.StateDown})
	require.NoError(t, err)
	require.NoError(t, s.AppendActions(ctx, nil, []models.Action{
		{ID: "r", Type: models.KindKey, Key: "r", ActionState: models.StateDown},
	}))

	clock := &fakeClock{}
	pb := NewPlaybackService(s, NewPlayer(clock, nil))

	started, err := pb.Start(models.TargetRelease)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, []string{"R"}, pb.Frame().ActiveKeys)

	started, err = pb.Start(models.TargetMain)
	require.NoError(t, err)
	assert.False(t, started, "start while running is a no-op")

	pb.Stop()
	pb.Reset()
	started, err = pb.Start(models.TargetMain)
	require.NoError(t, err)
	assert.True(t, started)
	assert.Equal(t, []string{"M"}, pb.Frame().ActiveKeys)

	clock.Advance(500 * time.Millisecond)
	assert.Equal(t, models.PlaybackFinished, pb.Frame().Status)
}

func TestPlaybackServiceEditsDoNotAffectRun(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	_, err := s.InsertAction(ctx, 0, models.Action{ID: "d", Type: models.KindDelay, Duration: 100})
	require.NoError(t, err)
	_, err = s.InsertAction(ctx, 1, models.Action{ID: "k", Type: models.KindKey, Key: "a", ActionState: models.StateDown})
	require.NoError(t, err)

	clock := &fakeClock{}
	pb := NewPlaybackService(s, NewPlayer(clock, nil))
	_, err = pb.Start(models.TargetMain)
	require.NoError(t, err)

	_, err = s.UpdateAction(ctx, "k", []byte(`{"key":"b"}`))
	require.NoError(t, err)
	require.NoError(t, s.RemoveAction(ctx, "d"))

	clock.Advance(100 * time.Millisecond)
	assert.Equal(t, 1, pb.Frame().Current)
	assert.Equal(t, []string{"A"}, pb.Frame().ActiveKeys)
}

func TestPlaybackServiceNeedsActiveMacro(t *testing.T) {
	ctx := context.Background()
	s, _ := newLoadedStore(t)
	require.NoError(t, s.Delete(ctx, s.ActiveID()))

	pb := NewPlaybackService(s, NewPlayer(&fakeClock{}, nil))
	started, err := pb.Start(models.TargetMain)
	assert.ErrorIs(t, err, ErrNoActiveMacro)
	assert.False(t, started)
	assert.Equal(t, models.PlaybackIdle, pb.Frame().Status)
}
