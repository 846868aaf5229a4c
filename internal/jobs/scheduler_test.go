package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type countingSaver struct {
	calls atomic.Int32
	err   error
}

func (c *countingSaver) ApplyStreakSavers(context.Context) (int, error) {
	c.calls.Add(1)
	return 1, c.err
}

func TestScheduler_RunsOnSchedule(t *testing.T) {
	saver := &countingSaver{}
	s := NewScheduler(time.UTC, nil)
	require.NoError(t, s.Add(StreakSaverJob(saver, "@every 1s")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	deadline := time.Now().Add(5 * time.Second)
	for saver.calls.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	s.Stop()
	assert.GreaterOrEqual(t, saver.calls.Load(), int32(1))
}

func TestScheduler_RunNow(t *testing.T) {
	saver := &countingSaver{}
	s := NewScheduler(time.UTC, nil)
	require.NoError(t, s.Add(StreakSaverJob(saver, "5 0 * * *")))

	require.NoError(t, s.RunNow(context.Background(), StreakSaverJobName))
	assert.Equal(t, int32(1), saver.calls.Load())

	saver.err = errors.New("store down")
	assert.ErrorIs(t, s.RunNow(context.Background(), StreakSaverJobName), saver.err)

	assert.Error(t, s.RunNow(context.Background(), "nope"))
}

func TestScheduler_AddRejects(t *testing.T) {
	s := NewScheduler(time.UTC, nil)
	assert.Error(t, s.Add(Job{Name: "bad", Spec: "not a spec", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "", Spec: "@daily", Run: func(context.Context) error { return nil }}))

	require.NoError(t, s.Add(Job{Name: "ok", Spec: "@daily", Run: func(context.Context) error { return nil }}))
	assert.Error(t, s.Add(Job{Name: "ok", Spec: "@hourly", Run: func(context.Context) error { return nil }}))

	// A rejected spec does not reserve the name.
	assert.NoError(t, s.Add(Job{Name: "bad", Spec: "@hourly", Run: func(context.Context) error { return nil }}))
}
