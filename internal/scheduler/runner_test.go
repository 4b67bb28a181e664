package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"admincore/internal/model"
	"admincore/internal/service"
)

type countingReminders struct {
	calls atomic.Int32
}

func (c *countingReminders) Run(context.Context) (service.RunReport, error) {
	c.calls.Add(1)
	return service.RunReport{}, nil
}

type recordingDigests struct {
	mu    sync.Mutex
	freqs []model.Frequency
}

func (r *recordingDigests) RunDigest(_ context.Context, freq model.Frequency) (service.DigestReport, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.freqs = append(r.freqs, freq)
	return service.DigestReport{Frequency: freq}, nil
}

func newRunner(t *testing.T) (*Runner, *countingReminders) {
	t.Helper()
	rem := &countingReminders{}
	r := NewRunner(rem, &recordingDigests{}, Config{Interval: 10 * time.Millisecond, Location: time.UTC}, zap.NewNop())
	t.Cleanup(r.Stop)
	return r, rem
}

func TestDigestSpecs(t *testing.T) {
	s := model.DefaultSettings()
	s.DigestTime = "07:45"
	s.DigestDay = "friday"

	specs, err := DigestSpecs(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"45 7 * * *", "45 7 * * 5"}, specs)

	s.DigestTime = "7pm"
	_, err = DigestSpecs(s)
	assert.Error(t, err)
}

func TestRunnerStartsOnlyWhenEnabled(t *testing.T) {
	r, rem := newRunner(t)

	off := model.DefaultSettings()
	off.Enabled = false
	require.NoError(t, r.Start(context.Background(), off))
	assert.False(t, r.Running())
	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, rem.calls.Load())

	require.NoError(t, r.Apply(model.DefaultSettings()))
	assert.True(t, r.Running())
	assert.Eventually(t, func() bool { return rem.calls.Load() >= 2 }, time.Second, 5*time.Millisecond)
}

func TestRunnerStopsWhenDisabled(t *testing.T) {
	r, rem := newRunner(t)
	require.NoError(t, r.Start(context.Background(), model.DefaultSettings()))
	assert.Eventually(t, func() bool { return rem.calls.Load() >= 1 }, time.Second, 5*time.Millisecond)

	off := model.DefaultSettings()
	off.Enabled = false
	require.NoError(t, r.Apply(off))
	assert.False(t, r.Running())

	n := rem.calls.Load()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, n, rem.calls.Load())
}

func TestRunnerReschedulesDigests(t *testing.T) {
	r, _ := newRunner(t)
	require.NoError(t, r.Start(context.Background(), model.DefaultSettings()))

	r.mu.Lock()
	before := r.specs
	r.mu.Unlock()
	assert.Equal(t, []string{"0 9 * * *", "0 9 * * 1"}, before)

	s := model.DefaultSettings()
	s.DigestTime = "18:30"
	require.NoError(t, r.Apply(s))

	r.mu.Lock()
	defer r.mu.Unlock()
	assert.Equal(t, []string{"30 18 * * *", "30 18 * * 1"}, r.specs)
	assert.True(t, r.running)
}

func TestRunnerRejectsBadSchedule(t *testing.T) {
	r, _ := newRunner(t)
	s := model.DefaultSettings()
	s.DigestDay = "someday"
	assert.Error(t, r.Start(context.Background(), s))
	assert.False(t, r.Running())
}

func TestRunnerStopsWithContext(t *testing.T) {
	r, _ := newRunner(t)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, r.Start(ctx, model.DefaultSettings()))
	assert.True(t, r.Running())

	cancel()
	assert.Eventually(t, func() bool { return !r.Running() }, time.Second, 5*time.Millisecond)
	require.NoError(t, r.Apply(model.DefaultSettings()))
	assert.False(t, r.Running())
}

type blockingReminders struct {
	once     sync.Once
	started  chan struct{}
	release  chan struct{}
	finished atomic.Bool
	ctxErr   atomic.Value
}

func (b *blockingReminders) Run(ctx context.Context) (service.RunReport, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	b.ctxErr.Store(fmt.Sprint(ctx.Err()))
	b.finished.Store(true)
	return service.RunReport{}, nil
}

func TestRunnerDisableWaitsForInFlightPass(t *testing.T) {
	rem := &blockingReminders{started: make(chan struct{}), release: make(chan struct{})}
	r := NewRunner(rem, &recordingDigests{}, Config{Interval: time.Hour, Location: time.UTC}, zap.NewNop())
	t.Cleanup(r.Stop)
	require.NoError(t, r.Start(context.Background(), model.DefaultSettings()))

	select {
	case <-rem.started:
	case <-time.After(time.Second):
		t.Fatal("reminder pass never started")
	}

	applied := make(chan error, 1)
	go func() {
		off := model.DefaultSettings()
		off.Enabled = false
		applied <- r.Apply(off)
	}()

	select {
	case <-applied:
		t.Fatal("Apply returned while a pass was still running")
	case <-time.After(50 * time.Millisecond):
	}
	assert.False(t, rem.finished.Load())

	close(rem.release)
	select {
	case err := <-applied:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Apply did not return after the pass finished")
	}
	assert.True(t, rem.finished.Load())
	assert.Equal(t, "<nil>", rem.ctxErr.Load(), "pass context survives the stop")
	assert.False(t, r.Running())
}
