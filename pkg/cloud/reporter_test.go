package cloud

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/itohio/goxing/pkg/config"
	"github.com/itohio/goxing/pkg/crossing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingSender struct {
	mu      sync.Mutex
	reports []Report
	err     error
}

func (s *recordingSender) Send(_ context.Context, r Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
	return s.err
}

func (s *recordingSender) Reports() []Report {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Report(nil), s.reports...)
}

func newTestReporter(sender Sender) (*Reporter, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
	return newReporter(config.Default(), sender, nil, clock.Now), clock
}

func TestReporter_NotDueBeforeInterval(t *testing.T) {
	sender := &recordingSender{}
	r, clock := newTestReporter(sender)

	assert.False(t, r.Due())
	clock.Advance(89 * time.Second)
	sent, err := r.Flush(context.Background())
	assert.False(t, sent)
	assert.NoError(t, err)
	assert.Empty(t, sender.Reports())

	clock.Advance(time.Second)
	assert.True(t, r.Due())
}

func TestReporter_SendsAccumulatedCounts(t *testing.T) {
	sender := &recordingSender{}
	r, clock := newTestReporter(sender)

	r.Add(crossing.Event{Direction: crossing.Left})
	r.Add(crossing.Event{Direction: crossing.Right})
	r.Add(crossing.Event{Direction: crossing.Right})

	clock.Advance(90 * time.Second)
	sent, err := r.Flush(context.Background())
	require.NoError(t, err)
	assert.True(t, sent)

	reports := sender.Reports()
	require.Len(t, reports, 1)
	assert.Equal(t, 1, reports[0].Left)
	assert.Equal(t, 2, reports[0].Right)
	assert.Equal(t, 3, reports[0].Total)
	assert.Equal(t, "xing", reports[0].Device)
	assert.Equal(t, crossing.Counts{}, r.Pending())

	_, offset := reports[0].Time.Zone()
	assert.Equal(t, -5*3600, offset)
	assert.Equal(t, 90*time.Second, reports[0].Time.Sub(reports[0].Since))
}

// Scenario: a report at t=0 must block the next one until t=90 s.
func TestReporter_MinimumIntervalBetweenAttempts(t *testing.T) {
	sender := &recordingSender{}
	r, clock := newTestReporter(sender)
	ctx := context.Background()

	clock.Advance(90 * time.Second)
	sent, _ := r.Flush(ctx)
	require.True(t, sent)

	clock.Advance(45 * time.Second)
	sent, _ = r.Flush(ctx)
	assert.False(t, sent, "no report at t=45s")

	clock.Advance(45 * time.Second)
	sent, _ = r.Flush(ctx)
	assert.True(t, sent, "report allowed at t=90s")

	reports := sender.Reports()
	require.Len(t, reports, 2)
	assert.GreaterOrEqual(t, reports[1].Time.Sub(reports[0].Time), 90*time.Second)
}

func TestReporter_FailedAttemptCountsTowardsInterval(t *testing.T) {
	sender := &recordingSender{err: errors.New("offline")}
	r, clock := newTestReporter(sender)
	ctx := context.Background()

	r.Add(crossing.Event{Direction: crossing.Left})
	clock.Advance(90 * time.Second)
	sent, err := r.Flush(ctx)
	assert.True(t, sent)
	assert.Error(t, err)
	assert.Equal(t, crossing.Counts{Left: 1}, r.Pending())

	clock.Advance(10 * time.Second)
	sent, _ = r.Flush(ctx)
	assert.False(t, sent, "retry must wait for the full interval")

	sender.mu.Lock()
	sender.err = nil
	sender.mu.Unlock()
	r.Add(crossing.Event{Direction: crossing.Right})

	clock.Advance(80 * time.Second)
	sent, err = r.Flush(ctx)
	require.NoError(t, err)
	assert.True(t, sent)

	reports := sender.Reports()
	require.Len(t, reports, 2)
	assert.Equal(t, 2, reports[1].Total)
	assert.Equal(t, reports[0].Since, reports[1].Since, "window extends over the failed attempt")

	ok, failed := r.Stats()
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, failed)
}

// blockingSender lets a test add crossings while a send is in flight.
type blockingSender struct {
	started chan struct{}
	release chan struct{}
}

func (s *blockingSender) Send(context.Context, Report) error {
	close(s.started)
	<-s.release
	return nil
}

func TestReporter_CrossingsDuringSendStayPending(t *testing.T) {
	sender := &blockingSender{started: make(chan struct{}), release: make(chan struct{})}
	r, clock := newTestReporter(sender)

	r.Add(crossing.Event{Direction: crossing.Left})
	clock.Advance(90 * time.Second)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = r.Flush(context.Background())
	}()

	<-sender.started
	r.Add(crossing.Event{Direction: crossing.Right})
	close(sender.release)
	<-done

	assert.Equal(t, crossing.Counts{Right: 1}, r.Pending())
}

func TestReporter_RunStopsOnCancel(t *testing.T) {
	sender := &recordingSender{}
	r, _ := newTestReporter(sender)
	r.poll = time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, sender.Reports(), "clock never advanced")
}

func TestReporter_RunSendsWhenDue(t *testing.T) {
	sender := &recordingSender{}
	r, clock := newTestReporter(sender)
	r.poll = time.Millisecond
	clock.Advance(90 * time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = r.Run(ctx) }()

	assert.Eventually(t, func() bool { return len(sender.Reports()) == 1 }, 2*time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, sender.Reports(), 1, "clock is frozen so only one report is due")
}
