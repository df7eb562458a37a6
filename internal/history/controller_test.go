package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// gatedSource hands out results only when the test releases them.
type gatedSource struct {
	started chan models.TradingMode
	release map[models.TradingMode]chan Result
}

func newGatedSource(modes ...models.TradingMode) *gatedSource {
	s := &gatedSource{
		started: make(chan models.TradingMode, len(modes)),
		release: make(map[models.TradingMode]chan Result),
	}
	for _, m := range modes {
		s.release[m] = make(chan Result, 1)
	}
	return s
}

func (s *gatedSource) Fetch(ctx context.Context, sess *auth.Session, mode models.TradingMode) Result {
	s.started <- mode
	select {
	case r := <-s.release[mode]:
		return r
	case <-ctx.Done():
		return Result{Origin: OriginFailed, Reason: ctx.Err()}
	}
}

type staticSource Result

func (s staticSource) Fetch(context.Context, *auth.Session, models.TradingMode) Result {
	return Result(s)
}

type refreshOutcome struct {
	snap Snapshot
	err  error
}

func refreshAsync(c *Controller, mode models.TradingMode) <-chan refreshOutcome {
	done := make(chan refreshOutcome, 1)
	go func() {
		snap, err := c.Refresh(context.Background(), auth.NewStaticSession("tok"), mode)
		done <- refreshOutcome{snap, err}
	}()
	return done
}

func TestController_InitiallyHidden(t *testing.T) {
	c := NewController(staticSource{}, zap.NewNop())
	snap := c.Snapshot()
	assert.Equal(t, StateHidden, snap.State)
	assert.Empty(t, snap.Records)
}

func TestController_ShowLoads(t *testing.T) {
	records := fixture()
	c := NewController(staticSource{Origin: OriginLive, Records: records}, zap.NewNop())

	snap, err := c.Show(context.Background(), auth.NewStaticSession("tok"), models.ModeLive)

	require.NoError(t, err)
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, OriginLive, snap.Origin)
	assert.Equal(t, models.ModeLive, snap.Mode)
	assert.Equal(t, records, snap.Records)
	assert.False(t, snap.LoadedAt.IsZero())
}

func TestController_LoadingWhileFetching(t *testing.T) {
	src := newGatedSource(models.ModeDemo)
	c := NewController(src, zap.NewNop())

	done := refreshAsync(c, models.ModeDemo)
	<-src.started
	assert.Equal(t, StateLoading, c.Snapshot().State)

	src.release[models.ModeDemo] <- Result{Origin: OriginLive, Records: fixture()}
	out := <-done
	require.NoError(t, out.err)
	assert.Equal(t, StateLoaded, out.snap.State)
}

func TestController_FailedFetchIsErrorState(t *testing.T) {
	c := NewController(staticSource{Origin: OriginFailed, Reason: errors.New("offline")}, zap.NewNop())

	snap, err := c.Refresh(context.Background(), auth.NewStaticSession("tok"), models.ModeDemo)

	require.NoError(t, err)
	assert.Equal(t, StateError, snap.State)
	assert.Equal(t, "offline", snap.Reason)
	assert.Empty(t, snap.Records)
}

func TestController_ReplacesWholesale(t *testing.T) {
	src := &switchingSource{results: []Result{
		{Origin: OriginLive, Records: fixture()},
		{Origin: OriginLive, Records: fixture()[:1]},
	}}
	c := NewController(src, zap.NewNop())
	sess := auth.NewStaticSession("tok")

	_, err := c.Refresh(context.Background(), sess, models.ModeDemo)
	require.NoError(t, err)
	snap, err := c.Refresh(context.Background(), sess, models.ModeDemo)
	require.NoError(t, err)

	assert.Equal(t, []string{"a"}, ids(snap.Records))
}

type switchingSource struct {
	results []Result
	n       int
}

func (s *switchingSource) Fetch(context.Context, *auth.Session, models.TradingMode) Result {
	r := s.results[s.n]
	s.n++
	return r
}

// A demo fetch that resolves after a later live fetch must not overwrite
// the live records.
func TestController_StaleResponseDiscarded(t *testing.T) {
	src := newGatedSource(models.ModeDemo, models.ModeLive)
	c := NewController(src, zap.NewNop())

	demoDone := refreshAsync(c, models.ModeDemo)
	require.Equal(t, models.ModeDemo, <-src.started)
	liveDone := refreshAsync(c, models.ModeLive)
	require.Equal(t, models.ModeLive, <-src.started)

	liveRecords := fixture()[:2]
	src.release[models.ModeLive] <- Result{Origin: OriginLive, Records: liveRecords}
	live := <-liveDone
	require.NoError(t, live.err)

	src.release[models.ModeDemo] <- Result{Origin: OriginFallback, Records: fixture()}
	demo := <-demoDone
	assert.ErrorIs(t, demo.err, ErrStaleResponse)

	snap := c.Snapshot()
	assert.Equal(t, StateLoaded, snap.State)
	assert.Equal(t, models.ModeLive, snap.Mode)
	assert.Equal(t, OriginLive, snap.Origin)
	assert.Equal(t, ids(liveRecords), ids(snap.Records))
}

func TestController_HideCancelsInFlight(t *testing.T) {
	src := newGatedSource(models.ModeDemo)
	c := NewController(src, zap.NewNop())

	done := refreshAsync(c, models.ModeDemo)
	<-src.started

	snap := c.Hide()
	assert.Equal(t, StateHidden, snap.State)

	select {
	case out := <-done:
		assert.ErrorIs(t, out.err, ErrStaleResponse)
	case <-time.After(2 * time.Second):
		t.Fatal("hide did not cancel the in-flight fetch")
	}
	assert.Equal(t, StateHidden, c.Snapshot().State)
}

func TestController_View(t *testing.T) {
	c := NewController(staticSource{Origin: OriginLive, Records: fixture()}, zap.NewNop())
	c.now = func() time.Time { return testNow }
	_, err := c.Show(context.Background(), auth.NewStaticSession("tok"), models.ModeDemo)
	require.NoError(t, err)

	f := DefaultFilterState()
	f.Side = SideSell
	snap, view := c.View(f)

	assert.Len(t, snap.Records, 4)
	assert.Equal(t, []string{"b", "d"}, ids(view.Trades))
	assert.Equal(t, 2, view.Summary.Count)
}

func TestController_SnapshotIsCopy(t *testing.T) {
	c := NewController(staticSource{Origin: OriginLive, Records: fixture()}, zap.NewNop())
	_, err := c.Show(context.Background(), auth.NewStaticSession("tok"), models.ModeDemo)
	require.NoError(t, err)

	snap := c.Snapshot()
	snap.Records[0].ID = "mutated"

	assert.Equal(t, "a", c.Snapshot().Records[0].ID)
}
