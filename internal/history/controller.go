package history

import (
	"context"
	"errors"
	"sync"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"go.uber.org/zap"
)

// ErrStaleResponse is returned by Refresh when a newer refresh was issued (or
// the view was hidden) before this one completed. Its result is discarded.
var ErrStaleResponse = errors.New("stale trade history response discarded")

// State is the view's lifecycle state.
type State string

const (
	StateHidden  State = "hidden"
	StateLoading State = "loading"
	StateLoaded  State = "loaded"
	StateError   State = "error"
)

// Snapshot is a copy of the controller's state.
type Snapshot struct {
	State    State                `json:"state"`
	Mode     models.TradingMode   `json:"mode,omitempty"`
	Origin   Origin               `json:"origin,omitempty"`
	Records  []models.TradeRecord `json:"-"`
	Reason   string               `json:"reason,omitempty"`
	Sequence uint64               `json:"sequence"`
	LoadedAt time.Time            `json:"loadedAt,omitempty"`
}

// Controller owns the trade history records and drives the
// Hidden → Loading → Loaded/Error state machine.
//
// Each refresh takes a sequence number; only the completion carrying the
// latest issued number is applied.
type Controller struct {
	source RecordSource
	logger *zap.Logger
	now    func() time.Time

	mu       sync.Mutex
	state    State
	seq      uint64
	mode     models.TradingMode
	origin   Origin
	records  []models.TradeRecord
	reason   string
	loadedAt time.Time
	inflight map[uint64]context.CancelFunc
}

// NewController creates a Controller in the Hidden state.
func NewController(source RecordSource, logger *zap.Logger) *Controller {
	return &Controller{
		source:   source,
		logger:   logger.Named("history"),
		now:      time.Now,
		state:    StateHidden,
		inflight: make(map[uint64]context.CancelFunc),
	}
}

// Show makes the view visible and loads it.
func (c *Controller) Show(ctx context.Context, sess *auth.Session, mode models.TradingMode) (Snapshot, error) {
	return c.Refresh(ctx, sess, mode)
}

// Refresh fetches the records for mode and replaces the collection
// wholesale. It blocks until the fetch resolves.
func (c *Controller) Refresh(ctx context.Context, sess *auth.Session, mode models.TradingMode) (Snapshot, error) {
	fetchCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	c.seq++
	seq := c.seq
	c.state = StateLoading
	c.mode = mode
	c.inflight[seq] = cancel
	c.mu.Unlock()

	c.logger.Debug("Refreshing trade history", zap.Uint64("seq", seq), zap.String("mode", string(mode)))
	result := c.source.Fetch(fetchCtx, sess, mode)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, seq)

	if seq != c.seq {
		c.logger.Info("Discarding stale trade history response",
			zap.Uint64("seq", seq), zap.Uint64("latest", c.seq))
		return c.snapshotLocked(), ErrStaleResponse
	}

	c.origin = result.Origin
	c.reason = ""
	if result.Reason != nil {
		c.reason = result.Reason.Error()
	}
	if result.Origin == OriginFailed {
		c.state = StateError
		c.records = nil
	} else {
		c.state = StateLoaded
		c.records = result.Records
		c.loadedAt = c.now()
	}
	return c.snapshotLocked(), nil
}

// Hide returns to the Hidden state and cancels in-flight fetches; their
// results will be discarded.
func (c *Controller) Hide() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	for seq, cancel := range c.inflight {
		cancel()
		delete(c.inflight, seq)
	}
	c.state = StateHidden
	return c.snapshotLocked()
}

// Snapshot returns the current state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// View applies a filter to the current records.
func (c *Controller) View(f FilterState) (Snapshot, View) {
	snap := c.Snapshot()
	return snap, Apply(snap.Records, f, c.now())
}

func (c *Controller) snapshotLocked() Snapshot {
	records := make([]models.TradeRecord, len(c.records))
	copy(records, c.records)
	return Snapshot{
		State:    c.state,
		Mode:     c.mode,
		Origin:   c.origin,
		Records:  records,
		Reason:   c.reason,
		Sequence: c.seq,
		LoadedAt: c.loadedAt,
	}
}
