package mode

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"go.uber.org/zap"
)

var (
	// ErrConfirmationRequired is returned when switching to live without an
	// explicit confirmation.
	ErrConfirmationRequired = errors.New("switching to live trading requires confirmation")
	// ErrLiveNotPermitted is returned when the exchange key cannot trade.
	ErrLiveNotPermitted = errors.New("live trading requires a connected exchange key with trade permission")
)

// Backend is what the switcher needs from the backend client.
type Backend interface {
	Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error)
	SetMode(ctx context.Context, sess *auth.Session, mode models.TradingMode) error
}

// Switcher holds the ambient trading mode.
type Switcher struct {
	backend Backend
	logger  *zap.Logger

	mu      sync.RWMutex
	current models.TradingMode
}

// NewSwitcher creates a Switcher starting in initial.
func NewSwitcher(backend Backend, initial models.TradingMode, logger *zap.Logger) *Switcher {
	if initial == "" {
		initial = models.ModeDemo
	}
	return &Switcher{backend: backend, current: initial, logger: logger.Named("mode")}
}

// Current returns the active mode.
func (s *Switcher) Current() models.TradingMode {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Switch changes the mode. Going live is gated on confirmation and on the
// key's permissions; going to demo is immediate. A failed backend
// notification is logged and the local mode changes anyway.
func (s *Switcher) Switch(ctx context.Context, sess *auth.Session, target models.TradingMode, confirmed bool) (models.TradingMode, error) {
	if _, err := models.ParseTradingMode(string(target)); err != nil {
		return s.Current(), err
	}
	if target == s.Current() {
		return target, nil
	}

	if target == models.ModeLive {
		if !confirmed {
			return s.Current(), ErrConfirmationRequired
		}
		perms, err := s.backend.Permissions(ctx, sess)
		if err != nil {
			return s.Current(), fmt.Errorf("failed to check permissions: %w", err)
		}
		if !perms.CanGoLive() {
			return s.Current(), ErrLiveNotPermitted
		}
	}

	if err := s.backend.SetMode(ctx, sess, target); err != nil {
		s.logger.Warn("Backend did not accept mode change, switching locally", zap.String("mode", string(target)), zap.Error(err))
	}

	s.mu.Lock()
	s.current = target
	s.mu.Unlock()

	s.logger.Info("Trading mode changed", zap.String("mode", string(target)))
	return target, nil
}
