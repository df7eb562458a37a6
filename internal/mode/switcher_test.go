package mode

import (
	"context"
	"errors"
	"testing"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// MockBackend is a mock implementation of the Backend interface.
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error) {
	args := m.Called()
	p, _ := args.Get(0).(*models.Permissions)
	return p, args.Error(1)
}

func (m *MockBackend) SetMode(ctx context.Context, sess *auth.Session, mode models.TradingMode) error {
	args := m.Called(mode)
	return args.Error(0)
}

func TestSwitcher(t *testing.T) {
	sess := auth.NewStaticSession("tok")
	tradable := &models.Permissions{CanRead: true, CanTrade: true, IsConnected: true}

	testCases := []struct {
		name      string
		setup     func(b *MockBackend)
		initial   models.TradingMode
		target    models.TradingMode
		confirmed bool
		expected  models.TradingMode
		err       error
	}{
		{
			name:     "To demo is immediate",
			initial:  models.ModeLive,
			target:   models.ModeDemo,
			setup:    func(b *MockBackend) { b.On("SetMode", models.ModeDemo).Return(nil) },
			expected: models.ModeDemo,
		},
		{
			name:     "Live without confirmation",
			initial:  models.ModeDemo,
			target:   models.ModeLive,
			setup:    func(b *MockBackend) {},
			expected: models.ModeDemo,
			err:      ErrConfirmationRequired,
		},
		{
			name:      "Live without trade permission",
			initial:   models.ModeDemo,
			target:    models.ModeLive,
			confirmed: true,
			setup: func(b *MockBackend) {
				b.On("Permissions").Return(&models.Permissions{CanRead: true, IsConnected: true}, nil)
			},
			expected: models.ModeDemo,
			err:      ErrLiveNotPermitted,
		},
		{
			name:      "Live confirmed and permitted",
			initial:   models.ModeDemo,
			target:    models.ModeLive,
			confirmed: true,
			setup: func(b *MockBackend) {
				b.On("Permissions").Return(tradable, nil)
				b.On("SetMode", models.ModeLive).Return(nil)
			},
			expected: models.ModeLive,
		},
		{
			name:      "Backend rejection still switches locally",
			initial:   models.ModeDemo,
			target:    models.ModeLive,
			confirmed: true,
			setup: func(b *MockBackend) {
				b.On("Permissions").Return(tradable, nil)
				b.On("SetMode", models.ModeLive).Return(errors.New("502"))
			},
			expected: models.ModeLive,
		},
		{
			name:     "Same mode is a no-op",
			initial:  models.ModeDemo,
			target:   models.ModeDemo,
			setup:    func(b *MockBackend) {},
			expected: models.ModeDemo,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			b := new(MockBackend)
			tc.setup(b)
			s := NewSwitcher(b, tc.initial, zap.NewNop())

			got, err := s.Switch(context.Background(), sess, tc.target, tc.confirmed)

			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tc.expected, got)
			assert.Equal(t, tc.expected, s.Current())
			b.AssertExpectations(t)
		})
	}
}

func TestSwitcher_UnknownMode(t *testing.T) {
	s := NewSwitcher(new(MockBackend), "", zap.NewNop())
	assert.Equal(t, models.ModeDemo, s.Current())

	_, err := s.Switch(context.Background(), auth.NewStaticSession("tok"), "paper", true)
	assert.Error(t, err)
}
