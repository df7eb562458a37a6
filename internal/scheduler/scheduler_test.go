package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingJob struct {
	runs atomic.Int32
	err  error
}

func (j *countingJob) Run() error {
	j.runs.Add(1)
	return j.err
}

func (j *countingJob) Name() string { return "counting" }

// MockChecker is a mock implementation of PermissionsChecker.
type MockChecker struct {
	mock.Mock
}

func (m *MockChecker) Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error) {
	args := m.Called()
	p, _ := args.Get(0).(*models.Permissions)
	return p, args.Error(1)
}

func TestScheduler_RunNow(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{err: errors.New("boom")}

	err := s.RunNow(job)

	assert.EqualError(t, err, "boom")
	assert.Equal(t, int32(1), job.runs.Load())
}

func TestScheduler_AddJob(t *testing.T) {
	s := New(zap.NewNop())
	job := &countingJob{}

	require.NoError(t, s.AddJob(Every(time.Second), job))
	assert.Error(t, s.AddJob("not a schedule", job))

	s.Start()
	assert.Eventually(t, func() bool { return job.runs.Load() > 0 }, 3*time.Second, 50*time.Millisecond)
	s.Stop()
}

func TestEvery(t *testing.T) {
	assert.Equal(t, "@every 30s", Every(30*time.Second))
}

func TestPermissionsJob(t *testing.T) {
	checker := new(MockChecker)
	job := NewPermissionsJob(checker, auth.NewStaticSession("tok"), time.Second, zap.NewNop())

	p, err := job.Last()
	assert.Nil(t, p)
	assert.NoError(t, err)

	checker.On("Permissions").Return(&models.Permissions{CanRead: true, CanTrade: true, IsConnected: true}, nil).Once()
	require.NoError(t, job.Run())
	p, err = job.Last()
	require.NoError(t, err)
	assert.Equal(t, models.HealthGreen, p.Health())

	checker.On("Permissions").Return(nil, errors.New("unreachable")).Once()
	assert.Error(t, job.Run())
	p, err = job.Last()
	assert.Error(t, err)
	require.NotNil(t, p)
	assert.Equal(t, models.HealthRed, p.Health())
	assert.False(t, p.CanGoLive())
	checker.AssertExpectations(t)
}
