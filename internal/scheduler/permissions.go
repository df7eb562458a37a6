package scheduler

import (
	"context"
	"sync"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/models"

	"go.uber.org/zap"
)

// PermissionsChecker is the backend call polled by PermissionsJob.
type PermissionsChecker interface {
	Permissions(ctx context.Context, sess *auth.Session) (*models.Permissions, error)
}

// PermissionsJob polls the exchange key permissions and caches the last
// answer. A failed poll caches a disconnected result.
type PermissionsJob struct {
	checker PermissionsChecker
	session *auth.Session
	timeout time.Duration
	logger  *zap.Logger
	now     func() time.Time

	mu   sync.RWMutex
	last *models.Permissions
	err  error
}

// NewPermissionsJob creates a PermissionsJob.
func NewPermissionsJob(checker PermissionsChecker, sess *auth.Session, timeout time.Duration, logger *zap.Logger) *PermissionsJob {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &PermissionsJob{
		checker: checker,
		session: sess,
		timeout: timeout,
		logger:  logger.Named("permissions"),
		now:     time.Now,
	}
}

// Name returns the job name
func (j *PermissionsJob) Name() string {
	return "permissions_check"
}

// Run polls the backend once.
func (j *PermissionsJob) Run() error {
	ctx, cancel := context.WithTimeout(context.Background(), j.timeout)
	defer cancel()

	perms, err := j.checker.Permissions(ctx, j.session)
	if err != nil {
		perms = &models.Permissions{LastChecked: j.now()}
	}

	j.mu.Lock()
	j.last, j.err = perms, err
	j.mu.Unlock()

	if err != nil {
		return err
	}
	j.logger.Debug("Permissions refreshed",
		zap.String("health", string(perms.Health())),
		zap.Bool("can_trade", perms.CanTrade))
	return nil
}

// Last returns a copy of the most recent result, or nil before the first
// poll, together with the error of that poll.
func (j *PermissionsJob) Last() (*models.Permissions, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.last == nil {
		return nil, j.err
	}
	p := *j.last
	return &p, j.err
}
