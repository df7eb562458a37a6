package database

import (
	"errors"
	"fmt"

	"cryptobotx-go/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNoSession is returned when nobody is signed in.
var ErrNoSession = errors.New("no stored session, run `cryptobotx login` first")

// NewDatabase opens the local database and migrates the schema.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// sqlite allows a single writer; in-memory databases also vanish per connection.
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := AutoMigrate(db); err != nil {
		return nil, err
	}

	return db, nil
}

// AutoMigrate creates or updates the client-side tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.StoredSession{}, &models.ExportRecord{}); err != nil {
		return fmt.Errorf("failed to auto-migrate database: %w", err)
	}
	return nil
}

// SessionStore persists the signed-in user's credentials.
type SessionStore struct {
	db *gorm.DB
}

// NewSessionStore creates a SessionStore.
func NewSessionStore(db *gorm.DB) *SessionStore {
	return &SessionStore{db: db}
}

// Save upserts the session for its user.
func (s *SessionStore) Save(sess *models.StoredSession) error {
	var existing models.StoredSession
	err := s.db.Where("user_id = ?", sess.UserID).First(&existing).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if err := s.db.Create(sess).Error; err != nil {
			return fmt.Errorf("failed to save session for %s: %w", sess.UserID, err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("failed to look up session for %s: %w", sess.UserID, err)
	}

	sess.ID = existing.ID
	sess.CreatedAt = existing.CreatedAt
	if err := s.db.Save(sess).Error; err != nil {
		return fmt.Errorf("failed to update session for %s: %w", sess.UserID, err)
	}
	return nil
}

// Active returns the most recently updated session.
func (s *SessionStore) Active() (*models.StoredSession, error) {
	var sess models.StoredSession
	err := s.db.Order("updated_at desc").First(&sess).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoSession
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &sess, nil
}

// DeleteAll removes every stored session.
func (s *SessionStore) DeleteAll() error {
	if err := s.db.Unscoped().Where("1 = 1").Delete(&models.StoredSession{}).Error; err != nil {
		return fmt.Errorf("failed to delete sessions: %w", err)
	}
	return nil
}

// ExportJournal records CSV exports.
type ExportJournal struct {
	db *gorm.DB
}

// NewExportJournal creates an ExportJournal.
func NewExportJournal(db *gorm.DB) *ExportJournal {
	return &ExportJournal{db: db}
}

// Record appends an export entry.
func (j *ExportJournal) Record(rec *models.ExportRecord) error {
	if err := j.db.Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record export %s: %w", rec.FileName, err)
	}
	return nil
}

// Recent returns up to limit exports, newest first.
func (j *ExportJournal) Recent(limit int) ([]models.ExportRecord, error) {
	var recs []models.ExportRecord
	if err := j.db.Order("created_at desc, id desc").Limit(limit).Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("failed to list exports: %w", err)
	}
	return recs, nil
}
