package app

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cryptobotx-go/internal/auth"
	"cryptobotx-go/internal/backend"
	"cryptobotx-go/internal/config"
	"cryptobotx-go/internal/database"
	"cryptobotx-go/internal/history"
	"cryptobotx-go/internal/logger"
	"cryptobotx-go/internal/models"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrSignedOut is returned when no stored session or configured token exists.
var ErrSignedOut = errors.New("not signed in: run `cryptobotx login` first")

// App holds the wired dependencies shared by the CLI and the dashboard.
type App struct {
	Config   config.Config
	Log      *zap.Logger
	DB       *gorm.DB
	Sessions *database.SessionStore
	Exports  *database.ExportJournal
	Auth     *auth.Client
	Backend  *backend.Client
	Exporter history.Exporter
}

// New loads configuration from configDir and wires every dependency.
func New(configDir string) (*App, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires every dependency from an already loaded config.
func NewWithConfig(cfg config.Config) (*App, error) {
	log, err := logger.NewLogger(cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	db, err := database.NewDatabase(cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	return &App{
		Config:   cfg,
		Log:      log,
		DB:       db,
		Sessions: database.NewSessionStore(db),
		Exports:  database.NewExportJournal(db),
		Auth:     auth.NewClient(&cfg.Auth, log),
		Backend:  backend.NewClient(&cfg.Backend, log),
		Exporter: history.NewExporter(cfg.History.Product, cfg.History.Location()),
	}, nil
}

// Mode returns the configured trading mode, defaulting to demo.
func (a *App) Mode() models.TradingMode {
	mode, err := models.ParseTradingMode(a.Config.Trading.Mode)
	if err != nil {
		return models.ModeDemo
	}
	return mode
}

// Session restores the active stored session. Renewed credentials are
// persisted back to the store. A configured backend token is used when no
// session is stored.
func (a *App) Session() (*auth.Session, error) {
	stored, err := a.Sessions.Active()
	if errors.Is(err, database.ErrNoSession) {
		if a.Config.Backend.Token != "" {
			return auth.NewStaticSession(a.Config.Backend.Token), nil
		}
		return nil, ErrSignedOut
	}
	if err != nil {
		return nil, err
	}

	sess := auth.NewSession(auth.Credential{
		UserID:       stored.UserID,
		Email:        stored.Email,
		IDToken:      stored.IDToken,
		RefreshToken: stored.RefreshToken,
		ExpiresAt:    stored.ExpiresAt,
	}, a.Auth)
	sess.OnRenew(func(cred auth.Credential) {
		if err := a.SaveCredential(cred); err != nil {
			a.Log.Error("Failed to persist renewed session", zap.Error(err))
		}
	})
	return sess, nil
}

// SaveCredential stores a credential as the active session.
func (a *App) SaveCredential(cred auth.Credential) error {
	return a.Sessions.Save(&models.StoredSession{
		UserID:       cred.UserID,
		Email:        cred.Email,
		IDToken:      cred.IDToken,
		RefreshToken: cred.RefreshToken,
		ExpiresAt:    cred.ExpiresAt,
	})
}

// Export writes the records as CSV into the export directory and journals
// the export. It returns the written path.
func (a *App) Export(records []models.TradeRecord, mode models.TradingMode, origin history.Origin, now time.Time) (string, error) {
	dir := a.Config.History.ExportDir
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}

	name := a.Exporter.FileName(mode, now)
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", path, err)
	}
	if err := a.Exporter.WriteCSV(f, records); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close %s: %w", path, err)
	}

	a.Journal(name, mode, origin, len(records))
	return path, nil
}

// Journal records an export. Failures are logged, never returned.
func (a *App) Journal(name string, mode models.TradingMode, origin history.Origin, rows int) {
	rec := &models.ExportRecord{FileName: name, Mode: mode, Rows: rows, Origin: string(origin)}
	if err := a.Exports.Record(rec); err != nil {
		a.Log.Warn("Failed to journal export", zap.String("file", name), zap.Error(err))
	}
}

// RecentExports lists up to limit journaled exports, newest first.
func (a *App) RecentExports(limit int) ([]models.ExportRecord, error) {
	return a.Exports.Recent(limit)
}

// Close flushes the logger and closes the database.
func (a *App) Close() {
	if sqlDB, err := a.DB.DB(); err == nil {
		sqlDB.Close()
	}
	_ = a.Log.Sync()
}
