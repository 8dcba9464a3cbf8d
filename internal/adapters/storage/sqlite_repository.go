package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/renato0307/sessiond/internal/domain"
	"github.com/renato0307/sessiond/internal/logging"
	"github.com/renato0307/sessiond/internal/ports"
)

const (
	createBatchSize = 100
	maxRetries      = 3
)

// SQLiteRepository implements ports.SessionRepository and ports.ProjectRepository using GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var (
	_ ports.ProjectRepository = (*SQLiteRepository)(nil)
	_ ports.SessionRepository = (*SQLiteRepository)(nil)
)

// gormLogger wraps the sessiond logger for GORM
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	switch {
	case err != nil && !errors.Is(err, gorm.ErrRecordNotFound):
		logging.Logger.Error("gorm query error", "error", err, "duration", elapsed, "sql", sql, "rows", rows)
	case elapsed > 200*time.Millisecond:
		logging.Logger.Warn("slow query", "duration", elapsed, "sql", sql, "rows", rows)
	default:
		logging.Logger.Debug("gorm query", "duration", elapsed, "sql", sql, "rows", rows)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("SESSIOND_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// NewSQLiteRepository opens (and migrates) the database at dbPath
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if strings.HasPrefix(dbPath, "~") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Pragmas go in the DSN so every pooled connection gets them
	dsn := dbPath + "?_busy_timeout=5000&_foreign_keys=1&_journal_mode=WAL&_synchronous=NORMAL"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:      newGormLogger(),
		NowFunc:     func() time.Time { return time.Now().UTC() },
		PrepareStmt: false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&ProjectModel{}, &SessionModel{}); err != nil {
		if !strings.Contains(err.Error(), "already exists") {
			return nil, fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	if !db.Migrator().HasTable(&SessionMessageModel{}) {
		if err := db.Exec(`
			CREATE TABLE IF NOT EXISTS session_messages (
				session_id TEXT NOT NULL,
				message_id TEXT NOT NULL,
				position INTEGER NOT NULL DEFAULT 0,
				role TEXT NOT NULL,
				parent_id TEXT NOT NULL DEFAULT '',
				content TEXT NOT NULL DEFAULT '[]',
				usage TEXT NOT NULL DEFAULT '',
				is_error INTEGER NOT NULL DEFAULT 0,
				is_streaming INTEGER NOT NULL DEFAULT 0,
				created_at DATETIME,
				updated_at DATETIME,
				PRIMARY KEY (session_id, message_id),
				FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
			)
		`).Error; err != nil {
			return nil, fmt.Errorf("failed to create session_messages table: %w", err)
		}
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// AddProject implements ProjectWriter.AddProject
func (r *SQLiteRepository) AddProject(ctx context.Context, project domain.Project) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&ProjectModel{}).Where("id = ? OR path = ?", project.ID, project.Path).Count(&count).Error; err != nil {
				return err
			}
			if count > 0 {
				return fmt.Errorf("project %s: %w", project.Path, domain.ErrProjectExists)
			}
			return tx.Create(&ProjectModel{
				CreatedAt: project.CreatedAt.UTC(),
				ID:        project.ID,
				Name:      project.Name,
				Path:      project.Path,
			}).Error
		})
	}, maxRetries)
}

// GetProject implements ProjectReader.GetProject
func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*domain.Project, error) {
	var model ProjectModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, maxRetries)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("project %s: %w", id, domain.ErrProjectNotFound)
		}
		return nil, err
	}

	project := projectModelToDomain(model)
	return &project, nil
}

// ListProjects implements ProjectReader.ListProjects
func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var models []ProjectModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Order("path ASC").Find(&models).Error
	}, maxRetries)
	if err != nil {
		return nil, err
	}

	projects := make([]domain.Project, 0, len(models))
	for _, m := range models {
		projects = append(projects, projectModelToDomain(m))
	}
	return projects, nil
}

// FindMany implements SessionReader.FindMany
func (r *SQLiteRepository) FindMany(ctx context.Context, filter ports.SessionFilter) ([]domain.Session, error) {
	var models []SessionModel
	err := withRetry(func() error {
		query := r.db.WithContext(ctx).Model(&SessionModel{})
		if filter.ProjectID != "" {
			query = query.Where("project_id = ?", filter.ProjectID)
		}
		if filter.UserID != "" {
			query = query.Where("user_id = ?", filter.UserID)
		}
		if !filter.IncludeArchived {
			query = query.Where("is_archived = ?", false)
		}
		return query.Order("created_at DESC").Order("id ASC").Find(&models).Error
	}, maxRetries)
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(models))
	for _, m := range models {
		sessions = append(sessions, sessionModelToDomain(m))
	}
	return sessions, nil
}

// FindUnique implements SessionReader.FindUnique
func (r *SQLiteRepository) FindUnique(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error
	}, maxRetries)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// Create implements SessionWriter.Create
func (r *SQLiteRepository) Create(ctx context.Context, session domain.Session) error {
	return r.CreateMany(ctx, []domain.Session{session})
}

// CreateMany implements SessionWriter.CreateMany. Rows are inserted in
// batches inside a single transaction.
func (r *SQLiteRepository) CreateMany(ctx context.Context, sessions []domain.Session) error {
	if len(sessions) == 0 {
		return nil
	}

	models := make([]SessionModel, 0, len(sessions))
	for _, s := range sessions {
		m, err := domainToSessionModel(s)
		if err != nil {
			return fmt.Errorf("session %s: %w", s.ID, err)
		}
		models = append(models, m)
	}

	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			return tx.CreateInBatches(&models, createBatchSize).Error
		})
	}, maxRetries)
}

// Delete implements SessionWriter.Delete
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("session_id = ?", id).Delete(&SessionMessageModel{}).Error; err != nil {
				return err
			}
			result := tx.Where("id = ?", id).Delete(&SessionModel{})
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
			}
			return nil
		})
	}, maxRetries)
}

// DeleteIfOrphaned implements SessionWriter.DeleteIfOrphaned
func (r *SQLiteRepository) DeleteIfOrphaned(ctx context.Context, id string, cutoff time.Time) (bool, error) {
	var deleted bool
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			result := tx.
				Where("id = ? AND state = ? AND is_archived = ? AND updated_at < ?", id, string(domain.StateIdle), false, cutoff.UTC()).
				Delete(&SessionModel{})
			if result.Error != nil {
				return result.Error
			}
			deleted = result.RowsAffected > 0
			if !deleted {
				return nil
			}
			return tx.Where("session_id = ?", id).Delete(&SessionMessageModel{}).Error
		})
	}, maxRetries)
	return deleted, err
}

// UpdateTranscript implements SessionWriter.UpdateTranscript
func (r *SQLiteRepository) UpdateTranscript(ctx context.Context, id string, metadata domain.SessionMetadata, createdAt time.Time) error {
	encoded, err := marshalMetadata(metadata)
	if err != nil {
		return err
	}

	return withRetry(func() error {
		updates := map[string]any{
			"created_at": createdAt.UTC(),
			"metadata":   encoded,
			"updated_at": time.Now().UTC(),
		}
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).Updates(updates)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, maxRetries)
}

// UpdateState implements SessionStateUpdater.UpdateState
func (r *SQLiteRepository) UpdateState(ctx context.Context, id string, state domain.SessionState, errorMessage string) (*domain.Session, error) {
	if !state.Valid() {
		return nil, fmt.Errorf("invalid session state %q", state)
	}

	var model SessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			updates := map[string]any{
				"error_message": errorMessage,
				"state":         string(state),
				"updated_at":    time.Now().UTC(),
			}
			result := tx.Model(&SessionModel{}).Where("id = ?", id).Updates(updates)
			if result.Error != nil {
				return result.Error
			}
			if result.RowsAffected == 0 {
				return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
			}
			return tx.Where("id = ?", id).First(&model).Error
		})
	}, maxRetries)
	if err != nil {
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// Rename implements SessionMetadataUpdater.Rename
func (r *SQLiteRepository) Rename(ctx context.Context, id, name string) error {
	return withRetry(func() error {
		result := r.db.WithContext(ctx).Model(&SessionModel{}).Where("id = ?", id).Updates(map[string]any{
			"name":       name,
			"updated_at": time.Now().UTC(),
		})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
		}
		return nil
	}, maxRetries)
}

// ToggleArchive implements SessionMetadataUpdater.ToggleArchive
func (r *SQLiteRepository) ToggleArchive(ctx context.Context, id string) (*domain.Session, error) {
	var model SessionModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Where("id = ?", id).First(&model).Error; err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return fmt.Errorf("session %s: %w", id, domain.ErrSessionNotFound)
				}
				return err
			}

			now := time.Now().UTC()
			model.IsArchived = !model.IsArchived
			if model.IsArchived {
				model.ArchivedAt = &now
			} else {
				model.ArchivedAt = nil
			}
			model.UpdatedAt = now

			return tx.Model(&SessionModel{}).Where("id = ?", id).Updates(map[string]any{
				"archived_at": model.ArchivedAt,
				"is_archived": model.IsArchived,
				"updated_at":  now,
			}).Error
		})
	}, maxRetries)
	if err != nil {
		return nil, err
	}

	session := sessionModelToDomain(model)
	return &session, nil
}

// ListMessages implements SessionMessageStore.ListMessages
func (r *SQLiteRepository) ListMessages(ctx context.Context, sessionID string) ([]domain.UnifiedMessage, error) {
	var models []SessionMessageModel
	err := withRetry(func() error {
		return r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("position ASC").Find(&models).Error
	}, maxRetries)
	if err != nil {
		return nil, err
	}

	messages := make([]domain.UnifiedMessage, 0, len(models))
	for _, m := range models {
		messages = append(messages, messageModelToDomain(m))
	}
	return messages, nil
}

// UpsertMessage implements SessionMessageStore.UpsertMessage. A new message
// is appended after the existing ones; an existing one keeps its position.
func (r *SQLiteRepository) UpsertMessage(ctx context.Context, sessionID string, message domain.UnifiedMessage) error {
	model, err := domainToMessageModel(sessionID, message)
	if err != nil {
		return err
	}

	return withRetry(func() error {
		return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			var count int64
			if err := tx.Model(&SessionMessageModel{}).Where("session_id = ?", sessionID).Count(&count).Error; err != nil {
				return err
			}
			row := model
			row.Position = int(count)

			return tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "session_id"}, {Name: "message_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"content", "is_error", "is_streaming", "parent_id", "role", "updated_at", "usage",
				}),
			}).Create(&row).Error
		})
	}, maxRetries)
}

// withRetry retries operations on SQLITE_BUSY with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
