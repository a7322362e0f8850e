package database

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/GoCodeAlone/baseapp"
	cloudevents "github.com/cloudevents/sdk-go/v2"
)

// Migration event types
const (
	EventTypeMigrationStarted   = "com.baseapp.database.migration.started"
	EventTypeMigrationCompleted = "com.baseapp.database.migration.completed"
	EventTypeMigrationFailed    = "com.baseapp.database.migration.failed"
)

// DefaultMigrationsTable tracks applied migrations.
const DefaultMigrationsTable = "schema_migrations"

var tableNamePattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// validateTableName validates table name to prevent SQL injection
func validateTableName(tableName string) error {
	if !tableNamePattern.MatchString(tableName) {
		return fmt.Errorf("%w: %q", ErrInvalidTableName, tableName)
	}
	return nil
}

// Migration is one schema change, applied at most once.
type Migration struct {
	ID  string
	SQL string
}

// EventEmitter receives migration events. *baseapp.Subject satisfies it.
type EventEmitter interface {
	NotifyObservers(ctx context.Context, event cloudevents.Event) error
}

// Migrator applies migrations and records them in a tracking table.
type Migrator struct {
	service   *Service
	events    EventEmitter
	logger    baseapp.Logger
	tableName string
}

// NewMigrator creates a migrator. events and logger may be nil.
func NewMigrator(s *Service, events EventEmitter, logger baseapp.Logger) *Migrator {
	if logger == nil {
		logger = baseapp.NopLogger{}
	}
	return &Migrator{service: s, events: events, logger: logger, tableName: DefaultMigrationsTable}
}

// CreateMigrationsTable creates the migrations tracking table if it doesn't exist
func (m *Migrator) CreateMigrationsTable(ctx context.Context) error {
	if err := validateTableName(m.tableName); err != nil {
		return err
	}
	// #nosec G201 - table name is validated above
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id VARCHAR(191) PRIMARY KEY,
		applied_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`, m.tableName)
	if _, err := m.service.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}
	return nil
}

// Applied returns the IDs of applied migrations in application order
func (m *Migrator) Applied(ctx context.Context) ([]string, error) {
	if err := validateTableName(m.tableName); err != nil {
		return nil, err
	}
	// #nosec G201 - table name is validated above
	rows, err := m.service.QueryContext(ctx, fmt.Sprintf("SELECT id FROM %s ORDER BY applied_at, id", m.tableName))
	if err != nil {
		return nil, fmt.Errorf("failed to query applied migrations: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan migration row: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating migration rows: %w", err)
	}
	return ids, nil
}

// Run executes a migration and records it in the same transaction
func (m *Migrator) Run(ctx context.Context, migration Migration) error {
	start := time.Now()
	m.emit(ctx, EventTypeMigrationStarted, map[string]any{"migration_id": migration.ID})

	// #nosec G201 - table name is validated in Migrate
	record := fmt.Sprintf("INSERT INTO %s (id) VALUES (?)", m.tableName)
	err := m.service.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, migration.SQL); err != nil {
			return fmt.Errorf("failed to execute migration %s: %w", migration.ID, err)
		}
		if _, err := tx.ExecContext(ctx, record, migration.ID); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.ID, err)
		}
		return nil
	})
	if err != nil {
		m.emit(ctx, EventTypeMigrationFailed, map[string]any{
			"migration_id": migration.ID,
			"error":        err.Error(),
			"duration_ms":  time.Since(start).Milliseconds(),
		})
		return err
	}
	m.emit(ctx, EventTypeMigrationCompleted, map[string]any{
		"migration_id": migration.ID,
		"duration_ms":  time.Since(start).Milliseconds(),
	})
	return nil
}

// Migrate creates the tracking table and applies every migration not yet
// recorded, in the order given. It returns the IDs it applied.
func (m *Migrator) Migrate(ctx context.Context, migrations ...Migration) ([]string, error) {
	if err := m.CreateMigrationsTable(ctx); err != nil {
		return nil, err
	}
	applied, err := m.Applied(ctx)
	if err != nil {
		return nil, err
	}
	var ran []string
	for _, mig := range migrations {
		if slices.Contains(applied, mig.ID) {
			continue
		}
		if err := m.Run(ctx, mig); err != nil {
			return ran, err
		}
		m.logger.Info("Applied migration", "id", mig.ID)
		ran = append(ran, mig.ID)
	}
	return ran, nil
}

func (m *Migrator) emit(ctx context.Context, eventType string, data map[string]any) {
	if m.events == nil {
		return
	}
	if err := m.events.NotifyObservers(ctx, baseapp.NewCloudEvent(eventType, "database", data)); err != nil {
		m.logger.Debug("Migration event observer failed", "type", eventType, "error", err)
	}
}
