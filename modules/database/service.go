// Package database provides the "db" service: a pooled database/sql handle
// opened from the database config section, with mysql and sqlite drivers.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/baseapp/config"
	"github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"
)

// Driver names understood by Open.
const (
	DriverMySQL  = "mysql"
	DriverSQLite = "sqlite"
)

// DefaultConnectionTimeout bounds the connection check in Connect.
const DefaultConnectionTimeout = 5 * time.Second

// Service is the database handle published in the container.
type Service struct {
	driver string
	dsn    string
	mu     sync.RWMutex
	db     *sql.DB
}

// DSN builds the driver-specific connection string.
func DSN(cfg config.DatabaseConfig) (string, error) {
	switch strings.ToLower(cfg.Driver) {
	case "":
		return "", ErrEmptyDriver
	case DriverMySQL:
		mc := mysql.NewConfig()
		mc.User = cfg.Username
		mc.Passwd = cfg.Password
		mc.Net = "tcp"
		mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		mc.DBName = cfg.DBName
		mc.ParseTime = true
		mc.Params = map[string]string{"charset": "utf8mb4"}
		return mc.FormatDSN(), nil
	case DriverSQLite:
		if cfg.DBName == ":memory:" {
			return cfg.DBName, nil
		}
		return cfg.DBName + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)", nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Driver)
	}
}

// Open prepares the connection pool. Like sql.Open it does not dial; call
// Connect to verify the server is reachable.
func Open(cfg config.DatabaseConfig) (*Service, error) {
	dsn, err := DSN(cfg)
	if err != nil {
		return nil, err
	}
	driver := strings.ToLower(cfg.Driver)
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	// Every connection to :memory: is a separate database.
	if driver == DriverSQLite && cfg.DBName == ":memory:" {
		db.SetMaxOpenConns(1)
		db.SetConnMaxLifetime(0)
	}
	return &Service{driver: driver, dsn: dsn, db: db}, nil
}

// Connect opens the pool and pings the server.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*Service, error) {
	s, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, DefaultConnectionTimeout)
	defer cancel()
	if err := s.Ping(ctx); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Service) Driver() string { return s.driver }

// DB returns the underlying pool, or nil once closed.
func (s *Service) DB() *sql.DB {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.db
}

func (s *Service) handle() (*sql.DB, error) {
	db := s.DB()
	if db == nil {
		return nil, ErrDatabaseNotConnected
	}
	return db, nil
}

func (s *Service) Ping(ctx context.Context) error {
	db, err := s.handle()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}
	return nil
}

func (s *Service) Stats() sql.DBStats {
	db := s.DB()
	if db == nil {
		return sql.DBStats{}
	}
	return db.Stats()
}

func (s *Service) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	result, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("executing query: %w", err)
	}
	return result, nil
}

func (s *Service) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying database: %w", err)
	}
	return rows, nil
}

// QueryRowContext runs a single-row query. It returns nil once closed.
func (s *Service) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	db := s.DB()
	if db == nil {
		return nil
	}
	return db.QueryRowContext(ctx, query, args...)
}

func (s *Service) BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error) {
	db, err := s.handle()
	if err != nil {
		return nil, err
	}
	tx, err := db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("beginning database transaction: %w", err)
	}
	return tx, nil
}

// WithTx runs fn in a transaction, committing on success and rolling back
// on error or panic.
func (s *Service) WithTx(ctx context.Context, fn func(*sql.Tx) error) (err error) {
	tx, err := s.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if rec := recover(); rec != nil {
			_ = tx.Rollback()
			panic(rec)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("committing database transaction: %w", err)
	}
	return nil
}

// Close closes the pool. Further calls report ErrDatabaseNotConnected.
func (s *Service) Close() error {
	s.mu.Lock()
	db := s.db
	s.db = nil
	s.mu.Unlock()
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}
