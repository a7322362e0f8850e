// Package eventlogger writes the durable incident log: one append-only file
// per day, named YYYYMMDD.log, encoded by zap.
package eventlogger

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/GoCodeAlone/baseapp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	ErrSinkClosed    = errors.New("eventlogger: sink closed")
	ErrInvalidFormat = errors.New("eventlogger: invalid format")
	ErrMissingDir    = errors.New("eventlogger: missing log directory")
)

// Formats understood by Options.Format.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// DailyLayout names the per-day files.
const DailyLayout = "20060102"

// Options controls how lines are encoded.
type Options struct {
	// Format is "json" (default) or "console".
	Format string
	// Location is the zone timestamps are written in. Defaults to UTC.
	Location *time.Location
	// Clock overrides the time source of each line.
	Clock zapcore.Clock
}

// severityLevels maps escalation severities onto zap levels. zap has no
// notice or alert level; the original severity is kept in the
// "severity" field.
var severityLevels = map[string]zapcore.Level{
	"debug":             zapcore.DebugLevel,
	"info":              zapcore.InfoLevel,
	"notice":            zapcore.InfoLevel,
	baseapp.SeverityLog: zapcore.InfoLevel,
	"warning":           zapcore.WarnLevel,
	"error":             zapcore.ErrorLevel,
	"alert":             zapcore.ErrorLevel,
}

// LevelFor returns the zap level a severity is written at.
func LevelFor(severity string) zapcore.Level {
	if lvl, ok := severityLevels[strings.ToLower(severity)]; ok {
		return lvl
	}
	return zapcore.InfoLevel
}

// FileSink appends lines to a single file. It satisfies baseapp.LogSink.
type FileSink struct {
	mu     sync.Mutex
	path   string
	file   *os.File
	logger *zap.Logger
}

// OpenFile opens path for appending, creating the file and its directory
// when needed.
func OpenFile(path string, opts Options) (*FileSink, error) {
	enc, err := newEncoder(opts)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("eventlogger: create log directory %s: %w", filepath.Dir(path), err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("eventlogger: open log file %s: %w", path, err)
	}
	core := zapcore.NewCore(enc, zapcore.Lock(f), zapcore.DebugLevel)
	var zopts []zap.Option
	if opts.Clock != nil {
		zopts = append(zopts, zap.WithClock(opts.Clock))
	}
	return &FileSink{path: path, file: f, logger: zap.New(core, zopts...)}, nil
}

func newEncoder(opts Options) (zapcore.Encoder, error) {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "time"
	cfg.MessageKey = "message"
	cfg.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format(time.RFC3339))
	}
	switch strings.ToLower(opts.Format) {
	case "", FormatJSON:
		return zapcore.NewJSONEncoder(cfg), nil
	case FormatConsole:
		cfg.EncodeLevel = zapcore.CapitalLevelEncoder
		return zapcore.NewConsoleEncoder(cfg), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidFormat, opts.Format)
	}
}

// Path returns the file being written.
func (s *FileSink) Path() string { return s.path }

// Append writes one line.
func (s *FileSink) Append(severity, message string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return ErrSinkClosed
	}
	if ce := s.logger.Check(LevelFor(severity), message); ce != nil {
		ce.Write(zap.String("severity", strings.ToLower(severity)))
	}
	return nil
}

// Close flushes and closes the file. Closing twice is a no-op.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil {
		return nil
	}
	serr := s.logger.Sync()
	cerr := s.file.Close()
	s.file = nil
	if serr != nil {
		return fmt.Errorf("eventlogger: sync %s: %w", s.path, serr)
	}
	return cerr
}

// DailyPath returns the file for the day now falls on in loc.
func DailyPath(dir string, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return filepath.Join(dir, now.In(loc).Format(DailyLayout)+".log")
}

// OpenDaily returns an opener for dated files under dir. The day is taken in
// opts.Location, the application timezone.
func OpenDaily(dir string, opts Options) (baseapp.SinkOpener, error) {
	if dir == "" {
		return nil, ErrMissingDir
	}
	if _, err := newEncoder(opts); err != nil {
		return nil, err
	}
	return func(now time.Time) (baseapp.LogSink, error) {
		return OpenFile(DailyPath(dir, now, opts.Location), opts)
	}, nil
}
