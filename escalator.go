package baseapp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"slices"
	"strings"
	"time"

	"github.com/davecgh/go-spew/spew"
	"go.uber.org/multierr"
)

// Environment selects the escalation policy.
type Environment string

const (
	Development Environment = "development"
	Production  Environment = "production"
)

// ParseEnvironment maps a configured app.env value to an Environment.
// Anything other than a development spelling is treated as production.
func ParseEnvironment(s string) Environment {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "development", "dev", "local":
		return Development
	default:
		return Production
	}
}

// Recognized log severities. Batch keys outside this set are written as
// generic log lines.
var Severities = []string{"alert", "debug", "error", "info", "notice", "warning"}

// SeverityLog is the severity passed to a LogSink for generic lines.
const SeverityLog = "log"

// IsSeverity reports whether key names a recognized severity.
func IsSeverity(key string) bool {
	return slices.Contains(Severities, key)
}

// DefaultAlertSubject is the subject of alert notifications before translation.
const DefaultAlertSubject = "Something is wrong!"

// AlertTemplate is the notification template used for alerts.
const AlertTemplate = "error"

// ErrorViewName is the view rendered for users in production.
const ErrorViewName = "error"

// LogBatch is an ordered mapping of severity (or label) to payload.
// It is consumed once by Escalator.Log.
type LogBatch struct {
	keys   []string
	values map[string]any
}

// NewLogBatch creates an empty batch.
func NewLogBatch() *LogBatch {
	return &LogBatch{values: make(map[string]any)}
}

// Add sets key to payload. Re-adding a key replaces its payload in place.
func (b *LogBatch) Add(key string, payload any) *LogBatch {
	if _, ok := b.values[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.values[key] = payload
	return b
}

// Keys returns the keys in insertion order.
func (b *LogBatch) Keys() []string {
	return slices.Clone(b.keys)
}

// Get returns the payload stored under key.
func (b *LogBatch) Get(key string) (any, bool) {
	v, ok := b.values[key]
	return v, ok
}

// Len returns the number of entries.
func (b *LogBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// LogSink is a durable, append-only log.
type LogSink interface {
	Append(severity, message string) error
	Close() error
}

// SinkOpener opens the log sink for the given moment (sinks are dated).
type SinkOpener func(now time.Time) (LogSink, error)

// Notifier sends an operator notification.
type Notifier interface {
	Send(ctx context.Context, subject, recipient, template string, payload map[string]any) error
}

// ErrorView renders a named user-facing view.
type ErrorView interface {
	Render(w io.Writer, name string, data any) error
}

// EscalationRecorder counts escalations.
type EscalationRecorder interface {
	Escalated(env, kind string)
}

// Escalator converts failures into operator and user visible output.
//
// In development every failure is dumped to Out and the process halts
// through Exit. In production each failure is appended to the dated log,
// one alert is mailed to Admin, and users only ever see the error view.
type Escalator struct {
	Env     Environment
	Admin   string
	Subject string

	// Out is the operator channel. Defaults to os.Stderr.
	Out      io.Writer
	OpenSink SinkOpener
	Notifier Notifier
	View     ErrorView
	// Exit halts the process in development. Defaults to os.Exit.
	Exit func(code int)
	Now  func() time.Time

	Logger   Logger
	Events   *Subject
	Recorder EscalationRecorder
}

func (e *Escalator) out() io.Writer {
	if e.Out == nil {
		return os.Stderr
	}
	return e.Out
}

func (e *Escalator) now() time.Time {
	if e.Now == nil {
		return time.Now()
	}
	return e.Now()
}

func (e *Escalator) logger() Logger {
	if e.Logger == nil {
		return NopLogger{}
	}
	return e.Logger
}

func (e *Escalator) exit(code int) {
	if e.Exit == nil {
		os.Exit(code)
		return
	}
	e.Exit(code)
}

func (e *Escalator) subject() string {
	if e.Subject == "" {
		return DefaultAlertSubject
	}
	return e.Subject
}

func (e *Escalator) record(ctx context.Context, kind string, data map[string]any) {
	if e.Recorder != nil {
		e.Recorder.Escalated(string(e.Env), kind)
	}
	data["env"] = string(e.Env)
	data["kind"] = kind
	e.Events.emit(ctx, EventTypeEscalation, "escalator", data)
}

// Log escalates an explicit log batch.
func (e *Escalator) Log(ctx context.Context, batch *LogBatch) error {
	if batch.Len() == 0 {
		return ErrEmptyBatch
	}
	e.record(ctx, "log", map[string]any{"keys": batch.Keys()})

	if e.Env == Development {
		w := e.out()
		for _, key := range batch.keys {
			fmt.Fprintf(w, "%s: %s\n", key, dump(batch.values[key]))
		}
		e.exit(1)
		return nil
	}
	return e.persist(ctx, batch)
}

func (e *Escalator) persist(ctx context.Context, batch *LogBatch) (err error) {
	var sink LogSink
	if e.OpenSink == nil {
		err = ErrNoLogSink
	} else if sink, err = e.OpenSink(e.now()); err != nil {
		err = fmt.Errorf("open log sink: %w", err)
		sink = nil
	}
	if sink != nil {
		defer func() {
			if cerr := sink.Close(); cerr != nil {
				err = multierr.Append(err, fmt.Errorf("close log sink: %w", cerr))
			}
		}()
	}

	var transcript strings.Builder
	for _, key := range batch.keys {
		message := dump(batch.values[key])
		fmt.Fprintf(&transcript, "%s: %s\n", key, message)
		if sink == nil {
			continue
		}
		var aerr error
		if IsSeverity(key) {
			aerr = sink.Append(key, message)
		} else {
			aerr = sink.Append(SeverityLog, key+": "+message)
		}
		if aerr != nil {
			err = multierr.Append(err, fmt.Errorf("append %s: %w", key, aerr))
		}
	}

	if e.Notifier == nil {
		err = multierr.Append(err, ErrNoNotifier)
	} else if serr := e.Notifier.Send(ctx, e.subject(), e.Admin, AlertTemplate, map[string]any{"log": transcript.String()}); serr != nil {
		err = multierr.Append(err, fmt.Errorf("send alert: %w", serr))
	}
	if err != nil {
		e.logger().Error("Escalation incomplete", "error", err)
	}
	return err
}

// Exception escalates an uncaught failure. w receives the user-facing
// output.
func (e *Escalator) Exception(ctx context.Context, w io.Writer, failure error) error {
	f := FailureOf(failure)
	e.record(ctx, "exception", map[string]any{"type": f.Type, "message": f.Message})

	if e.Env == Development {
		diag := f.Diagnostic()
		io.WriteString(w, diag)
		if out := e.out(); out != w {
			io.WriteString(out, diag)
		}
		return e.Log(ctx, f.Batch())
	}

	var err error
	if e.View == nil {
		io.WriteString(w, "An internal error occurred.\n")
		err = ErrNoErrorView
	} else if rerr := e.View.Render(w, ErrorViewName, errorViewData(ctx)); rerr != nil {
		err = fmt.Errorf("render error view: %w", rerr)
	}
	return multierr.Append(err, e.Log(ctx, f.Batch()))
}

func errorViewData(ctx context.Context) map[string]any {
	data := map[string]any{"Status": 500}
	if locale, ok := LocaleFrom(ctx); ok {
		data["Locale"] = locale
	}
	return data
}

// Failure is the structured description of an error used for escalation.
type Failure struct {
	Type    string
	Code    int
	Message string
	File    string
	Line    int
	Stack   string
}

type stackTracer interface {
	StackTrace() string
}

type callerInfo interface {
	Caller() (string, int)
}

// FailureOf describes err. Location and trace come from a recovered panic or
// a dispatch error when present, otherwise from the caller of FailureOf.
func FailureOf(err error) Failure {
	f := Failure{Type: fmt.Sprintf("%T", cause(err)), Message: err.Error()}

	var coder Coder
	if errors.As(err, &coder) {
		f.Code = coder.Code()
	}

	var pe *PanicError
	var de *DispatchError
	switch {
	case errors.As(err, &pe):
		f.File, f.Line = pe.Caller()
		f.Stack = pe.StackTrace()
	case errors.As(err, &de):
		f.File, f.Line = de.Caller()
		f.Stack = de.StackTrace()
	default:
		var st stackTracer
		if errors.As(err, &st) {
			f.Stack = st.StackTrace()
		}
		var ci callerInfo
		if errors.As(err, &ci) {
			f.File, f.Line = ci.Caller()
		}
	}
	if f.Stack == "" {
		pcs := make([]uintptr, 32)
		n := runtime.Callers(2, pcs)
		f.Stack = formatFrames(pcs[:n])
		if f.File == "" && n > 0 {
			frame, _ := runtime.CallersFrames(pcs[:n]).Next()
			f.File, f.Line = frame.File, frame.Line
		}
	}
	return f
}

// cause follows the wrap chain to the innermost error. For errors wrapping
// several, the last one is the specific cause.
func cause(err error) error {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err
			}
			err = next
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return err
			}
			err = errs[len(errs)-1]
		default:
			return err
		}
	}
}

// Batch returns the log batch escalated for this failure.
func (f Failure) Batch() *LogBatch {
	return NewLogBatch().
		Add("error", fmt.Sprintf("%s[%d]: %s", f.Type, f.Code, f.Message)).
		Add("info", fmt.Sprintf("%s[%d]", f.File, f.Line)).
		Add("debug", "Trace: \n"+f.Stack+"\n")
}

// Diagnostic renders the full development report.
func (f Failure) Diagnostic() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]: %s\n", f.Type, f.Code, f.Message)
	fmt.Fprintf(&b, "File: %s\nLine: %d\n", f.File, f.Line)
	b.WriteString("Trace:\n")
	b.WriteString(f.Stack)
	if !strings.HasSuffix(f.Stack, "\n") {
		b.WriteString("\n")
	}
	return b.String()
}

func dump(payload any) string {
	switch v := payload.(type) {
	case string:
		return v
	case error:
		return v.Error()
	case fmt.Stringer:
		return v.String()
	default:
		return strings.TrimRight(spew.Sdump(v), "\n")
	}
}
