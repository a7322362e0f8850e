package baseapp

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	cloudevents "github.com/cloudevents/sdk-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sinkEntry struct {
	severity string
	message  string
}

type memSink struct {
	entries  []sinkEntry
	closed   int
	closeErr error
	// sentBeforeClose records the notifier state at close time.
	notifier        *memNotifier
	sentBeforeClose int
}

func (s *memSink) Append(severity, message string) error {
	s.entries = append(s.entries, sinkEntry{severity, message})
	return nil
}

func (s *memSink) Close() error {
	s.closed++
	if s.notifier != nil {
		s.sentBeforeClose = len(s.notifier.sent)
	}
	return s.closeErr
}

type sentAlert struct {
	subject, recipient, template string
	payload                      map[string]any
}

type memNotifier struct {
	sent []sentAlert
	err  error
}

func (n *memNotifier) Send(_ context.Context, subject, recipient, template string, payload map[string]any) error {
	n.sent = append(n.sent, sentAlert{subject, recipient, template, payload})
	return n.err
}

type stubView struct{ rendered []string }

func (v *stubView) Render(w io.Writer, name string, _ any) error {
	v.rendered = append(v.rendered, name)
	_, err := io.WriteString(w, "<h1>Sorry, something went wrong.</h1>")
	return err
}

type codedError struct{ code int }

func (e codedError) Error() string { return "coded failure" }
func (e codedError) Code() int     { return e.code }

type prodFixture struct {
	esc      *Escalator
	sink     *memSink
	notifier *memNotifier
	view     *stubView
	opened   []time.Time
}

func newProdFixture() *prodFixture {
	f := &prodFixture{notifier: &memNotifier{}, view: &stubView{}}
	f.sink = &memSink{notifier: f.notifier}
	f.esc = &Escalator{
		Env:   Production,
		Admin: "ops@example.com",
		OpenSink: func(now time.Time) (LogSink, error) {
			f.opened = append(f.opened, now)
			return f.sink, nil
		},
		Notifier: f.notifier,
		View:     f.view,
		Now:      func() time.Time { return time.Date(2024, 3, 9, 10, 0, 0, 0, time.UTC) },
		Exit:     func(int) { panic("production must not exit") },
	}
	return f
}

func TestLogBatch(t *testing.T) {
	b := NewLogBatch().Add("error", "e1").Add("custom", 3).Add("error", "e2")
	assert.Equal(t, []string{"error", "custom"}, b.Keys())
	v, ok := b.Get("error")
	require.True(t, ok)
	assert.Equal(t, "e2", v)
	assert.Equal(t, 2, b.Len())
	assert.Equal(t, 0, (*LogBatch)(nil).Len())
}

func TestEscalator_ProductionLog(t *testing.T) {
	f := newProdFixture()
	batch := NewLogBatch().
		Add("error", "disk full").
		Add("notice", "retrying").
		Add("payment", map[string]int{"id": 9})

	err := f.esc.Log(context.Background(), batch)
	require.NoError(t, err)

	require.Len(t, f.opened, 1)
	require.Len(t, f.sink.entries, 3)
	assert.Equal(t, sinkEntry{"error", "disk full"}, f.sink.entries[0])
	assert.Equal(t, sinkEntry{"notice", "retrying"}, f.sink.entries[1])
	assert.Equal(t, SeverityLog, f.sink.entries[2].severity)
	assert.Contains(t, f.sink.entries[2].message, "payment: ")
	assert.Contains(t, f.sink.entries[2].message, "9")

	require.Len(t, f.notifier.sent, 1)
	alert := f.notifier.sent[0]
	assert.Equal(t, "Something is wrong!", alert.subject)
	assert.Equal(t, "ops@example.com", alert.recipient)
	assert.Equal(t, "error", alert.template)
	assert.Contains(t, alert.payload["log"], "error: disk full\nnotice: retrying\n")

	assert.Equal(t, 1, f.sink.closed)
	assert.Equal(t, 1, f.sink.sentBeforeClose)
}

func TestEscalator_ProductionCloseFailureAfterSend(t *testing.T) {
	f := newProdFixture()
	f.sink.closeErr = errors.New("flush failed")

	err := f.esc.Log(context.Background(), NewLogBatch().Add("alert", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "flush failed")
	assert.Len(t, f.notifier.sent, 1)
	assert.Equal(t, 1, f.sink.sentBeforeClose)
	assert.Equal(t, 1, f.sink.closed)
}

func TestEscalator_ProductionSendFailureStillCloses(t *testing.T) {
	f := newProdFixture()
	f.notifier.err = errors.New("smtp down")

	err := f.esc.Log(context.Background(), NewLogBatch().Add("error", "x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, f.sink.entries, 1)
	assert.Equal(t, 1, f.sink.closed)
}

func TestEscalator_ProductionSinkOpenFailureStillNotifies(t *testing.T) {
	f := newProdFixture()
	f.esc.OpenSink = func(time.Time) (LogSink, error) { return nil, errors.New("read-only fs") }

	err := f.esc.Log(context.Background(), NewLogBatch().Add("error", "x"))
	require.Error(t, err)
	assert.Len(t, f.notifier.sent, 1)
}

func TestEscalator_ProductionException(t *testing.T) {
	f := newProdFixture()
	var events []cloudevents.Event
	f.esc.Events = NewSubject(nil)
	require.NoError(t, f.esc.Events.RegisterObserver(NewFunctionalObserver("test", func(_ context.Context, e cloudevents.Event) error {
		events = append(events, e)
		return nil
	}), EventTypeEscalation))

	var page bytes.Buffer
	failure := newDispatchError(Target{Module: "frontend", Controller: "index", Action: "index"}, codedError{code: 42})
	require.NoError(t, f.esc.Exception(context.Background(), &page, failure))

	assert.Equal(t, []string{"error"}, f.view.rendered)
	assert.NotContains(t, page.String(), "escalator_test.go")
	assert.NotContains(t, page.String(), "Trace")
	assert.NotContains(t, page.String(), "coded failure")

	require.Len(t, f.sink.entries, 3)
	assert.Equal(t, "error", f.sink.entries[0].severity)
	assert.Contains(t, f.sink.entries[0].message, "baseapp.codedError[42]: ")
	assert.Contains(t, f.sink.entries[0].message, "coded failure")
	assert.Equal(t, "info", f.sink.entries[1].severity)
	assert.Contains(t, f.sink.entries[1].message, "escalator_test.go[")
	assert.Equal(t, "debug", f.sink.entries[2].severity)
	assert.Contains(t, f.sink.entries[2].message, "Trace: \n#0 ")

	assert.Len(t, f.notifier.sent, 1)
	assert.Equal(t, 1, f.sink.closed)
	require.Len(t, events, 2)
}

func TestEscalator_DevelopmentLog(t *testing.T) {
	var out bytes.Buffer
	notifier := &memNotifier{}
	exitCode := -1
	esc := &Escalator{
		Env:      Development,
		Out:      &out,
		Notifier: notifier,
		OpenSink: func(time.Time) (LogSink, error) { t.Fatal("development must not open the log"); return nil, nil },
		Exit:     func(code int) { exitCode = code },
	}

	require.NoError(t, esc.Log(context.Background(), NewLogBatch().Add("error", "bad").Add("context", []int{1, 2})))
	assert.Equal(t, 1, exitCode)
	assert.Contains(t, out.String(), "error: bad\n")
	assert.Contains(t, out.String(), "context: ([]int)")
	assert.Empty(t, notifier.sent)
}

func TestEscalator_DevelopmentException(t *testing.T) {
	var out, page bytes.Buffer
	notifier := &memNotifier{}
	exits := 0
	esc := &Escalator{Env: Development, Out: &out, Notifier: notifier, Exit: func(int) { exits++ }}

	require.NoError(t, esc.Exception(context.Background(), &page, errors.New("kaboom")))
	assert.Equal(t, 1, exits)
	assert.Contains(t, page.String(), "*errors.errorString[0]: kaboom")
	assert.Contains(t, page.String(), "Trace:")
	assert.Contains(t, out.String(), "error: *errors.errorString[0]: kaboom")
	assert.Contains(t, out.String(), "info: ")
	assert.Contains(t, out.String(), "debug: Trace: ")
	assert.Empty(t, notifier.sent)
}

func TestEscalator_EmptyBatch(t *testing.T) {
	f := newProdFixture()
	assert.ErrorIs(t, f.esc.Log(context.Background(), NewLogBatch()), ErrEmptyBatch)
	assert.Empty(t, f.notifier.sent)
}

func TestFailureOf(t *testing.T) {
	t.Run("panic", func(t *testing.T) {
		var err error
		func() {
			defer func() {
				if rec := recover(); rec != nil {
					err = &DispatchError{Err: NewPanicError(rec)}
				}
			}()
			panic(errors.New("nil map"))
		}()
		f := FailureOf(err)
		assert.Equal(t, "*errors.errorString", f.Type)
		assert.Contains(t, f.File, "escalator_test.go")
		assert.NotZero(t, f.Line)
		assert.Contains(t, f.Stack, "goroutine")
	})

	t.Run("plain_error_uses_call_site", func(t *testing.T) {
		f := FailureOf(errors.New("x"))
		assert.Contains(t, f.File, "escalator_test.go")
		assert.Equal(t, 0, f.Code)
	})

	t.Run("batch_format", func(t *testing.T) {
		f := Failure{Type: "*T", Code: 3, Message: "m", File: "f.go", Line: 9, Stack: "#0 x"}
		b := f.Batch()
		assert.Equal(t, []string{"error", "info", "debug"}, b.Keys())
		v, _ := b.Get("error")
		assert.Equal(t, "*T[3]: m", v)
		v, _ = b.Get("info")
		assert.Equal(t, "f.go[9]", v)
		v, _ = b.Get("debug")
		assert.Equal(t, "Trace: \n#0 x\n", v)
	})
}

func TestParseEnvironment(t *testing.T) {
	assert.Equal(t, Development, ParseEnvironment("development"))
	assert.Equal(t, Development, ParseEnvironment(" DEV "))
	assert.Equal(t, Production, ParseEnvironment("production"))
	assert.Equal(t, Production, ParseEnvironment("staging"))
	assert.Equal(t, Production, ParseEnvironment(""))
}
