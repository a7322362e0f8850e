package baseapp

import (
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"
	"strings"
)

// Application errors
var (
	// Container errors
	ErrUnknownService      = errors.New("unknown service")
	ErrServiceNil          = errors.New("service factory is nil")
	ErrServiceWrongType    = errors.New("service doesn't satisfy required type")
	ErrCircularDependency  = errors.New("circular dependency detected")
	ErrServiceConstruction = errors.New("service construction failed")

	// Boot errors
	ErrBootFailure = errors.New("boot failure")

	// Module errors
	ErrModuleNotFound    = errors.New("module not found")
	ErrModuleRegistered  = errors.New("module already registered")
	ErrModuleLoaderNil   = errors.New("module loader is nil")
	ErrNamespaceNotFound = errors.New("namespace not registered")

	// Routing errors
	ErrInvalidPattern = errors.New("invalid route pattern")
	ErrRouterFrozen   = errors.New("router is frozen")

	// Dispatch errors
	ErrDispatchFailure    = errors.New("dispatch failure")
	ErrModuleRequired     = errors.New("internal request requires a module")
	ErrControllerNotFound = errors.New("controller not found")
	ErrActionNotFound     = errors.New("action not found")
	ErrParamOutOfRange    = errors.New("parameter index out of range")

	// Escalation errors
	ErrNoLogSink   = errors.New("no log sink configured")
	ErrNoNotifier  = errors.New("no notifier configured")
	ErrEmptyBatch  = errors.New("log batch is empty")
	ErrNoErrorView = errors.New("no error view configured")
)

// BootError reports the bootstrap step that aborted startup.
type BootError struct {
	Step string
	Err  error
}

func (e *BootError) Error() string {
	return fmt.Sprintf("%s: step %q: %v", ErrBootFailure, e.Step, e.Err)
}

func (e *BootError) Unwrap() []error {
	return []error{ErrBootFailure, e.Err}
}

// DispatchError wraps a failure to locate or execute a dispatch target.
// The stack is captured where the error is created.
type DispatchError struct {
	Target Target
	Err    error
	stack  []uintptr
}

func newDispatchError(target Target, err error) *DispatchError {
	pcs := make([]uintptr, 32)
	n := runtime.Callers(2, pcs)
	return &DispatchError{Target: target, Err: err, stack: pcs[:n]}
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("%s: %s/%s/%s: %v", ErrDispatchFailure,
		e.Target.Module, e.Target.Controller, e.Target.Action, e.Err)
}

func (e *DispatchError) Unwrap() []error {
	return []error{ErrDispatchFailure, e.Err}
}

// StackTrace returns the formatted frames captured at creation.
func (e *DispatchError) StackTrace() string {
	return formatFrames(e.stack)
}

// Caller returns the location where the error was created.
func (e *DispatchError) Caller() (string, int) {
	if len(e.stack) == 0 {
		return "", 0
	}
	frame, _ := runtime.CallersFrames(e.stack).Next()
	return frame.File, frame.Line
}

// PanicError carries a value recovered from a panicking action or handler.
type PanicError struct {
	Value any
	Stack string
	File  string
	Line  int
}

// NewPanicError records rec together with the location of the panic.
// Call it from the deferred function that recovered rec.
func NewPanicError(rec any) *PanicError {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(2, pcs)
	e := &PanicError{Value: rec, Stack: string(debug.Stack())}

	frames := runtime.CallersFrames(pcs[:n])
	var first runtime.Frame
	panicking := false
	for {
		frame, more := frames.Next()
		if first.PC == 0 {
			first = frame
		}
		switch {
		case strings.HasPrefix(frame.Function, "runtime.gopanic"), strings.HasPrefix(frame.Function, "runtime.panic"):
			panicking = true
		case panicking && !strings.HasPrefix(frame.Function, "runtime."):
			e.File, e.Line = frame.File, frame.Line
			return e
		}
		if !more {
			break
		}
	}
	e.File, e.Line = first.File, first.Line
	return e
}

// Caller returns the location of the panic.
func (e *PanicError) Caller() (string, int) {
	return e.File, e.Line
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return fmt.Sprintf("panic: %v", err)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

func (e *PanicError) Unwrap() error {
	if err, ok := e.Value.(error); ok {
		return err
	}
	return nil
}

// StackTrace returns the goroutine stack recorded at recovery.
func (e *PanicError) StackTrace() string {
	return e.Stack
}

// Coder is implemented by errors that carry a numeric code.
type Coder interface {
	Code() int
}

func formatFrames(pcs []uintptr) string {
	if len(pcs) == 0 {
		return ""
	}
	var b strings.Builder
	frames := runtime.CallersFrames(pcs)
	i := 0
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "#%d %s(%d): %s\n", i, frame.File, frame.Line, frame.Function)
		i++
		if !more {
			break
		}
	}
	return b.String()
}
