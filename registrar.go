package baseapp

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Step is one bootstrap stage. It populates the container and may resolve
// services registered by earlier steps.
type Step struct {
	Name string
	Run  func(c *Container) error
}

// Registrar runs an ordered, fixed list of bootstrap steps exactly once.
type Registrar struct {
	steps   []Step
	logger  Logger
	subject *Subject

	once    sync.Once
	bootErr error
}

// NewRegistrar creates a registrar for steps, run in the given order.
func NewRegistrar(logger Logger, subject *Subject, steps ...Step) *Registrar {
	if logger == nil {
		logger = NopLogger{}
	}
	return &Registrar{steps: steps, logger: logger, subject: subject}
}

// Steps returns the step names in execution order.
func (r *Registrar) Steps() []string {
	names := make([]string, len(r.steps))
	for i, s := range r.steps {
		names[i] = s.Name
	}
	return names
}

// Boot runs every step against c. The first failure aborts boot and is
// returned as a *BootError; later calls return the same result.
func (r *Registrar) Boot(c *Container) error {
	r.once.Do(func() {
		r.bootErr = r.run(c)
	})
	return r.bootErr
}

func (r *Registrar) run(c *Container) error {
	ctx := context.Background()
	for _, step := range r.steps {
		started := time.Now()
		if err := r.runStep(step, c); err != nil {
			r.logger.Error("Boot step failed", "step", step.Name, "error", err)
			r.subject.emit(ctx, EventTypeBootFailed, "registrar", map[string]any{
				"step":  step.Name,
				"error": err.Error(),
			})
			return &BootError{Step: step.Name, Err: err}
		}
		elapsed := time.Since(started)
		r.logger.Debug("Boot step completed", "step", step.Name, "elapsed", elapsed)
		r.subject.emit(ctx, EventTypeBootStep, "registrar", map[string]any{
			"step":    step.Name,
			"elapsed": elapsed.String(),
		})
	}
	r.logger.Info("Boot completed", "steps", len(r.steps))
	return nil
}

func (r *Registrar) runStep(step Step, c *Container) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return step.Run(c)
}
