package indexing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/docrag/internal/metrics"
)

const rollbackTimeout = 30 * time.Second

// step is one compensating action registered at a checkpoint.
type step struct {
	name string
	undo func(ctx context.Context) error
}

// rollback is the ordered list of compensations for the work done so far.
// Steps run in reverse registration order.
type rollback struct {
	steps []step
}

func (r *rollback) add(name string, undo func(ctx context.Context) error) {
	r.steps = append(r.steps, step{name: name, undo: undo})
}

func (r *rollback) names() []string {
	out := make([]string, len(r.steps))
	for i, s := range r.steps {
		out[i] = s.name
	}
	return out
}

// run executes every step even if some fail. The caller's cancellation does not
// stop compensation.
func (r *rollback) run(ctx context.Context, log *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rollbackTimeout)
	defer cancel()

	var errs []error
	for i := len(r.steps) - 1; i >= 0; i-- {
		s := r.steps[i]
		err := s.undo(ctx)
		metrics.RollbackStepsTotal.WithLabelValues(s.name, metrics.ResultLabel(err)).Inc()
		if err != nil {
			log.Warn("rollback step failed", zap.String("step", s.name), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", s.name, err))
			continue
		}
		log.Debug("rollback step done", zap.String("step", s.name))
	}
	r.steps = nil
	return errors.Join(errs...)
}
