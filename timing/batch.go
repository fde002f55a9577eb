package timing

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"github.com/padraicbc/racetime/metrics"
)

// bestEffort runs independent writes concurrently. A failing task never
// cancels the others; failures are logged and counted, not returned to the
// caller that triggered them. Tasks ignore cancellation of the triggering
// request.
type bestEffort struct {
	p   *pool.ContextPool
	log *zap.Logger
	op  string
}

func newBestEffort(ctx context.Context, log *zap.Logger, op string) *bestEffort {
	return &bestEffort{
		p:   pool.New().WithContext(context.WithoutCancel(ctx)),
		log: log,
		op:  op,
	}
}

func (b *bestEffort) Go(task string, fn func(ctx context.Context) error) {
	b.p.Go(func(ctx context.Context) error {
		if err := fn(ctx); err != nil {
			metrics.RecordDependencyFailure(b.op, task)
			b.log.Warn("best-effort update failed",
				zap.String("op", b.op),
				zap.String("task", task),
				zap.Error(err),
			)
			return fmt.Errorf("%s: %w", task, err)
		}
		return nil
	})
}

// Wait blocks until every task has finished and returns the joined failures.
func (b *bestEffort) Wait() error {
	return b.p.Wait()
}
