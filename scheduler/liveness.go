// Package scheduler runs periodic maintenance jobs.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/padraicbc/racetime/metrics"
	"github.com/padraicbc/racetime/store"
)

// Liveness flips checkpoints offline when their heartbeat goes stale.
type Liveness struct {
	cron    *cron.Cron
	store   store.CheckpointRepository
	timeout time.Duration
	log     *zap.Logger

	mu        sync.Mutex
	isRunning bool
	jobID     cron.EntryID
}

func NewLiveness(s store.CheckpointRepository, timeout time.Duration, log *zap.Logger) *Liveness {
	return &Liveness{
		cron:    cron.New(cron.WithLocation(time.UTC)),
		store:   s,
		timeout: timeout,
		log:     log,
	}
}

// Sweep marks every online checkpoint whose last heartbeat is older than the
// timeout, or missing, as offline. It returns the checkpoint numbers it
// changed.
func (l *Liveness) Sweep(ctx context.Context, now time.Time) ([]int, error) {
	cps, err := l.store.ListCheckpoints(ctx)
	if err != nil {
		return nil, fmt.Errorf("list checkpoints: %w", err)
	}

	var stale []int
	for _, c := range cps {
		if !c.Online {
			continue
		}
		if c.LastConnection == nil || now.Sub(*c.LastConnection) > l.timeout {
			stale = append(stale, c.Num)
		}
	}
	if len(stale) == 0 {
		return nil, nil
	}
	if err := l.store.MarkCheckpointsOffline(ctx, stale); err != nil {
		return nil, fmt.Errorf("mark offline: %w", err)
	}
	metrics.RecordCheckpointsOffline(len(stale))
	l.log.Info("checkpoints offline", zap.Ints("checkpoints", stale))
	return stale, nil
}

// Start schedules Sweep with the given cron spec and starts the cron runner.
func (l *Liveness) Start(spec string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.isRunning {
		return fmt.Errorf("liveness sweep is already running")
	}

	id, err := l.cron.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.timeout)
		defer cancel()
		if _, err := l.Sweep(ctx, time.Now()); err != nil {
			l.log.Error("liveness sweep", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to add job: %w", err)
	}

	l.jobID = id
	l.cron.Start()
	l.isRunning = true
	l.log.Info("liveness sweep started", zap.String("schedule", spec), zap.Duration("timeout", l.timeout))
	return nil
}

// Stop waits for a running sweep to finish.
func (l *Liveness) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isRunning {
		return
	}
	<-l.cron.Stop().Done()
	l.cron.Remove(l.jobID)
	l.isRunning = false
}
