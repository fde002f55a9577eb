package timing

import (
	"context"
	"time"

	"github.com/padraicbc/racetime/metrics"
	"github.com/padraicbc/racetime/models"
	"github.com/padraicbc/racetime/store"
)

// Place returns the 1-based rank of finish among finishes sorted ascending:
// the position of the first strictly later finish, or the end of the list.
// Ties keep the incumbent ahead.
func Place(finishes []time.Duration, finish time.Duration) int {
	for i, f := range finishes {
		if f > finish {
			return i + 1
		}
	}
	return len(finishes) + 1
}

// Ranker inserts new results into the dense per-date finish ranking.
type Ranker struct {
	store store.Store
	pub   Publisher
}

func NewRanker(s store.Store, pub Publisher) *Ranker {
	if pub == nil {
		pub = nopPublisher{}
	}
	return &Ranker{store: s, pub: pub}
}

// Insert assigns res.Number, shifts every later result of the same date
// down by one and stores res. The scan, the shift and the insert run under
// the store's per-date rank lock and commit together.
func (r *Ranker) Insert(ctx context.Context, res *models.Result) error {
	start := time.Now()
	defer func() { metrics.ObserveRanking(time.Since(start).Seconds()) }()

	var shifted []models.Result
	err := r.store.WithRankLock(ctx, res.Date, func(tx store.Store) error {
		existing, err := tx.ResultsByDate(ctx, res.Date)
		if err != nil {
			return err
		}
		finishes := make([]time.Duration, len(existing))
		for i := range existing {
			finishes[i] = existing[i].FinishTime
		}

		res.Number = Place(finishes, res.FinishTime)
		shifted = existing[res.Number-1:]
		if len(shifted) > 0 {
			ids := make([]int64, len(shifted))
			for i := range shifted {
				ids[i] = shifted[i].ID
			}
			if err := tx.ShiftResultNumbers(ctx, ids); err != nil {
				return err
			}
		}
		return tx.InsertResult(ctx, res)
	})
	if err != nil {
		return err
	}

	for i := range shifted {
		shifted[i].Number++
		metrics.RecordResult("shifted")
		r.pub.Publish(EventResultPatched, &shifted[i])
	}
	return nil
}
