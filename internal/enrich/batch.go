package enrich

import (
	"context"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// BatchResult counts per-lead outcomes of EnrichBatch.
type BatchResult struct {
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Errors    map[int64]string `json:"errors,omitempty"`
}

// EnrichBatch enriches every id, isolating failures per lead. At most
// Config.Concurrency leads run at once. Leads not yet started when ctx is
// canceled count as failed.
func (e *Enricher) EnrichBatch(ctx context.Context, ids []int64) BatchResult {
	var (
		mu  sync.Mutex
		res = BatchResult{Errors: make(map[int64]string)}
	)
	record := func(id int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			res.Failed++
			res.Errors[id] = err.Error()
			return
		}
		res.Succeeded++
	}

	var g errgroup.Group
	g.SetLimit(e.cfg.Concurrency)
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			record(id, err)
			continue
		}
		g.Go(func() error {
			err := e.Enrich(ctx, id)
			if err != nil {
				e.logger.Warn("enrich lead failed", zap.Int64("lead_id", id), zap.Error(err))
			}
			record(id, err)
			return nil
		})
	}
	_ = g.Wait()

	if len(res.Errors) == 0 {
		res.Errors = nil
	}
	return res
}
