package symbols

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
)

// Refresher re-fetches a List on a cron schedule.
type Refresher struct {
	list    *List
	cron    *cron.Cron
	timeout time.Duration
}

// NewRefresher creates a Refresher for list. Each run is bounded by timeout.
func NewRefresher(list *List, timeout time.Duration) *Refresher {
	if timeout <= 0 {
		timeout = time.Minute
	}
	return &Refresher{list: list, cron: cron.New(), timeout: timeout}
}

// Start schedules refreshes with the given cron spec (for example
// "@every 24h") and begins running them.
func (r *Refresher) Start(spec string) error {
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return err
	}
	r.cron.Start()
	r.list.log.Info("symbol refresh scheduled", "schedule", spec)
	return nil
}

// Stop halts the schedule and waits for a running refresh to finish.
func (r *Refresher) Stop() {
	<-r.cron.Stop().Done()
}

func (r *Refresher) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if err := r.list.Refresh(ctx); err != nil {
		r.list.log.Warn("scheduled symbol refresh failed", "error", err)
	}
}
