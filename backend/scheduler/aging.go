// Package scheduler runs the periodic maintenance jobs of the CRM.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/imoveplus/crm/backend/data"
	"github.com/robfig/cron/v3"
	log "gopkg.in/inconshreveable/log15.v2"
)

const DefaultAgingSpec = "@daily"

// Aging increments days_in_stage of every funnel item on a cron schedule.
type Aging struct {
	cron    *cron.Cron
	db      data.Queryer
	spec    string
	logger  log.Logger
	timeout time.Duration
	entryID cron.EntryID
}

func NewAging(db data.Queryer, spec string, logger log.Logger) *Aging {
	if spec == "" {
		spec = DefaultAgingSpec
	}
	return &Aging{
		cron:    cron.New(),
		db:      db,
		spec:    spec,
		logger:  logger,
		timeout: time.Minute,
	}
}

// Start schedules the job and starts the cron runner in its own goroutine.
func (a *Aging) Start() error {
	id, err := a.cron.AddFunc(a.spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()
		a.RunOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("bad aging schedule %q: %w", a.spec, err)
	}
	a.entryID = id

	a.cron.Start()
	a.logger.Info("Funnel aging scheduled", "spec", a.spec, "next", a.NextRun())
	return nil
}

// RunOnce ages all funnel items immediately.
func (a *Aging) RunOnce(ctx context.Context) (int64, error) {
	n, err := data.AgeFunnelItems(ctx, a.db)
	if err != nil {
		a.logger.Error("Funnel aging failed", "error", err)
		return 0, err
	}
	a.logger.Info("Funnel items aged", "count", n)
	return n, nil
}

func (a *Aging) NextRun() time.Time {
	return a.cron.Entry(a.entryID).Next
}

// Stop stops the runner and waits for a running job to finish.
func (a *Aging) Stop() {
	<-a.cron.Stop().Done()
}
