package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	log "github.com/sirupsen/logrus"
)

// RollupRunner is the daily batch entry point.
type RollupRunner interface {
	RunDaily(ctx context.Context, now time.Time) error
}

// Scheduler triggers the daily rollup on a cron spec. The runner computes
// "yesterday" from the wall clock it is handed.
type Scheduler struct {
	cron *cron.Cron
}

func New(spec string, runner RollupRunner) (*Scheduler, error) {
	c := cron.New(cron.WithLocation(time.UTC))
	_, err := c.AddFunc(spec, func() {
		start := time.Now().UTC()
		log.WithField("time", start).Info("Scheduled rollup starting")
		if err := runner.RunDaily(context.Background(), start); err != nil {
			log.WithError(err).Error("Scheduled rollup failed")
			return
		}
		log.WithField("duration", time.Since(start)).Info("Scheduled rollup completed")
	})
	if err != nil {
		return nil, err
	}
	return &Scheduler{cron: c}, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts scheduling and waits for a running job to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
