/*
scheduler.go - Background reconciliation sweep

PURPOSE:
  Runs the ledger-vs-chain reconciliation on a cron schedule so divergence
  is noticed without waiting for someone to hit the revenue endpoint. The
  sweep only logs; the authoritative report stays request-driven.
*/
package api

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/prism/market-ledger/reconcile"
)

// DefaultSweepSchedule runs the sweep at the top of every hour.
const DefaultSweepSchedule = "0 * * * *"

// Scheduler periodically reconciles revenue in the background.
type Scheduler struct {
	cron *cron.Cron
	log  zerolog.Logger
}

// NewScheduler builds a scheduler running the given service on the cron
// expression. Call Start to begin and Stop to drain.
func NewScheduler(svc *reconcile.Service, schedule string, log zerolog.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron: cron.New(),
		log:  log.With().Str("component", "scheduler").Logger(),
	}

	_, err := s.cron.AddFunc(schedule, func() {
		report, err := svc.Revenue(context.Background())
		if err != nil {
			s.log.Error().Err(err).Msg("scheduled reconciliation failed")
			return
		}
		evt := s.log.Info()
		if report.Divergent {
			evt = s.log.Warn()
		}
		evt.
			Str("reported", report.Reported.String()).
			Str("ledger_revenue", report.LedgerRevenue.String()).
			Bool("chain_available", report.ChainAvailable).
			Bool("divergent", report.Divergent).
			Msg("scheduled reconciliation complete")
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Scheduler) Start() { s.cron.Start() }

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
