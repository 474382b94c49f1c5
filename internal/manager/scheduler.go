package manager

import (
	"github.com/robfig/cron/v3"
)

// Scheduler drives periodic Manager.Rescan calls from a cron
// expression, grounded in the teacher's direct dependency on
// robfig/cron/v3. It only ever calls Rescan — never Unload — so it
// cannot yank a library out from under an in-flight execution.
type Scheduler struct {
	cron *cron.Cron
	mgr  *Manager
}

// StartScheduledRescan parses expr (standard five-field cron syntax)
// and starts a background scheduler that calls m.Rescan on each tick.
// An empty expr disables scheduling and returns a nil Scheduler.
func (m *Manager) StartScheduledRescan(expr string) (*Scheduler, error) {
	if expr == "" {
		return nil, nil
	}

	c := cron.New()
	_, err := c.AddFunc(expr, func() {
		if _, err := m.Rescan(); err != nil {
			m.log.Warn("scheduled rescan failed", "error", err)
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return &Scheduler{cron: c, mgr: m}, nil
}

// Stop halts the scheduler, waiting for any in-progress rescan to finish.
func (s *Scheduler) Stop() {
	if s == nil {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
}
