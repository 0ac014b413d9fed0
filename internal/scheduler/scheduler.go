// Package scheduler runs periodic housekeeping: expired invitation codes and
// ended sessions are removed from the database.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/identity/internal/clock"
	codedomain "github.com/smallbiznis/identity/internal/codestore/domain"
	obsmetrics "github.com/smallbiznis/identity/internal/observability/metrics"
	sessiondomain "github.com/smallbiznis/identity/internal/session/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var ErrInvalidConfig = errors.New("invalid_scheduler_config")

type Params struct {
	fx.In

	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Codes    codedomain.Service
	Sessions sessiondomain.Service
	Metrics  *obsmetrics.Metrics `optional:"true"`
	Config   Config              `optional:"true"`
}

type Scheduler struct {
	log      *zap.Logger
	cfg      Config
	genID    *snowflake.Node
	clock    clock.Clock
	codes    codedomain.Service
	sessions sessiondomain.Service
	metrics  *obsmetrics.Metrics
}

func New(p Params) (*Scheduler, error) {
	if p.Log == nil || p.GenID == nil || p.Clock == nil || p.Codes == nil || p.Sessions == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		log:      p.Log.Named("scheduler"),
		cfg:      p.Config.withDefaults(),
		genID:    p.GenID,
		clock:    p.Clock,
		codes:    p.Codes,
		sessions: p.Sessions,
		metrics:  p.Metrics,
	}, nil
}

func (s *Scheduler) runJob(parent context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	start := s.clock.Now()
	ctx, cancel := context.WithTimeout(parent, timeout)
	defer cancel()

	ctx, run, owner := s.ensureJobRun(ctx, name)
	if owner {
		s.logJobStart(ctx, run)
	}

	err := fn(ctx)
	elapsed := s.clock.Now().Sub(start)
	if owner {
		if err != nil && run.errorCount == 0 {
			run.IncError()
		}
		s.logJobFinish(ctx, run)
	}
	if err == nil {
		s.metrics.RecordJobRun(name, obsmetrics.JobOutcomeOK, elapsed)
		return nil
	}

	// deadline is a soft timeout; the next tick resumes the work
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.metrics.RecordJobRun(name, obsmetrics.JobOutcomeTimeout, elapsed)
		s.logger(ctx).Warn("job timed out",
			zap.String("job", name),
			zap.Duration("timeout", timeout),
			zap.Error(err),
		)
		return nil
	}

	s.metrics.RecordJobRun(name, obsmetrics.JobOutcomeError, elapsed)
	return fmt.Errorf("%s: %w", name, err)
}

func (s *Scheduler) RunOnce(parent context.Context) error {
	var err error

	jobs := []struct {
		Name string
		Run  func(context.Context) error
	}{
		{JobPurgeCodes, s.PurgeCodesJob},
		{JobPurgeSessions, s.PurgeSessionsJob},
	}

	for _, job := range jobs {
		if s.isJobEnabled(job.Name) {
			err = errors.Join(err, s.runJob(parent, job.Name, s.cfg.JobTimeout, job.Run))
		}
	}
	return err
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) isJobEnabled(jobName string) bool {
	// every job runs when none are named
	if len(s.cfg.EnabledJobs) == 0 {
		return true
	}
	for _, enabled := range s.cfg.EnabledJobs {
		if strings.EqualFold(enabled, jobName) {
			return true
		}
	}
	return false
}

// PurgeCodesJob removes codes that expired without being redeemed.
func (s *Scheduler) PurgeCodesJob(ctx context.Context) error {
	purged, err := s.codes.ExpireCodes(ctx)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(purged)
	s.metrics.RecordPurged(JobPurgeCodes, purged)
	return nil
}

// PurgeSessionsJob removes sessions that ended longer than the retention ago.
func (s *Scheduler) PurgeSessionsJob(ctx context.Context) error {
	purged, err := s.sessions.Purge(ctx, s.cfg.SessionRetention)
	if err != nil {
		return err
	}
	jobRunFromContext(ctx).AddProcessed(purged)
	s.metrics.RecordPurged(JobPurgeSessions, purged)
	return nil
}
