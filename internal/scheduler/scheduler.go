package scheduler

import (
	"context"
	"fmt"
	"time"

	"email-analyzer-backend/pkg/logger"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// PipelineScheduler runs the ingestion pipeline on a cron schedule.
// A run that is still going when the next one is due makes the next one a no-op.
type PipelineScheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	entryID  cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
}

// New parses a standard five-field cron spec evaluated in timezone.
func New(spec, timezone string, job func(ctx context.Context)) (*PipelineScheduler, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", timezone, err)
	}
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("invalid cron schedule %q: %w", spec, err)
	}

	cronLog := cronLogger{entry: logger.For("scheduler")}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s := &PipelineScheduler{cron: c, schedule: schedule, ctx: ctx, cancel: cancel}
	s.entryID = c.Schedule(schedule, cron.FuncJob(func() {
		started := time.Now()
		logger.For("scheduler").Info("scheduled pipeline run starting")
		job(s.ctx)
		logger.For("scheduler").WithField("duration", time.Since(started).String()).Info("scheduled pipeline run done")
	}))
	return s, nil
}

func (s *PipelineScheduler) Start() {
	s.cron.Start()
	logger.For("scheduler").WithField("next", s.Next(time.Now())).Info("scheduler started")
}

// Stop cancels a running job and waits for it to return.
func (s *PipelineScheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	logger.For("scheduler").Info("scheduler stopped")
}

// Next is the first scheduled run after from.
func (s *PipelineScheduler) Next(from time.Time) time.Time {
	return s.schedule.Next(from.In(s.cron.Location()))
}

// RunNow runs the job on the calling goroutine through the same chain as scheduled runs,
// so it is skipped if a run is already in progress.
func (s *PipelineScheduler) RunNow() {
	s.cron.Entry(s.entryID).WrappedJob.Run()
}

// cronLogger adapts logrus to cron.Logger.
type cronLogger struct {
	entry *logrus.Entry
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.entry.WithFields(fields(keysAndValues)).Debug(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.entry.WithError(err).WithFields(fields(keysAndValues)).Error(msg)
}

func fields(keysAndValues []interface{}) logrus.Fields {
	f := logrus.Fields{}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		f[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return f
}
