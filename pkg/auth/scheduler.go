package auth

import (
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler runs job every interval until cancel is called. cancel must not
// wait for a running job to finish.
type Scheduler interface {
	Every(interval time.Duration, job func()) (cancel func())
}

// CronScheduler is the default Scheduler. Jobs never overlap themselves and
// a panicking job is logged and recovered.
type CronScheduler struct {
	logger zerolog.Logger

	once sync.Once
	cron *cron.Cron
}

func NewCronScheduler(logger zerolog.Logger) *CronScheduler {
	l := cronLogger{logger.With().Str("component", "refresh-scheduler").Logger()}
	return &CronScheduler{
		logger: l.z,
		cron: cron.New(
			cron.WithLogger(l),
			cron.WithChain(cron.Recover(l), cron.SkipIfStillRunning(l)),
		),
	}
}

func (s *CronScheduler) Every(interval time.Duration, job func()) func() {
	s.once.Do(s.cron.Start)
	id := s.cron.Schedule(cron.Every(interval), cron.FuncJob(job))
	s.logger.Debug().Dur("interval", interval).Int("entry", int(id)).Msg("scheduled refresh job")
	var stop sync.Once
	return func() {
		stop.Do(func() {
			s.cron.Remove(id)
			s.logger.Debug().Int("entry", int(id)).Msg("cancelled refresh job")
		})
	}
}

// Stop halts the scheduler and waits for running jobs.
func (s *CronScheduler) Stop() {
	<-s.cron.Stop().Done()
}

type cronLogger struct{ z zerolog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.z.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.z.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
