package core

import (
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

type Job struct {
	Name            string           // name of the job.
	Cron            string           // cron expr.
	CronWithSeconds bool             // whether cron expr contains the second field.
	Run             func(Rail) error // actual job execution logic.
	LogJobExec      bool             // whether job execution should be logged, error msg is always logged.
}

var (
	_scheduler     *gocron.Scheduler = nil
	_schedulerOnce sync.Once
)

func init() {
	RegisterBootstrapCallback(ComponentBootstrap{
		Name:      "Bootstrap Cron Scheduler",
		Condition: func(rail Rail) (bool, error) { return HasScheduledJobs(), nil },
		Bootstrap: SchedulerBootstrap,
		Order:     BootstrapOrderL4 + 1,
	})
}

// Whether any job is scheduled
func HasScheduledJobs() bool {
	return getScheduler().Len() > 0
}

// Get the lazy-initialized, cached scheduler
func getScheduler() *gocron.Scheduler {
	_schedulerOnce.Do(func() {
		_scheduler = gocron.NewScheduler(time.Local)
	})
	return _scheduler
}

func wrapJob(job Job) func() {
	return func() {
		rail := EmptyRail()
		if job.LogJobExec {
			rail.Infof("Running job '%s'", job.Name)
		}

		start := time.Now()
		err := job.Run(rail)
		took := time.Since(start)
		if err != nil {
			rail.Errorf("Job '%s' failed, took: %s, %v", job.Name, took, err)
			return
		}
		if job.LogJobExec {
			rail.Infof("Job '%s' finished, took: %s", job.Name, took)
		}
	}
}

// Add a cron job to scheduler, the scheduler is started when the app bootstraps.
//
// If CronWithSeconds is true, the cron expression includes second, e.g., '*/1 * * * * *'.
func ScheduleCron(job Job) error {
	s := getScheduler()
	var err error
	if job.CronWithSeconds {
		_, err = s.CronWithSeconds(job.Cron).Tag(job.Name).Do(wrapJob(job))
	} else {
		_, err = s.Cron(job.Cron).Tag(job.Name).Do(wrapJob(job))
	}
	if err != nil {
		return fmt.Errorf("failed to schedule cron job, cron: %v, withSeconds: %v, %w", job.Cron, job.CronWithSeconds, err)
	}
	return nil
}

// Stop scheduler
func StopScheduler() {
	getScheduler().Stop()
}

func SchedulerBootstrap(rail Rail) error {
	getScheduler().StartAsync()
	rail.Info("Cron Scheduler started")
	AddShutdownHook(StopScheduler)
	return nil
}
