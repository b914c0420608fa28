package application

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// RetentionJob borra periódicamente los webhook logs viejos de todos los tenants.
type RetentionJob struct {
	sched *cron.Cron
	logs  *LogService
	spec  string
	days  int
}

func NewRetentionJob(logs *LogService, spec string, days int) *RetentionJob {
	return &RetentionJob{
		sched: cron.New(cron.WithLocation(time.UTC), cron.WithParser(cronParser)),
		logs:  logs,
		spec:  spec,
		days:  days,
	}
}

func (j *RetentionJob) Start() error {
	if _, err := j.sched.AddFunc(j.spec, j.Run); err != nil {
		return err
	}
	j.sched.Start()
	logrus.Infof("[WEBHOOK_LOG] Retention job scheduled (%s, keep %d days)", j.spec, j.days)
	return nil
}

// Stop waits for a running cleanup to finish.
func (j *RetentionJob) Stop() {
	<-j.sched.Stop().Done()
}

func (j *RetentionJob) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	if _, err := j.logs.Cleanup(ctx, "", j.days); err != nil {
		logrus.WithError(err).Error("[WEBHOOK_LOG] Retention cleanup failed")
	}
}
