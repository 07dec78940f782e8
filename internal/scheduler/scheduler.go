package scheduler

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
)

// Job runs a function periodically on its own scheduler until stopped.
type Job struct {
	name      string
	scheduler *gocron.Scheduler
	stopOnce  sync.Once
}

// Start schedules fn to run every interval. The first run happens one
// interval after Start; runs never overlap.
func Start(name string, interval time.Duration, fn func()) (*Job, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("scheduler: invalid interval %s for %s", interval, name)
	}

	s := gocron.NewScheduler(time.UTC)
	_, err := s.Every(interval).WaitForSchedule().SingletonMode().Do(fn)
	if err != nil {
		return nil, fmt.Errorf("scheduler: schedule %s: %w", name, err)
	}

	s.StartAsync()
	log.Printf("DEBUG: scheduler: %s running every %s", name, interval)
	return &Job{name: name, scheduler: s}, nil
}

// Stop stops the scheduler and cancels any future runs. It is safe to call
// more than once.
func (j *Job) Stop() {
	j.stopOnce.Do(func() {
		j.scheduler.Stop()
		log.Printf("DEBUG: scheduler: %s stopped", j.name)
	})
}
