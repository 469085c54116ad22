package incidents

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"
)

// ScheduleResync triggers d on the standard cron expression schedule. An empty schedule
// returns a nil scheduler. The caller starts and stops the returned cron.
func ScheduleResync(schedule string, d *Dispatcher) (*cron.Cron, error) {
	if schedule == "" {
		return nil, nil
	}
	c := cron.New()
	if _, err := c.AddFunc(schedule, func() {
		slog.Debug("scheduled topic resync")
		d.Trigger()
	}); err != nil {
		return nil, fmt.Errorf("schedule topic resync %q: %w", schedule, err)
	}
	return c, nil
}
