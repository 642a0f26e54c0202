package scheduler

import "errors"

var (
	// ErrJobExists is returned when registering an id that is already taken
	ErrJobExists = errors.New("job already registered")

	// ErrJobRunning is returned when a manual trigger hits a job that is still running
	ErrJobRunning = errors.New("job is already running")

	// ErrJobTimeout is recorded when a job exceeds its deadline
	ErrJobTimeout = errors.New("job timed out")

	// ErrInvalidSchedule is returned for cron expressions that do not parse
	ErrInvalidSchedule = errors.New("invalid cron expression")
)
