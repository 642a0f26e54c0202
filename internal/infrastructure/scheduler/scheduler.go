// Package scheduler runs named recurring jobs on cron triggers with at most
// one concurrent execution per job.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"archie-core-shopify-ingestion/internal/domain"
	"archie-core-shopify-ingestion/internal/ports"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// JobFunc is the body of a scheduled job. A body that ignores ctx is
// abandoned when its deadline passes.
type JobFunc = ports.JobFunc

// JobSpec describes a job to register
type JobSpec = ports.JobSpec

// Config holds scheduler configuration
type Config struct {
	// Cooldown is how long a finished job stays completed/failed before returning to idle
	Cooldown time.Duration
	// DefaultTimeout applies to jobs registered without one
	DefaultTimeout time.Duration
	Location       *time.Location
}

// DefaultConfig returns a 30s cooldown and 30m timeout in UTC
func DefaultConfig() Config {
	return Config{
		Cooldown:       30 * time.Second,
		DefaultTimeout: 30 * time.Minute,
		Location:       time.UTC,
	}
}

// job is the registry's record of one job. It is stored by value and only
// ever modified under the scheduler lock.
type job struct {
	id         string
	name       string
	expr       string
	tenantID   string
	timeout    time.Duration
	run        JobFunc
	schedule   cron.Schedule
	entryID    cron.EntryID
	enabled    bool
	state      domain.JobState
	lastRun    *time.Time
	nextRun    *time.Time
	lastError  string
	runCount   int
	generation uint64
	cancel     context.CancelFunc
}

func (j job) info() domain.JobInfo {
	return domain.JobInfo{
		ID:        j.id,
		Name:      j.name,
		Cron:      j.expr,
		TenantID:  j.tenantID,
		State:     j.state,
		Enabled:   j.enabled,
		LastRun:   j.lastRun,
		NextRun:   j.nextRun,
		LastError: j.lastError,
		RunCount:  j.runCount,
	}
}

// Scheduler owns the job registry and the cron engine
type Scheduler struct {
	mu      sync.Mutex
	jobs    map[string]job
	cron    *cron.Cron
	parser  cron.Parser
	cfg     Config
	metrics ports.Metrics
	logger  zerolog.Logger
	running bool
	now     func() time.Time

	runCtx     context.Context
	cancelRuns context.CancelFunc
	wg         sync.WaitGroup
}

var _ ports.Scheduler = (*Scheduler)(nil)

// New creates a scheduler. Jobs can be registered before or after Start.
func New(cfg Config, metrics ports.Metrics, logger zerolog.Logger) *Scheduler {
	def := DefaultConfig()
	if cfg.Cooldown < 0 {
		cfg.Cooldown = 0
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = def.DefaultTimeout
	}
	if cfg.Location == nil {
		cfg.Location = def.Location
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	logger = logger.With().Str("component", "scheduler").Logger()

	runCtx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		jobs:       make(map[string]job),
		cron:       cron.New(cron.WithLocation(cfg.Location), cron.WithLogger(cronLogger{logger})),
		parser:     cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor),
		cfg:        cfg,
		metrics:    metrics,
		logger:     logger,
		now:        time.Now,
		runCtx:     runCtx,
		cancelRuns: cancel,
	}
}

// Register adds a job and schedules it unless spec.Disabled is set
func (s *Scheduler) Register(spec JobSpec) error {
	schedule, err := s.parser.Parse(spec.Cron)
	if err != nil {
		return fmt.Errorf("%w %q: %v", ErrInvalidSchedule, spec.Cron, err)
	}
	if spec.Run == nil {
		return fmt.Errorf("job %s has no body", spec.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.jobs[spec.ID]; ok {
		return fmt.Errorf("%w: %s", ErrJobExists, spec.ID)
	}
	j := job{
		id:       spec.ID,
		name:     spec.Name,
		expr:     spec.Cron,
		tenantID: spec.TenantID,
		timeout:  spec.Timeout,
		run:      spec.Run,
		schedule: schedule,
		state:    domain.JobStateIdle,
	}
	if j.name == "" {
		j.name = spec.ID
	}
	if j.timeout <= 0 {
		j.timeout = s.cfg.DefaultTimeout
	}
	if !spec.Disabled {
		j = s.enableLocked(j)
	}
	s.jobs[j.id] = j

	s.logger.Info().
		Str("jobId", j.id).
		Str("cron", j.expr).
		Str("tenantId", j.tenantID).
		Bool("enabled", j.enabled).
		Msg("Job registered")
	return nil
}

func (s *Scheduler) enableLocked(j job) job {
	id := j.id
	j.entryID = s.cron.Schedule(j.schedule, cron.FuncJob(func() { s.fire(id) }))
	j.enabled = true
	next := j.schedule.Next(s.now().In(s.cfg.Location))
	j.nextRun = &next
	return j
}

func (s *Scheduler) disableLocked(j job) job {
	if j.entryID != 0 {
		s.cron.Remove(j.entryID)
	}
	j.entryID = 0
	j.enabled = false
	j.nextRun = nil
	return j
}

// Enable resumes a job's trigger
func (s *Scheduler) Enable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if !j.enabled {
		s.jobs[id] = s.enableLocked(j)
		s.logger.Info().Str("jobId", id).Msg("Job enabled")
	}
	return nil
}

// Disable stops a job's trigger. A run in progress is left to finish.
func (s *Scheduler) Disable(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if j.enabled {
		s.jobs[id] = s.disableLocked(j)
		s.logger.Info().Str("jobId", id).Msg("Job disabled")
	}
	return nil
}

// Remove unregisters a job and cancels a run in progress
func (s *Scheduler) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	s.removeLocked(j)
	return nil
}

func (s *Scheduler) removeLocked(j job) {
	j = s.disableLocked(j)
	if j.cancel != nil {
		j.cancel()
	}
	delete(s.jobs, j.id)
	s.logger.Info().Str("jobId", j.id).Str("tenantId", j.tenantID).Msg("Job removed")
}

// RemoveTenant removes every job owned by a tenant and returns how many were removed
func (s *Scheduler) RemoveTenant(tenantID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if tenantID != "" && j.tenantID == tenantID {
			s.removeLocked(j)
			n++
		}
	}
	return n
}

// JobsByTenant lists a tenant's jobs ordered by id; an empty tenant lists global jobs
func (s *Scheduler) JobsByTenant(tenantID string) []domain.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.JobInfo
	for _, j := range s.jobs {
		if j.tenantID == tenantID {
			out = append(out, j.info())
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Jobs lists every job ordered by id
func (s *Scheduler) Jobs() []domain.JobInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.JobInfo, 0, len(s.jobs))
	for _, j := range s.jobs {
		out = append(out, j.info())
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// Get returns a snapshot of one job
func (s *Scheduler) Get(id string) (domain.JobInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return domain.JobInfo{}, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	return j.info(), nil
}

// Status counts jobs by state and by tenant
func (s *Scheduler) Status() domain.SchedulerStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := domain.SchedulerStatus{
		Running:  s.running,
		Total:    len(s.jobs),
		ByState:  make(map[domain.JobState]int),
		ByTenant: make(map[string]map[domain.JobState]int),
	}
	for _, j := range s.jobs {
		if j.enabled {
			st.Enabled++
		}
		st.ByState[j.state]++
		if j.tenantID == "" {
			continue
		}
		if st.ByTenant[j.tenantID] == nil {
			st.ByTenant[j.tenantID] = make(map[domain.JobState]int)
		}
		st.ByTenant[j.tenantID][j.state]++
	}
	return st
}

// Trigger runs a job now, outside its schedule. It does not wait for the run to finish.
func (s *Scheduler) Trigger(id string) error {
	run, err := s.begin(id, true)
	if err != nil {
		return err
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		run()
	}()
	return nil
}

// Start begins firing cron triggers
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.jobs)).Msg("Scheduler started")
}

// Stop halts triggers and waits for running jobs until ctx expires, then cancels them
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	wasRunning := s.running
	s.running = false
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if wasRunning {
			<-s.cron.Stop().Done()
		}
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
		s.cancelRuns()
		<-done
	}
	s.cancelRuns()
	s.logger.Info().Msg("Scheduler stopped")
	return err
}

// fire is the cron entry point; overlapping triggers are skipped
func (s *Scheduler) fire(id string) {
	run, err := s.begin(id, false)
	if err != nil {
		return
	}
	run()
}

// begin moves a job to running and returns the supervised run
func (s *Scheduler) begin(id string, manual bool) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrJobNotFound, id)
	}
	if !manual && !j.enabled {
		return nil, fmt.Errorf("job %s is disabled", id)
	}
	if j.state == domain.JobStateRunning {
		s.logger.Warn().Str("jobId", id).Msg("Job still running, skipping trigger")
		return nil, fmt.Errorf("%w: %s", ErrJobRunning, id)
	}

	now := s.now()
	j.state = domain.JobStateRunning
	j.generation++
	j.runCount++
	j.lastRun = &now
	if j.enabled {
		next := j.schedule.Next(now.In(s.cfg.Location))
		j.nextRun = &next
	}
	ctx, cancel := context.WithTimeout(s.runCtx, j.timeout)
	j.cancel = cancel
	s.jobs[id] = j

	gen, body, timeout, name := j.generation, j.run, j.timeout, j.name
	return func() {
		defer cancel()
		s.supervise(ctx, id, name, gen, timeout, body)
	}, nil
}

func (s *Scheduler) supervise(ctx context.Context, id, name string, gen uint64, timeout time.Duration, body JobFunc) {
	started := s.now()
	s.logger.Info().Str("jobId", id).Msg("Job started")

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("job panicked: %v", r)
			}
		}()
		done <- body(ctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w after %s", ErrJobTimeout, timeout)
		} else {
			err = ctx.Err()
		}
	}

	state := domain.JobStateCompleted
	if err != nil {
		state = domain.JobStateFailed
		s.logger.Error().Err(err).Str("jobId", id).Dur("elapsed", s.now().Sub(started)).Msg("Job failed")
	} else {
		s.logger.Info().Str("jobId", id).Dur("elapsed", s.now().Sub(started)).Msg("Job completed")
	}
	s.metrics.IncJobRun(name, state)

	if !s.settle(id, gen, state, err) {
		return
	}
	if s.cfg.Cooldown == 0 {
		s.reset(id, gen)
		return
	}
	time.AfterFunc(s.cfg.Cooldown, func() { s.reset(id, gen) })
}

// settle records the outcome of run gen. A run that was superseded or removed changes nothing.
func (s *Scheduler) settle(id string, gen uint64, state domain.JobState, err error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.generation != gen {
		return false
	}
	j.state = state
	j.lastError = ""
	if err != nil {
		j.lastError = err.Error()
	}
	j.cancel = nil
	s.jobs[id] = j
	return true
}

func (s *Scheduler) reset(id string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.generation != gen || j.state == domain.JobStateRunning {
		return
	}
	j.state = domain.JobStateIdle
	s.jobs[id] = j
}

// cronLogger routes robfig/cron's logging into zerolog
type cronLogger struct {
	logger zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug().Fields(keysAndValues).Msg(msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error().Err(err).Fields(keysAndValues).Msg(msg)
}
