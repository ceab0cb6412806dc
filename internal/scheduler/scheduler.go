package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"queue-kiosk/internal/logger"
)

const defaultResetTime = "00:00"

// ResetService is the core's contract toward the scheduler.
type ResetService interface {
	ResetAll(ctx context.Context) error
}

// SettingsReader supplies the configured daily reset time ("HH:MM", 24-hour).
type SettingsReader interface {
	GetResetTime(ctx context.Context) (string, error)
}

// Status is the scheduler state reported to the admin panel.
type Status struct {
	Running   bool       `json:"running"`
	ResetTime string     `json:"reset_time"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// Scheduler fires the daily reset at the configured time of day. It is a
// plain injectable service: construct one at process start, hand it the reset
// service and settings reader, and Start it. The reset time setting is
// re-read every CheckInterval and the schedule adjusted when it changed.
type Scheduler struct {
	Service       ResetService
	Settings      SettingsReader
	Logger        *logger.Logger
	CheckInterval time.Duration

	// Now is the clock hook; tests pin it.
	Now func() time.Time

	mu        sync.Mutex
	running   bool
	resetTime string
	nextRun   time.Time
	lastRun   time.Time
	lastErr   error
	reload    chan struct{}
	cancel    context.CancelFunc
}

func New(svc ResetService, settings SettingsReader, log *logger.Logger, checkInterval time.Duration) *Scheduler {
	if checkInterval <= 0 {
		checkInterval = 5 * time.Minute
	}
	return &Scheduler{
		Service:       svc,
		Settings:      settings,
		Logger:        log,
		CheckInterval: checkInterval,
		Now:           time.Now,
		reload:        make(chan struct{}, 1),
	}
}

// NextFireTime computes the next occurrence of "HH:MM" strictly after now,
// in now's location.
func NextFireTime(now time.Time, resetTime string) (time.Time, error) {
	var hh, mm int
	if _, err := fmt.Sscanf(resetTime, "%d:%d", &hh, &mm); err != nil {
		return time.Time{}, fmt.Errorf("invalid reset time %q: %w", resetTime, err)
	}
	if hh < 0 || hh > 23 || mm < 0 || mm > 59 {
		return time.Time{}, fmt.Errorf("invalid reset time %q", resetTime)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hh, mm, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next, nil
}

// Start begins the scheduling loop. Calling Start on a running scheduler is
// a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true
	s.mu.Unlock()

	s.reschedule(ctx)
	go s.loop(ctx)

	if s.Logger != nil {
		s.Logger.LogScheduler("START", fmt.Sprintf("daily reset scheduled for %s", s.currentResetTime()))
	}
}

// Stop halts the scheduling loop.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
	if s.Logger != nil {
		s.Logger.LogScheduler("STOP", "daily reset scheduler stopped")
	}
}

// Restart re-reads the reset time and reschedules. Invoked by the admin API
// when ticket_reset_time changes.
func (s *Scheduler) Restart() {
	select {
	case s.reload <- struct{}{}:
	default:
	}
}

// TriggerNow performs a reset immediately, outside the schedule. The next
// scheduled fire is unaffected.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if s.Logger != nil {
		s.Logger.LogScheduler("MANUAL", "manual reset triggered")
	}
	return s.performReset(ctx)
}

// Status reports the current schedule state.
func (s *Scheduler) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Running:   s.running,
		ResetTime: s.resetTime,
	}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		st.NextRun = &next
	}
	if !s.lastRun.IsZero() {
		last := s.lastRun
		st.LastRun = &last
	}
	if s.lastErr != nil {
		st.LastError = s.lastErr.Error()
	}
	return st
}

func (s *Scheduler) loop(ctx context.Context) {
	check := time.NewTicker(s.CheckInterval)
	defer check.Stop()

	for {
		s.mu.Lock()
		next := s.nextRun
		s.mu.Unlock()

		timer := time.NewTimer(next.Sub(s.Now()))

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			// Fire at most once per scheduled time, then move to tomorrow.
			if err := s.performReset(ctx); err != nil && s.Logger != nil {
				s.Logger.Error("SCHEDULER", fmt.Sprintf("daily reset failed: %v", err))
			}
			s.reschedule(ctx)
		case <-check.C:
			timer.Stop()
			s.checkForChange(ctx)
		case <-s.reload:
			timer.Stop()
			s.checkForChange(ctx)
		}
	}
}

// performReset delegates to the reset service. Failures are recorded and
// reported to the invoker only; they never take down the serving process.
func (s *Scheduler) performReset(ctx context.Context) error {
	err := s.Service.ResetAll(ctx)

	s.mu.Lock()
	s.lastRun = s.Now()
	s.lastErr = err
	s.mu.Unlock()

	if err == nil && s.Logger != nil {
		s.Logger.LogScheduler("RESET", "daily reset completed")
	}
	return err
}

// reschedule reads the configured time and computes the next fire.
func (s *Scheduler) reschedule(ctx context.Context) {
	resetTime := s.readResetTime(ctx)
	next, err := NextFireTime(s.Now(), resetTime)
	if err != nil {
		// Fall back to midnight rather than not firing at all.
		resetTime = defaultResetTime
		next, _ = NextFireTime(s.Now(), resetTime)
		if s.Logger != nil {
			s.Logger.Warn("SCHEDULER", fmt.Sprintf("falling back to %s: %v", defaultResetTime, err))
		}
	}

	s.mu.Lock()
	s.resetTime = resetTime
	s.nextRun = next
	s.mu.Unlock()
}

// checkForChange re-reads the setting and reschedules if it changed.
func (s *Scheduler) checkForChange(ctx context.Context) {
	current := s.readResetTime(ctx)
	if current == s.currentResetTime() {
		return
	}
	if s.Logger != nil {
		s.Logger.LogScheduler("RELOAD", fmt.Sprintf("reset time changed to %s, rescheduling", current))
	}
	s.reschedule(ctx)
}

func (s *Scheduler) readResetTime(ctx context.Context) string {
	value, err := s.Settings.GetResetTime(ctx)
	if err != nil || value == "" {
		if s.Logger != nil {
			s.Logger.Warn("SCHEDULER", fmt.Sprintf("could not read reset time, using %s: %v", defaultResetTime, err))
		}
		return defaultResetTime
	}
	return value
}

func (s *Scheduler) currentResetTime() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.resetTime
}
