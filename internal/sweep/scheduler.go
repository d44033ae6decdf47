package sweep

import (
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Scheduler runs the sweep on a cron schedule
type Scheduler struct {
	expr     string
	parser   cron.Parser
	tick     time.Duration
	lastRun  time.Time
	running  bool
	mu       sync.RWMutex
	stopChan chan struct{}
}

// NewScheduler creates a scheduler for the given cron expression
func NewScheduler(expr string) (*Scheduler, error) {
	if _, err := ParseCron(expr); err != nil {
		return nil, err
	}
	return &Scheduler{
		expr:     expr,
		parser:   cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		tick:     time.Minute,
		stopChan: make(chan struct{}),
	}, nil
}

// ParseCron parses a cron expression
func ParseCron(expr string) (cron.Schedule, error) {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return parser.Parse(expr)
}

// NextRun returns the next scheduled sweep time
func (s *Scheduler) NextRun() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, err := s.parser.Parse(s.expr)
	if err != nil {
		return time.Time{}
	}
	return sched.Next(time.Now())
}

// ShouldRun returns true if a sweep is due now
func (s *Scheduler) ShouldRun() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.running {
		return false
	}

	sched, err := s.parser.Parse(s.expr)
	if err != nil {
		return false
	}

	lastRun := s.lastRun
	if lastRun.IsZero() {
		lastRun = time.Now().Add(-24 * time.Hour)
	}

	return time.Now().After(sched.Next(lastRun))
}

func (s *Scheduler) markRunning() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = true
}

func (s *Scheduler) markComplete() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.lastRun = time.Now()
}

// Start begins the scheduler loop. Blocks until Stop is called.
func (s *Scheduler) Start(runFunc func() error) {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			if !s.ShouldRun() {
				continue
			}
			s.markRunning()
			go func() {
				if err := runFunc(); err != nil {
					log.Printf("sweep failed: %v", err)
				}
				s.markComplete()
			}()
		}
	}
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	close(s.stopChan)
}
