// Package runtime hosts the background jobs that run alongside the
// interactive turn loop. Today that is the reflection scheduler, which
// periodically folds stale conversation memories into summary facts.
package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/valet-agent/valet/memory"
)

const reflectTimeout = 2 * time.Minute

// ParseSchedule parses a schedule string into a cron schedule.
// Supports:
//   - Cron expressions: "0 */15 * * * *" (6-field) or "*/15 * * * *" (5-field)
//   - Descriptors: "@hourly", "@daily"
//   - Go duration strings: "15m", "2h", "1h30m"
func ParseSchedule(schedule string) (cron.Schedule, error) {
	if schedule == "" {
		return nil, fmt.Errorf("schedule string is empty")
	}

	parser := cron.NewParser(cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(schedule)
	if err == nil {
		return sched, nil
	}

	duration, err := time.ParseDuration(schedule)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schedule as cron expression or duration: %w", err)
	}
	return cron.ConstantDelaySchedule{Delay: duration}, nil
}

// Scheduler runs reflection over every active session on a cron schedule.
type Scheduler struct {
	mem        *memory.Manager
	summarizer memory.Summarizer
	schedule   cron.Schedule
	logger     zerolog.Logger
}

// NewScheduler creates a reflection scheduler. The schedule string accepts
// cron expressions, descriptors like "@hourly", or plain durations.
func NewScheduler(mem *memory.Manager, summarizer memory.Summarizer, schedule string, logger zerolog.Logger) (*Scheduler, error) {
	if mem == nil {
		return nil, fmt.Errorf("memory manager cannot be nil")
	}
	if summarizer == nil {
		return nil, fmt.Errorf("summarizer cannot be nil")
	}
	sched, err := ParseSchedule(schedule)
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		mem:        mem,
		summarizer: summarizer,
		schedule:   sched,
		logger:     logger.With().Str("component", "scheduler").Logger(),
	}, nil
}

// Start blocks until the context is cancelled, running reflection at each
// scheduled tick. Callers run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	s.logger.Info().Msg("Starting reflection scheduler")

	for {
		next := s.schedule.Next(time.Now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info().Msg("Scheduler stopped: context cancelled")
			return
		case <-timer.C:
			s.reflectAll(ctx)
		}
	}
}

// reflectAll runs one reflection pass over every active session.
func (s *Scheduler) reflectAll(ctx context.Context) {
	sessions := s.mem.Sessions()
	if len(sessions) == 0 {
		return
	}
	s.logger.Info().Int("numSessions", len(sessions)).Msg("Running reflection pass")

	for _, sessionID := range sessions {
		s.reflectSession(ctx, sessionID)
	}
}

func (s *Scheduler) reflectSession(ctx context.Context, sessionID string) {
	runCtx, cancel := context.WithTimeout(ctx, reflectTimeout)
	defer cancel()

	fact, folded, err := s.mem.Reflect(runCtx, sessionID, s.summarizer)
	if err != nil {
		s.logger.Error().Err(err).Str("sessionID", sessionID).Msg("Reflection failed")
		return
	}
	if !folded {
		s.logger.Debug().Str("sessionID", sessionID).Msg("Nothing to reflect on")
		return
	}
	s.logger.Info().
		Str("sessionID", sessionID).
		Int64("factID", fact.ID).
		Msg("Folded conversation memories into a fact")
}
