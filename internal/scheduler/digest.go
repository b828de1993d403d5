package scheduler

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ttone18/gpu-inspector/internal/alertengine"
)

// runDigestLoop fires BuildDailySummary once per day at cfg.DigestTime in
// cfg.DigestTimezone, grounded in the original's
// schedule.every().day.at("09:00").do(run_p3_summary_job).
func (s *Scheduler) runDigestLoop(ctx context.Context) error {
	loc, err := resolveLocation(s.cfg.DigestTimezone)
	if err != nil {
		log.Warn().Err(err).Str("timezone", s.cfg.DigestTimezone).Msg("invalid digest timezone, falling back to UTC")
		loc = time.UTC
	}
	hour, minute, err := parseClock(s.cfg.DigestTime)
	if err != nil {
		log.Warn().Err(err).Str("digest_time", s.cfg.DigestTime).Msg("invalid digest time, defaulting to 09:00")
		hour, minute = 9, 0
	}

	for {
		next := nextFireTime(time.Now().In(loc), hour, minute)
		wait := time.Until(next)
		log.Info().Time("next_digest", next).Msg("daily digest scheduled")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
			s.runDigestOnce(ctx)
		}
	}
}

func (s *Scheduler) runDigestOnce(ctx context.Context) {
	log.Info().Msg("building daily P3 digest")
	summary, err := alertengine.BuildDailySummary(ctx, s.store, s.metadata)
	if err != nil {
		log.Error().Err(err).Msg("failed to build daily digest")
		return
	}
	if s.fanout.Chat == nil {
		log.Warn().Msg("no chat sink configured, dropping daily digest")
		return
	}
	if err := s.fanout.Chat.SendDigest(ctx, summary); err != nil {
		log.Error().Err(err).Msg("failed to deliver daily digest")
	}
}

func resolveLocation(name string) (*time.Location, error) {
	if strings.TrimSpace(name) == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(name)
}

func parseClock(hhmm string) (hour, minute int, err error) {
	parts := strings.Split(hhmm, ":")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("scheduler: invalid HH:MM clock %q", hhmm)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("scheduler: invalid hour in %q", hhmm)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduler: invalid minute in %q", hhmm)
	}
	return hour, minute, nil
}

func nextFireTime(now time.Time, hour, minute int) time.Time {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
