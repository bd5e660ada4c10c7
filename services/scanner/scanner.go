// Package scanner runs the periodic opportunity scan. Multiple instances may
// run for availability; Redis leader election guarantees only one actually
// scans, so contacts are not evaluated twice per window.
package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"

	"github.com/nowhats-br/chatvendas-followup/internal/engine"
)

const (
	leaderKey     = "followup:scanner:leader"
	leaderTTL     = 30 * time.Second
	checkInterval = 15 * time.Second
)

// Scanner triggers opportunity scans on a cron schedule with Redis leader
// election.
type Scanner struct {
	engine     *engine.Engine
	redis      *redis.Client
	schedule   cron.Schedule
	instanceID string
	logger     *slog.Logger

	nextRun time.Time
}

// NewScanner creates a Scanner. cronExpr is a standard 5-field cron
// expression, e.g. "0 9 * * *" for a daily 09:00 scan.
func NewScanner(
	eng *engine.Engine,
	redisClient *redis.Client,
	cronExpr string,
	instanceID string,
	logger *slog.Logger,
) (*Scanner, error) {
	schedule, err := cron.ParseStandard(cronExpr)
	if err != nil {
		return nil, err
	}
	return &Scanner{
		engine:     eng,
		redis:      redisClient,
		schedule:   schedule,
		instanceID: instanceID,
		logger:     logger,
		nextRun:    schedule.Next(time.Now().UTC()),
	}, nil
}

// Run is the main polling loop: tries to become leader, then scans when the
// schedule says so. Blocks until ctx is cancelled.
func (s *Scanner) Run(ctx context.Context) {
	ticker := time.NewTicker(checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scanner) tick(ctx context.Context) {
	if !s.acquireOrRenewLeadership(ctx) {
		return
	}
	now := time.Now().UTC()
	if now.Before(s.nextRun) {
		return
	}
	s.nextRun = s.schedule.Next(now)

	report, err := s.engine.ScanForOpportunities(ctx)
	if err != nil {
		s.logger.Error("opportunity scan failed", slog.String("error", err.Error()))
		return
	}
	s.logger.Info("scan run complete",
		slog.Int("contacts", report.Contacts),
		slog.Int("created", report.Created),
		slog.Time("next_run", s.nextRun))
}

// acquireOrRenewLeadership attempts SETNX; returns true if this instance is the leader.
func (s *Scanner) acquireOrRenewLeadership(ctx context.Context) bool {
	ok, err := s.redis.SetNX(ctx, leaderKey, s.instanceID, leaderTTL).Result()
	if err != nil {
		s.logger.Error("leader election SetNX", slog.String("error", err.Error()))
		return false
	}
	if ok {
		s.logger.Info("acquired scanner leadership", slog.String("instance_id", s.instanceID))
		return true
	}

	// Already set — renew only if we own it (atomic Lua script avoids races).
	renewScript := redis.NewScript(`
		if redis.call("get", KEYS[1]) == ARGV[1] then
			return redis.call("pexpire", KEYS[1], ARGV[2])
		end
		return 0
	`)
	result, err := renewScript.Run(
		ctx, s.redis,
		[]string{leaderKey},
		s.instanceID,
		leaderTTL.Milliseconds(),
	).Int()
	if err != nil && !errors.Is(err, redis.Nil) {
		s.logger.Error("leader renewal", slog.String("error", err.Error()))
		return false
	}
	return result == 1
}
