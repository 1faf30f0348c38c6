// Package workers runs periodic background jobs.
package workers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Dosada05/trust-tournament/models"
	"github.com/Dosada05/trust-tournament/services"
	"github.com/go-co-op/gocron/v2"
)

const (
	sweepBatch       = 100
	housekeepingTick = 5 * time.Minute
)

// Sweeper restarts auto-play for in-progress tournaments whose bot-only
// rounds were interrupted (crash, persistence error, lost notification).
type Sweeper struct {
	tournaments  services.TournamentService
	matches      services.MatchService
	interval     time.Duration
	housekeeping func()
	logger       *slog.Logger

	scheduler gocron.Scheduler
}

type SweeperConfig struct {
	Interval time.Duration
	// Housekeeping is run every few minutes alongside the sweep (rate limiter cleanup).
	Housekeeping func()
}

func NewSweeper(tournaments services.TournamentService, matches services.MatchService, cfg SweeperConfig, logger *slog.Logger) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{
		tournaments:  tournaments,
		matches:      matches,
		interval:     cfg.Interval,
		housekeeping: cfg.Housekeeping,
		logger:       logger.With(slog.String("component", "sweeper")),
	}
}

// Start schedules the jobs. ctx bounds every sweep; Stop shuts the scheduler down.
func (s *Sweeper) Start(ctx context.Context) error {
	sched, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DurationJob(s.interval),
		gocron.NewTask(func() {
			if _, err := s.SweepOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Error("sweep failed", slog.Any("error", err))
			}
		}),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
		gocron.WithName("tournament-sweep"),
	)
	if err != nil {
		_ = sched.Shutdown()
		return fmt.Errorf("failed to schedule sweep: %w", err)
	}

	if s.housekeeping != nil {
		_, err = sched.NewJob(
			gocron.DurationJob(housekeepingTick),
			gocron.NewTask(s.housekeeping),
			gocron.WithName("housekeeping"),
		)
		if err != nil {
			_ = sched.Shutdown()
			return fmt.Errorf("failed to schedule housekeeping: %w", err)
		}
	}

	sched.Start()
	s.scheduler = sched
	s.logger.Info("sweeper started", slog.Duration("interval", s.interval))
	return nil
}

func (s *Sweeper) Stop() error {
	if s.scheduler == nil {
		return nil
	}
	return s.scheduler.Shutdown()
}

// SweepOnce processes every in-progress tournament once and returns how many
// advanced. A failing tournament is logged and skipped.
func (s *Sweeper) SweepOnce(ctx context.Context) (int, error) {
	tournaments, err := s.tournaments.ListInProgress(ctx, sweepBatch)
	if err != nil {
		return 0, fmt.Errorf("failed to list in-progress tournaments: %w", err)
	}

	advanced := 0
	for _, t := range tournaments {
		if err := ctx.Err(); err != nil {
			return advanced, err
		}
		moved, err := s.sweep(ctx, t)
		if err != nil {
			s.logger.Warn("sweep of tournament failed",
				slog.String("tournament_id", t.ID), slog.Any("error", err))
			continue
		}
		if moved {
			advanced++
		}
	}
	return advanced, nil
}

func (s *Sweeper) sweep(ctx context.Context, t *models.Tournament) (bool, error) {
	before := t.Version

	after, err := s.tournaments.AutoPlayBotOnlyRounds(ctx, t.ID, t.CurrentRoundNumber)
	if err != nil {
		return false, err
	}

	resolved := 0
	if after.Status == models.TournamentStatusInProgress {
		// раунд мог остаться без матчей, если процесс упал между созданием и материализацией
		after, err = s.tournaments.MaterializeRoundMatches(ctx, t.ID, after.CurrentRoundNumber)
		if err != nil {
			return false, err
		}
		resolved, err = s.matches.ResolveBotMatches(ctx, t.ID, after.CurrentRoundNumber)
		if err != nil {
			return false, err
		}
	}

	moved := after.Version != before || resolved > 0
	if moved {
		s.logger.Info("tournament swept",
			slog.String("tournament_id", t.ID),
			slog.Int("current_round", after.CurrentRoundNumber),
			slog.Int("bot_matches_resolved", resolved))
	}
	return moved, nil
}
