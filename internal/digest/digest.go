// Package digest sends each user a once-daily nudge: how many cards are
// waiting and whether their streak is about to lapse.
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/lumenlearn/backend/internal/store"
	"github.com/lumenlearn/backend/internal/streak"
	"github.com/lumenlearn/backend/internal/timezone"
	"github.com/lumenlearn/backend/internal/worker"
)

// Summary is one user's daily digest.
type Summary struct {
	UserID         string
	DueCards       int
	CurrentStreak  int
	AtRisk         bool
	HoursRemaining float64
}

// Worth reports whether the summary contains anything worth nudging the
// user about.
func (s Summary) Worth() bool {
	return s.DueCards > 0 || s.AtRisk
}

// Notifier delivers a summary to the user over some channel.
type Notifier interface {
	Notify(ctx context.Context, s Summary) error
}

// LogNotifier writes digests to the log. It stands in until a push or email
// channel is wired up.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) Notify(_ context.Context, s Summary) error {
	n.Logger.Info("daily digest",
		"user_id", s.UserID,
		"due_cards", s.DueCards,
		"current_streak", s.CurrentStreak,
		"at_risk", s.AtRisk,
	)
	return nil
}

// BuildSummary projects one user's state into a digest.
func BuildSummary(userID string, rec streak.Record, dueCards int, loc *time.Location, now time.Time) Summary {
	status := streak.GetStatus(rec, loc, now)
	return Summary{
		UserID:         userID,
		DueCards:       dueCards,
		CurrentStreak:  status.CurrentStreak,
		AtRisk:         status.AtRisk,
		HoursRemaining: status.HoursRemaining,
	}
}

const (
	defaultWorkers = 4
	runTimeout     = 2 * time.Minute
)

// Digest owns the daily schedule and the fan-out over users.
type Digest struct {
	store     store.Store
	notifier  Notifier
	scheduler *gocron.Scheduler
	logger    *slog.Logger
	loc       *time.Location
}

// New creates a Digest. loc is the timezone the daily trigger fires in and
// the fallback for projecting streak status.
func New(s store.Store, n Notifier, logger *slog.Logger, loc *time.Location) *Digest {
	if logger == nil {
		logger = slog.Default()
	}
	return &Digest{
		store:     s,
		notifier:  n,
		scheduler: gocron.NewScheduler(loc),
		logger:    logger,
		loc:       loc,
	}
}

// Start schedules the daily run at the given local hour and returns
// immediately.
func (d *Digest) Start(hour int) error {
	if hour < 0 || hour > 23 {
		return fmt.Errorf("digest hour %d out of range", hour)
	}
	if _, err := d.scheduler.Every(1).Day().At(fmt.Sprintf("%02d:00", hour)).Do(d.run); err != nil {
		return err
	}
	d.scheduler.StartAsync()
	return nil
}

// Stop cancels the schedule. In-flight runs finish.
func (d *Digest) Stop() {
	d.scheduler.Stop()
}

func (d *Digest) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	if err := d.Run(ctx, time.Now().UTC()); err != nil {
		d.logger.Error("digest run failed", "error", err)
	}
}

// Run computes and delivers a digest for every known user. Exposed for
// manual triggering; per-user failures are logged and skipped.
func (d *Digest) Run(ctx context.Context, now time.Time) error {
	users, err := d.store.ListStreakUsers(ctx)
	if err != nil {
		return fmt.Errorf("list users: %w", err)
	}
	if len(users) == 0 {
		return nil
	}

	type outcome struct {
		summary Summary
		err     error
	}

	pool := worker.NewPool[outcome](ctx, defaultWorkers, len(users))
	for _, userID := range users {
		uid := userID
		pool.Submit(uid, func(ctx context.Context) outcome {
			s, err := d.summarize(ctx, uid, now)
			return outcome{summary: s, err: err}
		})
	}
	pool.Close()

	sent := 0
	for res := range pool.Results() {
		if res.Output.err != nil {
			d.logger.Error("digest summary failed", "user_id", res.JobID, "error", res.Output.err)
			continue
		}
		if !res.Output.summary.Worth() {
			continue
		}
		if err := d.notifier.Notify(ctx, res.Output.summary); err != nil {
			d.logger.Error("digest delivery failed", "user_id", res.JobID, "error", err)
			continue
		}
		sent++
	}

	d.logger.Info("digest run complete", "users", len(users), "sent", sent)
	return nil
}

func (d *Digest) summarize(ctx context.Context, userID string, now time.Time) (Summary, error) {
	rec, _, err := d.store.GetStreak(ctx, userID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return Summary{}, err
	}
	due, err := d.store.CountDueCards(ctx, userID, now)
	if err != nil {
		return Summary{}, err
	}

	loc := d.loc
	if loc == nil {
		loc, _ = timezone.Parse("")
	}
	return BuildSummary(userID, rec, due, loc, now), nil
}
