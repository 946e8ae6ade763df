package alerting

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/xpertseller/alertkit/pkg/logger"
)

// DefaultScheduleSpec is how often scheduled alerts are swept.
const DefaultScheduleSpec = "@every 30s"

// Releaser dispatches alerts whose scheduled time has passed.
type Releaser interface {
	ReleaseDue(ctx context.Context) (int, error)
}

// Scheduler runs ReleaseDue on a cron schedule. Overlapping sweeps are
// skipped.
type Scheduler struct {
	releaser Releaser
	spec     string
	timeout  time.Duration
	logger   *slog.Logger
	parser   cron.Parser
}

type SchedulerOption func(*Scheduler)

func WithSchedulerLogger(l *slog.Logger) SchedulerOption {
	return func(s *Scheduler) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSweepTimeout bounds a single sweep. Zero means no bound.
func WithSweepTimeout(d time.Duration) SchedulerOption {
	return func(s *Scheduler) { s.timeout = d }
}

// NewScheduler validates spec, which accepts standard five field cron
// expressions, an optional seconds field and descriptors like "@every 30s".
func NewScheduler(r Releaser, spec string, opts ...SchedulerOption) (*Scheduler, error) {
	if spec == "" {
		spec = DefaultScheduleSpec
	}
	s := &Scheduler{
		releaser: r,
		spec:     spec,
		timeout:  time.Minute,
		logger:   slog.Default(),
		parser: cron.NewParser(
			cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
		),
	}
	for _, opt := range opts {
		opt(s)
	}
	if _, err := s.parser.Parse(spec); err != nil {
		return nil, fmt.Errorf("alerting: invalid schedule %q: %w", spec, err)
	}
	return s, nil
}

// Run sweeps on schedule until ctx is cancelled, then waits for a running
// sweep to finish.
func (s *Scheduler) Run(ctx context.Context) error {
	c := cron.New(
		cron.WithParser(s.parser),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	if _, err := c.AddFunc(s.spec, func() { s.Sweep(ctx) }); err != nil {
		return fmt.Errorf("alerting: schedule sweep: %w", err)
	}

	c.Start()
	s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduler started",
		logger.Component("scheduler"),
		slog.String("spec", s.spec),
	)

	<-ctx.Done()
	<-c.Stop().Done()
	s.logger.LogAttrs(context.Background(), slog.LevelInfo, "scheduler stopped",
		logger.Component("scheduler"),
	)
	return nil
}

// Sweep releases due alerts once.
func (s *Scheduler) Sweep(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	n, err := s.releaser.ReleaseDue(ctx)
	if err != nil {
		s.logger.LogAttrs(ctx, slog.LevelError, "sweep failed",
			logger.Component("scheduler"),
			slog.Int("released", n),
			logger.Error(err),
		)
		return
	}
	if n > 0 {
		s.logger.LogAttrs(ctx, slog.LevelInfo, "scheduled alerts released",
			logger.Component("scheduler"),
			slog.Int("released", n),
			logger.Duration(time.Since(start)),
		)
	}
}
