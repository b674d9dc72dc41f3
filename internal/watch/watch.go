// Package watch runs saved hunts on cron schedules.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/zulandar/dealscout/internal/config"
	"github.com/zulandar/dealscout/internal/models"
	"github.com/zulandar/dealscout/internal/scout"
	"gorm.io/gorm"
)

// DefaultPollInterval is how often the daemon checks for due watches.
const DefaultPollInterval = time.Minute

// ErrNotFound is returned when a watch does not exist.
var ErrNotFound = errors.New("watch: not found")

// Hunter runs a hunt. *scout.Service satisfies it.
type Hunter interface {
	Hunt(ctx context.Context, opts scout.HuntOpts, emit func(scout.Event)) (*scout.HuntReport, error)
}

// Scheduler fires watches whose schedule has elapsed since their last run.
type Scheduler struct {
	DB           *gorm.DB
	Hunter       Hunter
	PollInterval time.Duration
	Out          io.Writer
	Logger       *log.Logger
	Now          func() time.Time
}

func (s *Scheduler) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Scheduler) out() io.Writer {
	if s.Out != nil {
		return s.Out
	}
	return io.Discard
}

func (s *Scheduler) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}

// List returns every watch ordered by name.
func List(db *gorm.DB) ([]models.Watch, error) {
	var out []models.Watch
	if err := db.Order("name ASC").Find(&out).Error; err != nil {
		return nil, fmt.Errorf("watch: list: %w", err)
	}
	return out, nil
}

// Get retrieves a watch by name.
func Get(db *gorm.DB, name string) (*models.Watch, error) {
	var w models.Watch
	if err := db.Where("name = ?", name).First(&w).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return nil, fmt.Errorf("watch: get %s: %w", name, err)
	}
	return &w, nil
}

// Next returns when w should next fire. A watch that has never run counts
// from its creation time.
func Next(w models.Watch) (time.Time, error) {
	sched, err := config.ScheduleParser.Parse(w.Schedule)
	if err != nil {
		return time.Time{}, fmt.Errorf("watch: %s schedule %q: %w", w.Name, w.Schedule, err)
	}
	from := w.CreatedAt
	if w.LastRunAt != nil {
		from = *w.LastRunAt
	}
	return sched.Next(from), nil
}

// Due returns the active watches whose next fire time is at or before now.
// Watches with unparseable schedules are logged and skipped.
func (s *Scheduler) Due() ([]models.Watch, error) {
	var active []models.Watch
	if err := s.DB.Where("active = ?", true).Order("name ASC").Find(&active).Error; err != nil {
		return nil, fmt.Errorf("watch: load active: %w", err)
	}
	now := s.now()
	var due []models.Watch
	for _, w := range active {
		next, err := Next(w)
		if err != nil {
			s.logger().Printf("%v", err)
			continue
		}
		if !next.After(now) {
			due = append(due, w)
		}
	}
	return due, nil
}

// RunOnce runs the named watch immediately and records the run time. A hunt
// that finds no listings still counts as a run.
func (s *Scheduler) RunOnce(ctx context.Context, name string) (*scout.HuntReport, error) {
	w, err := Get(s.DB, name)
	if err != nil {
		return nil, err
	}
	return s.run(ctx, *w)
}

func (s *Scheduler) run(ctx context.Context, w models.Watch) (*scout.HuntReport, error) {
	started := s.now()
	report, err := s.Hunter.Hunt(ctx, scout.HuntOpts{
		Query:     w.Query,
		MaxBudget: w.MaxBudget,
		TopN:      w.TopN,
		WatchName: w.Name,
	}, nil)
	if err != nil && !errors.Is(err, scout.ErrNoListings) {
		return nil, fmt.Errorf("watch: run %s: %w", w.Name, err)
	}
	if uerr := s.DB.Model(&models.Watch{}).Where("name = ?", w.Name).Update("last_run_at", started).Error; uerr != nil {
		return report, fmt.Errorf("watch: record run of %s: %w", w.Name, uerr)
	}

	switch {
	case report == nil || len(report.Outcomes) == 0:
		fmt.Fprintf(s.out(), "watch %s: no listings matched %q\n", w.Name, w.Query)
	case report.Best != nil:
		fmt.Fprintf(s.out(), "watch %s: best deal %s at $%.2f (saved $%.2f)\n",
			w.Name, report.Best.Listing.Title, report.Best.Result.NegotiatedPrice, report.Best.Result.Savings)
	default:
		fmt.Fprintf(s.out(), "watch %s: %d negotiations, no deal\n", w.Name, len(report.Outcomes))
	}
	return report, nil
}

// Tick runs every due watch once and returns how many ran. A failing watch
// does not stop the others.
func (s *Scheduler) Tick(ctx context.Context) (int, error) {
	due, err := s.Due()
	if err != nil {
		return 0, err
	}
	ran := 0
	for _, w := range due {
		if ctx.Err() != nil {
			break
		}
		if _, err := s.run(ctx, w); err != nil {
			s.logger().Printf("%v", err)
			continue
		}
		ran++
	}
	return ran, nil
}

// Run polls for due watches until ctx is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	if s.DB == nil {
		return fmt.Errorf("watch: db is required")
	}
	if s.Hunter == nil {
		return fmt.Errorf("watch: hunter is required")
	}
	interval := s.PollInterval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	fmt.Fprintf(s.out(), "Watch daemon starting (poll every %s)...\n", interval)
	defer fmt.Fprintf(s.out(), "Watch daemon stopped.\n")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := s.Tick(ctx); err != nil {
			s.logger().Printf("watch tick error: %v", err)
		}

		sleepWithContext(ctx, interval)
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}
