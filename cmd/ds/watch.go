package main

import (
	"fmt"
	"log"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/config"
	"github.com/zulandar/dealscout/internal/watch"
	"gorm.io/gorm"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scheduled hunt commands",
	}

	cmd.AddCommand(newWatchStartCmd())
	cmd.AddCommand(newWatchRunCmd())
	cmd.AddCommand(newWatchListCmd())
	return cmd
}

func newWatchStartCmd() *cobra.Command {
	var (
		configPath string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the watch daemon",
		Long:  "Polls for watches whose cron schedule has elapsed and runs their hunts until interrupted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchStart(cmd, configPath, interval)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().DurationVar(&interval, "interval", watch.DefaultPollInterval, "how often to check for due watches")
	return cmd
}

func runWatchStart(cmd *cobra.Command, configPath string, interval time.Duration) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	s, err := buildScheduler(cmd, cfg, gormDB)
	if err != nil {
		return err
	}
	s.PollInterval = interval

	ctx, stop := signalContext(cmd)
	defer stop()
	return s.Run(ctx)
}

func newWatchRunCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "run <name>",
		Short: "Run one watch now",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchRun(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runWatchRun(cmd *cobra.Command, configPath, name string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	s, err := buildScheduler(cmd, cfg, gormDB)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()
	_, err = s.RunOnce(ctx, name)
	return err
}

func newWatchListCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List watches and when they next run",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchList(cmd, configPath)
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runWatchList(cmd *cobra.Command, configPath string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	watches, err := watch.List(gormDB)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(watches) == 0 {
		fmt.Fprintln(out, "No watches configured.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tQUERY\tSCHEDULE\tACTIVE\tLAST RUN\tNEXT RUN")
	for _, wt := range watches {
		last := "never"
		if wt.LastRunAt != nil {
			last = wt.LastRunAt.Format("2006-01-02 15:04")
		}
		next := "-"
		if t, err := watch.Next(wt); err == nil {
			next = t.Format("2006-01-02 15:04")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%t\t%s\t%s\n",
			wt.Name, truncate(wt.Query, 30), wt.Schedule, wt.Active, last, next)
	}
	w.Flush()
	return nil
}

func buildScheduler(cmd *cobra.Command, cfg *config.Config, gormDB *gorm.DB) (*watch.Scheduler, error) {
	svc, err := buildService(cmd, cfg, gormDB, false)
	if err != nil {
		return nil, err
	}
	return &watch.Scheduler{
		DB:     gormDB,
		Hunter: svc,
		Out:    cmd.OutOrStdout(),
		Logger: log.New(cmd.ErrOrStderr(), "", log.LstdFlags),
	}, nil
}
