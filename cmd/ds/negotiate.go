package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/negotiation"
	"github.com/zulandar/dealscout/internal/scout"
)

func newNegotiateCmd() *cobra.Command {
	var (
		configPath string
		budget     float64
		asJSON     bool
		record     bool
	)

	cmd := &cobra.Command{
		Use:   "negotiate <listing-id>...",
		Short: "Negotiate the price of one or more listings",
		Long: "Runs a buyer/seller negotiation for each listing and stores the outcome. " +
			"A single listing streams its transcript; several run in parallel and print a summary.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var b *float64
			if cmd.Flags().Changed("budget") {
				b = &budget
			}
			return runNegotiate(cmd, configPath, args, b, asJSON, record)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().Float64Var(&budget, "budget", 0, "buyer budget (default derived from the asking price)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print outcomes as JSON")
	cmd.Flags().BoolVar(&record, "record", false, "store every prompt and reply in agent_logs")
	return cmd
}

func runNegotiate(cmd *cobra.Command, configPath string, ids []string, budget *float64, asJSON, record bool) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	svc, err := buildService(cmd, cfg, gormDB, record)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	if len(ids) == 1 {
		var observer negotiation.Observer
		p := newPrinter(out)
		if !asJSON {
			observer = p.message
		}
		o, err := svc.Negotiate(ctx, ids[0], budget, observer)
		if err != nil {
			return err
		}
		if asJSON {
			return writeJSON(out, o)
		}
		fmt.Fprintln(out)
		p.result(o.Result)
		fmt.Fprintf(out, "  Saved as:   %s\n", o.ID)
		return nil
	}

	outcomes, err := svc.NegotiateMany(ctx, ids, budget, nil)
	if err != nil {
		return err
	}
	if asJSON {
		return writeJSON(out, outcomes)
	}
	printOutcomes(out, outcomes)
	return nil
}

func newHuntCmd() *cobra.Command {
	var (
		configPath string
		budget     float64
		topN       int
		asJSON     bool
	)

	cmd := &cobra.Command{
		Use:   "hunt <query>",
		Short: "Search listings and negotiate with the best matches",
		Long: "Parses a free-text request such as \"mountain bike under $500\", negotiates with " +
			"the cheapest matching sellers in parallel and reports the best deal.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := scout.HuntOpts{Query: args[0], TopN: topN}
			if cmd.Flags().Changed("budget") {
				opts.MaxBudget = &budget
			}
			return runHunt(cmd, configPath, opts, asJSON)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().Float64Var(&budget, "budget", 0, "maximum price to search for and pay")
	cmd.Flags().IntVar(&topN, "top", scout.DefaultTopN, "number of sellers to negotiate with")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the hunt report as JSON")
	return cmd
}

func runHunt(cmd *cobra.Command, configPath string, opts scout.HuntOpts, asJSON bool) error {
	if opts.MaxBudget != nil && !(*opts.MaxBudget > 0) {
		return fmt.Errorf("--budget must be positive")
	}
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	svc, err := buildService(cmd, cfg, gormDB, false)
	if err != nil {
		return err
	}

	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	var emit func(scout.Event)
	if !asJSON {
		emit = func(e scout.Event) { printHuntEvent(out, e) }
	}
	report, err := svc.Hunt(ctx, opts, emit)
	if err != nil && !errors.Is(err, scout.ErrNoListings) {
		return err
	}
	if asJSON {
		return writeJSON(out, report)
	}
	if len(report.Outcomes) > 0 {
		fmt.Fprintln(out)
		printOutcomes(out, report.Outcomes)
	}
	return nil
}

func printHuntEvent(w io.Writer, e scout.Event) {
	switch e.Type {
	case scout.EventProductsFound:
		fmt.Fprintf(w, "Found %v matching listings\n", e.Data["count"])
	case scout.EventNegotiationComplete:
		fmt.Fprintf(w, "  [%v] %v: %v\n", e.Data["n"], e.Data["listing_id"], e.Data["status"])
	case scout.EventBestDeal:
		price, _ := e.Data["final_price"].(float64)
		savings, _ := e.Data["savings"].(float64)
		fmt.Fprintf(w, "Best deal: %v at %s (saves %s)\n", e.Data["title"], formatMoney(price), formatMoney(savings))
	default:
		if msg, ok := e.Data["message"]; ok {
			fmt.Fprintf(w, "%v\n", msg)
		}
	}
}

func printOutcomes(w io.Writer, outcomes []scout.Outcome) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "NEGOTIATION\tLISTING\tSTATUS\tASKING\tFINAL\tSAVINGS\tTURNS")
	for _, o := range outcomes {
		r := o.Result
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\n",
			o.ID, truncate(o.Listing.Title, 30), r.Status,
			formatMoney(r.OriginalPrice), formatMoney(r.NegotiatedPrice), formatMoney(r.Savings), r.TurnCount)
	}
	tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// signalContext returns the command context cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
