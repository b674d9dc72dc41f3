package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/ledger"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Negotiation history commands",
	}

	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	return cmd
}

func newHistoryListCmd() *cobra.Command {
	var (
		configPath string
		filters    ledger.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List past negotiations",
		Long:  "Lists stored negotiations, newest first.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryList(cmd, configPath, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&filters.ListingID, "listing", "", "filter by listing ID")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (success, no_deal, error)")
	cmd.Flags().StringVar(&filters.HuntID, "hunt", "", "filter by hunt ID")
	cmd.Flags().StringVar(&filters.WatchName, "watch", "", "filter by watch name")
	cmd.Flags().IntVar(&filters.Limit, "limit", 20, "maximum rows")
	return cmd
}

func runHistoryList(cmd *cobra.Command, configPath string, filters ledger.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	rows, err := ledger.List(gormDB, filters)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No negotiations found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tLISTING\tSTATUS\tASKING\tFINAL\tSAVINGS\tTURNS\tCOMPLETED")
	for _, n := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
			n.ID, n.ListingID, n.Status,
			formatMoney(n.OriginalPrice), formatMoney(n.NegotiatedPrice), formatMoney(n.Savings),
			n.TurnCount, n.CompletedAt.Format("2006-01-02 15:04"))
	}
	w.Flush()
	return nil
}

func newHistoryShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a negotiation transcript",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistoryShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runHistoryShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	n, err := ledger.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	title := n.ListingID
	if n.Listing != nil {
		title = fmt.Sprintf("%s (%s)", n.Listing.Title, n.ListingID)
	}
	fmt.Fprintf(out, "Negotiation %s for %s\n", n.ID, title)
	if n.HuntID != "" {
		fmt.Fprintf(out, "Hunt:        %s\n", n.HuntID)
	}
	if n.WatchName != "" {
		fmt.Fprintf(out, "Watch:       %s\n", n.WatchName)
	}
	fmt.Fprintln(out)

	res := ledger.ToResult(*n)
	p := newPrinter(out)
	for _, m := range res.Messages {
		p.message(m)
	}
	fmt.Fprintln(out)
	p.result(res)
	return nil
}
