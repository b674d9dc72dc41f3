package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/zulandar/dealscout/internal/listing"
	"github.com/zulandar/dealscout/internal/models"
)

func newListingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listing",
		Short: "Listing management commands",
	}

	cmd.AddCommand(newListingAddCmd())
	cmd.AddCommand(newListingListCmd())
	cmd.AddCommand(newListingShowCmd())
	cmd.AddCommand(newListingSeedCmd())
	return cmd
}

func newListingAddCmd() *cobra.Command {
	var (
		configPath string
		opts       listing.CreateOpts
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a listing",
		Long:  "Creates an active marketplace listing with an auto-generated ID unless --id is given.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListingAdd(cmd, configPath, opts)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVar(&opts.ID, "id", "", "listing ID (generated when empty)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "listing title (required)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "listing description")
	cmd.Flags().StringVar(&opts.Category, "category", "", "listing category")
	cmd.Flags().Float64Var(&opts.AskingPrice, "price", 0, "asking price (required)")
	cmd.Flags().StringVar(&opts.Condition, "condition", "", "condition: new, like-new, good, fair")
	cmd.Flags().StringSliceVar(&opts.Extras, "extra", nil, "included extra (repeatable)")
	cmd.Flags().StringVar(&opts.SellerID, "seller", "", "seller ID")
	cmd.Flags().StringVar(&opts.Location, "location", "", "seller location")
	cmd.MarkFlagRequired("title")
	cmd.MarkFlagRequired("price")
	return cmd
}

func runListingAdd(cmd *cobra.Command, configPath string, opts listing.CreateOpts) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	l, err := listing.Create(gormDB, opts)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created listing %s: %s (%s)\n", l.ID, l.Title, formatMoney(l.AskingPrice))
	return nil
}

func newListingListCmd() *cobra.Command {
	var (
		configPath string
		query      string
		condition  string
		filters    listing.ListFilters
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List listings",
		Long:  "Lists listings. With --query, searches active listings using a free-text request such as \"bike under $500\".",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListingList(cmd, configPath, query, condition, filters)
		},
	}

	addConfigFlag(cmd, &configPath)
	cmd.Flags().StringVarP(&query, "query", "q", "", "free-text search")
	cmd.Flags().StringVar(&condition, "condition", "", "filter search results by condition")
	cmd.Flags().StringVar(&filters.Status, "status", "", "filter by status (active, sold)")
	cmd.Flags().StringVar(&filters.Category, "category", "", "filter by category")
	cmd.Flags().StringVar(&filters.SellerID, "seller", "", "filter by seller")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "maximum rows")
	return cmd
}

func runListingList(cmd *cobra.Command, configPath, query, condition string, filters listing.ListFilters) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	var rows []models.Listing
	if strings.TrimSpace(query) != "" {
		f := listing.ParseQuery(query).Filters(filters.Limit)
		f.Category = filters.Category
		f.Condition = condition
		rows, err = listing.Search(gormDB, f)
	} else {
		rows, err = listing.List(gormDB, filters)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		fmt.Fprintln(out, "No listings found.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTITLE\tPRICE\tCONDITION\tCATEGORY\tSTATUS")
	for _, l := range rows {
		category := l.Category
		if category == "" {
			category = "-"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			l.ID, truncate(l.Title, 40), formatMoney(l.AskingPrice), l.Condition, category, l.Status)
	}
	w.Flush()
	return nil
}

func newListingShowCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show listing details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListingShow(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runListingShow(cmd *cobra.Command, configPath, id string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	l, err := listing.Get(gormDB, id)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ID:          %s\n", l.ID)
	fmt.Fprintf(out, "Title:       %s\n", l.Title)
	fmt.Fprintf(out, "Price:       %s\n", formatMoney(l.AskingPrice))
	fmt.Fprintf(out, "Condition:   %s\n", l.Condition)
	fmt.Fprintf(out, "Status:      %s\n", l.Status)
	if l.SoldPrice != nil {
		fmt.Fprintf(out, "Sold For:    %s\n", formatMoney(*l.SoldPrice))
	}
	if l.Category != "" {
		fmt.Fprintf(out, "Category:    %s\n", l.Category)
	}
	if l.SellerID != "" {
		fmt.Fprintf(out, "Seller:      %s\n", l.SellerID)
	}
	if l.Location != "" {
		fmt.Fprintf(out, "Location:    %s\n", l.Location)
	}
	if l.Extras != "" {
		fmt.Fprintf(out, "Extras:      %s\n", l.Extras)
	}
	fmt.Fprintf(out, "Created:     %s\n", l.CreatedAt.Format("2006-01-02 15:04:05"))
	if l.Description != "" {
		fmt.Fprintf(out, "\nDescription:\n  %s\n", l.Description)
	}
	return nil
}

func newListingSeedCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "seed <file.yaml>",
		Short: "Load listings from a YAML file",
		Long:  "Upserts every listing in the file by ID. Entries with sold_price become sold comparables.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListingSeed(cmd, configPath, args[0])
		},
	}

	addConfigFlag(cmd, &configPath)
	return cmd
}

func runListingSeed(cmd *cobra.Command, configPath, path string) error {
	_, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	f, err := listing.LoadSeedFile(path)
	if err != nil {
		return err
	}
	n, err := listing.Seed(gormDB, f)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d listings from %s\n", n, path)
	return nil
}
