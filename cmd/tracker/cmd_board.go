package main

import (
	"context"
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"example.com/sitetracker/internal/domain"
	"example.com/sitetracker/internal/ingest"
)

var (
	viewSearch string
	viewStatus string
)

// viewCmd prints the grouped board
var viewCmd = &cobra.Command{
	Use:   "view",
	Short: "Print activities grouped by category",
	RunE:  runView,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print board totals",
	RunE:  runStats,
}

var categoriesCmd = &cobra.Command{
	Use:   "categories",
	Short: "List the categories in use",
	RunE:  runCategories,
}

// exportCmd writes the board as CSV to stdout
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the board as CSV",
	RunE:  runExport,
}

func runView(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}

	groups := service.View(domain.Query{Search: viewSearch, Filter: domain.ParseStatusFilter(viewStatus)})
	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "no activities match")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, g := range groups {
		fmt.Fprintf(tw, "%s (%d)\n", g.Category, len(g.Activities))
		for _, a := range g.Activities {
			fmt.Fprintf(tw, "  %s\t%s\t%s\t%d%%\t%s\n", a.ID, a.Name, a.Status.Label(), a.Progress, a.Responsible)
		}
	}
	return tw.Flush()
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}

	s := service.Stats()
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "Total\t%d\n", s.Total)
	fmt.Fprintf(tw, "%s\t%d\n", domain.StatusPending.Label(), s.Pending)
	fmt.Fprintf(tw, "%s\t%d\n", domain.StatusInProgress.Label(), s.InProgress)
	fmt.Fprintf(tw, "%s\t%d\n", domain.StatusCompleted.Label(), s.Completed)
	fmt.Fprintf(tw, "Avance\t%d%%\n", s.OverallProgress)
	fmt.Fprintf(tw, "Costo\t%s\n", strconv.FormatFloat(s.TotalCost, 'f', -1, 64))
	return tw.Flush()
}

func runCategories(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}
	for _, c := range service.Categories() {
		fmt.Fprintln(cmd.OutOrStdout(), c)
	}
	return nil
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	service, err := loadService(ctx)
	if err != nil {
		return err
	}

	activities := service.Activities()
	var rows []domain.Activity
	for _, g := range domain.BuildView(activities, domain.Query{Filter: domain.FilterAll}) {
		rows = append(rows, g.Activities...)
	}
	return ingest.Encode(cmd.OutOrStdout(), rows)
}
