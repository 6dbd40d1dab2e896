package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"y8u-distributor/internal/domain"
	"y8u-distributor/internal/merkle"
	"y8u-distributor/internal/reporting"
	"y8u-distributor/internal/simulation"
)

func scheduleCommand() *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Print every pool's vesting schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			r, err := reporting.NewGenerator(nil).Generate(nil)
			if err != nil {
				return err
			}
			switch format {
			case "md", "markdown":
				fmt.Fprint(cmd.OutOrStdout(), reporting.RenderMarkdown(r))
			case "csv":
				fmt.Fprint(cmd.OutOrStdout(), reporting.RenderScheduleCSV(r.Schedules))
			default:
				return fmt.Errorf("unknown format %q", format)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "md", "output format: md or csv")
	return cmd
}

func simulateCommand() *cobra.Command {
	var (
		months int64
		start  string
		trees  []string
		outDir string
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Simulate month-by-month claims and write a report",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := simulation.Options{Months: months, Trees: make(map[domain.Pool]*merkle.Tree)}
			if start != "" {
				t, err := time.Parse("2006-01-02", start)
				if err != nil {
					return fmt.Errorf("parse --start: %w", err)
				}
				opts.Start = t
			}
			for _, spec := range trees {
				pool, path, ok := strings.Cut(spec, "=")
				if !ok {
					return fmt.Errorf("--tree expects pool=path, got %q", spec)
				}
				p, err := domain.ParsePool(pool)
				if err != nil {
					return err
				}
				tree, err := loadTreeFile(path)
				if err != nil {
					return fmt.Errorf("load %s: %w", path, err)
				}
				opts.Trees[p] = tree
			}

			res, err := simulation.Run(cmd.Context(), opts)
			if err != nil {
				return err
			}
			r, err := reporting.NewGenerator(nil).Generate(res)
			if err != nil {
				return err
			}

			if outDir == "" {
				fmt.Fprint(cmd.OutOrStdout(), reporting.RenderMarkdown(r))
				return nil
			}
			if err := os.MkdirAll(outDir, 0o755); err != nil {
				return err
			}
			files := map[string]string{
				"SIMULATION.md":  reporting.RenderMarkdown(r),
				"simulation.csv": reporting.RenderSimulationCSV(res),
				"schedules.csv":  reporting.RenderScheduleCSV(r.Schedules),
			}
			for name, content := range files {
				path := filepath.Join(outDir, name)
				if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&months, "months", 0, "last month to simulate (default: until every schedule completes)")
	cmd.Flags().StringVar(&start, "start", "", "TGE date, YYYY-MM-DD")
	cmd.Flags().StringArrayVar(&trees, "tree", nil, "sale pool tree as pool=tree.json (repeatable)")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "write SIMULATION.md and CSVs to this directory instead of stdout")
	return cmd
}
