// Command sync republishes the government office calendars of a year range
// as JSON artifacts.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taiwan-calendar/internal/app"
	"taiwan-calendar/internal/config"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/pipeline"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(config.New(time.Now())).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand(v *viper.Viper) *cobra.Command {
	var summaryPath string

	cmd := &cobra.Command{
		Use:          "sync",
		Short:        "Republish Taiwan government office calendars as JSON",
		Long:         "Locate, download and convert the yearly office calendar of every year in range, rewriting only artifacts whose content changed.",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := cfg.Logger()
			ctx := logger.ContextWithLogger(cmd.Context(), log)

			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			orch, err := a.Orchestrator()
			if err != nil {
				return err
			}

			summary, err := orch.Run(ctx, pipeline.YearRange{From: cfg.FromYear, To: cfg.ToYear}, cfg.Force)
			if err != nil {
				return err
			}

			printSummary(cmd.OutOrStdout(), summary)
			if summaryPath != "" {
				if err := writeSummary(summaryPath, cmd.OutOrStdout(), summary); err != nil {
					return err
				}
			}

			if !summary.OK() {
				return fmt.Errorf("%d of %d years failed", summary.Counts().Failed, len(summary.Outcomes))
			}
			return nil
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(v, fs)
	fs.Int(config.KeyFromYear, v.GetInt(config.KeyFromYear), "First year to publish")
	fs.Int(config.KeyToYear, v.GetInt(config.KeyToYear), "Last year to publish")
	fs.Bool(config.KeyForce, v.GetBool(config.KeyForce), "Rewrite artifacts even when unchanged")
	fs.String("raw", v.GetString(config.KeyRawDir), "Directory (or bucket prefix) for the raw downloads (empty disables)")
	fs.Int(config.KeyConcurrency, v.GetInt(config.KeyConcurrency), "Years processed in parallel")
	fs.Duration(config.KeyRunTimeout, v.GetDuration(config.KeyRunTimeout), "Timeout of the whole run")
	fs.Int(config.KeyFetchAttempts, v.GetInt(config.KeyFetchAttempts), "Download attempts per resource")
	fs.String(config.KeyFirestoreProject, v.GetString(config.KeyFirestoreProject), "GCP project of the Firestore mirror (empty disables)")
	fs.String(config.KeyFirestoreCollection, v.GetString(config.KeyFirestoreCollection), "Firestore collection of the mirror")
	fs.StringVar(&summaryPath, "summary-json", "", "Write the run summary as JSON to this path (- for stdout)")

	if err := config.BindFlags(v, fs, config.FlagKeys); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

func printSummary(w io.Writer, s pipeline.RunSummary) {
	fmt.Fprintf(w, "%-6s %-10s %-8s %s\n", "YEAR", "STATUS", "ENTRIES", "DETAIL")
	for _, o := range s.Outcomes {
		detail := o.Reason
		if detail == "" && o.Resource != nil {
			detail = o.Resource.Name
		}
		entries := "-"
		if o.Entries > 0 {
			entries = fmt.Sprint(o.Entries)
		}
		fmt.Fprintf(w, "%-6d %-10s %-8s %s\n", o.Year, o.Status, entries, detail)
	}
	c := s.Counts()
	fmt.Fprintf(w, "written %d, unchanged %d, skipped %d, failed %d in %s\n",
		c.Written, c.Unchanged, c.Skipped, c.Failed, s.Elapsed().Round(time.Millisecond))
}

type summaryReport struct {
	pipeline.RunSummary
	Counts  pipeline.Counts `json:"counts"`
	OK      bool            `json:"ok"`
	Elapsed string          `json:"elapsed"`
}

func writeSummary(path string, stdout io.Writer, s pipeline.RunSummary) error {
	data, err := json.MarshalIndent(summaryReport{
		RunSummary: s,
		Counts:     s.Counts(),
		OK:         s.OK(),
		Elapsed:    s.Elapsed().String(),
	}, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	data = append(data, '\n')

	if path == "-" {
		_, err = stdout.Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}
	return nil
}
