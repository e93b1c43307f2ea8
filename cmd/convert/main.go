// Command convert turns a local calendar CSV into the published JSON form.
package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"taiwan-calendar/internal/config"
	"taiwan-calendar/internal/logger"
	"taiwan-calendar/internal/mapper"
	"taiwan-calendar/internal/model"
	"taiwan-calendar/internal/normalize"
	"taiwan-calendar/internal/publish"
)

func main() {
	if err := newCommand(config.New(time.Now())).Execute(); err != nil {
		os.Exit(1)
	}
}

func newCommand(v *viper.Viper) *cobra.Command {
	var (
		year    int
		partial bool
	)

	cmd := &cobra.Command{
		Use:          "convert [file]",
		Short:        "Convert a calendar CSV (or stdin) to JSON on stdout",
		Args:         cobra.MaximumNArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := cfg.Logger()

			in := cmd.InOrStdin()
			if len(args) == 1 && args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return err
				}
				defer f.Close()
				in = f
			}
			data, err := io.ReadAll(in)
			if err != nil {
				return fmt.Errorf("reading input: %w", err)
			}

			out, err := convert(data, year, partial, log)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}

	fs := cmd.Flags()
	fs.IntVar(&year, "year", 0, "Gregorian year the file covers")
	fs.BoolVar(&partial, "partial", false, "Skip the full-year coverage check")
	fs.String(config.KeyLogLevel, v.GetString(config.KeyLogLevel), "Log level (debug, info, warn, error)")
	fs.Bool(config.KeyLogJSON, v.GetBool(config.KeyLogJSON), "Log as JSON")
	_ = cmd.MarkFlagRequired("year")

	for _, key := range []string{config.KeyLogLevel, config.KeyLogJSON} {
		if err := v.BindPFlag(key, fs.Lookup(key)); err != nil {
			fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
			os.Exit(1)
		}
	}
	return cmd
}

// convert normalizes, maps and encodes data for year.
func convert(data []byte, year int, partial bool, log logger.Logger) ([]byte, error) {
	table, err := normalize.New(nil).Normalize(data, year)
	if err != nil {
		return nil, err
	}
	log.Debug("source normalized", "schema", table.Schema.Name, "encoding", table.Encoding, "header", strings.Join(table.Header, ","))

	entries, err := mapper.MapRows(table.Rows(), table.Flags(mapper.DefaultFlags))
	if err != nil {
		return nil, err
	}

	if partial {
		slices.SortStableFunc(entries, func(a, b model.CalendarEntry) int {
			return strings.Compare(a.Date, b.Date)
		})
		return publish.Encode(entries)
	}

	dataset, err := mapper.BuildYear(year, entries)
	if err != nil {
		return nil, err
	}
	log.Info("converted", "year", year, "entries", len(dataset.Entries))
	return publish.Encode(dataset.Entries)
}
