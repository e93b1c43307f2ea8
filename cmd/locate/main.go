// Command locate prints the resource each locator resolves for a year range.
package main

import (
	"context"
	"errors"
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
	"taiwan-calendar/internal/source"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(config.New(time.Now())).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand(v *viper.Viper) *cobra.Command {
	v.SetDefault(config.KeyFromYear, source.MinYear)

	cmd := &cobra.Command{
		Use:          "locate",
		Short:        "Show which resource is used for each year",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := cfg.Logger()
			ctx := logger.ContextWithLogger(cmd.Context(), log)

			// Listing never writes artifacts; keep raw persistence off.
			cfg.RawDir = ""
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			return report(ctx, cmd.OutOrStdout(), a.Locator().Locators(), cfg.FromYear, cfg.ToYear)
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(v, fs)
	fs.Int(config.KeyFromYear, v.GetInt(config.KeyFromYear), "First year to look up")
	fs.Int(config.KeyToYear, v.GetInt(config.KeyToYear), "Last year to look up")

	if err := config.BindFlags(v, fs, config.FlagKeys); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// report prints one line per year and locator.
func report(ctx context.Context, w io.Writer, locators []source.Locator, from, to int) error {
	fmt.Fprintf(w, "%-6s %-22s %-40s %s\n", "YEAR", "LOCATOR", "NAME", "URL")
	failures := 0
	for year := from; year <= to; year++ {
		for _, l := range locators {
			ref, err := l.Locate(ctx, year)
			switch {
			case errors.Is(err, source.ErrNotFound):
				fmt.Fprintf(w, "%-6d %-22s %-40s %s\n", year, l.Name(), "(not published)", "-")
			case err != nil:
				failures++
				fmt.Fprintf(w, "%-6d %-22s %-40s %v\n", year, l.Name(), "(error)", err)
			default:
				fmt.Fprintf(w, "%-6d %-22s %-40s %s\n", year, l.Name(), ref.Name, ref.URL)
			}
		}
	}
	if failures > 0 && failures == (to-from+1)*len(locators) {
		return errors.New("every locator failed")
	}
	return nil
}
