// Command server serves published calendar artifacts for local preview.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
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
	"taiwan-calendar/internal/web"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newCommand(config.New(time.Now())).ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newCommand(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:          "server",
		Short:        "Serve published calendars over HTTP",
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			log := cfg.Logger()
			ctx := logger.ContextWithLogger(cmd.Context(), log)

			cfg.RawDir = ""
			a, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			var lister source.Lister
			if listers := a.Listers(); len(listers) > 0 {
				lister = listers[0]
			}
			handler := web.New(a.Out, lister, log)

			mux := http.NewServeMux()
			handler.RegisterRoutes(mux)

			return serve(ctx, &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           mux,
				ReadHeaderTimeout: 10 * time.Second,
			}, log)
		},
	}

	fs := cmd.Flags()
	config.RegisterFlags(v, fs)
	fs.String(config.KeyPort, v.GetString(config.KeyPort), "Port to listen on")

	if err := config.BindFlags(v, fs, config.FlagKeys); err != nil {
		fmt.Fprintf(os.Stderr, "error binding flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// serve runs srv until ctx is canceled, then shuts it down.
func serve(ctx context.Context, srv *http.Server, log logger.Logger) error {
	errCh := make(chan error, 1)
	go func() {
		log.Info("server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info("server stopping")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
