package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/epi-risk-server/internal/api"
	"github.com/epi-risk-server/internal/service"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP scoring API",
	Long: `Starts the HTTP API. SIGINT or SIGTERM shut it down gracefully.
SIGHUP reloads the knowledge base; a failed reload keeps the current tables.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := bootstrap(bootOptions{outcomes: true})
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	server := api.NewServer(a.cfg, a.risk, a.outcomes, a.logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Start(ctx)
	})
	g.Go(func() error {
		watchReload(ctx, a.risk, a.logger)
		return nil
	})

	err = g.Wait()
	a.logger.Info("Server stopped")
	return err
}

// watchReload reloads the knowledge base on every SIGHUP until ctx ends
func watchReload(ctx context.Context, risk *service.RiskService, logger *logrus.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("SIGHUP received, reloading knowledge base")
			if _, err := risk.ReloadKnowledge(); err != nil {
				logger.WithError(err).Error("Knowledge base reload failed")
			}
		}
	}
}
