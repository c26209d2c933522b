package main

import (
	"fmt"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wenyongqd/anniversary/internal/blobstore"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/preflight"
	"github.com/wenyongqd/anniversary/internal/server"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var bind string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the asset gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if strings.TrimSpace(bind) != "" {
				cfg.Server.Bind = bind
			}
			logger := ctx.ensureLogger()

			if failed := preflight.Failed(preflight.DirectoryChecks(cfg)); len(failed) > 0 {
				return fmt.Errorf("preflight: %s: %s", failed[0].Name, failed[0].Detail)
			}

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			store, err := blobstore.New(signalCtx, cfg)
			if err != nil {
				return err
			}
			srv, err := server.New(cfg, store, logger)
			if err != nil {
				return err
			}
			if err := srv.Start(signalCtx); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Gateway listening on %s (storage: %s)\n", srv.Addr(), cfg.Storage.Backend)

			<-signalCtx.Done()
			logger.Info("gateway server shutting down", logging.String("addr", srv.Addr()))
			srv.Stop()
			return nil
		},
	}

	cmd.Flags().StringVar(&bind, "bind", "", "Override server.bind")
	return cmd
}
