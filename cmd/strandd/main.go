package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/strandkit/strand/app"
	"github.com/strandkit/strand/config"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		cfgPath string
		addr    string
		workers int
	)

	cmd := &cobra.Command{
		Use:           "strandd",
		Short:         "Pre-forking asynchronous HTTP server",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("addr") {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("workers") {
				cfg.Server.Workers = workers
			}

			log, err := app.NewLogger(cfg.Logging)
			if err != nil {
				return err
			}
			defer log.Sync()

			return app.New(cfg, log).Run(context.Background())
		},
	}

	cmd.Flags().StringVarP(&cfgPath, "config", "c", "", "path to the config file")
	cmd.Flags().StringVar(&addr, "addr", "0.0.0.0:8080", "serve address")
	cmd.Flags().IntVarP(&workers, "workers", "w", 0, "worker process count (0 serves in-process)")
	return cmd
}
