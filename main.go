package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"chainvote-backend/config"
	"chainvote-backend/pkg/log"
	"chainvote-backend/server"
)

var (
	_configPaths []string
	_envFiles    []string
)

func loadConfig() (config.Config, error) {
	if err := config.LoadEnv(_envFiles...); err != nil {
		return config.Config{}, err
	}
	cfg, err := config.New(_configPaths)
	if err != nil {
		return config.Config{}, err
	}
	if err := log.InitLoggers(cfg.Log); err != nil {
		return config.Config{}, errors.Wrap(err, "failed to init loggers")
	}
	return cfg, nil
}

func main() {
	root := &cobra.Command{
		Use:           "chainvote",
		Short:         "Voting backend: candidate directory, vote tally cache and vote sessions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringSliceVarP(&_configPaths, "config-path", "c", nil, "config files, later files override earlier ones")
	root.PersistentFlags().StringSliceVar(&_envFiles, "env-file", nil, "env files loaded before config expansion (default .env)")

	tallyCmd := &cobra.Command{
		Use:   "tally",
		Short: "Maintain the cached vote tally",
	}
	tallyCmd.AddCommand(rebuildCmd(), reconcileCmd())
	root.AddCommand(serveCmd(), tallyCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			svr, err := server.New(ctx, cfg)
			if err != nil {
				return errors.Wrap(err, "failed to create server")
			}
			if err := svr.Start(ctx); err != nil {
				svr.Close()
				return err
			}
			log.L().Info("chainvote started",
				zap.String("store", cfg.Store.Backend),
				zap.String("ledger", cfg.Ledger.Backend),
				zap.String("pointer", cfg.Storage.Pointer))
			<-ctx.Done()

			log.L().Info("shutting down")
			stopCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return svr.Stop(stopCtx)
		},
	}
}

func rebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Replace the cached tally with the ledger vote counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd.Context(), func(svr *server.Server) error {
				counts, err := svr.Service().Rebuild(cmd.Context())
				if err != nil {
					return err
				}
				return printJSON(counts)
			})
		},
	}
}

func reconcileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Compare the cached tally with the ledger vote counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withServer(cmd.Context(), func(svr *server.Server) error {
				r, err := svr.Service().Reconcile(cmd.Context())
				if err != nil {
					return err
				}
				if err := printJSON(r); err != nil {
					return err
				}
				if !r.IsValid {
					return errors.New("cached tally does not match the ledger")
				}
				return nil
			})
		},
	}
}

func withServer(ctx context.Context, f func(*server.Server) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svr, err := server.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer svr.Close()
	return f(svr)
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
