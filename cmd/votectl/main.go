package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"chainvote-backend/api"
	"chainvote-backend/config"
	"chainvote-backend/directory"
	"chainvote-backend/ledger"
	"chainvote-backend/server"
	"chainvote-backend/service"
)

var (
	_apiURL      string
	_configPaths []string
	_keyHex      string
	_timeout     time.Duration
)

func main() {
	root := &cobra.Command{
		Use:           "votectl",
		Short:         "Register, browse candidates and vote against a chainvote backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&_apiURL, "api", "http://localhost:3000", "chainvote API base URL")
	root.PersistentFlags().StringSliceVarP(&_configPaths, "config-path", "c", nil, "config files for the ledger and content store")
	root.PersistentFlags().StringVar(&_keyHex, "key", "", "hex private key of the voter account (default $LEDGER_KEY)")
	root.PersistentFlags().DurationVar(&_timeout, "timeout", 2*time.Minute, "overall command timeout")

	root.AddCommand(
		registerVoterCmd(),
		registerCandidateCmd(),
		candidatesCmd(),
		voteCmd(),
		resultsCmd(),
		statusCmd(),
	)
	if err := root.Execute(); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

// session is what a command needs to act as the voter
type session struct {
	cfg     config.Config
	keyHex  string
	client  *api.Client
	gateway ledger.Gateway
	conn    *ledger.Connection
	svc     *service.VotingService
}

func (s *session) Close() {
	if s.conn != nil {
		s.conn.Disconnect()
	}
}

func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return context.WithTimeout(cmd.Context(), _timeout)
}

// openSession loads the config and opens the ledger. Read-only sessions may omit the key.
func openSession(ctx context.Context, needKey bool) (*session, error) {
	if err := config.LoadEnv(); err != nil {
		return nil, err
	}
	cfg, err := config.New(_configPaths, config.ValidateStore, config.ValidateLedger)
	if err != nil {
		return nil, err
	}
	keyHex := _keyHex
	if keyHex == "" {
		keyHex = cfg.Ledger.KeyHex
	}
	if keyHex == "" && needKey {
		return nil, errors.New("a voter key is required (--key or LEDGER_KEY)")
	}
	store, err := server.NewStore(cfg)
	if err != nil {
		return nil, err
	}
	gateway, conn, err := server.NewGateway(ctx, cfg, keyHex)
	if err != nil {
		return nil, err
	}
	client := newClient()
	return &session{
		cfg:     cfg,
		keyHex:  keyHex,
		client:  client,
		gateway: gateway,
		conn:    conn,
		svc:     service.NewVotingService(store, directory.New(client, store), nil, gateway),
	}, nil
}

func newClient() *api.Client {
	return api.NewClient(_apiURL, _timeout)
}

func printErrorf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, color.YellowString(format, args...))
}
