package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lostmarbl3/fai-trainsmart/internal/client"
	"github.com/lostmarbl3/fai-trainsmart/internal/logging"
	"github.com/lostmarbl3/fai-trainsmart/internal/session"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type options struct {
	server    string
	tokenFile string
	timeout   time.Duration
	verbose   bool
}

// app is the client side of a signed-in session: the persisted provider and
// the store that announces identity changes.
type app struct {
	opts     *options
	logger   *zap.Logger
	api      *client.API
	provider *client.Provider
	store    *session.Store
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "coachctl",
		Short:         "Command-line client for the TrainSmart coaching service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	defaultServer := os.Getenv("TRAINSMART_SERVER")
	if defaultServer == "" {
		defaultServer = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&opts.server, "server", defaultServer, "server base URL")
	root.PersistentFlags().StringVar(&opts.tokenFile, "token-file", "", "session file (default: user config dir)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "profile resolution timeout")
	root.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	root.AddCommand(
		newSignUpCommand(opts),
		newSignInCommand(opts),
		newSignOutCommand(opts),
		newWhoAmICommand(opts),
		newWatchCommand(opts),
		newProfileCommand(opts),
	)
	return root
}

func newApp(opts *options) (*app, error) {
	logger, err := logging.New(os.Getenv("APP_ENV"), opts.verbose)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	path := opts.tokenFile
	if path == "" {
		path, err = client.DefaultTokenPath()
		if err != nil {
			return nil, fmt.Errorf("locate token file: %w", err)
		}
	}

	api := client.NewAPI(opts.server, nil)
	provider := client.NewProvider(api, client.NewTokenFile(path), logger)
	return &app{
		opts:     opts,
		logger:   logger,
		api:      api,
		provider: provider,
		store:    session.NewStore(provider, logger),
	}, nil
}

// run starts the session store, hands it to fn and tears everything down
// afterwards.
func run(cmd *cobra.Command, opts *options, fn func(ctx context.Context, a *app) error) error {
	a, err := newApp(opts)
	if err != nil {
		return err
	}
	defer func() { _ = a.logger.Sync() }()
	defer a.provider.Close()

	ctx := cmd.Context()
	if err := a.store.Start(ctx); err != nil {
		return err
	}
	defer a.store.Stop()

	return fn(ctx, a)
}
