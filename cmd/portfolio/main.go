package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/cosmofolio/go-cosmofolio/env"
	"github.com/cosmofolio/go-cosmofolio/server"
	"github.com/cosmofolio/go-cosmofolio/service/logger"
	"github.com/cosmofolio/go-cosmofolio/service/multichain"
	"github.com/cosmofolio/go-cosmofolio/service/persist"
	sentryutil "github.com/cosmofolio/go-cosmofolio/service/sentry"
)

func init() {
	env.RegisterValidation("PORT", "")
}

func main() {
	defer sentryutil.RecoverAndRaise(nil)

	rootCmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Cross-chain portfolio aggregator",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			godotenv.Load()
			return env.Validate()
		},
	}
	rootCmd.AddCommand(serveCmd(), fetchCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the snapshot HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			router, cleanup, err := server.Init(ctx)
			if err != nil {
				return err
			}
			defer cleanup()
			port := env.GetStringOrDefault("PORT", "4000")
			logger.For(ctx).Infof("serving on :%s", port)
			return router.Run(":" + port)
		},
	}
}

func fetchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "fetch <chain>:<address> [<chain>:<address>...]",
		Short: "One-shot fetch and print the portfolio as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()

			addrs := persist.AddressMap{}
			for _, arg := range args {
				chainName, address, ok := strings.Cut(arg, ":")
				if !ok {
					return fmt.Errorf("expected <chain>:<address>, got %q", arg)
				}
				chain, found := persist.ChainFromName(chainName)
				if !found {
					return fmt.Errorf("unknown chain %q", chainName)
				}
				if _, err := addrs.AddManual(chain, persist.Address(address)); err != nil {
					return err
				}
			}

			provider, cleanup, err := server.NewPortfolioProvider(ctx, nil, multichain.Hooks{
				OnAddressFetched: func(chain persist.Chain) {
					logger.For(ctx).Infof("finished fetching %s", chain)
				},
			})
			if err != nil {
				return err
			}
			defer cleanup()

			provider.SyncAddresses(ctx, addrs)
			provider.StopWait()

			out, err := json.MarshalIndent(provider.Snapshot(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
}
