package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ishaileshpant/secureagg-fl/pkg/config"
	"github.com/ishaileshpant/secureagg-fl/pkg/roundstate"
	"github.com/ishaileshpant/secureagg-fl/pkg/security"
	"github.com/ishaileshpant/secureagg-fl/pkg/server"
)

var (
	configFile    string
	address       string
	featureWeight int
)

var rootCmd = &cobra.Command{
	Use:   "aggregator",
	Short: "Run the secure-aggregation server",
	Long:  "Runs the HTTP aggregation server that collects masked client updates and advances training rounds.",
	RunE:  runAggregator,
}

func main() {
	rootCmd.Flags().StringVar(&configFile, "config", "", "path to a YAML plan file")
	rootCmd.Flags().StringVar(&address, "address", "", "override the bind address (host:port)")
	rootCmd.Flags().IntVar(&featureWeight, "feature-weight", 0, "override the feature count F (model dimension is F+1)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runAggregator(cmd *cobra.Command, args []string) error {
	plan := config.Default()
	if configFile != "" {
		loaded, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		plan = loaded
	}
	if address != "" {
		plan.Aggregator.Address = address
	}
	if featureWeight != 0 {
		plan.Aggregator.FeatureWeight = featureWeight
	}

	state := roundstate.New(plan.Aggregator.FeatureWeight)
	srv := server.New(state, nil)

	tlsManager, err := security.NewManager(plan.Security, "certs")
	if err != nil {
		return fmt.Errorf("setting up TLS: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe(plan.Aggregator.Address, tlsManager.ServerTLSConfig())
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		return err
	}
}
