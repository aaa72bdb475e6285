package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ishaileshpant/secureagg-fl/pkg/apiclient"
	"github.com/ishaileshpant/secureagg-fl/pkg/config"
	"github.com/ishaileshpant/secureagg-fl/pkg/coordinator"
)

var (
	serverAddr string
	rounds     int
	minClients int
)

var rootCmd = &cobra.Command{
	Use:   "coordinator",
	Short: "Drive a secure-aggregation training run",
	Long:  "Waits for clients to register, then configures and completes a fixed number of training rounds against an aggregation server.",
	RunE:  runCoordinator,
}

func main() {
	defaults := config.Default()
	rootCmd.Flags().StringVar(&serverAddr, "server", "http://127.0.0.1:8000", "base URL of the aggregation server")
	rootCmd.Flags().IntVar(&rounds, "rounds", defaults.Training.Rounds, "number of training rounds to run")
	rootCmd.Flags().IntVar(&minClients, "min-clients", defaults.Training.MinClients, "minimum number of registered clients required to start")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runCoordinator(cmd *cobra.Command, args []string) error {
	defaults := config.Default()
	api := apiclient.New(serverAddr, nil)

	summary, err := coordinator.Run(context.Background(), api, coordinator.Config{
		Rounds:       rounds,
		MinClients:   minClients,
		PollInterval: defaults.Training.PollInterval,
		RoundTimeout: defaults.Training.RoundTimeout,
	})
	if err != nil {
		return err
	}

	printSummary(summary, serverAddr)
	return nil
}

func printSummary(summary coordinator.Summary, serverAddr string) {
	fmt.Println("\n===== TRAINING SUMMARY =====")
	fmt.Printf("Rounds run           : %d\n", summary.RoundsRun)
	for _, t := range summary.PerRoundTime {
		status := ""
		if t.TimedOut {
			status = " (timed out)"
		}
		fmt.Printf("  round %-3d          : %.2fs%s\n", t.Round, t.Duration.Seconds(), status)
	}
	fmt.Printf("Total time (s)       : %.2f\n", summary.TotalDuration.Seconds())
	fmt.Printf("Final server round   : %d\n", summary.FinalRound)
	fmt.Printf("Weight vector length : %d\n", len(summary.FinalWeights))
	fmt.Printf("||w||_2              : %.4f\n", summary.WeightNorm)
	if len(summary.FinalWeights) > 0 {
		head := summary.FinalWeights
		if len(head) > 5 {
			head = head[:5]
		}
		fmt.Printf("First weights        : %v\n", head)
	}
	fmt.Printf("Export URL           : %s/export\n", serverAddr)
}
