package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ishaileshpant/secureagg-fl/pkg/apiclient"
	"github.com/ishaileshpant/secureagg-fl/pkg/client"
)

// sharedSecret is the process-wide mask secret. Production deployments
// MUST replace this with a genuine out-of-band shared secret.
var sharedSecret = []byte("secureagg-fl-dev-secret")

var (
	serverAddr   string
	clientID     string
	samples      int
	rounds       int
	learningRate float64
	seed         int64
)

var rootCmd = &cobra.Command{
	Use:   "client",
	Short: "Run one federated-learning client",
	Long:  "Registers with an aggregation server, trains a local logistic regression model, and submits pairwise-masked updates round by round.",
	RunE:  runClient,
}

func main() {
	rootCmd.Flags().StringVar(&serverAddr, "server", "http://127.0.0.1:8000", "base URL of the aggregation server")
	rootCmd.Flags().StringVar(&clientID, "client-id", "", "unique identifier for this client (required)")
	rootCmd.Flags().IntVar(&samples, "samples", 300, "number of local training samples to generate")
	rootCmd.Flags().IntVar(&rounds, "rounds", 10, "number of training rounds to participate in")
	rootCmd.Flags().Float64Var(&learningRate, "lr", 0.5, "gradient descent learning rate")
	rootCmd.Flags().Int64Var(&seed, "seed", 1234, "base seed for local dataset generation")
	_ = rootCmd.MarkFlagRequired("client-id")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func runClient(cmd *cobra.Command, args []string) error {
	api := apiclient.New(serverAddr, nil)

	return client.Run(context.Background(), api, client.Config{
		ClientID:     clientID,
		Secret:       sharedSecret,
		Samples:      samples,
		Rounds:       rounds,
		LearningRate: learningRate,
		Epochs:       1,
		BaseSeed:     seed,
		PollInterval: 500 * time.Millisecond,
		Prevalence:   0.12,
	})
}
