// Package client implements one federated-learning participant's protocol
// loop: register, learn the feature count, generate a local dataset, then
// for each round fetch the model, train one local pass, mask the delta
// against the round's participant set, and submit.
package client

import (
	"context"
	"fmt"
	"hash/fnv"
	"log"
	"time"

	"github.com/ishaileshpant/secureagg-fl/pkg/apiclient"
	"github.com/ishaileshpant/secureagg-fl/pkg/learner"
	"github.com/ishaileshpant/secureagg-fl/pkg/mask"
)

// Config controls one client process's run.
type Config struct {
	ClientID     string
	Secret       []byte
	Samples      int
	Rounds       int
	LearningRate float64
	Epochs       int
	BaseSeed     int64
	PollInterval time.Duration
	Prevalence   float64
}

// Run drives cfg.ClientID through cfg.Rounds rounds against the server
// behind api.
func Run(ctx context.Context, api *apiclient.Client, cfg Config) error {
	if _, err := api.Register(cfg.ClientID); err != nil {
		return fmt.Errorf("client %s: registering: %w", cfg.ClientID, err)
	}

	initial, err := api.Model()
	if err != nil {
		return fmt.Errorf("client %s: fetching initial model: %w", cfg.ClientID, err)
	}

	seed := cfg.BaseSeed + int64(stableHash(cfg.ClientID)%1000)
	dataset := GenerateDataset(cfg.Samples, initial.FeatureWeight, seed, cfg.Prevalence)
	model := learner.New(initial.FeatureWeight)

	log.Printf("client %s: registered, F=%d, %d local samples", cfg.ClientID, initial.FeatureWeight, cfg.Samples)

	for round := 0; round < cfg.Rounds; round++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		current, err := api.Model()
		if err != nil {
			return fmt.Errorf("client %s: round %d: fetching model: %w", cfg.ClientID, round, err)
		}
		if err := model.SetWeights(current.TrainingWeights); err != nil {
			return fmt.Errorf("client %s: round %d: adopting global weights: %w", cfg.ClientID, round, err)
		}

		expected, err := waitUntilExpected(ctx, api, cfg.ClientID, current.TrainingRound, cfg.PollInterval)
		if err != nil {
			return fmt.Errorf("client %s: round %d: waiting to be expected: %w", cfg.ClientID, round, err)
		}

		delta := model.UpdateLocal(dataset.X, dataset.Y, cfg.Epochs, cfg.LearningRate)
		accuracy := model.Accuracy(dataset.X, dataset.Y)

		maskSum := mask.Sum(cfg.Secret, cfg.ClientID, expected, model.Dim())
		maskedUpdate := make([]float64, model.Dim())
		for i := range maskedUpdate {
			maskedUpdate[i] = delta[i] + maskSum[i]
		}

		result, err := api.SubmitUpdate(cfg.ClientID, current.TrainingRound, maskedUpdate, map[string]float64{"accuracy": accuracy})
		if err != nil {
			return fmt.Errorf("client %s: round %d: submitting update: %w", cfg.ClientID, round, err)
		}
		log.Printf("client %s: round %d submitted (accuracy=%.3f, received=%d, all_received=%v)",
			cfg.ClientID, round, accuracy, result.Received, result.AllReceived)

		if err := waitForRoundAdvance(ctx, api, current.TrainingRound, cfg.PollInterval); err != nil {
			return fmt.Errorf("client %s: round %d: waiting for advance: %w", cfg.ClientID, round, err)
		}
	}

	return nil
}

// waitUntilExpected polls /status until round matches the model round the
// client last observed and clientID is a member of the expected set, then
// returns that expected set — the participant list masks must be computed
// against, per the round's authoritative configuration rather than a
// possibly-stale /roster snapshot.
func waitUntilExpected(ctx context.Context, api *apiclient.Client, clientID string, modelRound int, pollInterval time.Duration) ([]string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := api.Status()
		if err != nil {
			return nil, err
		}
		if status.Round == modelRound && contains(status.Expected, clientID) {
			return status.Expected, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func waitForRoundAdvance(ctx context.Context, api *apiclient.Client, priorRound int, pollInterval time.Duration) error {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		model, err := api.Model()
		if err != nil {
			return err
		}
		if model.TrainingRound >= priorRound+1 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func contains(list []string, v string) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func stableHash(s string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return h.Sum32()
}
