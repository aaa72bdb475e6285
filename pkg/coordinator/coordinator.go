// Package coordinator drives the server through a fixed number of
// training rounds: wait for enough registered clients, configure each
// round's participant set, poll for completion, and request aggregation,
// generalizing the teacher's collaborator dial/train/submit staging
// (pkg/collaborator/collaborator.go) to an operator-side driver loop,
// grounded on the original system's controller.coordinator.
package coordinator

import (
	"context"
	"fmt"
	"log"
	"math"
	"time"

	"github.com/ishaileshpant/secureagg-fl/pkg/apiclient"
)

// Config controls a coordination run.
type Config struct {
	Rounds       int
	MinClients   int
	PollInterval time.Duration
	RoundTimeout time.Duration
}

// RoundTiming records how long one round took to complete.
type RoundTiming struct {
	Round    int
	Duration time.Duration
	TimedOut bool
}

// Summary is the training run's final report, matching the original
// controller's end-of-run printout.
type Summary struct {
	RoundsRun       int
	PerRoundTime    []RoundTiming
	TotalDuration   time.Duration
	FinalRound      int
	FinalWeights    []float64
	WeightNorm      float64
}

// Run waits for the configured minimum client count, then drives cfg.Rounds
// rounds to completion against client, returning a training summary.
func Run(ctx context.Context, client *apiclient.Client, cfg Config) (Summary, error) {
	roster, err := waitForRoster(ctx, client, cfg.MinClients, cfg.PollInterval)
	if err != nil {
		return Summary{}, err
	}
	log.Printf("coordinator: roster ready: %v", roster)

	start := time.Now()
	timings := make([]RoundTiming, 0, cfg.Rounds)

	for round := 0; round < cfg.Rounds; round++ {
		roundStart := time.Now()

		participants, err := client.ConfigureRound(roster)
		if err != nil {
			return Summary{}, fmt.Errorf("coordinator: configuring round %d: %w", round, err)
		}
		log.Printf("coordinator: round %d configured %v", round, participants)

		timedOut, err := waitForSubmissions(ctx, client, cfg.RoundTimeout, cfg.PollInterval)
		if err != nil {
			return Summary{}, fmt.Errorf("coordinator: waiting for round %d: %w", round, err)
		}
		if timedOut {
			log.Printf("coordinator: round %d timed out waiting for updates, proceeding anyway", round)
		}

		result, err := client.FinishRound()
		if err != nil {
			return Summary{}, fmt.Errorf("coordinator: finishing round %d: %w", round, err)
		}
		elapsed := time.Since(roundStart)
		timings = append(timings, RoundTiming{Round: round, Duration: elapsed, TimedOut: timedOut})
		log.Printf("coordinator: round %d aggregated, server round now %d (%.2fs)", round, result.Round, elapsed.Seconds())
	}

	total := time.Since(start)

	model, err := client.Model()
	if err != nil {
		return Summary{}, fmt.Errorf("coordinator: fetching final model: %w", err)
	}

	return Summary{
		RoundsRun:     cfg.Rounds,
		PerRoundTime:  timings,
		TotalDuration: total,
		FinalRound:    model.TrainingRound,
		FinalWeights:  model.TrainingWeights,
		WeightNorm:    l2Norm(model.TrainingWeights),
	}, nil
}

func waitForRoster(ctx context.Context, client *apiclient.Client, minClients int, pollInterval time.Duration) ([]string, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		roster, err := client.Roster()
		if err != nil {
			return nil, fmt.Errorf("fetching roster: %w", err)
		}
		if len(roster) >= minClients {
			return roster, nil
		}
		log.Printf("coordinator: waiting for clients, have %d/%d", len(roster), minClients)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func waitForSubmissions(ctx context.Context, client *apiclient.Client, timeout, pollInterval time.Duration) (timedOut bool, err error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		status, err := client.Status()
		if err != nil {
			return false, fmt.Errorf("fetching status: %w", err)
		}
		if setsEqual(status.Received, status.Expected) {
			return false, nil
		}
		if time.Now().After(deadline) {
			return true, nil
		}

		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

func setsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, v := range a {
		set[v] = struct{}{}
	}
	for _, v := range b {
		if _, ok := set[v]; !ok {
			return false
		}
	}
	return true
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
