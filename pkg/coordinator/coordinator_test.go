package coordinator

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaileshpant/secureagg-fl/pkg/apiclient"
	"github.com/ishaileshpant/secureagg-fl/pkg/roundstate"
	"github.com/ishaileshpant/secureagg-fl/pkg/server"
)

func TestRunDrivesConfiguredRoundsToCompletion(t *testing.T) {
	state := roundstate.New(2)
	srv := server.New(state, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := apiclient.New(ts.URL, nil)
	state.Register("A")
	state.Register("B")

	go func() {
		for i := 0; i < 3; i++ {
			for {
				status, err := client.Status()
				require.NoError(t, err)
				if len(status.Expected) > 0 && len(status.Received) < len(status.Expected) {
					for _, id := range status.Expected {
						already := false
						for _, r := range status.Received {
							if r == id {
								already = true
							}
						}
						if !already {
							_, err := client.SubmitUpdate(id, status.Round, []float64{0, 0, 0}, nil)
							require.NoError(t, err)
						}
					}
				}
				status, err = client.Status()
				require.NoError(t, err)
				if len(status.Received) == len(status.Expected) && len(status.Expected) > 0 {
					break
				}
				time.Sleep(5 * time.Millisecond)
			}
		}
	}()

	summary, err := Run(context.Background(), client, Config{
		Rounds:       3,
		MinClients:   2,
		PollInterval: 5 * time.Millisecond,
		RoundTimeout: 2 * time.Second,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, summary.RoundsRun)
	assert.Equal(t, 3, summary.FinalRound)
	assert.Len(t, summary.PerRoundTime, 3)
	assert.InDelta(t, 0.0, summary.WeightNorm, 1e-9)
}

func TestWaitForRosterRespectsContextCancellation(t *testing.T) {
	state := roundstate.New(1)
	srv := server.New(state, nil)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	client := apiclient.New(ts.URL, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := waitForRoster(ctx, client, 5, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestSetsEqual(t *testing.T) {
	assert.True(t, setsEqual([]string{"a", "b"}, []string{"b", "a"}))
	assert.False(t, setsEqual([]string{"a"}, []string{"a", "b"}))
	assert.True(t, setsEqual(nil, nil))
}
