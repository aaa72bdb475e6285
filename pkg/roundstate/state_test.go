package roundstate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.Register("B")
	s.Register("A")

	assert.Equal(t, []string{"A", "B"}, s.Roster())
}

func TestModelStartsAtZero(t *testing.T) {
	s := New(3)
	round, weights, f := s.Model()
	assert.Equal(t, 0, round)
	assert.Equal(t, 4, f+1)
	for _, w := range weights {
		assert.Zero(t, w)
	}
}

func TestSubmitBeforeConfigureRejected(t *testing.T) {
	s := New(3)
	s.Register("A")

	_, _, rejection, err := s.SubmitUpdate("A", 0, make([]float64, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, RejectRoundNotConfigured, rejection)
}

func TestSubmitNotExpectedRejected(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.Register("B")
	s.Register("C")
	s.ConfigureRound([]string{"A", "B"})

	_, _, rejection, err := s.SubmitUpdate("C", 0, make([]float64, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, RejectNotExpected, rejection)
}

func TestSubmitWrongRoundRejected(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.ConfigureRound([]string{"A"})

	_, _, rejection, err := s.SubmitUpdate("A", 1, make([]float64, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, RejectWrongRound, rejection)
}

func TestSubmitLengthMismatchErrors(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.ConfigureRound([]string{"A"})

	_, _, rejection, err := s.SubmitUpdate("A", 0, make([]float64, 2), nil)
	require.Error(t, err)
	assert.Equal(t, RejectNone, rejection)
}

func TestFinishRoundIncomplete(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.Register("B")
	s.ConfigureRound([]string{"A", "B"})

	_, _, rejection, err := s.SubmitUpdate("A", 0, make([]float64, 4), nil)
	require.NoError(t, err)
	assert.Equal(t, RejectNone, rejection)

	_, _, err = s.FinishRound()
	require.ErrorIs(t, err, ErrIncomplete)
	assert.Equal(t, 0, s.Round())
}

func TestFinishRoundZeroDeltasKeepsWeightsZero(t *testing.T) {
	s := New(3)
	s.Register("A")
	s.Register("B")
	s.ConfigureRound([]string{"A", "B"})

	zero := make([]float64, 4)
	s.SubmitUpdate("A", 0, zero, map[string]float64{"accuracy": 0.5})
	received, allReceived, rejection, err := s.SubmitUpdate("B", 0, zero, map[string]float64{"accuracy": 0.6})
	require.NoError(t, err)
	assert.Equal(t, RejectNone, rejection)
	assert.Equal(t, 2, received)
	assert.True(t, allReceived)

	round, weights, err := s.FinishRound()
	require.NoError(t, err)
	assert.Equal(t, 1, round)
	for _, w := range weights {
		assert.Zero(t, w)
	}

	hist := s.History()
	require.Len(t, hist, 1)
	assert.Equal(t, 1, hist[0].Round)
	assert.Equal(t, 2, hist[0].Received)
	assert.Equal(t, []string{"A", "B"}, hist[0].Participants)
	assert.InDelta(t, 0.5, hist[0].Accuracy["A"], 1e-9)
	assert.InDelta(t, 0.6, hist[0].Accuracy["B"], 1e-9)
}

func TestFinishRoundAveragesDeltas(t *testing.T) {
	s := New(1)
	s.Register("A")
	s.Register("B")
	s.ConfigureRound([]string{"A", "B"})

	s.SubmitUpdate("A", 0, []float64{2, 4}, nil)
	s.SubmitUpdate("B", 0, []float64{0, 0}, nil)

	_, weights, err := s.FinishRound()
	require.NoError(t, err)
	assert.InDelta(t, 1.0, weights[0], 1e-9)
	assert.InDelta(t, 2.0, weights[1], 1e-9)
}

func TestRoundAdvancesAndExpectedClears(t *testing.T) {
	s := New(1)
	s.Register("A")
	s.ConfigureRound([]string{"A"})
	s.SubmitUpdate("A", 0, []float64{0, 0}, nil)
	round, _, err := s.FinishRound()
	require.NoError(t, err)
	assert.Equal(t, 1, round)
	assert.Empty(t, s.Expected())
	assert.Empty(t, s.Received())

	// next round must be configured fresh, against round 1
	_, _, rejection, _ := s.SubmitUpdate("A", 1, []float64{0, 0}, nil)
	assert.Equal(t, RejectRoundNotConfigured, rejection)
}

func TestHistoryRoundLabelsAreSequential(t *testing.T) {
	s := New(1)
	s.Register("A")

	for i := 0; i < 3; i++ {
		s.ConfigureRound([]string{"A"})
		s.SubmitUpdate("A", i, []float64{1, 1}, nil)
		_, _, err := s.FinishRound()
		require.NoError(t, err)
	}

	hist := s.History()
	require.Len(t, hist, 3)
	for i, rec := range hist {
		assert.Equal(t, i+1, rec.Round)
	}
}
