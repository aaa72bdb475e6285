// Package roundstate holds the aggregator's authoritative round state: the
// registered roster, the expected set for the in-progress round, collected
// masked updates, per-round metrics, and the append-only history. A single
// mutex guards the whole state; every public method is a complete critical
// section, matching the locking discipline of the teacher's in-memory
// storage backend (pkg/monitoring/storage_memory.go).
package roundstate

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Algorithm aggregates a round's collected updates into the vector added
// to the global model. Only Mean (FedAvg) ships: pairwise mask
// cancellation holds only under an arithmetic mean, so other weightings
// would leave residual mask noise in the aggregate. The seam stays open
// for a future masked-compatible algorithm.
type Algorithm interface {
	Name() string
	Aggregate(updates map[string][]float64, dim int) ([]float64, error)
}

// MeanAlgorithm implements plain FedAvg: the arithmetic mean of the
// collected (masked) update vectors.
type MeanAlgorithm struct{}

func (MeanAlgorithm) Name() string { return "fedavg" }

func (MeanAlgorithm) Aggregate(updates map[string][]float64, dim int) ([]float64, error) {
	if len(updates) == 0 {
		return nil, fmt.Errorf("roundstate: no updates to aggregate")
	}

	sum := make([]float64, dim)
	for id, vec := range updates {
		if len(vec) != dim {
			return nil, fmt.Errorf("roundstate: update from %s has length %d, want %d", id, len(vec), dim)
		}
		for i, v := range vec {
			sum[i] += v
		}
	}

	n := float64(len(updates))
	for i := range sum {
		sum[i] /= n
	}
	return sum, nil
}

// HistoryRecord is one completed round's summary, appended in order.
type HistoryRecord struct {
	ID            string             `json:"id"`
	Round         int                `json:"round"`
	TimestampUTC  time.Time          `json:"timestamp_utc"`
	Participants  []string           `json:"participants"`
	Received      int                `json:"received"`
	WeightNorm    float64            `json:"weight_norm"`
	Accuracy      map[string]float64 `json:"accuracy"`
}

// State is the server's authoritative, thread-safe round state.
type State struct {
	mu sync.Mutex

	dim       int
	weights   []float64
	round     int
	algorithm Algorithm

	registered    []string
	registeredSet map[string]struct{}

	expected map[string]struct{}
	updates  map[string][]float64
	metrics  map[int]map[string]map[string]float64 // round -> client -> metric bag

	history []HistoryRecord
}

// New creates state for a model with F features (dimension F+1), zero
// initialized, with no registered clients and no round in progress.
func New(features int) *State {
	return &State{
		dim:           features + 1,
		weights:       make([]float64, features+1),
		algorithm:     MeanAlgorithm{},
		registeredSet: make(map[string]struct{}),
		expected:      make(map[string]struct{}),
		updates:       make(map[string][]float64),
		metrics:       make(map[int]map[string]map[string]float64),
	}
}

// Dim returns the model's weight vector length, F+1.
func (s *State) Dim() int {
	return s.dim
}

// Register idempotently appends id to the roster.
func (s *State) Register(id string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.registeredSet[id]; !ok {
		s.registeredSet[id] = struct{}{}
		s.registered = append(s.registered, id)
	}
	return s.copyRegistered()
}

// Roster returns a copy of the current registered client list.
func (s *State) Roster() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.copyRegistered()
}

func (s *State) copyRegistered() []string {
	out := make([]string, len(s.registered))
	copy(out, s.registered)
	return out
}

// Model returns the current round number, a copy of the weight vector,
// and the feature count F.
func (s *State) Model() (round int, weights []float64, featureWeight int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := make([]float64, len(s.weights))
	copy(w, s.weights)
	return s.round, w, s.dim - 1
}

// Round returns the current round number alone.
func (s *State) Round() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.round
}

// SubmitRejection enumerates the reasons SubmitUpdate can refuse a
// submission without storing it.
type SubmitRejection string

const (
	RejectNone               SubmitRejection = ""
	RejectRoundNotConfigured SubmitRejection = "round_not_configured"
	RejectNotExpected        SubmitRejection = "not_expected"
	RejectWrongRound         SubmitRejection = "wrong_round"
)

// ConfigureRound sets expected to participants and clears updates for the
// new round. Allowed any time; reconfiguring mid-round (expected non-empty)
// simply replaces the prior expected set and discards partial updates,
// matching the teacher's "reconfiguration of an empty round" allowance
// generalized to the operator-triggered case.
func (s *State) ConfigureRound(participants []string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	expected := make(map[string]struct{}, len(participants))
	for _, p := range participants {
		expected[p] = struct{}{}
	}
	s.expected = expected
	s.updates = make(map[string][]float64)

	out := make([]string, len(participants))
	copy(out, participants)
	return out
}

// Expected returns the set of clients configured for the current round, as
// a slice in unspecified order.
func (s *State) Expected() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.expected))
	for id := range s.expected {
		out = append(out, id)
	}
	return out
}

// Received returns the client ids that have submitted in the current
// round, as a slice in unspecified order.
func (s *State) Received() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.updates))
	for id := range s.updates {
		out = append(out, id)
	}
	return out
}

// SubmitUpdate validates and stores a masked update for the current round.
// Checks run in this fixed order:
//  1. round_not_configured if no round is in progress
//  2. not_expected if clientID isn't in the configured set
//  3. wrong_round if round doesn't match the server's current round
//
// On success it also records metrics (if non-nil) and returns the
// post-insertion received count and whether all expected clients have now
// submitted.
func (s *State) SubmitUpdate(clientID string, round int, vec []float64, metrics map[string]float64) (received int, allReceived bool, rejection SubmitRejection, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.expected) == 0 {
		return 0, false, RejectRoundNotConfigured, nil
	}
	if _, ok := s.expected[clientID]; !ok {
		return 0, false, RejectNotExpected, nil
	}
	if round != s.round {
		return 0, false, RejectWrongRound, nil
	}
	if len(vec) != s.dim {
		return 0, false, RejectNone, fmt.Errorf("roundstate: update length %d does not match dimension %d", len(vec), s.dim)
	}

	stored := make([]float64, len(vec))
	copy(stored, vec)
	s.updates[clientID] = stored

	if metrics != nil {
		bucket, ok := s.metrics[s.round]
		if !ok {
			bucket = make(map[string]map[string]float64)
			s.metrics[s.round] = bucket
		}
		copied := make(map[string]float64, len(metrics))
		for k, v := range metrics {
			copied[k] = v
		}
		bucket[clientID] = copied
	}

	return len(s.updates), s.allReceivedLocked(), RejectNone, nil
}

func (s *State) allReceivedLocked() bool {
	if len(s.updates) != len(s.expected) {
		return false
	}
	for id := range s.expected {
		if _, ok := s.updates[id]; !ok {
			return false
		}
	}
	return true
}

// AllReceived reports whether the collected updates exactly match the
// expected set.
func (s *State) AllReceived() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allReceivedLocked()
}

// ErrIncomplete is returned by FinishRound when not all expected clients
// have submitted.
var ErrIncomplete = fmt.Errorf("roundstate: incomplete")

// FinishRound aggregates the collected updates, advances the global
// weights and round counter, appends a history record, and clears
// expected/updates for the next round. It holds the lock for the whole
// aggregate+update+append+clear+increment sequence, an O(n*D) operation
// bounded by the round's participant count and model dimension.
func (s *State) FinishRound() (newRound int, weights []float64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.allReceivedLocked() {
		return 0, nil, ErrIncomplete
	}

	agg, err := s.algorithm.Aggregate(s.updates, s.dim)
	if err != nil {
		return 0, nil, err
	}

	for i := range s.weights {
		s.weights[i] += agg[i]
	}

	roundLabel := s.round + 1
	participants := make([]string, 0, len(s.updates))
	for id := range s.updates {
		participants = append(participants, id)
	}
	sort.Strings(participants)

	accuracy := make(map[string]float64)
	if bucket, ok := s.metrics[s.round]; ok {
		for id, bag := range bucket {
			if v, ok := bag["accuracy"]; ok {
				accuracy[id] = v
			}
		}
	}
	delete(s.metrics, s.round)

	record := HistoryRecord{
		ID:           uuid.NewString(),
		Round:        roundLabel,
		TimestampUTC: time.Now().UTC(),
		Participants: participants,
		Received:     len(s.updates),
		WeightNorm:   l2Norm(s.weights),
		Accuracy:     accuracy,
	}
	s.history = append(s.history, record)

	s.round++
	s.expected = make(map[string]struct{})
	s.updates = make(map[string][]float64)

	w := make([]float64, len(s.weights))
	copy(w, s.weights)
	return s.round, w, nil
}

// History returns a copy of the append-only per-round record list.
func (s *State) History() []HistoryRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]HistoryRecord, len(s.history))
	copy(out, s.history)
	return out
}

func l2Norm(v []float64) float64 {
	var sum float64
	for _, x := range v {
		sum += x * x
	}
	return math.Sqrt(sum)
}
