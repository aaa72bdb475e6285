// Package apiclient is a thin JSON HTTP client shared by the coordinator
// and client binaries, replacing the teacher's gRPC stub (pkg/collaborator)
// with plain net/http calls against the aggregation server.
package apiclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Client talks to an aggregation server's HTTP API.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client against baseURL, using transport (nil for
// http.DefaultTransport) so callers can plug in mTLS.
func New(baseURL string, transport http.RoundTripper) *Client {
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (c *Client) do(method, path string, body interface{}, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("apiclient: encoding request: %w", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("apiclient: building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("apiclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errBody map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errBody)
		return fmt.Errorf("apiclient: %s %s: status %d: %v", method, path, resp.StatusCode, errBody)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// Register registers clientID with the server and returns the full roster.
func (c *Client) Register(clientID string) ([]string, error) {
	var out struct {
		OK      bool     `json:"OK"`
		Clients []string `json:"clients"`
	}
	if err := c.do("POST", "/register", map[string]string{"client_id": clientID}, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// Roster returns the currently registered client ids.
func (c *Client) Roster() ([]string, error) {
	var out struct {
		Clients []string `json:"clients"`
	}
	if err := c.do("GET", "/roster", nil, &out); err != nil {
		return nil, err
	}
	return out.Clients, nil
}

// Model describes the current global model as returned by GET /model.
type Model struct {
	TrainingRound   int       `json:"training_round"`
	TrainingWeights []float64 `json:"training_weights"`
	FeatureWeight   int       `json:"feature_weight"`
}

// Model fetches the current global model.
func (c *Client) Model() (Model, error) {
	var out Model
	err := c.do("GET", "/model", nil, &out)
	return out, err
}

// ConfigureRound configures the next round's expected participant set.
func (c *Client) ConfigureRound(participants []string) ([]string, error) {
	var out struct {
		Participants []string `json:"participants"`
	}
	err := c.do("POST", "/configure-training-round", map[string][]string{"participants": participants}, &out)
	return out.Participants, err
}

// Status describes the live round-progress snapshot from GET /status.
type Status struct {
	Round      int      `json:"round"`
	Registered []string `json:"registered"`
	Expected   []string `json:"expected"`
	Received   []string `json:"received"`
}

// Status fetches the current round-progress snapshot.
func (c *Client) Status() (Status, error) {
	var out Status
	err := c.do("GET", "/status", nil, &out)
	return out, err
}

// FinishRoundResult is the response to POST /finish-round.
type FinishRoundResult struct {
	OK     bool      `json:"OK"`
	Round  int       `json:"round"`
	Weight []float64 `json:"weight"`
}

// FinishRound requests aggregation of the current round's submissions.
func (c *Client) FinishRound() (FinishRoundResult, error) {
	var out FinishRoundResult
	err := c.do("POST", "/finish-round", nil, &out)
	return out, err
}

// SubmitUpdateResult is the response to POST /submit-update.
type SubmitUpdateResult struct {
	OK          bool   `json:"OK"`
	Received    int    `json:"received"`
	AllReceived bool   `json:"all_received"`
	Error       string `json:"error"`
}

// SubmitUpdate submits a masked update vector and optional metrics for round.
func (c *Client) SubmitUpdate(clientID string, round int, maskedUpdate []float64, metrics map[string]float64) (SubmitUpdateResult, error) {
	req := map[string]interface{}{
		"client_id":     clientID,
		"round":         round,
		"masked_update": maskedUpdate,
	}
	if metrics != nil {
		req["metrics"] = metrics
	}
	var out SubmitUpdateResult
	if err := c.do("POST", "/submit-update", req, &out); err != nil {
		return out, err
	}
	if !out.OK {
		return out, fmt.Errorf("apiclient: submit-update rejected: %s", out.Error)
	}
	return out, nil
}
