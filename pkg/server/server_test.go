package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ishaileshpant/secureagg-fl/pkg/metrics"
	"github.com/ishaileshpant/secureagg-fl/pkg/roundstate"
)

func newTestServer(features int) (*Server, *roundstate.State) {
	st := roundstate.New(features)
	m := metrics.New(prometheus.NewRegistry())
	return New(st, m), st
}

func doJSON(t *testing.T, handler http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec, out
}

func TestS1_TwoClientsOneRoundZeroDeltas(t *testing.T) {
	srv, _ := newTestServer(3)
	h := srv.Handler()

	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "A"})
	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "B"})
	doJSON(t, h, "POST", "/configure-training-round", configureRequest{Participants: []string{"A", "B"}})

	zero := make([]float64, 4)
	rec, out := doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "A", Round: 0, MaskedUpdate: zero})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["OK"])

	rec, out = doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "B", Round: 0, MaskedUpdate: zero})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, out["all_received"])

	rec, out = doJSON(t, h, "POST", "/finish-round", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["round"])

	rec, out = doJSON(t, h, "GET", "/model", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, out["training_round"])
	weights, ok := out["training_weights"].([]interface{})
	require.True(t, ok)
	for _, w := range weights {
		assert.InDelta(t, 0.0, w, 1e-9)
	}
}

func TestS4_RejectNotExpected(t *testing.T) {
	srv, _ := newTestServer(3)
	h := srv.Handler()

	for _, id := range []string{"A", "B", "C"} {
		doJSON(t, h, "POST", "/register", registerRequest{ClientID: id})
	}
	doJSON(t, h, "POST", "/configure-training-round", configureRequest{Participants: []string{"A", "B"}})

	rec, out := doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "C", Round: 0, MaskedUpdate: make([]float64, 4)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "not_expected", out["error"])
}

func TestS5_RejectWrongRound(t *testing.T) {
	srv, _ := newTestServer(3)
	h := srv.Handler()

	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "A"})
	doJSON(t, h, "POST", "/configure-training-round", configureRequest{Participants: []string{"A"}})

	rec, out := doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "A", Round: 1, MaskedUpdate: make([]float64, 4)})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "wrong_round", out["error"])
}

func TestS6_IncompleteFinish(t *testing.T) {
	srv, _ := newTestServer(3)
	h := srv.Handler()

	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "A"})
	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "B"})
	doJSON(t, h, "POST", "/configure-training-round", configureRequest{Participants: []string{"A", "B"}})
	doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "A", Round: 0, MaskedUpdate: make([]float64, 4)})

	rec, _ := doJSON(t, h, "POST", "/finish-round", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec, out := doJSON(t, h, "GET", "/model", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 0, out["training_round"])
}

func TestSubmitBeforeConfigureReturnsRoundNotConfigured(t *testing.T) {
	srv, _ := newTestServer(2)
	h := srv.Handler()

	doJSON(t, h, "POST", "/register", registerRequest{ClientID: "A"})
	rec, out := doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "A", Round: 0, MaskedUpdate: make([]float64, 3)})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "round_not_configured", out["error"])
}

func TestRoundMonotonicAcrossRequests(t *testing.T) {
	srv, st := newTestServer(1)
	h := srv.Handler()

	st.Register("A")
	last := 0
	for i := 0; i < 3; i++ {
		doJSON(t, h, "POST", "/configure-training-round", configureRequest{Participants: []string{"A"}})
		doJSON(t, h, "POST", "/submit-update", submitRequest{ClientID: "A", Round: i, MaskedUpdate: []float64{0, 0}})
		_, out := doJSON(t, h, "POST", "/finish-round", nil)
		round := int(out["round"].(float64))
		assert.GreaterOrEqual(t, round, last)
		last = round
	}
	assert.Equal(t, 3, last)
}
