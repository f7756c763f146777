package server_test

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/sandrolain/searchexpr/internal/server"
	"github.com/sandrolain/searchexpr/pkg/evaluator"
	"github.com/sandrolain/searchexpr/pkg/metrics"
	"github.com/sandrolain/searchexpr/pkg/provider"
	"github.com/sandrolain/searchexpr/pkg/types"
)

func newServer(t *testing.T) (*server.Server, *metrics.Metrics) {
	t.Helper()
	var records []*types.Record
	for _, name := range []string{"Cube", "Sphere", "Capsule", "Plane"} {
		r := &types.Record{ID: strings.ToLower(name), Label: name, Value: name}
		r.SetField("type", "mesh")
		records = append(records, r)
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	src := provider.NewSet([]provider.Provider{provider.NewMemory("assets", records...)})
	ev := evaluator.New(evaluator.WithSource(src), evaluator.WithMetrics(m))
	return server.New(ev, server.WithMetrics(m), server.WithGatherer(reg)), m
}

func post(t *testing.T, s *server.Server, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/v1/eval", bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestEval(t *testing.T) {
	s, m := newServer(t)

	w := post(t, s, server.EvalRequest{Query: "count{t:mesh}"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get("X-Request-ID"))

	var resp server.EvalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, 4.0, resp.Records[0].Value)

	require.Equal(t, 1.0, testutil.ToFloat64(m.RequestTotal.WithLabelValues("POST", "/v1/eval", "200")))
}

func TestEvalLimit(t *testing.T) {
	s, _ := newServer(t)
	w := post(t, s, server.EvalRequest{Query: "*", Limit: 2})
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.EvalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 2, resp.Count)
	require.Equal(t, "cube", resp.Records[0].ID)
}

func TestEvalBindings(t *testing.T) {
	s, _ := newServer(t)
	w := post(t, s, server.EvalRequest{Query: "label=$name", Bindings: map[string]interface{}{"name": "Plane"}})
	require.Equal(t, http.StatusOK, w.Code)

	var resp server.EvalResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 1, resp.Count)
	require.Equal(t, "plane", resp.Records[0].ID)
}

func TestEvalErrors(t *testing.T) {
	s, _ := newServer(t)
	tests := []struct {
		name   string
		body   interface{}
		status int
		code   string
	}{
		{"empty query", server.EvalRequest{}, http.StatusBadRequest, ""},
		{"unknown evaluator", server.EvalRequest{Query: "badEvaluatorName{1,2}"}, http.StatusBadRequest, string(types.ErrUnknownEvaluator)},
		{"parse error", server.EvalRequest{Query: `first{"open`}, http.StatusBadRequest, string(types.ErrStringNotClosed)},
		{"unresolved variable", server.EvalRequest{Query: "label=$missing"}, http.StatusUnprocessableEntity, string(types.ErrUnresolvedVariable)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(t, s, tt.body)
			require.Equal(t, tt.status, w.Code)
			var resp server.ErrorResponse
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			require.NotEmpty(t, resp.Error)
			require.Equal(t, tt.code, resp.Code)
		})
	}
}

func TestEvalStream(t *testing.T) {
	s, _ := newServer(t)
	// Streaming flushes through a real connection; the recorder cannot
	// report client disconnects.
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	data, err := json.Marshal(server.EvalRequest{Query: "*", Stream: true, Limit: 3})
	require.NoError(t, err)
	resp, err := ts.Client().Post(ts.URL+"/v1/eval", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	var ids []string
	sc := bufio.NewScanner(resp.Body)
	for sc.Scan() {
		var r types.Record
		require.NoError(t, json.Unmarshal(sc.Bytes(), &r))
		ids = append(ids, r.ID)
	}
	require.NoError(t, sc.Err())
	require.Equal(t, []string{"cube", "sphere", "capsule"}, ids)
}

func TestEvaluatorsAndMetrics(t *testing.T) {
	s, _ := newServer(t)

	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/v1/evaluators", nil))
	require.Equal(t, http.StatusOK, w.Code)
	var infos []map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &infos))
	require.NotEmpty(t, infos)

	post(t, s, server.EvalRequest{Query: "first{*}"})
	w = httptest.NewRecorder()
	s.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "searchexpr_evaluator_calls_total")
}
