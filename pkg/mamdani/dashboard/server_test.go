package dashboard

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chosenoffset/mamdani/pkg/mamdani"
	"github.com/chosenoffset/mamdani/pkg/mamdani/actions"
	"github.com/chosenoffset/mamdani/pkg/mamdani/config"
	"github.com/chosenoffset/mamdani/pkg/mamdani/irrigation"
	"github.com/chosenoffset/mamdani/pkg/mamdani/metrics"
)

type fixture struct {
	srv *Server
	ts  *httptest.Server
}

func newFixture(t *testing.T, mutate func(*config.Service)) *fixture {
	t.Helper()

	cfg := config.DefaultService()
	if mutate != nil {
		mutate(&cfg)
	}

	reg := metrics.NewRegistry()
	im := metrics.NewInferenceMetrics(reg)
	acts := actions.NewActionRegistry(nil)

	engine, err := irrigation.New(mamdani.WithObserver(mamdani.Observers{im, acts}))
	require.NoError(t, err)

	srv := New(engine, cfg, WithRegistry(reg), WithInferenceMetrics(im))
	srv.Attach(acts)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		_ = srv.Stop()
	})
	return &fixture{srv: srv, ts: ts}
}

func (f *fixture) post(t *testing.T, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	resp, err := http.Post(f.ts.URL+path, "application/json", &buf)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, raw
}

func scenarioOne() mamdani.Values {
	return irrigation.Reading{SoilMoisture: 5, AirTemperature: 15, SolarRadiation: 30}.Values()
}

func TestCompute(t *testing.T) {
	f := newFixture(t, nil)

	t.Run("Outputs", func(t *testing.T) {
		resp, raw := f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		var out ComputeResponse
		require.NoError(t, json.Unmarshal(raw, &out))
		assert.Equal(t, "ok", out.Status)
		assert.NotEmpty(t, out.ID)
		assert.InDelta(t, 34.0/3.0, out.Outputs[irrigation.Duration], 1e-9)
		assert.Nil(t, out.Trace)
	})

	t.Run("Trace", func(t *testing.T) {
		resp, raw := f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne(), Trace: true})
		require.Equal(t, http.StatusOK, resp.StatusCode)

		var out ComputeResponse
		require.NoError(t, json.Unmarshal(raw, &out))
		require.NotNil(t, out.Trace)
		assert.Len(t, out.Trace.Firings, 15)
		assert.Equal(t, 1.0, out.Trace.Activations[irrigation.Duration][irrigation.VeryLong])
	})

	t.Run("MissingInput", func(t *testing.T) {
		resp, raw := f.post(t, "/api/compute", ComputeRequest{Inputs: mamdani.Values{irrigation.SoilMoisture: 5}})
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
		assert.Contains(t, string(raw), `"kind":"missing_input"`)
	})

	t.Run("BadJSON", func(t *testing.T) {
		resp, _ := f.post(t, "/api/compute", `{"inputs": `)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp, _ = f.post(t, "/api/compute", `{"values": {}}`)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("MethodNotAllowed", func(t *testing.T) {
		resp, _ := f.get(t, "/api/compute")
		assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}

func TestComputeRateLimit(t *testing.T) {
	f := newFixture(t, func(c *config.Service) {
		c.RateLimit = 0.001
		c.RateBurst = 1
	})

	resp, _ := f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, _ = f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
}

func TestBatch(t *testing.T) {
	f := newFixture(t, func(c *config.Service) { c.MaxBatchRows = 3 })

	rows := []mamdani.Values{
		scenarioOne(),
		irrigation.Reading{SoilMoisture: 90}.Values(),
		irrigation.Reading{SoilMoisture: 22.5, AirTemperature: 20, SolarRadiation: 65}.Values(),
	}
	resp, raw := f.post(t, "/api/compute/batch", BatchRequest{Rows: rows})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	var out BatchResponse
	require.NoError(t, json.Unmarshal(raw, &out))
	require.Len(t, out.Outputs, 3)
	assert.InDelta(t, 34.0/3.0, out.Outputs[0][irrigation.Duration], 1e-9)
	assert.InDelta(t, 2.0/3.0, out.Outputs[1][irrigation.Duration], 1e-9)
	assert.InDelta(t, 6.0, out.Outputs[2][irrigation.Duration], 1e-9)

	resp, raw = f.post(t, "/api/compute/batch", BatchRequest{Rows: []mamdani.Values{scenarioOne(), {}}})
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Contains(t, string(raw), `"row":1`)

	resp, _ = f.post(t, "/api/compute/batch", BatchRequest{Rows: append(rows, scenarioOne())})
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
}

func TestModel(t *testing.T) {
	f := newFixture(t, nil)

	resp, raw := f.get(t, "/api/model")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data           config.Model           `json:"data"`
		RequiredInputs []mamdani.VariableName `json:"required_inputs"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Len(t, body.Data.Variables, 4)
	assert.Len(t, body.Data.Rules, 15)
	assert.Len(t, body.RequiredInputs, 3)

	for _, format := range []config.Format{config.TOML, config.YAML} {
		resp, raw := f.get(t, "/api/model?format="+string(format))
		require.Equal(t, http.StatusOK, resp.StatusCode)
		m, err := config.ParseModel(raw, format)
		require.NoError(t, err)
		_, err = m.Build()
		assert.NoError(t, err)
	}

	resp, _ = f.get(t, "/api/model?format=xml")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRuleValidation(t *testing.T) {
	f := newFixture(t, nil)

	testCases := []struct {
		name     string
		req      RuleRequest
		valid    bool
		contains string
	}{
		{
			name:  "Valid",
			req:   RuleRequest{Name: "r", Code: "when soil_moisture.dry || !air_temperature.hot { irrigation_duration.long }"},
			valid: true,
		},
		{
			name:     "Syntax",
			req:      RuleRequest{Name: "r", Code: "when soil_moisture.dry { "},
			contains: `rule "r"`,
		},
		{
			name:     "UnknownLabel",
			req:      RuleRequest{Name: "r", Code: "when soil_moisture.soggy { irrigation_duration.long }"},
			contains: `undefined label "soggy"`,
		},
		{
			name:     "ConsequentInAntecedent",
			req:      RuleRequest{Name: "r", Code: "when irrigation_duration.long { irrigation_duration.long }"},
			contains: "consequent variable",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resp, raw := f.post(t, "/api/rules/validate", tc.req)
			require.Equal(t, http.StatusOK, resp.StatusCode)

			var out RuleResponse
			require.NoError(t, json.Unmarshal(raw, &out))
			assert.Equal(t, tc.valid, out.Valid)
			if tc.valid {
				assert.Equal(t, 4, out.Complexity)
				assert.Empty(t, out.Errors)
				return
			}
			require.Len(t, out.Errors, 1)
			assert.Contains(t, out.Errors[0], tc.contains)
		})
	}

	resp, _ := f.post(t, "/api/rules/validate", RuleRequest{Name: strings.Repeat("x", maxRuleName+1)})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestEventsRingBuffer(t *testing.T) {
	f := newFixture(t, func(c *config.Service) { c.EventBuffer = 2 })

	f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})
	f.post(t, "/api/compute", ComputeRequest{Inputs: mamdani.Values{}})
	f.post(t, "/api/compute", ComputeRequest{Inputs: irrigation.Reading{SoilMoisture: 90}.Values()})

	resp, raw := f.get(t, "/api/events")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data []Event `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	require.Len(t, body.Data, 2)
	assert.Equal(t, string(actions.FailedAction), body.Data[0].Type)
	assert.Contains(t, body.Data[0].Error, "missing input")
	assert.Equal(t, string(actions.ComputedAction), body.Data[1].Type)
	assert.InDelta(t, 2.0/3.0, body.Data[1].Outputs[irrigation.Duration], 1e-9)
}

func TestEventsDetachedFromCaller(t *testing.T) {
	f := newFixture(t, nil)

	engine, err := irrigation.New()
	require.NoError(t, err)
	ic, err := engine.Infer(scenarioOne())
	require.NoError(t, err)

	require.NoError(t, f.srv.Handle(actions.Action{
		ID:        "detached",
		Type:      actions.ComputedAction,
		Timestamp: time.Now(),
		Inference: ic,
	}))
	want := ic.Outputs[irrigation.Duration]

	ic.Outputs[irrigation.Duration] = -1
	ic.Inputs[irrigation.SoilMoisture] = -1
	ic.Firings[0].Strength = -1

	events := f.srv.Events()
	require.NotEmpty(t, events)
	last := events[len(events)-1]
	assert.Equal(t, "detached", last.ID)
	assert.Equal(t, want, last.Outputs[irrigation.Duration])
	assert.Equal(t, 5.0, last.Inputs[irrigation.SoilMoisture])
	assert.NotEqual(t, -1.0, last.Firings[0].Strength)
}

func TestStatsHealthAndMetrics(t *testing.T) {
	f := newFixture(t, nil)
	f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})

	resp, raw := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(raw))

	resp, raw = f.get(t, "/api/stats")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var body struct {
		Data struct {
			Events    int                    `json:"events"`
			Inference metrics.InferenceStats `json:"inference"`
			HTTP      metrics.HTTPStats      `json:"http"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	assert.Equal(t, 1, body.Data.Events)
	assert.Equal(t, int64(1), body.Data.Inference.Total)
	assert.GreaterOrEqual(t, body.Data.HTTP.RequestCount, int64(2))

	resp, raw = f.get(t, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(raw), `mamdani_http_requests_total{code="200",route="/api/compute"} 1`)
	assert.Contains(t, string(raw), "mamdani_dashboard_websocket_clients 0")
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func TestWebSocketStream(t *testing.T) {
	f := newFixture(t, nil)

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.ts), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	f.post(t, "/api/compute", ComputeRequest{Inputs: scenarioOne()})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg struct {
		Type string `json:"type"`
		Data Event  `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "event", msg.Type)
	assert.Equal(t, string(actions.ComputedAction), msg.Data.Type)
	assert.InDelta(t, 34.0/3.0, msg.Data.Outputs[irrigation.Duration], 1e-9)
}

func TestWebSocketAdmission(t *testing.T) {
	f := newFixture(t, func(c *config.Service) { c.MaxClients = 1 })

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(f.ts), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	header = http.Header{"Origin": []string{"http://localhost:3000"}}
	conn, _, err := websocket.DefaultDialer.Dial(wsURL(f.ts), header)
	require.NoError(t, err)
	defer conn.Close()
	require.Eventually(t, func() bool { return f.srv.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, resp, err = websocket.DefaultDialer.Dial(wsURL(f.ts), nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}
