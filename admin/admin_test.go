package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/cesardraw2/zeppelin/cfg"
	"github.com/cesardraw2/zeppelin/db"
	"github.com/cesardraw2/zeppelin/interpreter"
	"github.com/cesardraw2/zeppelin/telemetry"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	it, err := interpreter.New(cfg.InterpreterConfiguration{
		Name:        "lite",
		URL:         t.TempDir(),
		Database:    "admin.db",
		Driver:      db.SQLiteDriverName,
		MaxResult:   2,
		Connections: "shared",
	}, interpreter.Options{RefreshOnWrite: true})
	require.NoError(t, err)

	registry := interpreter.NewRegistry()
	require.NoError(t, registry.Register(it))
	require.NoError(t, it.Open(context.Background()))
	t.Cleanup(registry.CloseAll)

	srv := httptest.NewServer(NewRouter(NewHandlers(registry)))
	t.Cleanup(srv.Close)
	return srv
}

func withSecret(t *testing.T, secret string) {
	t.Helper()
	old := cfg.Config.Admin.Secret
	cfg.Config.Admin.Secret = secret
	t.Cleanup(func() { cfg.Config.Admin.Secret = old })
}

type envelope struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error"`
}

func decode(t *testing.T, resp *http.Response, out interface{}) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	if out != nil {
		require.NoError(t, json.Unmarshal(env.Data, out))
	}
	return env
}

func interpret(t *testing.T, srv *httptest.Server, sql string) InterpretResponse {
	t.Helper()
	resp, err := http.Post(srv.URL+"/interpreters/lite/interpret", "text/plain", strings.NewReader(sql))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out InterpretResponse
	decode(t, resp, &out)
	return out
}

func TestListInterpreters(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/interpreters")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var infos []InterpreterInfo
	decode(t, resp, &infos)
	require.Len(t, infos, 1)
	require.Equal(t, "lite", infos[0].Name)
	require.Equal(t, "shared", infos[0].Style)
	require.Equal(t, 2, infos[0].MaxRows)
	require.True(t, infos[0].Connected)
}

func TestInterpret(t *testing.T) {
	srv := newTestServer(t)

	out := interpret(t, srv, "CREATE TABLE kv (k TEXT, v TEXT)")
	require.Equal(t, "SUCCESS", out.Code)
	require.Equal(t, "0 records affected.", out.Text)
	require.Equal(t, "update", out.Outcome)
	require.NotEmpty(t, out.RunID)

	interpret(t, srv, "INSERT INTO kv VALUES ('a', '1'), ('b', '2'), ('c', '3')")

	out = interpret(t, srv, "SELECT k, v FROM kv ORDER BY k")
	require.Equal(t, "%table k\tv\na\t1\nb\t2\n", out.Text)
	require.Equal(t, "rows", out.Outcome)
	require.True(t, out.Truncated)

	out = interpret(t, srv, "SELECT * FROM missing")
	require.Equal(t, "ERROR", out.Code)
	require.Equal(t, "failure", out.Outcome)

	out = interpret(t, srv, ":info")
	require.Equal(t, "none", out.Outcome)
	require.Contains(t, out.Text, "Using notebook connection: true")
}

func TestInterpret_UnknownInterpreter(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/interpreters/tsql/interpret", "text/plain", strings.NewReader("SELECT 1"))
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	env := decode(t, resp, nil)
	require.Contains(t, env.Error, "tsql")
}

func TestCancel_Idle(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/interpreters/lite/cancel", "", nil)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]bool
	decode(t, resp, &out)
	require.False(t, out["cancelled"])
}

func TestCompletion(t *testing.T) {
	srv := newTestServer(t)
	interpret(t, srv, "CREATE TABLE orders (id INTEGER, order_total REAL)")

	get := func(query url.Values) (*http.Response, error) {
		return http.Get(srv.URL + "/interpreters/lite/completion?" + query.Encode())
	}

	resp, err := get(url.Values{"buf": {"SELECT * FROM ord"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var candidates []string
	decode(t, resp, &candidates)
	require.Equal(t, []string{"ORDER", "order_total", "orders"}, candidates)

	resp, err = get(url.Values{"buf": {"sel FROM orders"}, "cursor": {"3"}})
	require.NoError(t, err)
	decode(t, resp, &candidates)
	require.Contains(t, candidates, "SELECT")

	resp, err = get(url.Values{"buf": {"x"}, "cursor": {"end"}})
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}

func TestAuthMiddleware(t *testing.T) {
	srv := newTestServer(t)
	withSecret(t, "s3cret")

	request := func(set func(*http.Request)) int {
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/interpreters", nil)
		require.NoError(t, err)
		set(req)
		resp, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	require.Equal(t, http.StatusUnauthorized, request(func(*http.Request) {}))
	require.Equal(t, http.StatusUnauthorized, request(func(r *http.Request) {
		r.Header.Set("Authorization", "Basic s3cret")
	}))
	require.Equal(t, http.StatusUnauthorized, request(func(r *http.Request) {
		r.Header.Set(SecretHeader, "wrong")
	}))
	require.Equal(t, http.StatusOK, request(func(r *http.Request) {
		r.Header.Set(SecretHeader, "s3cret")
	}))
	require.Equal(t, http.StatusOK, request(func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer s3cret")
	}))
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t)

	old := cfg.Config.Prometheus.Enabled
	cfg.Config.Prometheus.Enabled = true
	t.Cleanup(func() { cfg.Config.Prometheus.Enabled = old })

	telemetry.InitializeTelemetry()
	telemetry.InitMetrics()
	interpret(t, srv, "SELECT 1")

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	require.Contains(t, body.String(), "zeppelin_sql_statements_total")
}
