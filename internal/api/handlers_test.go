package api

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/pumpkin/internal/engine"
	"github.com/mattjoyce/pumpkin/internal/events"
	"github.com/mattjoyce/pumpkin/internal/modules/binary"
	"github.com/mattjoyce/pumpkin/internal/modules/stack"
	"github.com/mattjoyce/pumpkin/internal/script"
)

func newTestServer(t *testing.T, cfg Config) (*Server, *events.Hub) {
	t.Helper()
	hub := events.NewHub(16)
	eng, err := engine.New(engine.Config{}, hub, stack.New(), binary.New())
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(cfg, eng, events.NewBus(), hub, logger), hub
}

func TestHealthz(t *testing.T) {
	s, _ := newTestServer(t, Config{Token: "secret", ConfigFingerprint: "abc"})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp HealthzResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "abc", resp.ConfigFingerprint)
	assert.Equal(t, 0, resp.Subscriptions)
}

func TestEvalSuccess(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`"ab" "cd" CONCAT 0x01`))
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EvalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Nil(t, resp.Error)
	assert.Equal(t, []string{"61626364", "01"}, resp.Stack)
	assert.NotEmpty(t, resp.EnvID)
}

func TestEvalBinaryBody(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	program := script.Program{script.Data("x"), script.Instruction("DUP")}.MustBytes()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(string(program)))
	req.Header.Set("Content-Type", "application/octet-stream")
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EvalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, []string{"78", "78"}, resp.Stack)
}

func TestEvalFailure(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`"a" NOPE`)))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp EvalResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotNil(t, resp.Error)
	assert.Equal(t, uint8(script.UnknownInstruction), resp.Error.Code)
	assert.Equal(t, "844e4f5045", resp.Error.Value)
	assert.Equal(t, []string{"61"}, resp.Stack)
}

func TestEvalSyntaxError(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`["a"`)))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var resp SyntaxErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.NotEmpty(t, resp.Error)
}

func TestEvalBodyTooLarge(t *testing.T) {
	s, _ := newTestServer(t, Config{MaxBodyBytes: 8})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(strings.Repeat("1 ", 20))))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
}

func TestTokenRequired(t *testing.T) {
	s, _ := newTestServer(t, Config{Token: "secret"})
	h := s.Handler()

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`1`)))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`1`))
	req.Header.Set("Authorization", "Bearer wrong")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req = httptest.NewRequest(http.MethodPost, "/eval", strings.NewReader(`1`))
	req.Header.Set("Authorization", "Bearer secret")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExtractToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Basic abc")
	_, err := ExtractToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer   ")
	_, err = ExtractToken(req)
	assert.Error(t, err)

	req.Header.Set("Authorization", "Bearer tok")
	tok, err := ExtractToken(req)
	require.NoError(t, err)
	assert.Equal(t, "tok", tok)

	assert.False(t, ValidateToken("x", ""))
	assert.True(t, ValidateToken("x", "x"))
}

func TestInstructionsAndOpenAPI(t *testing.T) {
	s, _ := newTestServer(t, Config{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/instructions", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var catalog []script.HandlerInfo
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&catalog))
	require.Len(t, catalog, 3)
	assert.Equal(t, "core", catalog[0].Name)
	assert.Contains(t, catalog[1].Instructions, "DROP")

	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/openapi.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var doc map[string]any
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&doc))
	assert.Equal(t, "3.1.0", doc["openapi"])
	assert.Contains(t, doc["paths"], "/eval")
}

func TestEventsStreamsLifecycle(t *testing.T) {
	s, hub := newTestServer(t, Config{})
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ts.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	require.Eventually(t, func() bool { return hub.Observers() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Publish(events.ProgramCompleted, "env-1", map[string]any{"depth": 1})

	sc := bufio.NewScanner(resp.Body)
	var sawEvent bool
	for sc.Scan() {
		line := sc.Text()
		if line == "event: "+events.ProgramCompleted {
			sawEvent = true
		}
		if sawEvent && strings.HasPrefix(line, "data: ") {
			var ev events.Event
			require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &ev))
			assert.Equal(t, "env-1", ev.EnvID)
			assert.JSONEq(t, `{"depth":1}`, string(ev.Data))
			return
		}
	}
	t.Fatal("event not received")
}

func TestParseLastEventID(t *testing.T) {
	assert.Equal(t, int64(0), parseLastEventID(""))
	assert.Equal(t, int64(0), parseLastEventID("junk"))
	assert.Equal(t, int64(0), parseLastEventID("-3"))
	assert.Equal(t, int64(42), parseLastEventID("42"))
}
