package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const duet = "X:1\nM:4/4\nL:1/8\nV:1\nV:2\nK:C\n"

func newTestServer(t *testing.T) (http.Handler, *test.Hook) {
	t.Helper()
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return NewServer(DefaultConfig(), log).Handler(), hook
}

func TestServerFormat(t *testing.T) {
	handler, hook := newTestServer(t)

	in := duet + "V:1\nC2 D2|GABc|\nV:2\nC D E F|GABc|\n"
	req := httptest.NewRequest(http.MethodPost, "/format", strings.NewReader(in))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	id, err := uuid.Parse(rec.Header().Get("X-Request-Id"))
	require.NoError(t, err)

	var resp FormatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, duet+"V:1\nC2  D2 |GABc|\nV:2\nC D E F|GABc|\n", resp.Output)
	assert.Empty(t, resp.Warnings)

	require.NotEmpty(t, hook.Entries)
	assert.Equal(t, id.String(), hook.Entries[0].Data["request"])
}

func TestServerFormatNormalize(t *testing.T) {
	handler, _ := newTestServer(t)

	in := "X:1\nK:C\nC2   D2  |\n"
	req := httptest.NewRequest(http.MethodPost, "/format?normalize=true", strings.NewReader(in))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FormatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "X:1\nK:C\nC2 D2 |\n", resp.Output)

	req = httptest.NewRequest(http.MethodPost, "/format?normalize=often", strings.NewReader(in))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestServerWarnings(t *testing.T) {
	handler, hook := newTestServer(t)

	in := "X:1\nM:3\nK:C\nCDEF|\n"
	req := httptest.NewRequest(http.MethodPost, "/format", strings.NewReader(in))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp FormatResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, 2, resp.Warnings[0].Line)
	assert.Equal(t, 1, resp.Warnings[0].Column)

	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, logrus.WarnLevel, last.Level)
}

func TestServerHealth(t *testing.T) {
	handler, _ := newTestServer(t)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/format", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestServerCORS(t *testing.T) {
	handler, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
