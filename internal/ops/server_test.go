package ops

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fair-protocol/operator/internal/operator"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	state := operator.NewState([]operator.Registration{
		{ID: "reg-1", ScriptID: "script-a", ScriptName: "fox-model", OperatorFee: 100},
	})
	state.Processed().MarkProcessed("req-1")
	return NewServer(8080, "OPERATOR-ADDR", state)
}

func TestHealth(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestStatus(t *testing.T) {
	srv := testServer(t)
	rec := httptest.NewRecorder()
	srv.srv.Handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var got statusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "OPERATOR-ADDR", got.Operator)
	require.Len(t, got.Registrations, 1)
	assert.Equal(t, "fox-model", got.Registrations[0].ScriptName)
	assert.Equal(t, 1, got.ProcessedIDs)
}

func TestDisabledServerIsNil(t *testing.T) {
	srv := NewServer(0, "OPERATOR-ADDR", operator.NewState(nil))
	assert.Nil(t, srv)
	assert.NoError(t, srv.Start())
}
