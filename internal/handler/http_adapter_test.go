package handler

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleHttpTrigger_RoutesWrappedRequest(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/tenants/{tenant}/entity", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Equal(t, "acme", r.PathValue("tenant"))
		assert.Equal(t, "FY2024-25", r.URL.Query().Get("from"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		WriteJSON(w, http.StatusCreated, map[string]string{"echo": string(body)})
	})

	var invoke HTTPTriggerRequest
	invoke.Data.Req.URL = "http://localhost:7071/api/tenants/acme/entity"
	invoke.Data.Req.Method = http.MethodPost
	invoke.Data.Req.Query = map[string]string{"from": "FY2024-25"}
	invoke.Data.Req.Headers = map[string][]string{"Content-Type": {"application/json"}}
	invoke.Data.Req.Body = base64.StdEncoding.EncodeToString([]byte(`{"entityType":"company"}`))
	payload, err := json.Marshal(invoke)
	require.NoError(t, err)

	deps := &Dependencies{}
	w := httptest.NewRecorder()
	deps.HandleHttpTrigger(mux)(w, httptest.NewRequest(http.MethodPost, "/HttpTrigger", bytes.NewReader(payload)))

	assert.Equal(t, http.StatusOK, w.Code)
	var resp HTTPTriggerResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, http.StatusCreated, resp.Outputs.Res.StatusCode)
	assert.Equal(t, "application/json", resp.Outputs.Res.Headers["Content-Type"])
	assert.Contains(t, resp.Outputs.Res.Body, `company`)
}

func TestHandleHttpTrigger_InvalidPayload(t *testing.T) {
	deps := &Dependencies{}
	w := httptest.NewRecorder()

	deps.HandleHttpTrigger(http.NotFoundHandler())(w, httptest.NewRequest(http.MethodPost, "/HttpTrigger", bytes.NewBufferString("nope")))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDecodeBody(t *testing.T) {
	read := func(r io.Reader) string {
		b, _ := io.ReadAll(r)
		return string(b)
	}
	assert.Equal(t, "", read(decodeBody("", false)))
	assert.Equal(t, "hello", read(decodeBody(base64.StdEncoding.EncodeToString([]byte("hello")), false)))
	assert.Equal(t, "{not base64}", read(decodeBody("{not base64}", true)))
}
