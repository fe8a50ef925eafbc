package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liamcoop/excedencia/internal/app"
	"github.com/liamcoop/excedencia/internal/config"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	a, err := app.New(context.Background(), config.Default())
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return NewServer(a)
}

func doRequest(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(&body))
	return body
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, "ayuda-excedencia", body["ruleset"])
	assert.Equal(t, "2025.1", body["rulesetVersion"])
	assert.Equal(t, "embedded:ayuda-excedencia", body["source"])
}

func TestHandleEvaluate(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]any)
	}{
		{
			name:       "case A",
			body:       `{"parentesco":"madre","situacion":"enfermedad","familia_monoparental":false}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				output := body["output"].(map[string]any)
				assert.Equal(t, "A", output["supuesto"])
				assert.Equal(t, 725.0, output["importe_mensual"])
			},
		},
		{
			name:       "case E with stringified values",
			body:       `{"parentesco":"madre","situacion":"parto","familia_monoparental":"true","numero_hijos":"1"}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]any) {
				output := body["output"].(map[string]any)
				assert.Equal(t, "E", output["supuesto"])
				assert.Equal(t, 500.0, output["importe_mensual"])
			},
		},
		{
			name:       "unknown relationship",
			body:       `{"parentesco":"hermano","situacion":"parto","familia_monoparental":false,"numero_hijos":1}`,
			wantStatus: http.StatusUnprocessableEntity,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "validation failed", body["error"])
				issues := body["issues"].([]any)
				require.Len(t, issues, 1)
				issue := issues[0].(map[string]any)
				assert.Equal(t, "/input/parentesco", issue["path"])
				assert.Contains(t, issue["message"], `"hermano" is not one of`)
				assert.NotEmpty(t, body["evaluationId"])
			},
		},
		{
			name:       "bad boolean",
			body:       `{"parentesco":"madre","situacion":"parto","familia_monoparental":"maybe"}`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "invalid parameters", body["error"])
				assert.Equal(t, "familia_monoparental: invalid boolean string: maybe", body["details"])
			},
		},
		{
			name:       "malformed JSON",
			body:       `{"parentesco":`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "invalid request body", body["error"])
			},
		},
		{
			name:       "null body",
			body:       `null`,
			wantStatus: http.StatusBadRequest,
			check: func(t *testing.T, body map[string]any) {
				assert.Equal(t, "request body must be a JSON object", body["error"])
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(t, s, http.MethodPost, "/api/v1/evaluate", tt.body)
			require.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
			tt.check(t, decodeBody(t, rec))
		})
	}
}

func TestHandleEvaluateSetsEvaluationID(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodPost, "/api/v1/evaluate",
		`{"parentesco":"padre","situacion":"adopcion","familia_monoparental":false}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Evaluation-ID"), 36)
}

func TestHandleRuleset(t *testing.T) {
	s := newTestServer(t)

	rec := doRequest(t, s, http.MethodGet, "/api/v1/ruleset", "")
	require.Equal(t, http.StatusOK, rec.Code)

	var resp RulesetResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ayuda-excedencia", resp.Name)
	assert.Equal(t, "first", resp.HitPolicy)

	ids := make([]string, 0, len(resp.Rules))
	for _, rule := range resp.Rules {
		ids = append(ids, rule.ID)
	}
	assert.Equal(t, []string{"supuesto_a", "supuesto_d", "supuesto_e", "supuesto_b", "supuesto_c", "parto_sin_numero_hijos"}, ids)
}

func TestHandleMetrics(t *testing.T) {
	s := newTestServer(t)

	doRequest(t, s, http.MethodPost, "/api/v1/evaluate",
		`{"parentesco":"madre","situacion":"enfermedad","familia_monoparental":false}`)
	doRequest(t, s, http.MethodPost, "/api/v1/evaluate",
		`{"parentesco":"hermano","situacion":"enfermedad","familia_monoparental":false}`)

	rec := doRequest(t, s, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `calculadora_evaluations_total{outcome="success"} 1`)
	assert.Contains(t, rec.Body.String(), `calculadora_evaluations_total{outcome="validation"} 1`)
	assert.Contains(t, rec.Body.String(), `calculadora_salvage_recoveries_total{strategy="typed"} 1`)
}
