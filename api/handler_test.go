package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/medaudit/invoice-audit-service/internal/models"
	"github.com/medaudit/invoice-audit-service/internal/services"
)

func newTestHandler() *Handler {
	config := &models.Config{
		Audit: models.AuditConfig{UmbralSobreprecio: 5.0},
	}
	config.AI.DefaultProvider = "openai"
	return NewHandler(config, nil, nil, services.NewSynonymStore(nil), nil, nil)
}

func TestProcessAuditRejectsInvalidJSON(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest("POST", "/api/audit/process", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	h.ProcessAudit(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestProcessAuditRejectsBadThreshold(t *testing.T) {
	h := newTestHandler()

	cases := []string{"-1", "abc", "1e"}
	for _, umbral := range cases {
		req := httptest.NewRequest("POST", "/api/audit/process?umbral_sobreprecio="+umbral, strings.NewReader("{}"))
		rec := httptest.NewRecorder()
		h.ProcessAudit(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code, "umbral %q", umbral)
	}
}

func TestParseUmbralDefaultsToConfig(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest("POST", "/api/audit/process", nil)
	umbral, err := h.parseUmbral(req)
	require.NoError(t, err)
	assert.Equal(t, 5.0, umbral)

	req = httptest.NewRequest("POST", "/api/audit/process?umbral_sobreprecio=12.5", nil)
	umbral, err = h.parseUmbral(req)
	require.NoError(t, err)
	assert.Equal(t, 12.5, umbral)

	// Zero is a valid threshold: every surcharge counts
	req = httptest.NewRequest("POST", "/api/audit/process?umbral_sobreprecio=0", nil)
	umbral, err = h.parseUmbral(req)
	require.NoError(t, err)
	assert.Equal(t, 0.0, umbral)
}

func TestSearchMedicamentosValidation(t *testing.T) {
	h := newTestHandler()

	cases := []struct {
		name  string
		query string
	}{
		{"missing q", ""},
		{"q too short", "q=ab"},
		{"bad k", "q=paracetamol&k=cero"},
		{"k out of range", "q=paracetamol&k=500"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/medicamentos/search?"+tc.query, nil)
			rec := httptest.NewRecorder()
			h.SearchMedicamentos(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestManualReviewValidation(t *testing.T) {
	h := newTestHandler()

	cases := []struct {
		name string
		body string
	}{
		{"invalid json", "{"},
		{"missing code", `{"nombre_factura": "PARACETAMOL 500MG"}`},
		{"missing name", `{"codigo_medicamento": "111"}`},
		{"unparseable name", `{"nombre_factura": "---", "codigo_medicamento": "111"}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/feedback/manual-review", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.ManualReview(rec, req)

			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestGetStats(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest("GET", "/api/stats", nil)
	rec := httptest.NewRecorder()
	h.GetStats(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "stats")
}

func TestHealthDegradedWithoutDatabase(t *testing.T) {
	h := newTestHandler()

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	h.Health(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	assert.False(t, body.Database.Available)
}
