package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/medaudit/invoice-audit-service/internal/ai"
	"github.com/medaudit/invoice-audit-service/internal/auth"
	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/metrics"
	"github.com/medaudit/invoice-audit-service/internal/models"
	"github.com/medaudit/invoice-audit-service/internal/normalize"
	"github.com/medaudit/invoice-audit-service/internal/services"
	"github.com/medaudit/invoice-audit-service/internal/storage"
)

const (
	MaxUploadSize = 10 * 1024 * 1024 // 10MB
	Version       = "1.3.0"
)

// Handler handles HTTP requests for invoice auditing
type Handler struct {
	config      *models.Config
	pipeline    *services.AuditPipeline
	catalog     *db.CatalogGateway
	synonyms    *services.SynonymStore
	synonymRepo *db.SynonymRepo
	reporter    *ai.Reporter
}

// NewHandler creates a new API handler
func NewHandler(
	config *models.Config,
	pipeline *services.AuditPipeline,
	catalog *db.CatalogGateway,
	synonyms *services.SynonymStore,
	synonymRepo *db.SynonymRepo,
	reporter *ai.Reporter,
) *Handler {
	return &Handler{
		config:      config,
		pipeline:    pipeline,
		catalog:     catalog,
		synonyms:    synonyms,
		synonymRepo: synonymRepo,
		reporter:    reporter,
	}
}

// SetupRoutes configures the HTTP routes
func (h *Handler) SetupRoutes() *mux.Router {
	router := mux.NewRouter()

	// Audit endpoints
	router.HandleFunc("/api/audit/process", h.ProcessAudit).Methods("POST")
	router.HandleFunc("/api/audit/upload", h.UploadAudit).Methods("POST")

	// Manual review feedback
	router.HandleFunc("/api/feedback/manual-review", h.ManualReview).Methods("POST")

	// Catalog search
	router.HandleFunc("/api/medicamentos/search", h.SearchMedicamentos).Methods("GET")

	// Statistics
	router.HandleFunc("/api/stats", h.GetStats).Methods("GET")

	// Health check
	router.HandleFunc("/health", h.Health).Methods("GET")

	return router
}

// HealthResponse represents the health check response structure
type HealthResponse struct {
	Status    string            `json:"status"`
	Version   string            `json:"version"`
	Timestamp string            `json:"timestamp"`
	Uptime    string            `json:"uptime"`
	Memory    MemoryStats       `json:"memory"`
	Database  ServiceStatus     `json:"database"`
	Storage   ServiceStatus     `json:"storage"`
	AI        map[string]string `json:"ai"`
}

// MemoryStats represents memory usage statistics
type MemoryStats struct {
	Allocated string `json:"allocated"`
	Total     string `json:"total"`
	System    string `json:"system"`
}

// ServiceStatus represents the status of a service dependency
type ServiceStatus struct {
	Available bool   `json:"available"`
	Version   string `json:"version,omitempty"`
	Error     string `json:"error,omitempty"`
}

var startTime = time.Now()

// Health endpoint - enhanced for monitoring
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	// Memory statistics
	var m runtime.MemStats
	runtime.ReadMemStats(&m)

	databaseStatus := h.checkDatabase()
	storageStatus := h.checkStorage()

	response := HealthResponse{
		Status:    "healthy",
		Version:   Version,
		Timestamp: time.Now().Format(time.RFC3339),
		Uptime:    time.Since(startTime).String(),
		Memory: MemoryStats{
			Allocated: fmt.Sprintf("%.2f MB", float64(m.Alloc)/1024/1024),
			Total:     fmt.Sprintf("%.2f MB", float64(m.TotalAlloc)/1024/1024),
			System:    fmt.Sprintf("%.2f MB", float64(m.Sys)/1024/1024),
		},
		Database: databaseStatus,
		Storage:  storageStatus,
		AI: map[string]string{
			"defaultProvider": h.config.AI.DefaultProvider,
		},
	}

	// The catalog is the one dependency an audit cannot run without
	if !databaseStatus.Available {
		response.Status = "degraded"
		w.WriteHeader(http.StatusServiceUnavailable)
	} else {
		w.WriteHeader(http.StatusOK)
	}

	json.NewEncoder(w).Encode(response)
}

// checkDatabase verifies PostgreSQL connection
func (h *Handler) checkDatabase() ServiceStatus {
	if db.Pool == nil {
		return ServiceStatus{
			Available: false,
			Error:     "database pool not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "PostgreSQL via PgBouncer",
	}
}

// checkStorage verifies MinIO connection
func (h *Handler) checkStorage() ServiceStatus {
	if storage.Client == nil {
		return ServiceStatus{
			Available: false,
			Error:     "storage client not initialized",
		}
	}

	return ServiceStatus{
		Available: true,
		Version:   "MinIO S3",
	}
}

// ProcessAudit runs the reconciliation pipeline on an invoice JSON body
func (h *Handler) ProcessAudit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	umbral, err := h.parseUmbral(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	conResumen := r.URL.Query().Get("con_resumen") == "true"

	var input models.InvoiceInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid invoice JSON: "+err.Error())
		return
	}

	h.runAudit(ctx, w, input, umbral, conResumen)
}

// UploadAudit accepts a multipart upload of an invoice JSON document, archives
// it, and runs the same audit as ProcessAudit
func (h *Handler) UploadAudit(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	umbral, err := h.parseUmbral(r)
	if err != nil {
		h.sendError(w, http.StatusBadRequest, err.Error())
		return
	}
	conResumen := r.URL.Query().Get("con_resumen") == "true"

	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadSize)
	if err := r.ParseMultipartForm(MaxUploadSize); err != nil {
		h.sendError(w, http.StatusBadRequest, "File too large or invalid form data")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.sendError(w, http.StatusBadRequest, "No file provided (use 'file' field)")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.sendError(w, http.StatusInternalServerError, "Failed to read file")
		return
	}

	var input models.InvoiceInput
	if err := json.Unmarshal(data, &input); err != nil {
		h.sendError(w, http.StatusBadRequest, "uploaded file is not valid invoice JSON: "+err.Error())
		return
	}

	// Archive the original document (if storage is configured)
	if storage.Client != nil {
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/json"
		}
		archivePath, err := storage.UploadInvoiceDocument(
			ctx,
			fmt.Sprintf("%s_%s", time.Now().Format("20060102_150405"), uuid.New().String()[:8]),
			storage.GetFileExtension(contentType),
			bytes.NewReader(data),
			int64(len(data)),
			contentType,
		)
		if err != nil {
			// Log but don't fail - document archiving is optional
			fmt.Printf("Warning: failed to archive invoice document: %v\n", err)
		} else {
			fmt.Printf("Archived invoice document at %s\n", archivePath)
		}
	}

	h.runAudit(ctx, w, input, umbral, conResumen)
}

// runAudit is the shared tail of both audit endpoints
func (h *Handler) runAudit(ctx context.Context, w http.ResponseWriter, input models.InvoiceInput, umbral float64, conResumen bool) {
	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	summary, err := h.pipeline.Run(ctx, input, umbral)
	if err != nil {
		// A catalog failure aborts the whole batch
		h.sendError(w, http.StatusBadGateway, fmt.Sprintf("audit failed: %v", err))
		return
	}

	if conResumen && h.reporter != nil {
		narrative, err := h.reporter.GenerateSummary(ctx, summary)
		if err != nil {
			fmt.Printf("Warning: executive summary generation failed: %v\n", err)
		} else {
			summary.ResumenEjecutivo = narrative
		}
	}

	// Archive the report alongside the invoice (ignore errors)
	var reportURL string
	if storage.Client != nil {
		if report, err := json.Marshal(summary); err == nil {
			path, err := storage.UploadAuditReport(ctx, summary.RunID, report)
			if err != nil {
				fmt.Printf("Warning: failed to archive audit report: %v\n", err)
			} else if url, err := storage.GetPresignedURL(ctx, path); err == nil {
				reportURL = url
			}
		}
	}

	response := map[string]interface{}{
		"success": true,
		"audit":   summary,
	}
	if reportURL != "" {
		response["report_url"] = reportURL
	}

	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

// ManualReviewRequest is the payload of an auditor correction
type ManualReviewRequest struct {
	NombreFactura     string `json:"nombre_factura"`
	CodigoMedicamento string `json:"codigo_medicamento"`
}

// ManualReview registers an auditor-confirmed mapping so future audits resolve
// the same description without escalation
func (h *Handler) ManualReview(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	var req ManualReviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	clave := normalize.Description(req.NombreFactura)
	codigo := strings.TrimSpace(req.CodigoMedicamento)
	if clave == "" || codigo == "" {
		h.sendError(w, http.StatusBadRequest, "nombre_factura and codigo_medicamento are required")
		return
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	// The code must exist in the catalog before it can be taught
	med, err := h.catalog.GetByCodigo(ctx, codigo)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, fmt.Sprintf("catalog lookup failed: %v", err))
		return
	}
	if med == nil {
		h.sendError(w, http.StatusNotFound, fmt.Sprintf("medication code %s not found in catalog", codigo))
		return
	}

	if err := h.synonymRepo.UpsertManualCorrection(ctx, clave, med.Codigo); err != nil {
		h.sendError(w, http.StatusInternalServerError, fmt.Sprintf("failed to save correction: %v", err))
		return
	}

	if claims, err := auth.GetClaimsFromContext(ctx); err == nil {
		fmt.Printf("Manual correction %q -> %s registered by %s\n", clave, med.Codigo, claims.Email)
	}

	// Make it effective immediately, no restart needed
	h.synonyms.Put(clave, med.Codigo)

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":            true,
		"clave_normalizada":  clave,
		"codigo_medicamento": med.Codigo,
		"nombre_bd":          med.Nombre,
	})
}

// SearchMedicamentos exposes the fuzzy catalog search used by the audit cascade
func (h *Handler) SearchMedicamentos(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	ctx := r.Context()

	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if len(q) < 3 {
		h.sendError(w, http.StatusBadRequest, "query parameter 'q' must have at least 3 characters")
		return
	}

	k := 20
	if kParam := r.URL.Query().Get("k"); kParam != "" {
		parsed, err := strconv.Atoi(kParam)
		if err != nil || parsed < 1 || parsed > 100 {
			h.sendError(w, http.StatusBadRequest, "query parameter 'k' must be an integer between 1 and 100")
			return
		}
		k = parsed
	}

	if db.Pool == nil {
		h.sendError(w, http.StatusServiceUnavailable, "database not available")
		return
	}

	// An exact code or troquel hit short-circuits the fuzzy search
	if med, err := h.catalog.GetByCodigo(ctx, q); err == nil && med != nil {
		json.NewEncoder(w).Encode(map[string]interface{}{
			"success":      true,
			"query":        q,
			"medicamentos": []db.Medication{*med},
			"count":        1,
		})
		return
	}

	meds, err := h.catalog.SearchFuzzy(ctx, q, k)
	if err != nil {
		h.sendError(w, http.StatusBadGateway, fmt.Sprintf("catalog search failed: %v", err))
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"query":        q,
		"medicamentos": meds,
		"count":        len(meds),
	})
}

// GetStats returns process-wide audit counters
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":   true,
		"stats":     metrics.Collect(),
		"sinonimos": h.synonyms.Len(),
	})
}

// parseUmbral reads the surcharge threshold, falling back to the configured one
func (h *Handler) parseUmbral(r *http.Request) (float64, error) {
	param := r.URL.Query().Get("umbral_sobreprecio")
	if param == "" {
		return h.config.Audit.UmbralSobreprecio, nil
	}

	umbral, err := strconv.ParseFloat(param, 64)
	if err != nil {
		return 0, fmt.Errorf("umbral_sobreprecio must be numeric")
	}
	if umbral < 0 {
		return 0, fmt.Errorf("umbral_sobreprecio must not be negative")
	}
	return umbral, nil
}

// sendError sends an error response
func (h *Handler) sendError(w http.ResponseWriter, statusCode int, message string) {
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
