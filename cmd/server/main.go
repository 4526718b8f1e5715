package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/medaudit/invoice-audit-service/api"
	"github.com/medaudit/invoice-audit-service/internal/ai"
	"github.com/medaudit/invoice-audit-service/internal/auth"
	"github.com/medaudit/invoice-audit-service/internal/db"
	"github.com/medaudit/invoice-audit-service/internal/models"
	"github.com/medaudit/invoice-audit-service/internal/services"
	"github.com/medaudit/invoice-audit-service/internal/storage"
	"gopkg.in/yaml.v3"
)

func main() {
	// Initialize JWT
	if err := auth.Init(); err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}
	log.Println("JWT authentication initialized")

	// Initialize database connection pool. The medication catalog lives here,
	// so the service cannot audit anything without it.
	if err := db.Init(); err != nil {
		log.Fatalf("Database not available: %v", err)
	}
	defer db.Close()
	log.Println("Database connection pool initialized")

	// Initialize MinIO storage
	if err := storage.Init(); err != nil {
		log.Printf("Warning: MinIO storage not available: %v", err)
		log.Println("Invoice documents and audit reports will not be archived")
	} else {
		log.Println("MinIO storage initialized")
	}

	// Load configuration
	config, err := loadConfig("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// AI provider for conciliation and reporting
	provider, err := ai.NewProvider(config.AI)
	if err != nil {
		log.Fatalf("Failed to create AI provider: %v", err)
	}
	log.Printf("AI provider ready: %s", provider.Name())

	// Catalog access and learned synonyms
	catalog := db.NewCatalogGateway(db.Pool)
	synonymRepo := db.NewSynonymRepo(db.Pool)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	mappings, err := synonymRepo.LoadAll(ctx)
	cancel()
	if err != nil {
		log.Fatalf("Failed to load synonym mappings: %v", err)
	}
	synonyms := services.NewSynonymStore(mappings)
	log.Printf("Loaded %d synonym mappings", synonyms.Len())

	// Wire the audit pipeline
	reconciler := services.NewReconciler(catalog, synonyms, config.Audit.MaxCandidatos, config.Audit.TopCandidatos)
	disambiguator := services.NewDisambiguator(ai.NewAssistant(provider))
	pipeline := services.NewAuditPipeline(reconciler, disambiguator)
	reporter := ai.NewReporter(provider)

	// Create API handler
	handler := api.NewHandler(config, pipeline, catalog, synonyms, synonymRepo, reporter)
	router := handler.SetupRoutes()

	// Add login endpoint
	router.HandleFunc("/api/login", auth.LoginHandler).Methods("POST")

	// Wrap router with JWT middleware (skips /health and /api/login)
	protectedRouter := auth.JWTMiddleware(router)

	// Start server
	addr := fmt.Sprintf("%s:%d", config.Host, config.Port)
	log.Printf("Starting Invoice Audit Service v%s on %s", api.Version, addr)
	log.Printf("Default AI Provider: %s", config.AI.DefaultProvider)
	log.Printf("Surcharge threshold: %.2f%%", config.Audit.UmbralSobreprecio)
	log.Printf("Storage: %v", storage.Client != nil)
	log.Printf("Endpoints:")
	log.Printf("  POST http://%s/api/login                  - Authenticate", addr)
	log.Printf("  POST http://%s/api/audit/process          - Audit invoice JSON (requires JWT)", addr)
	log.Printf("  POST http://%s/api/audit/upload           - Upload and audit invoice file (requires JWT)", addr)
	log.Printf("  POST http://%s/api/feedback/manual-review - Register auditor correction (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/medicamentos/search    - Search medication catalog (requires JWT)", addr)
	log.Printf("  GET  http://%s/api/stats                  - Get audit counters (requires JWT)", addr)
	log.Printf("  GET  http://%s/health                     - Health check", addr)

	if err := http.ListenAndServe(addr, protectedRouter); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func loadConfig(path string) (*models.Config, error) {
	// Read config file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Parse YAML
	var config models.Config
	err = yaml.Unmarshal(data, &config)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables if present
	if port := os.Getenv("PORT"); port != "" {
		fmt.Sscanf(port, "%d", &config.Port)
	}
	if host := os.Getenv("HOST"); host != "" {
		config.Host = host
	}
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.AI.OpenAI.APIKey = apiKey
	}
	if apiKey := os.Getenv("GEMINI_API_KEY"); apiKey != "" {
		config.AI.Gemini.APIKey = apiKey
	}
	if provider := os.Getenv("AI_PROVIDER"); provider != "" {
		config.AI.DefaultProvider = provider
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.AI.OpenAI.BaseURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL"); model != "" {
		config.AI.OpenAI.Model = model
	}
	if model := os.Getenv("GEMINI_MODEL"); model != "" {
		config.AI.Gemini.Model = model
	}

	return &config, nil
}
