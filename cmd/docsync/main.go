package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/auth"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/invoice"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/ledger"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/llm"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/query"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/scanning"
	"github.com/Govindcoderr/Autonomous-Document-Processing-ERP-Sync-System/internal/watcher"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

// providerKeyEnv names the conventional API key variable of each provider
var providerKeyEnv = map[string]string{
	"groq":      "GROQ_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("docsync")
	var (
		port           = fs.IntLong("port", 8000, "HTTP server port")
		dbPath         = fs.StringLong("db", "invoices.db", "SQLite database file path")
		documentsPath  = fs.StringLong("documents-db", "documents.db", "Document registry (BoltDB) file path")
		storagePath    = fs.StringLong("storage", "./documents", "Local storage directory for uploaded files")
		storageBackend = fs.StringLong("storage-backend", "local", "Storage backend: 'local' or 'minio'")
		minioEndpoint  = fs.StringLong("minio-endpoint", "localhost:9000", "MinIO/S3 endpoint (host:port)")
		minioAccessKey = fs.StringLong("minio-access-key", "", "MinIO access key")
		minioSecretKey = fs.StringLong("minio-secret-key", "", "MinIO secret key")
		minioBucket    = fs.StringLong("minio-bucket", "documents", "MinIO bucket name")
		minioRegion    = fs.StringLong("minio-region", "us-east-1", "MinIO bucket region")
		minioSSL       = fs.BoolLong("minio-ssl", "Use TLS for MinIO")
		llmProvider    = fs.StringLong("llm-provider", "groq", "LLM provider: groq, openai, anthropic, gemini or ollama")
		llmKey         = fs.StringLong("llm-key", "", "LLM API key (or set the provider's usual env var, e.g. GROQ_API_KEY)")
		llmModel       = fs.StringLong("llm-model", "", "LLM model name (provider default when empty)")
		llmBaseURL     = fs.StringLong("llm-base-url", "", "Override the provider API base URL")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		llmTimeout     = fs.DurationLong("llm-timeout", 30*time.Second, "Timeout for each model call")
		queryTimeout   = fs.DurationLong("query-timeout", 30*time.Second, "Timeout for each generated SQL query")
		rowCap         = fs.IntLong("row-cap", query.DefaultRowCap, "Maximum rows returned by a generated query")
		previewRows    = fs.IntLong("preview-rows", query.DefaultPreviewRows, "Rows shown to the model when phrasing an answer")
		jwtSecret      = fs.StringLong("jwt-secret", "", "Secret used to sign access tokens")
		jwtTTL         = fs.DurationLong("jwt-ttl", time.Hour, "Access token lifetime")
		zohoClientID   = fs.StringLong("zoho-client-id", "", "Zoho OAuth client ID")
		zohoSecret     = fs.StringLong("zoho-client-secret", "", "Zoho OAuth client secret")
		zohoRefresh    = fs.StringLong("zoho-refresh-token", "", "Zoho OAuth refresh token")
		zohoOrgID      = fs.StringLong("zoho-org-id", "", "Zoho Books organization ID")
		zohoAPIURL     = fs.StringLong("zoho-api-url", ledger.DefaultAPIURL, "Zoho Books API base URL")
		zohoAccounts   = fs.StringLong("zoho-accounts-url", ledger.DefaultAccountsURL, "Zoho accounts URL used for token refresh")
		watchDir       = fs.StringLong("watch-dir", "", "Inbox folder polled for new documents (disabled when empty)")
		watchUser      = fs.IntLong("watch-user", 0, "User ID that owns documents picked up from the inbox")
		watchInterval  = fs.DurationLong("watch-interval", time.Minute, "Inbox polling interval")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("DOCSYNC"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if *jwtSecret == "" {
		slog.Error("JWT secret is required. Set --jwt-secret flag or DOCSYNC_JWT_SECRET environment variable")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("Initializing database...", "path", *dbPath)
	store, err := invoice.OpenSQLStore(ctx, *dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer store.Close()

	readOnly, err := query.OpenReadOnly(*dbPath)
	if err != nil {
		slog.Error("Failed to open read-only database", "error", err)
		os.Exit(1)
	}
	defer readOnly.Close()

	documents, err := invoice.NewBoltDocuments(*documentsPath)
	if err != nil {
		slog.Error("Failed to initialize document registry", "error", err)
		os.Exit(1)
	}
	defer documents.Close()

	provider := strings.ToLower(*llmProvider)
	apiKey := *llmKey
	if apiKey == "" {
		apiKey = os.Getenv(providerKeyEnv[provider])
	}
	baseURL := *llmBaseURL
	if provider == "ollama" && baseURL == "" {
		baseURL = *ollamaURL
	}
	if apiKey == "" && provider != "ollama" {
		slog.Error("LLM API key is required. Set --llm-key flag or the provider's API key environment variable", "provider", provider)
		os.Exit(1)
	}

	slog.Info("Initializing LLM...", "provider", provider, "model", *llmModel)
	completer, err := llm.New(llm.Config{
		Provider: provider,
		APIKey:   apiKey,
		Model:    *llmModel,
		BaseURL:  baseURL,
		Timeout:  *llmTimeout,
	})
	if err != nil {
		slog.Error("Failed to initialize LLM", "error", err)
		os.Exit(1)
	}
	defer completer.Close()

	var storage invoice.Storage
	switch *storageBackend {
	case "local":
		slog.Info("Initializing local storage...", "path", *storagePath)
		storage, err = invoice.NewLocalStorage(*storagePath)
	case "minio":
		slog.Info("Initializing MinIO storage...", "endpoint", *minioEndpoint, "bucket", *minioBucket)
		storage, err = invoice.NewMinioStorage(ctx, invoice.MinioConfig{
			Endpoint:  *minioEndpoint,
			AccessKey: *minioAccessKey,
			SecretKey: *minioSecretKey,
			Bucket:    *minioBucket,
			Region:    *minioRegion,
			UseSSL:    *minioSSL,
		})
	default:
		slog.Error("Invalid storage backend", "backend", *storageBackend, "valid", "local or minio")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize storage", "error", err)
		os.Exit(1)
	}

	pusher := ledger.New(ledger.Config{
		ClientID:     *zohoClientID,
		ClientSecret: *zohoSecret,
		RefreshToken: *zohoRefresh,
		OrgID:        *zohoOrgID,
		APIURL:       *zohoAPIURL,
		AccountsURL:  *zohoAccounts,
	})

	service := invoice.NewService(store, documents, storage, scanning.NewScanner(completer), pusher)
	authService := auth.NewService(store, auth.NewTokenIssuer(*jwtSecret, *jwtTTL))
	engine := query.NewEngine(completer, readOnly, query.Config{
		RowCap:       *rowCap,
		PreviewRows:  *previewRows,
		QueryTimeout: *queryTimeout,
	})

	if *watchDir != "" {
		w, err := watcher.New(service, watcher.Config{
			Dir:      *watchDir,
			UserID:   int64(*watchUser),
			Interval: *watchInterval,
			Settle:   time.Second,
		})
		if err != nil {
			slog.Error("Failed to initialize inbox watcher", "error", err)
			os.Exit(1)
		}
		if err := w.Start(ctx); err != nil {
			slog.Error("Failed to start inbox watcher", "error", err)
			os.Exit(1)
		}
		defer w.Stop()
	}

	server := invoice.NewServer(service, authService, engine)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	<-ctx.Done()
	slog.Info("Shutting down...")
}
