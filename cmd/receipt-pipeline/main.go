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

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/images"
	"github.com/zombor/receipt-pipeline/internal/receipt"
	"github.com/zombor/receipt-pipeline/internal/store"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	fs := ff.NewFlagSet("receipt-pipeline")
	var (
		port         = fs.IntLong("port", 8080, "HTTP server port")
		dbPath       = fs.StringLong("db", "receipt-pipeline.db", "Local (guest) database file path")
		imagesPath   = fs.StringLong("images", "./images", "Local image fallback directory")
		databaseURL  = fs.StringLong("database-url", "", "Postgres URL for the remote (authenticated) store (optional)")
		gatewayType  = fs.StringLong("gateway", "gemini", "AI gateway type: 'gemini', 'proxy' or 'ollama'")
		geminiKey    = fs.StringLong("gemini-key", "", "Google Gemini API key (or set RECEIPT_PIPELINE_GEMINI_KEY)")
		geminiModel  = fs.StringLong("gemini-model", "gemini-2.5-pro", "Google Gemini model name")
		proxyURL     = fs.StringLong("proxy-url", "", "AI proxy endpoint URL (when --gateway=proxy)")
		ollamaURL    = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama base URL (when --gateway=ollama)")
		ollamaModel  = fs.StringLong("ollama-model", "llava", "Ollama vision model name")
		imageHostURL = fs.StringLong("image-host-url", "", "Backend image host endpoint URL")
		showVersion  = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("RECEIPT_PIPELINE"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Local (guest) store
	slog.Info("Initializing local store...", "path", *dbPath)
	local, err := store.NewLocalStore(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize local store", "error", err)
		os.Exit(1)
	}
	defer local.Close()

	// Remote (authenticated) store, when configured
	var remote store.Backend
	if *databaseURL != "" {
		slog.Info("Initializing remote store...")
		pool, err := pgxpool.New(context.Background(), *databaseURL)
		if err != nil {
			slog.Error("Failed to connect to remote store", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		remoteStore := store.NewRemoteStore(pool)
		if err := remoteStore.EnsureSchema(context.Background()); err != nil {
			slog.Error("Failed to apply remote schema", "error", err)
			os.Exit(1)
		}
		remote = remoteStore
	} else {
		slog.Info("No database URL configured, running guest-only")
	}

	// AI gateway
	var gateway extraction.Gateway
	switch *gatewayType {
	case "gemini":
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key or GEMINI_API_KEY")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini gateway...", "model", *geminiModel)
		gateway, err = extraction.NewGemini(apiKey, *geminiModel)
		if err != nil {
			slog.Error("Failed to initialize Gemini", "error", err)
			os.Exit(1)
		}
	case "proxy":
		slog.Info("Initializing proxy gateway...", "url", *proxyURL)
		gateway, err = extraction.NewProxy(*proxyURL)
		if err != nil {
			slog.Error("Failed to initialize proxy gateway", "error", err)
			os.Exit(1)
		}
	case "ollama":
		slog.Info("Initializing Ollama gateway...", "url", *ollamaURL, "model", *ollamaModel)
		gateway, err = extraction.NewOllama(*ollamaURL, *ollamaModel)
		if err != nil {
			slog.Error("Failed to initialize Ollama gateway", "error", err)
			os.Exit(1)
		}
	default:
		slog.Error("Invalid gateway type", "type", *gatewayType, "valid", "gemini, proxy or ollama")
		os.Exit(1)
	}
	defer gateway.Close()

	// Image pipeline: remote host with local fallback
	files, err := images.NewLocalStorage(*imagesPath)
	if err != nil {
		slog.Error("Failed to initialize image storage", "error", err)
		os.Exit(1)
	}

	var host images.RemoteHost
	if *imageHostURL != "" {
		host, err = images.NewProxyHost(*imageHostURL)
		if err != nil {
			slog.Error("Failed to initialize image host", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Info("No image host configured, all images stored locally")
		host = unavailableHost{}
	}
	pipeline := images.NewPipeline(host, files)

	// Service and server
	service := receipt.NewService(gateway, pipeline, store.NewRouter(local, remote))
	server := receipt.NewServer(service)

	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}

// unavailableHost forces the local fallback when no image host is configured.
type unavailableHost struct{}

func (unavailableHost) Upload(ctx context.Context, jpegData []byte) (string, error) {
	return "", fmt.Errorf("image host not configured")
}
