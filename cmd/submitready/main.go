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

	"github.com/submitready/submitready/internal/document"
	"github.com/submitready/submitready/internal/extraction"
	"github.com/submitready/submitready/internal/notify"
	"github.com/submitready/submitready/internal/payment"
	"github.com/submitready/submitready/internal/render"
	"github.com/submitready/submitready/internal/s3storage"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	fs := ff.NewFlagSet("submitready")
	var (
		port            = fs.IntLong("port", 8080, "HTTP server port")
		dbPath          = fs.StringLong("db", "submitready.db", "Database file path")
		storagePath     = fs.StringLong("storage", "./data", "Local storage directory path")
		baseURL         = fs.StringLong("base-url", "http://localhost:8080", "Externally reachable base URL")
		ocrProvider     = fs.StringLong("ocr-provider", "auto", "OCR provider: 'auto', 'local', 'remote' or 'none'")
		ocrLanguage     = fs.StringLong("ocr-language", "eng", "OCR language")
		ocrTimeout      = fs.DurationLong("ocr-timeout", 20*time.Second, "OCR timeout per receipt")
		ocrRemoteURL    = fs.StringLong("ocr-remote-url", "", "Remote OCR API endpoint")
		ocrRemoteKey    = fs.StringLong("ocr-remote-key", "", "Remote OCR API key")
		ocrPayloadLimit = fs.IntLong("ocr-payload-limit", extraction.DefaultPayloadLimit, "Remote OCR payload size limit in bytes")
		constrained     = fs.BoolLong("constrained", "Constrained runtime without a local OCR engine")
		reviewThreshold = fs.Float64Long("review-threshold", extraction.DefaultReviewThreshold, "Confidence threshold below which fields need review")
		maxUploadBytes  = fs.IntLong("max-upload-bytes", 10<<20, "Maximum upload size in bytes")
		allowedTypes    = fs.StringLong("allowed-types", "image/jpeg,image/png,image/heic,image/heif,application/pdf", "Comma-separated upload MIME allow-list")
		downloadTTL     = fs.DurationLong("download-ttl", 24*time.Hour, "Download token validity window")
		rateWindow      = fs.DurationLong("rate-limit-window", 60*time.Second, "Upload rate limit window")
		rateQuota       = fs.IntLong("rate-limit-quota", 10, "Uploads allowed per window per caller")
		s3Endpoint      = fs.StringLong("s3-endpoint", "", "S3 endpoint (enables S3 storage together with --s3-bucket)")
		s3Bucket        = fs.StringLong("s3-bucket", "", "S3 bucket name")
		s3AccessKey     = fs.StringLong("s3-access-key", "", "S3 access key")
		s3SecretKey     = fs.StringLong("s3-secret-key", "", "S3 secret key")
		s3Region        = fs.StringLong("s3-region", "us-east-1", "S3 region")
		s3UseSSL        = fs.BoolLong("s3-use-ssl", "Use TLS for S3 connections")
		stripeSecretKey = fs.StringLong("stripe-secret-key", "", "Stripe secret key")
		stripeWebhook   = fs.StringLong("stripe-webhook-secret", "", "Stripe webhook signing secret")
		stripePriceID   = fs.StringLong("stripe-price-id", "", "Stripe price ID for the unlock purchase")
		smtpHost        = fs.StringLong("smtp-host", "", "SMTP host for download notifications")
		smtpPort        = fs.IntLong("smtp-port", 587, "SMTP port")
		smtpUser        = fs.StringLong("smtp-user", "", "SMTP username")
		smtpPass        = fs.StringLong("smtp-pass", "", "SMTP password")
		smtpFrom        = fs.StringLong("smtp-from", "", "Sender address for download notifications")
		showVersion     = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("SUBMITREADY"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	// Initialize database
	slog.Info("Initializing database...")
	db, err := document.NewBoltDB(*dbPath)
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize storage
	var store document.Storage
	if *s3Endpoint != "" && *s3Bucket != "" {
		slog.Info("Initializing S3 storage...", "endpoint", *s3Endpoint, "bucket", *s3Bucket)
		s3, err := s3storage.New(s3storage.Config{
			Endpoint:  *s3Endpoint,
			AccessKey: *s3AccessKey,
			SecretKey: *s3SecretKey,
			Bucket:    *s3Bucket,
			Region:    *s3Region,
			UseSSL:    *s3UseSSL,
		})
		if err != nil {
			slog.Error("Failed to initialize S3 storage", "error", err)
			os.Exit(1)
		}
		if err := s3.EnsureBucket(context.Background()); err != nil {
			slog.Error("Failed to ensure S3 bucket", "error", err)
			os.Exit(1)
		}
		store = s3
	} else {
		slog.Info("Initializing local storage...", "path", *storagePath)
		local, err := document.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		store = local
	}

	// Initialize OCR provider
	providerCfg := extraction.ProviderConfig{
		Mode:         extraction.Mode(*ocrProvider),
		Timeout:      *ocrTimeout,
		Language:     *ocrLanguage,
		RemoteURL:    *ocrRemoteURL,
		RemoteAPIKey: *ocrRemoteKey,
		PayloadLimit: *ocrPayloadLimit,
		Constrained:  *constrained,
	}
	slog.Info("Initializing OCR provider...", "mode", extraction.ResolveMode(providerCfg))
	provider, err := extraction.SelectProvider(providerCfg)
	if err != nil {
		slog.Error("Failed to initialize OCR provider", "error", err)
		os.Exit(1)
	}
	defer provider.Close()

	pipeline := extraction.NewPipeline(provider)
	pipeline.ReviewThreshold = *reviewThreshold

	// Initialize payment processor
	var payments payment.Processor
	if *stripeSecretKey != "" && *stripePriceID != "" {
		payments, err = payment.NewStripe(*stripeSecretKey, *stripeWebhook, *stripePriceID)
		if err != nil {
			slog.Error("Failed to initialize Stripe", "error", err)
			os.Exit(1)
		}
	} else {
		slog.Warn("Stripe is not configured; checkout and webhooks are disabled")
		payments = payment.Disabled{}
	}

	// Initialize notifier
	var notifier document.Notifier
	smtpCfg := notify.SMTPConfig{
		Host:     *smtpHost,
		Port:     *smtpPort,
		Username: *smtpUser,
		Password: *smtpPass,
		From:     *smtpFrom,
	}
	if smtpCfg.Configured() {
		notifier = notify.NewSMTP(smtpCfg)
	} else {
		slog.Warn("SMTP is not configured; download links are logged only")
		notifier = notify.LogOnly{}
	}

	// Initialize service
	service := document.NewService(db, store, pipeline, payments, render.NewPDF(), notifier, document.Config{
		BaseURL:          strings.TrimRight(*baseURL, "/"),
		DownloadTokenTTL: *downloadTTL,
		ReviewThreshold:  *reviewThreshold,
	})

	// Initialize server
	serverCfg := document.ServerConfig{
		MaxUploadBytes: int64(*maxUploadBytes),
		AllowedTypes:   make(map[string]bool),
	}
	for _, t := range strings.Split(*allowedTypes, ",") {
		if t = strings.TrimSpace(t); t != "" {
			serverCfg.AllowedTypes[t] = true
		}
	}
	limiter := document.NewRateLimiter(*rateWindow, *rateQuota)
	server := document.NewServer(service, payments, limiter, serverCfg)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr))

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
}
