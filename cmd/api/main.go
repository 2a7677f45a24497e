package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"portfolio/internal/api"
	"portfolio/internal/config"
	"portfolio/internal/metrics"
	"portfolio/internal/services"
	"portfolio/internal/storage"
	"portfolio/internal/util"
)

const (
	shutdownTimeout = 30 * time.Second
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
)

func main() {
	log.SetPrefix("[API] ")
	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if err := validateConfig(cfg); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	log.Printf("Starting %s v%s", cfg.App.Name, cfg.App.Version)
	log.Printf("Environment: debug=%v, port=%s, host=%s", cfg.App.Debug, cfg.App.Port, cfg.App.Host)

	// The backend is fixed for the life of the process
	log.Println("Opening storage backend...")
	backend, err := storage.Open(cfg)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	gw := storage.NewGateway(backend, &cfg.Storage)
	defer func() {
		log.Println("Closing storage backend...")
		if err := gw.Close(); err != nil {
			log.Printf("Error closing storage: %v", err)
		}
	}()

	log.Println("Initializing services...")
	emailSvc := services.NewEmailService(&cfg.Email)
	creds := services.NewCredentialManager(gw, cfg.Auth.AdminPassword)
	warnOnFallbackPassword(creds, cfg)

	authSvc := services.NewAuthService(
		creds,
		util.NewChallengeStore(cfg.Auth.OTPValidity()),
		util.NewTokenIssuer(cfg.Auth.SecretKey, cfg.Auth.TokenExpiry()),
		emailSvc,
		&cfg.Auth,
	)
	newsletterSvc := services.NewNewsletterService(gw, emailSvc, &cfg.Newsletter)

	apiHandler := api.New(api.Services{
		Auth:       authSvc,
		Content:    services.NewContentService(gw),
		Contact:    services.NewContactService(gw, emailSvc, cfg.Auth.AdminEmail),
		Newsletter: newsletterSvc,
		Health:     services.NewHealthService(gw, cfg.App.Name),
		PublicURL:  cfg.Newsletter.PublicURL,
	})

	// Route /metrics to Prometheus and everything else to the API
	rootHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			promhttp.Handler().ServeHTTP(w, r)
			return
		}
		apiHandler.ServeHTTP(w, r)
	})

	// Setup middleware chain: Security -> CORS -> Logging -> Prometheus -> Handler
	handler := setupSecurityHeaders(setupCORS(requestLogging(metrics.PrometheusMiddleware(rootHandler)), cfg), cfg)

	addr := fmt.Sprintf("%s:%s", cfg.App.Host, cfg.App.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
		ErrorLog:     log.New(os.Stderr, "[HTTP] ", log.LstdFlags),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Printf("Server listening on %s", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("server error: %w", err)
		}
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		log.Fatalf("Server failed to start: %v", err)
	case sig := <-shutdown:
		log.Printf("Received signal: %v. Starting graceful shutdown...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(ctx); err != nil {
		log.Printf("Error during graceful shutdown: %v", err)
		if err == context.DeadlineExceeded {
			log.Println("Shutdown timeout exceeded, forcing close...")
			httpServer.Close()
		}
	}

	log.Println("Waiting for queued broadcasts...")
	newsletterSvc.Wait()
	log.Println("Server shutdown complete")
}

// warnOnFallbackPassword logs when the admin still signs in with the
// configured fallback password
func warnOnFallbackPassword(creds *services.CredentialManager, cfg *config.Config) {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Storage.OperationTimeout)
	defer cancel()

	set, err := creds.IsSet(ctx)
	if err != nil {
		log.Printf("Warning: could not read admin credential: %v", err)
		return
	}
	if !set {
		log.Println("Warning: no admin password stored, ADMIN_PASSWORD is accepted until one is set")
	}
}

// validateConfig validates critical configuration values
func validateConfig(cfg *config.Config) error {
	if !cfg.App.Debug {
		if cfg.Auth.SecretKey == "your-secret-key-change-in-production" {
			return fmt.Errorf("SECRET_KEY must be changed from default value")
		}
		if len(cfg.Auth.SecretKey) < 32 {
			return fmt.Errorf("SECRET_KEY must be at least 32 characters")
		}
	}
	if cfg.App.Port == "" {
		return fmt.Errorf("PORT must be set")
	}
	return nil
}

// setupSecurityHeaders adds security headers to responses
func setupSecurityHeaders(handler http.Handler, cfg *config.Config) http.Handler {
	headers := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Permissions-Policy":     "geolocation=(), microphone=(), camera=()",
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range headers {
			w.Header().Set(k, v)
		}
		if !cfg.App.Debug && r.TLS != nil {
			w.Header().Set("Strict-Transport-Security", "max-age=31536000; includeSubDomains")
		}
		handler.ServeHTTP(w, r)
	})
}

// setupCORS allows the configured origins, or any origin when "*" is listed
func setupCORS(handler http.Handler, cfg *config.Config) http.Handler {
	allowAll := false
	allowed := make(map[string]bool, len(cfg.CORS.AllowedOrigins))
	for _, origin := range cfg.CORS.AllowedOrigins {
		if origin == "*" {
			allowAll = true
		}
		allowed[origin] = true
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" {
			if !allowAll && !allowed[origin] {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")
			w.Header().Add("Vary", "Origin")
		}

		w.Header().Set("Access-Control-Allow-Methods", strings.Join(cfg.CORS.AllowedMethods, ", "))
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(cfg.CORS.AllowedHeaders, ", "))
		w.Header().Set("Access-Control-Expose-Headers", "Content-Type, X-Request-ID")
		w.Header().Set("Access-Control-Max-Age", fmt.Sprintf("%d", cfg.CORS.MaxAge))

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		handler.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code written by a handler
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (rw *statusRecorder) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// requestLogging logs each request with its outcome, skipping health checks
func requestLogging(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" || r.URL.Path == "/metrics" {
			handler.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		handler.ServeHTTP(rec, r)

		log.Printf("[REQUEST] %s %s -> %d (%v) from %s", r.Method, r.URL.Path, rec.status, time.Since(start), r.RemoteAddr)
	})
}
