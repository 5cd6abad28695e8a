// Command roof serves the roof measurement API: photo upload, job status,
// reports, charts and the admin debug routes.
package main

import (
	"context"
	"embed"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/roof.report/internal/config"
	"github.com/banshee-data/roof.report/internal/db"
	"github.com/banshee-data/roof.report/internal/monitoring"
	"github.com/banshee-data/roof.report/internal/version"
)

var (
	//go:embed static/*
	staticFiles embed.FS
	devMode     = flag.Bool("dev", false, "Serve ./static from disk instead of the embedded copy")
	envFile     = flag.String("env-file", ".env", "Environment file read before the ROOF_* variables")
	listen      = flag.String("listen", "", "Listen address (overrides ROOF_LISTEN)")
	showVersion = flag.Bool("version", false, "Print the version and exit")
)

const (
	shutdownTimeout = 5 * time.Second
	drainTimeout    = 30 * time.Second
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	env, err := config.LoadEnv(*envFile)
	if err != nil {
		log.Fatalf("failed to load environment: %v", err)
	}
	if *listen != "" {
		env.Listen = *listen
	}
	if err := monitoring.SetLevel(env.LogLevel); err != nil {
		log.Fatalf("invalid log level %q: %v", env.LogLevel, err)
	}

	cfg, err := env.LoadConfig()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	database, err := db.NewDB(env.DBPath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer database.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, env, cfg, database)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}

	var static http.Handler
	if *devMode {
		static = http.FileServer(http.Dir("./static"))
	} else {
		sub, err := fs.Sub(staticFiles, "static")
		if err != nil {
			log.Fatalf("failed to open embedded static files: %v", err)
		}
		static = http.FileServer(http.FS(sub))
	}
	a.mux.Handle("/", static)

	server := &http.Server{
		Addr:    env.Listen,
		Handler: a.handler(),
	}

	go func() {
		monitoring.Logf("%s listening on %s", version.String(), env.Listen)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	monitoring.Logf("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		monitoring.Logf("HTTP server shutdown error: %v", err)
		if err := server.Close(); err != nil {
			monitoring.Logf("HTTP server force close error: %v", err)
		}
	}

	if !a.drain(drainTimeout) {
		monitoring.Logf("jobs still running after %v; they will be marked interrupted on next start", drainTimeout)
	}
	monitoring.Logf("Graceful shutdown complete")
}
