package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/banshee-data/roof.report/internal/api"
	"github.com/banshee-data/roof.report/internal/artifact"
	"github.com/banshee-data/roof.report/internal/config"
	"github.com/banshee-data/roof.report/internal/db"
	"github.com/banshee-data/roof.report/internal/fsutil"
	"github.com/banshee-data/roof.report/internal/jobs"
	"github.com/banshee-data/roof.report/internal/timeutil"
)

// app is the wired server: registry restored from the database, pipeline
// configured from env and cfg, and the API and admin routes on one mux.
type app struct {
	registry *jobs.Registry
	pipeline *jobs.Pipeline
	server   *api.Server
	mux      *http.ServeMux
}

func newApp(ctx context.Context, env config.Env, cfg *config.Config, database *db.DB) (*app, error) {
	fsys := fsutil.OSFileSystem{}
	if err := fsys.MkdirAll(env.Workspace, 0o755); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}

	store := db.NewJobStore(database)
	registry := jobs.NewRegistry(timeutil.RealClock{}, store)
	restored, err := store.ListJobs(ctx)
	if err != nil {
		return nil, err
	}
	registry.Restore(restored)

	pipeline := jobs.NewPipeline(registry, fsys, env.Workspace, cfg.GetMaxConcurrentJobs())
	pipeline.Poses = jobs.NewAdapterFromConfig(cfg, jobs.NewColmapFromConfig(cfg, env.ColmapBin))
	pipeline.Assembler = jobs.NewAssemblerFromConfig(cfg)
	if env.MeshCommand != "" {
		rec, err := jobs.NewCommandReconstructor(env.MeshCommand)
		if err != nil {
			return nil, err
		}
		pipeline.Reconstructor = rec
	}
	if env.Artifact.Enabled() {
		s3, err := artifact.NewS3Store(artifact.S3Config{
			Endpoint:  env.Artifact.Endpoint,
			Bucket:    env.Artifact.Bucket,
			AccessKey: env.Artifact.AccessKey,
			SecretKey: env.Artifact.SecretKey,
			UseSSL:    env.Artifact.UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("artifact store: %w", err)
		}
		pipeline.Artifacts = s3
	}

	server := api.NewServer(registry, pipeline, store, cfg.GetMinImages())
	server.AdminKey = env.AdminKey

	mux := server.ServeMux()
	if err := database.AttachAdminRoutes(mux); err != nil {
		return nil, err
	}

	return &app{registry: registry, pipeline: pipeline, server: server, mux: mux}, nil
}

func (a *app) handler() http.Handler {
	return api.LoggingMiddleware(a.mux)
}

// drain waits up to timeout for running jobs and reports whether they all
// finished.
func (a *app) drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		a.pipeline.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
