// Package bootstrap assembles the persona runtime from configuration. Both
// the API server and the CLI build their dependencies here.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"persona/internal/adapter/repo"
	"persona/internal/comfy"
	"persona/internal/domain"
	"persona/internal/infra"
	"persona/internal/infra/geoip"
	"persona/internal/lease"
	"persona/internal/persona"
	"persona/internal/storage"
	"persona/internal/workflow"
)

// Runtime holds the wired components and their shutdown hooks.
type Runtime struct {
	Generator *persona.Generator
	Store     domain.PersonaRepository
	Defaults  persona.Defaults
	Loader    *workflow.Loader
	// StaticDir is the local publish directory, empty when publishing to S3.
	StaticDir string
	Geo       *geoip.Resolver

	closers []func() error
}

// Close releases every client opened by Build, last opened first.
func (rt *Runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}

// Build connects the store, publisher and engine lease selected by cfg. On
// error everything opened so far is closed.
func Build(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (rt *Runtime, err error) {
	rt = &Runtime{
		Defaults: persona.Defaults{Male: cfg.DefaultMaleImage, Female: cfg.DefaultFemaleImage},
	}
	defer func() {
		if err != nil {
			_ = rt.Close()
			rt = nil
		}
	}()

	if rt.Store, err = rt.openStore(ctx, cfg, logger); err != nil {
		return rt, err
	}

	publisher, err := rt.openPublisher(ctx, cfg)
	if err != nil {
		return rt, err
	}

	engineLease, err := rt.openLease(ctx, cfg, logger)
	if err != nil {
		return rt, err
	}

	if rt.Geo, err = geoip.NewResolver(cfg.GeoIPDBPath); err != nil {
		return rt, err
	}
	if rt.Geo != nil {
		rt.closers = append(rt.closers, rt.Geo.Close)
	}

	if rt.Loader, err = workflow.NewLoader(workflow.DefaultBindings()); err != nil {
		return rt, err
	}

	client := comfy.NewClient(comfy.Options{
		BaseURL:      cfg.EngineURL,
		Logger:       logger,
		PollInterval: cfg.PollInterval,
		PollAttempts: cfg.PollAttempts,
	})

	var source persona.ArtifactSource = persona.ViewSource{Client: client}
	if cfg.ArtifactSource == "filesystem" {
		out, err := storage.NewFileStore(cfg.EngineOutputDir, "")
		if err != nil {
			return rt, err
		}
		source = persona.DirSource{Store: out}
	}

	rt.Generator, err = persona.New(persona.Options{
		Loader:       rt.Loader,
		WorkflowPath: cfg.WorkflowPath,
		Engine:       client,
		Source:       source,
		Publisher:    publisher,
		Store:        rt.Store,
		Lease:        engineLease,
		Cooldown:     cfg.Cooldown,
		BatchTimeout: cfg.BatchTimeout,
		Logger:       logger,
	})
	if err != nil {
		return rt, err
	}

	logger.Info().
		Str("engine", client.BaseURL()).
		Str("store", cfg.StoreDriver).
		Str("publisher", cfg.Publisher).
		Str("artifacts", cfg.ArtifactSource).
		Msg("persona runtime ready")
	return rt, nil
}

func (rt *Runtime) openStore(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (domain.PersonaRepository, error) {
	switch cfg.StoreDriver {
	case "mongo":
		client, err := infra.NewMongoClient(ctx, cfg.MongoURI)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return client.Disconnect(ctx)
		})
		return repo.NewPersonaRepositoryMongo(client.Database(cfg.MongoDatabase)), nil
	case "postgres":
		pool, err := infra.NewDBPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		rt.closers = append(rt.closers, func() error { pool.Close(); return nil })
		store := repo.NewPersonaRepositoryPG(infra.NewSQLRunner(pool, logger))
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return store, nil
	case "memory":
		logger.Warn().Msg("persona store is in-memory; results are lost on restart")
		return repo.NewPersonaRepositoryMemory(), nil
	}
	return nil, fmt.Errorf("bootstrap: unknown store driver %q", cfg.StoreDriver)
}

func (rt *Runtime) openPublisher(ctx context.Context, cfg *infra.Config) (storage.Publisher, error) {
	if cfg.Publisher == "s3" {
		return storage.NewS3Publisher(ctx, storage.S3Config{
			Bucket:          cfg.S3Bucket,
			Region:          cfg.S3Region,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKey,
			SecretAccessKey: cfg.S3SecretKey,
			UsePathStyle:    cfg.S3PathStyle,
			PublicBaseURL:   cfg.PublicBaseURL,
		})
	}
	baseURL := cfg.StorageBaseURL
	if cfg.PublicBaseURL != "" {
		baseURL = cfg.PublicBaseURL
	}
	files, err := storage.NewFileStore(cfg.StoragePath, baseURL)
	if err != nil {
		return nil, err
	}
	rt.StaticDir = files.BasePath()
	return files, nil
}

func (rt *Runtime) openLease(ctx context.Context, cfg *infra.Config, logger *infra.Logger) (lease.Lease, error) {
	if cfg.RedisURL == "" {
		return lease.NewLocal(), nil
	}
	client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		return nil, err
	}
	rt.closers = append(rt.closers, client.Close)
	return lease.NewRedis(client, lease.RedisOptions{TTL: cfg.EngineLockTTL, Logger: logger}), nil
}
