package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofrs/flock"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/gateway"
	"github.com/wenyongqd/anniversary/internal/genimage"
	"github.com/wenyongqd/anniversary/internal/logging"
	"github.com/wenyongqd/anniversary/internal/timeline"
	"github.com/wenyongqd/anniversary/internal/timelinestore"
)

// workspace bundles the opened store, the gateway client and a timeline
// manager seeded from the store.
type workspace struct {
	cfg     *config.Config
	logger  *slog.Logger
	store   *timelinestore.Store
	gateway *gateway.Client
	manager *timeline.Manager
	lock    *flock.Flock
}

type workspaceOptions struct {
	// write takes the workspace lock.
	write bool
	// generate resolves the model key and enables Generate.
	generate bool
}

func (c *commandContext) openWorkspace(ctx context.Context, opts workspaceOptions) (*workspace, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger := c.ensureLogger()

	ws := &workspace{cfg: cfg, logger: logger}
	if opts.write {
		lock := flock.New(cfg.WorkspaceLockPath())
		ok, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("acquire workspace lock: %w", err)
		}
		if !ok {
			return nil, fmt.Errorf("workspace %s is in use by another anniversary process", cfg.Paths.DataDir)
		}
		ws.lock = lock
	}

	store, err := timelinestore.Open(cfg)
	if err != nil {
		ws.close()
		return nil, fmt.Errorf("open workspace: %w", err)
	}
	ws.store = store

	if opts.write {
		if n, err := store.ResetInterrupted(ctx); err != nil {
			ws.close()
			return nil, err
		} else if n > 0 {
			logger.Warn("reset entries interrupted by an earlier run", logging.Int64("count", n))
		}
	}

	entries, err := store.Load(ctx)
	if err != nil {
		ws.close()
		return nil, err
	}

	ws.gateway = gateway.NewClient(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		APIToken:       cfg.Gateway.APIToken,
		TimeoutSeconds: cfg.Gateway.TimeoutSeconds,
	})

	managerOpts := []timeline.Option{
		timeline.WithLogger(logger),
		timeline.WithEntries(entries),
		timeline.WithImaging(cfg.Imaging.MaxDimension, cfg.Imaging.JPEGQuality),
	}
	if opts.write {
		managerOpts = append(managerOpts, timeline.WithPersister(store))
	}
	if opts.generate {
		key, err := genimage.ResolveAPIKey(ctx, cfg.Generative.APIKey, ws.gateway)
		if err != nil {
			ws.close()
			return nil, err
		}
		generator := genimage.NewClient(genimage.Config{
			APIKey:         key,
			BaseURL:        cfg.Generative.BaseURL,
			Model:          cfg.Generative.Model,
			TimeoutSeconds: cfg.Generative.TimeoutSeconds,
			MaxAttempts:    cfg.Generative.MaxAttempts,
		}, ws.gateway, genimage.WithLogger(logger))
		managerOpts = append(managerOpts, timeline.WithGenerator(generator))
	}
	ws.manager = timeline.NewManager(ws.gateway, managerOpts...)
	return ws, nil
}

// wait blocks until every operation started by the command has settled.
func (w *workspace) wait(ctx context.Context) error {
	timeout := w.cfg.GatewayTimeout() + time.Duration(w.cfg.Generative.TimeoutSeconds*w.cfg.Generative.MaxAttempts)*time.Second
	waitCtx, cancel := context.WithTimeout(ctx, timeout+30*time.Second)
	defer cancel()
	return w.manager.Wait(waitCtx)
}

func (w *workspace) close() {
	if w.manager != nil {
		_ = w.manager.Close()
	}
	if w.store != nil {
		_ = w.store.Close()
	}
	if w.lock != nil {
		_ = w.lock.Unlock()
	}
}

func (c *commandContext) withWorkspace(ctx context.Context, opts workspaceOptions, fn func(*workspace) error) error {
	ws, err := c.openWorkspace(ctx, opts)
	if err != nil {
		return err
	}
	defer ws.close()
	return fn(ws)
}
