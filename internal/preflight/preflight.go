package preflight

import (
	"context"
	"strings"

	"github.com/wenyongqd/anniversary/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	results := DirectoryChecks(cfg)

	if strings.TrimSpace(cfg.Gateway.BaseURL) != "" {
		results = append(results, CheckGateway(ctx, cfg.Gateway.BaseURL))
	}
	results = append(results, CheckGenerativeKey(ctx, cfg))
	results = append(results, CheckStorage(cfg))
	return results
}

// DirectoryChecks covers the directories the workspace and server write to.
func DirectoryChecks(cfg *config.Config) []Result {
	results := []Result{
		CheckDirectoryAccess("Data directory", cfg.Paths.DataDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}
	if cfg.Storage.Backend == config.BackendFS {
		results = append(results, CheckDirectoryAccess("Blob directory", cfg.Paths.BlobDir))
	}
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	return failed
}
