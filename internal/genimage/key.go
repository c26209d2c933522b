package genimage

import (
	"context"
	"strings"

	"github.com/wenyongqd/anniversary/internal/services"
)

// KeySource supplies the fallback API key, typically the asset gateway.
type KeySource interface {
	FetchAPIKey(ctx context.Context) (string, error)
}

// ResolveAPIKey returns configured when set, otherwise asks the fallback source.
// It runs once at startup and the result is passed to NewClient.
func ResolveAPIKey(ctx context.Context, configured string, fallback KeySource) (string, error) {
	if key := strings.TrimSpace(configured); key != "" {
		return key, nil
	}
	if fallback == nil {
		return "", services.Wrap(services.ErrConfiguration, "genimage", "resolve api key", "no api key configured and no fallback source", nil)
	}
	key, err := fallback.FetchAPIKey(ctx)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "genimage", "resolve api key", "fallback key lookup failed", err)
	}
	return key, nil
}
