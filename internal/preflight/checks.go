package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/wenyongqd/anniversary/internal/config"
	"github.com/wenyongqd/anniversary/internal/gateway"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckGateway verifies the asset gateway answers its health endpoint.
func CheckGateway(ctx context.Context, baseURL string) Result {
	const name = "Asset gateway"

	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if base == "" {
		return Result{Name: name, Detail: "missing url"}
	}
	endpoint, err := url.JoinPath(base, "/healthz")
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("invalid url (%v)", err)}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(checkCtx, http.MethodGet, endpoint, nil)
	if err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("health check failed (%v)", err)}
	}
	resp, err := client.Do(req)
	if err != nil {
		return Result{Name: name, Detail: summarizeNetError(err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		return Result{Name: name, Passed: true, Detail: "Reachable"}
	}
	return Result{Name: name, Detail: fmt.Sprintf("health check failed (%d)", resp.StatusCode)}
}

// CheckGenerativeKey reports whether generation can run: either a key is
// configured or the gateway hands one out.
func CheckGenerativeKey(ctx context.Context, cfg *config.Config) Result {
	const name = "Generative model key"

	if strings.TrimSpace(cfg.Generative.APIKey) != "" {
		return Result{Name: name, Passed: true, Detail: "configured"}
	}
	if strings.TrimSpace(cfg.Gateway.BaseURL) == "" {
		return Result{Name: name, Detail: "no api key and no gateway to fetch one from"}
	}

	checkCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	client := gateway.NewClient(gateway.Config{
		BaseURL:        cfg.Gateway.BaseURL,
		APIToken:       cfg.Gateway.APIToken,
		TimeoutSeconds: 5,
	})
	if _, err := client.FetchAPIKey(checkCtx); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("gateway did not provide a key (%v)", err)}
	}
	return Result{Name: name, Passed: true, Detail: "provided by gateway"}
}

// CheckStorage reports the blob backend the server would use.
func CheckStorage(cfg *config.Config) Result {
	const name = "Blob storage"

	switch cfg.Storage.Backend {
	case config.BackendFS:
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("filesystem at %s", cfg.Paths.BlobDir)}
	case config.BackendS3:
		if strings.TrimSpace(cfg.Storage.S3Bucket) == "" {
			return Result{Name: name, Detail: "s3 bucket missing"}
		}
		target := "aws"
		if cfg.Storage.S3Endpoint != "" {
			target = cfg.Storage.S3Endpoint
		}
		return Result{Name: name, Passed: true, Detail: fmt.Sprintf("s3 bucket %s (%s)", cfg.Storage.S3Bucket, target)}
	default:
		return Result{Name: name, Detail: fmt.Sprintf("unknown backend %q", cfg.Storage.Backend)}
	}
}

func summarizeNetError(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "health check timed out (gateway unresponsive)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return "health check timed out (gateway unreachable)"
	}
	return fmt.Sprintf("unreachable (%v)", err)
}
