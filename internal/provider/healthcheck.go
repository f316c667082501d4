package provider

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// httpChecker probes a backend's cheapest unauthenticated-or-metadata
// endpoint with a plain GET. No tokens are consumed.
type httpChecker struct {
	// url is the probe target.
	url string
	// headers are set verbatim on the probe request.
	headers map[string]string
}

// HealthCheck issues the probe and treats any 2xx or 3xx status as healthy.
// 401/403 also count as reachable: the backend answered, which is all a
// readiness probe needs to know.
func (c *httpChecker) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return fmt.Errorf("provider: building probe request: %w", err)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("provider: probe failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("provider: probe returned status %d", resp.StatusCode)
	}
	return nil
}

// NewHealthCheck returns a zero-cost reachability checker for the configured
// backend, or nil when the backend has no probeable HTTP endpoint (Bedrock
// and Gemini use SDK transports with no cheap ping).
func NewHealthCheck(cfg *Config) HealthCheckConfig {
	switch cfg.Backend {
	case BackendOllama:
		return &httpChecker{url: strings.TrimRight(cfg.Ollama.Host, "/") + "/api/tags"}
	case BackendOpenAI:
		return &httpChecker{
			url:     "https://api.openai.com/v1/models",
			headers: map[string]string{"Authorization": "Bearer " + cfg.OpenAI.APIKey},
		}
	case BackendAzure:
		return &httpChecker{
			url: fmt.Sprintf("%s/openai/deployments?api-version=%s",
				strings.TrimRight(cfg.AzureOpenAI.Endpoint, "/"), cfg.AzureOpenAI.APIVersion),
			headers: map[string]string{"api-key": cfg.AzureOpenAI.APIKey},
		}
	default:
		return nil
	}
}
