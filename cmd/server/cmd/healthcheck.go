package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	// healthcheckCmd represents the healthcheck command
	healthcheckCmd = &cobra.Command{
		Use:   "healthcheck",
		Short: "Check if the server is healthy",
		Long: `Performs a health check by calling the /health endpoint.

This command is used by Docker HEALTHCHECK to monitor container health.
It exits with code 0 if the server is healthy, non-zero otherwise.`,
		RunE: runHealthcheck,
	}

	// Flags
	healthcheckTimeout int
	healthcheckURL     string
)

func init() {
	healthcheckCmd.Flags().IntVar(&healthcheckTimeout, "timeout", 5, "timeout in seconds")
	healthcheckCmd.Flags().StringVar(&healthcheckURL, "url", "", "health check URL (default: http://localhost:{SERVER_PORT}/health)")
}

// HealthResponse matches the response shape of internal/ops.
type HealthResponse struct {
	Status string                 `json:"status"`
	Checks map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult is the per-check slice of the health response.
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// healthResult is the outcome of one probe, separated from the command so
// tests can drive it against a stub server.
type healthResult struct {
	IsHealthy bool
	Status    string
	LatencyMs int64
	Error     string
}

func runHealthcheck(cmd *cobra.Command, args []string) error {
	url := healthcheckURL
	if url == "" {
		// Default to localhost with SERVER_PORT from environment
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		url = fmt.Sprintf("http://localhost:%s/health", port)
	}

	result := performHealthCheck(url)
	if result.Error != "" {
		return fmt.Errorf("health check failed: %s", result.Error)
	}
	if !result.IsHealthy {
		return fmt.Errorf("unhealthy: status=%s", result.Status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "healthy (%dms)\n", result.LatencyMs)
	return nil
}

func performHealthCheck(url string) healthResult {
	start := time.Now()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(healthcheckTimeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return healthResult{Error: fmt.Sprintf("create request: %v", err)}
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return healthResult{Error: fmt.Sprintf("request: %v", err), LatencyMs: time.Since(start).Milliseconds()}
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	result := healthResult{LatencyMs: time.Since(start).Milliseconds()}

	var healthResp HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&healthResp); err != nil {
		result.Error = fmt.Sprintf("parse response: %v", err)
		return result
	}

	result.Status = healthResp.Status
	result.IsHealthy = resp.StatusCode == http.StatusOK && healthResp.Status == "healthy"
	return result
}
