package cmd

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestPerformHealthCheck(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   interface{}
		expectHealthy  bool
		expectError    bool
		expectedStatus string
	}{
		{
			name:       "healthy server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "healthy",
				Checks: map[string]CheckResult{
					"database": {Status: "pass"},
				},
			},
			expectHealthy:  true,
			expectError:    false,
			expectedStatus: "healthy",
		},
		{
			name:       "degraded server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "degraded",
				Checks: map[string]CheckResult{
					"database":   {Status: "pass"},
					"append_lag": {Status: "warn", Message: "Append pipeline is behind"},
				},
			},
			expectHealthy:  false,
			expectError:    false,
			expectedStatus: "degraded",
		},
		{
			name:           "unhealthy server (503)",
			statusCode:     http.StatusServiceUnavailable,
			responseBody:   HealthResponse{Status: "unhealthy"},
			expectHealthy:  false,
			expectError:    false,
			expectedStatus: "unhealthy",
		},
		{
			name:          "invalid response",
			statusCode:    http.StatusOK,
			responseBody:  "not json",
			expectHealthy: false,
			expectError:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if str, ok := tt.responseBody.(string); ok {
					fmt.Fprint(w, str)
				} else {
					_ = json.NewEncoder(w).Encode(tt.responseBody)
				}
			}))
			defer server.Close()

			result := performHealthCheck(server.URL)

			if result.IsHealthy != tt.expectHealthy {
				t.Errorf("expected IsHealthy=%v, got %v", tt.expectHealthy, result.IsHealthy)
			}

			if tt.expectError && result.Error == "" {
				t.Error("expected error, got none")
			}

			if !tt.expectError && tt.expectedStatus != "" {
				if result.Status != tt.expectedStatus {
					t.Errorf("expected status=%s, got %s", tt.expectedStatus, result.Status)
				}
			}

			// Allow 0ms for very fast responses
			if result.LatencyMs < 0 {
				t.Error("expected non-negative latency")
			}
		})
	}
}

func TestPerformHealthCheckTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(3 * time.Second)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	origTimeout := healthcheckTimeout
	defer func() { healthcheckTimeout = origTimeout }()
	healthcheckTimeout = 1

	result := performHealthCheck(server.URL)

	if result.IsHealthy {
		t.Error("expected unhealthy result on timeout")
	}
	if result.Error == "" {
		t.Error("expected timeout error, got none")
	}
}

func TestPerformHealthCheckUnreachable(t *testing.T) {
	// Port 1 is reserved and never listening
	result := performHealthCheck("http://127.0.0.1:1/health")

	if result.IsHealthy {
		t.Error("expected unhealthy result for unreachable server")
	}
	if result.Error == "" {
		t.Error("expected connection error, got none")
	}
}
