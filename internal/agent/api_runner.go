package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/imkarma/squad/internal/config"
)

// APIRunner talks to a long-lived execution service over HTTP. The
// service exposes POST /api/execute for work and GET /api/health for
// reachability probes.
type APIRunner struct {
	cfg    config.Backend
	apiKey string
	client *http.Client
}

// NewAPIRunner creates a runner that calls the execution service.
func NewAPIRunner(cfg config.Backend) (*APIRunner, error) {
	var apiKey string
	if cfg.APIKeyEnv != "" {
		apiKey = os.Getenv(cfg.APIKeyEnv)
		if apiKey == "" {
			return nil, fmt.Errorf("backend: environment variable %s is not set", cfg.APIKeyEnv)
		}
	}

	return &APIRunner{
		cfg:    cfg,
		apiKey: apiKey,
		client: &http.Client{},
	}, nil
}

func (r *APIRunner) Mode() string { return "api" }

type executeRequest struct {
	TaskID  int64  `json:"task_id"`
	Agent   string `json:"agent"`
	Model   string `json:"model,omitempty"`
	Prompt  string `json:"prompt"`
	Project string `json:"project,omitempty"`
}

type executeResponse struct {
	Output string `json:"output"`
	Error  string `json:"error,omitempty"`
}

// Run posts the request to the execution service.
func (r *APIRunner) Run(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.TimeoutSec > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(req.TimeoutSec)*time.Second)
		defer cancel()
	}

	body, err := json.Marshal(executeRequest{
		TaskID:  req.TaskID,
		Agent:   req.Agent,
		Model:   req.Model,
		Prompt:  req.Prompt,
		Project: req.WorkDir,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url("/api/execute"), bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if r.apiKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		resp := &Response{ExitCode: -1, Duration: time.Since(start).Seconds()}
		if ctx.Err() == context.DeadlineExceeded {
			return resp, fmt.Errorf("backend timed out after %ds: %w", req.TimeoutSec, context.DeadlineExceeded)
		}
		return resp, fmt.Errorf("backend call failed: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return &Response{
			Output:   string(respBody),
			ExitCode: httpResp.StatusCode,
			Duration: time.Since(start).Seconds(),
		}, fmt.Errorf("backend returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var result executeResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	if result.Error != "" {
		return &Response{
			Output:   result.Output,
			ExitCode: 1,
			Duration: time.Since(start).Seconds(),
		}, fmt.Errorf("backend error: %s", result.Error)
	}

	return &Response{
		Output:   result.Output,
		ExitCode: 0,
		Duration: time.Since(start).Seconds(),
	}, nil
}

// Probe checks service reachability via the health endpoint.
func (r *APIRunner) Probe(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, r.url("/api/health"), nil)
	if err != nil {
		return fmt.Errorf("create probe request: %w", err)
	}

	httpResp, err := r.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("backend unreachable: %w", err)
	}
	defer httpResp.Body.Close()
	io.Copy(io.Discard, httpResp.Body)

	if httpResp.StatusCode != http.StatusOK {
		return fmt.Errorf("backend health returned status %d", httpResp.StatusCode)
	}
	return nil
}

func (r *APIRunner) url(path string) string {
	return strings.TrimRight(r.cfg.BaseURL, "/") + path
}
