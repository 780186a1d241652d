package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/infra"
)

// Lifecycle tags the provider reports from its status endpoint.
const (
	StatusQueued    = "queued"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
	StatusTimedOut  = "timed-out"
)

// RawStatus is the provider's status payload as returned by Poll.
type RawStatus struct {
	Status string          `json:"status"`
	Output json.RawMessage `json:"output,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// TerminalSuccess reports whether the provider finished the job successfully.
func (s *RawStatus) TerminalSuccess() bool { return s.Status == StatusCompleted }

// TerminalFailure reports whether the provider gave up on the job.
func (s *RawStatus) TerminalFailure() bool {
	switch s.Status {
	case StatusFailed, StatusCancelled, StatusTimedOut:
		return true
	}
	return false
}

// Terminal reports whether the status admits no further progress.
func (s *RawStatus) Terminal() bool { return s.TerminalSuccess() || s.TerminalFailure() }

// Options configures the provider adapter.
type Options struct {
	APIKey         string
	Endpoints      map[string]string
	HTTPClient     *http.Client
	Logger         *infra.Logger
	RequestTimeout time.Duration
}

// Client submits work to and polls status from the external compute
// provider. Per-kind payload differences are resolved through the registry;
// callers never build provider request bodies themselves.
type Client struct {
	apiKey     string
	endpoints  map[string]string
	httpClient *http.Client
	logger     *infra.Logger
}

type submitRequest struct {
	Input map[string]any `json:"input"`
}

type submitResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// NewClient constructs an adapter with sane defaults and injected dependencies.
func NewClient(opts Options) *Client {
	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	endpoints := make(map[string]string, len(opts.Endpoints))
	for key, url := range opts.Endpoints {
		endpoints[key] = strings.TrimRight(strings.TrimSpace(url), "/")
	}
	logger := opts.Logger
	if logger == nil {
		discard := infra.Logger(zerolog.New(io.Discard))
		logger = &discard
	}
	return &Client{
		apiKey:     strings.TrimSpace(opts.APIKey),
		endpoints:  endpoints,
		httpClient: httpClient,
		logger:     logger,
	}
}

// Submit sends one job to the provider and returns its correlation id.
func (c *Client) Submit(ctx context.Context, kind domain.JobKind, payload Payload) (string, error) {
	desc, ok := Lookup(kind)
	if !ok {
		return "", domain.ErrUnsupportedKind
	}
	endpoint, err := c.endpointFor(desc.EndpointKey)
	if err != nil {
		return "", err
	}
	input, err := desc.BuildInput(payload)
	if err != nil {
		return "", err
	}
	body, err := json.Marshal(submitRequest{Input: input})
	if err != nil {
		return "", fmt.Errorf("provider: encode request: %w", err)
	}

	raw, status, err := c.do(ctx, http.MethodPost, endpoint+"/run", body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if err := classifyStatus(status, raw); err != nil {
		return "", err
	}

	var decoded submitResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return "", fmt.Errorf("provider: decode response: %w", err)
	}
	if decoded.ID == "" {
		return "", fmt.Errorf("%w: response missing job id", domain.ErrProviderRejected)
	}
	c.logger.Debug().
		Str("kind", string(kind)).
		Str("provider_job_id", decoded.ID).
		Str("provider_status", decoded.Status).
		Msg("provider: job accepted")
	return decoded.ID, nil
}

// Poll fetches the provider's current view of one job. Transient transport
// failures surface as ErrProviderUnavailable, distinct from a terminal
// failed status reported by the provider itself.
func (c *Client) Poll(ctx context.Context, kind domain.JobKind, providerJobID string) (*RawStatus, error) {
	desc, ok := Lookup(kind)
	if !ok {
		return nil, domain.ErrUnsupportedKind
	}
	endpoint, err := c.endpointFor(desc.EndpointKey)
	if err != nil {
		return nil, err
	}

	raw, status, err := c.do(ctx, http.MethodGet, endpoint+"/status/"+providerJobID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrProviderUnavailable, err)
	}
	if status == http.StatusNotFound {
		return nil, domain.ErrNotFound
	}
	if err := classifyStatus(status, raw); err != nil {
		return nil, err
	}

	var decoded RawStatus
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("provider: decode status: %w", err)
	}
	c.logger.Debug().
		Str("provider_job_id", providerJobID).
		Str("provider_status", decoded.Status).
		Msg("provider: polled status")
	return &decoded, nil
}

func (c *Client) endpointFor(key string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: api key is not set", domain.ErrProviderMisconfigured)
	}
	endpoint := c.endpoints[key]
	if endpoint == "" {
		return "", fmt.Errorf("%w: no endpoint configured for %s", domain.ErrProviderMisconfigured, key)
	}
	return endpoint, nil
}

func (c *Client) do(ctx context.Context, method, url string, body []byte) ([]byte, int, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, 0, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return raw, resp.StatusCode, nil
}

// classifyStatus maps HTTP status codes onto the adapter error taxonomy:
// 429 and 5xx are retryable, any other 4xx is a hard rejection.
func classifyStatus(status int, raw []byte) error {
	if status < 300 {
		return nil
	}
	detail := strings.TrimSpace(string(raw))
	var decoded errorResponse
	if err := json.Unmarshal(raw, &decoded); err == nil {
		if decoded.Message != "" {
			detail = decoded.Message
		} else if decoded.Error != "" {
			detail = decoded.Error
		}
	}
	if status == http.StatusTooManyRequests || status >= 500 {
		return fmt.Errorf("%w: status %d: %s", domain.ErrProviderUnavailable, status, detail)
	}
	return fmt.Errorf("%w: status %d: %s", domain.ErrProviderRejected, status, detail)
}
