package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/hamiltonmatematica/ensaios-ai-sub001/internal/domain"
)

func newTestClient(t *testing.T, transport http.RoundTripper) *Client {
	t.Helper()
	endpoints := map[string]string{}
	for _, key := range EndpointKeys() {
		endpoints[key] = "https://compute.example.com/" + key
	}
	return NewClient(Options{
		APIKey:     "test-key",
		Endpoints:  endpoints,
		HTTPClient: &http.Client{Transport: transport},
	})
}

func TestSubmitBuildsKindSpecificBody(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/image_upscale/run", http.StatusOK, map[string]any{"id": "prov-1", "status": "queued"})
	client := newTestClient(t, transport)

	id, err := client.Submit(context.Background(), domain.JobKindImageUpscale, Payload{
		"image": "https://cdn.example.com/in.png",
		"scale": float64(4),
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != "prov-1" {
		t.Fatalf("provider job id = %q", id)
	}

	var body map[string]any
	if err := json.Unmarshal(transport.lastBody, &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	input, ok := body["input"].(map[string]any)
	if !ok {
		t.Fatalf("body missing input envelope: %v", body)
	}
	if input["image"] != "https://cdn.example.com/in.png" {
		t.Fatalf("input.image = %v", input["image"])
	}
	if input["scale"] != float64(4) {
		t.Fatalf("input.scale = %v", input["scale"])
	}
	if auth := transport.lastAuth; auth != "Bearer test-key" {
		t.Fatalf("authorization = %q", auth)
	}
}

func TestSubmitClassifiesRetryableStatuses(t *testing.T) {
	for _, status := range []int{http.StatusTooManyRequests, http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout} {
		transport := &captureTransport{responses: map[string]responseStub{}}
		transport.setJSONResponse("/image_generate/run", status, map[string]any{"error": "busy"})
		client := newTestClient(t, transport)

		_, err := client.Submit(context.Background(), domain.JobKindImageGenerate, Payload{"prompt": "a cat"})
		if !errors.Is(err, domain.ErrProviderUnavailable) {
			t.Fatalf("status %d: err = %v, want ErrProviderUnavailable", status, err)
		}
	}
}

func TestSubmitClassifiesHardRejection(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/image_generate/run", http.StatusBadRequest, map[string]any{"message": "prompt blocked"})
	client := newTestClient(t, transport)

	_, err := client.Submit(context.Background(), domain.JobKindImageGenerate, Payload{"prompt": "a cat"})
	if !errors.Is(err, domain.ErrProviderRejected) {
		t.Fatalf("err = %v, want ErrProviderRejected", err)
	}
	if !strings.Contains(err.Error(), "prompt blocked") {
		t.Fatalf("error should carry provider detail, got %v", err)
	}
}

func TestSubmitWithoutEndpointIsMisconfigured(t *testing.T) {
	client := NewClient(Options{APIKey: "test-key", Endpoints: map[string]string{}})
	_, err := client.Submit(context.Background(), domain.JobKindImageGenerate, Payload{"prompt": "a cat"})
	if !errors.Is(err, domain.ErrProviderMisconfigured) {
		t.Fatalf("err = %v, want ErrProviderMisconfigured", err)
	}
}

func TestSubmitWithoutAPIKeyIsMisconfigured(t *testing.T) {
	client := NewClient(Options{Endpoints: map[string]string{"image_generate": "https://compute.example.com/image_generate"}})
	_, err := client.Submit(context.Background(), domain.JobKindImageGenerate, Payload{"prompt": "a cat"})
	if !errors.Is(err, domain.ErrProviderMisconfigured) {
		t.Fatalf("err = %v, want ErrProviderMisconfigured", err)
	}
}

func TestPollDecodesStatusPayload(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/video_generate/status/prov-9", http.StatusOK, map[string]any{
		"status": "completed",
		"output": map[string]any{"video_url": "https://cdn.example.com/v.mp4"},
	})
	client := newTestClient(t, transport)

	raw, err := client.Poll(context.Background(), domain.JobKindVideoGenerate, "prov-9")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !raw.TerminalSuccess() {
		t.Fatalf("status = %q, want completed", raw.Status)
	}
	result, ok := NormalizeOutput(raw.Output)
	if !ok || result != "https://cdn.example.com/v.mp4" {
		t.Fatalf("normalized = (%q, %v)", result, ok)
	}
}

func TestPollTransportFailureIsUnavailable(t *testing.T) {
	client := newTestClient(t, failingTransport{})
	_, err := client.Poll(context.Background(), domain.JobKindImageGenerate, "prov-1")
	if !errors.Is(err, domain.ErrProviderUnavailable) {
		t.Fatalf("err = %v, want ErrProviderUnavailable", err)
	}
}

func TestPollProviderFailureIsNotTransportError(t *testing.T) {
	transport := &captureTransport{responses: map[string]responseStub{}}
	transport.setJSONResponse("/image_generate/status/prov-1", http.StatusOK, map[string]any{
		"status": "failed",
		"error":  "NSFW content detected",
	})
	client := newTestClient(t, transport)

	raw, err := client.Poll(context.Background(), domain.JobKindImageGenerate, "prov-1")
	if err != nil {
		t.Fatalf("poll: %v", err)
	}
	if !raw.TerminalFailure() {
		t.Fatalf("status = %q, want a terminal failure", raw.Status)
	}
	if raw.Error != "NSFW content detected" {
		t.Fatalf("error = %q", raw.Error)
	}
}

type captureTransport struct {
	responses map[string]responseStub
	lastBody  []byte
	lastAuth  string
}

type responseStub struct {
	status int
	body   []byte
}

func (c *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	c.lastAuth = req.Header.Get("Authorization")
	if req.Body != nil {
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return nil, err
		}
		req.Body.Close()
		c.lastBody = body
	}
	if stub, ok := c.responses[req.URL.Path]; ok {
		return &http.Response{
			StatusCode: stub.status,
			Header:     http.Header{"Content-Type": []string{"application/json"}},
			Body:       io.NopCloser(bytes.NewReader(stub.body)),
		}, nil
	}
	return &http.Response{
		StatusCode: http.StatusNotFound,
		Body:       io.NopCloser(strings.NewReader("not found")),
	}, nil
}

func (c *captureTransport) setJSONResponse(path string, status int, payload any) {
	body, _ := json.Marshal(payload)
	c.responses[path] = responseStub{status: status, body: body}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, errors.New("connection reset by peer")
}
