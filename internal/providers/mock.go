package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is an LLMClient for testing.
type MockClient struct {
	// Configurable behavior
	Latency      time.Duration
	ShouldFail   bool
	FailAfter    int // Fail after N requests (0 = never)
	ResponseText string
	ResponseJSON json.RawMessage

	// Rate limiting
	RPM        int
	Retries    int
	RetryDelay time.Duration

	// State
	requestCount atomic.Int64
}

// NewMockClient creates a mock client with sensible defaults.
func NewMockClient() *MockClient {
	return &MockClient{
		Latency:      10 * time.Millisecond,
		ResponseText: "mock response",
		RPM:          60,
		Retries:      3,
		RetryDelay:   time.Second,
	}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// RequestsPerMinute returns the RPM limit for rate limiting.
func (c *MockClient) RequestsPerMinute() int {
	return c.RPM
}

// MaxRetries returns the maximum retry attempts.
func (c *MockClient) MaxRetries() int {
	return c.Retries
}

// RetryDelayBase returns the base delay between retries.
func (c *MockClient) RetryDelayBase() time.Duration {
	return c.RetryDelay
}

// Chat sends a mock chat request.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	start := time.Now()
	count := c.requestCount.Add(1)

	result := &ChatResult{
		RequestID: fmt.Sprintf("mock-%d", count),
		Provider:  MockClientName,
		ModelUsed: req.Model,
		Attempts:  1,
	}

	if c.Latency > 0 {
		select {
		case <-time.After(c.Latency):
		case <-ctx.Done():
			result.ErrorType = "cancelled"
			result.ErrorMessage = ctx.Err().Error()
			result.TotalTime = time.Since(start)
			return result, ctx.Err()
		}
	}

	if c.ShouldFail || (c.FailAfter > 0 && int(count) > c.FailAfter) {
		err := fmt.Errorf("mock failure on request %d", count)
		result.ErrorType = "mock_error"
		result.ErrorMessage = err.Error()
		result.TotalTime = time.Since(start)
		return result, err
	}

	result.Success = true
	result.Content = c.ResponseText
	if req.ResponseFormat != nil && len(c.ResponseJSON) > 0 {
		result.Content = string(c.ResponseJSON)
		result.ParsedJSON = c.ResponseJSON
	}
	result.PromptTokens = 10
	result.CompletionTokens = 20
	result.TotalTokens = 30
	result.ExecutionTime = time.Since(start)
	result.TotalTime = result.ExecutionTime
	return result, nil
}

// RequestCount returns the number of requests made.
func (c *MockClient) RequestCount() int {
	return int(c.requestCount.Load())
}

var _ LLMClient = (*MockClient)(nil)

// MockTTSProvider is a TTSProvider for testing.
type MockTTSProvider struct {
	Latency    time.Duration
	ShouldFail bool
	Audio      []byte

	requestCount atomic.Int64
}

// NewMockTTSProvider creates a mock TTS provider.
func NewMockTTSProvider() *MockTTSProvider {
	return &MockTTSProvider{
		Audio: []byte("mock-audio"),
	}
}

func (p *MockTTSProvider) Name() string {
	return "mock-tts"
}

func (p *MockTTSProvider) MaxRetries() int {
	return 2
}

func (p *MockTTSProvider) RetryDelayBase() time.Duration {
	return 10 * time.Millisecond
}

func (p *MockTTSProvider) Generate(ctx context.Context, req *TTSRequest) (*TTSResult, error) {
	p.requestCount.Add(1)

	if p.Latency > 0 {
		select {
		case <-time.After(p.Latency):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if p.ShouldFail {
		err := fmt.Errorf("mock tts failure")
		return &TTSResult{ErrorMessage: err.Error(), CharCount: len(req.Text)}, err
	}

	return &TTSResult{
		Success:    true,
		Audio:      p.Audio,
		Format:     "mp3",
		DurationMS: len(req.Text) * 10,
		CharCount:  len(req.Text),
	}, nil
}

// RequestCount returns the number of requests made.
func (p *MockTTSProvider) RequestCount() int {
	return int(p.requestCount.Load())
}

var _ TTSProvider = (*MockTTSProvider)(nil)
