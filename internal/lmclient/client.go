// Package lmclient implements the iterative tool-calling chat loop
// against an Ollama-shaped /api/chat endpoint: it composes the prompt
// envelope, detects and dispatches tool requests embedded in the
// model's reply, folds results back into context, and returns once the
// model produces a plain-text answer or the iteration cap is reached.
package lmclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/haasonsaas/nexus/internal/backoff"
	"github.com/haasonsaas/nexus/internal/toolexec"
)

// ToolExecutor is the subset of *toolexec.Executor the client depends
// on, so tests can substitute a stub.
type ToolExecutor interface {
	DescribeTools() []toolexec.DescribedTool
	ResolveToolType(name string) (toolexec.ToolType, bool)
	Execute(ctx context.Context, call toolexec.CallContext, toolName string, params map[string]string) (any, error)
}

// Config holds the per-client tuning state: iteration cap,
// summarization threshold, the tool whitelist, and the executor handle.
type Config struct {
	BaseURL               string
	Model                 string
	SummarizationModel    string
	MaxToolTurns          int
	SummarizationThreshold int // bytes
	AvailableTools        []string // empty means "all tools in the executor's catalog"
}

// Client is one LM conversation participant: a worker, the lead agent,
// a critic, or a debate role. Each logical agent in a session owns its
// own Client value rather than sharing one, per the concurrency model.
type Client struct {
	cfg      Config
	executor ToolExecutor
	http     *http.Client
	logger   *slog.Logger
	call     toolexec.CallContext
}

// New builds a Client. executor may be nil, in which case tool calling
// is disabled regardless of AvailableTools.
func New(cfg Config, executor ToolExecutor, call toolexec.CallContext, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxToolTurns <= 0 {
		cfg.MaxToolTurns = 5
	}
	if cfg.SummarizationThreshold <= 0 {
		cfg.SummarizationThreshold = 4000
	}
	return &Client{
		cfg:      cfg,
		executor: executor,
		http:     &http.Client{Timeout: 120 * time.Second},
		logger:   logger.With("component", "lmclient", "model", cfg.Model),
		call:     call,
	}
}

// ChunkFunc is invoked with the running concatenation of decoded text
// each time a streaming chunk arrives. It runs synchronously on the
// receive loop; callers needing async fan-out should do so themselves.
type ChunkFunc func(text string)

// Query issues a one-shot (non-streaming) query, allowing tool calls.
func (c *Client) Query(ctx context.Context, prompt string) (string, error) {
	return c.queryInternal(ctx, prompt, true, "", nil)
}

// QueryStreaming issues a streaming query, allowing tool calls.
func (c *Client) QueryStreaming(ctx context.Context, prompt string, onChunk ChunkFunc) (string, error) {
	return c.queryInternal(ctx, prompt, true, "", onChunk)
}

// QueryWithImage issues a one-shot multimodal query; tool calling stays
// enabled but the image is only attached to the first request message.
func (c *Client) QueryWithImage(ctx context.Context, prompt, base64Image string) (string, error) {
	return c.queryInternal(ctx, prompt, true, base64Image, nil)
}

// queryWithoutTools is used internally for the summarization fallback
// call, which must never recurse into tool dispatch.
func (c *Client) queryWithoutTools(ctx context.Context, prompt string) (string, error) {
	return c.queryInternal(ctx, prompt, false, "", nil)
}

func (c *Client) queryInternal(ctx context.Context, initialPrompt string, allowTools bool, image string, onChunk ChunkFunc) (string, error) {
	originalQuestion := initialPrompt
	promptForIteration := initialPrompt
	toolResultsContext := ""
	iteration := 0
	firstMessageImage := image

	for {
		iteration++
		if iteration > c.cfg.MaxToolTurns {
			if toolResultsContext != "" {
				return fmt.Sprintf(
					"Maximum tool iteration limit (%d) reached. Accumulated findings so far:\n\n%s",
					c.cfg.MaxToolTurns, toolResultsContext,
				), nil
			}
			return fmt.Sprintf("Maximum tool iteration limit (%d) reached. Last instruction: %s", c.cfg.MaxToolTurns, promptForIteration), nil
		}

		envelope := c.buildEnvelope(allowTools, originalQuestion, toolResultsContext, promptForIteration)

		msgImage := firstMessageImage
		firstMessageImage = ""

		responseText, err := c.send(ctx, envelope, msgImage, onChunk)
		if err != nil {
			return "", err
		}

		if !allowTools || c.executor == nil {
			return responseText, nil
		}

		calls, ok := detectToolCalls(responseText)
		if !ok {
			return responseText, nil
		}

		var records []string
		for _, call := range calls {
			record := c.executeToolCall(ctx, call)
			records = append(records, record)
		}
		if len(records) == 0 {
			return responseText, nil
		}

		combined := joinToolRecords(records)
		if toolResultsContext == "" {
			toolResultsContext = fmt.Sprintf("Tool results from iteration %d:\n%s", iteration, combined)
		} else {
			toolResultsContext += fmt.Sprintf("\n\nTool results from iteration %d:\n%s", iteration, combined)
		}

		promptForIteration = nextIterationInstruction()
	}
}

type chatMessage struct {
	Role    string   `json:"role"`
	Content string   `json:"content"`
	Images  []string `json:"images,omitempty"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
	Stream   bool          `json:"stream"`
}

type chatResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Message chatResponseMessage `json:"message"`
	Done    bool                `json:"done"`
	Error   string               `json:"error"`
}

// retrySchedule is a fixed 10-attempt backoff, in seconds. It isn't
// expressible as a computed exponential policy, so it
// lives as plain data rather than forcing internal/backoff's generic
// formula to fit a schedule it wasn't designed for.
var retrySchedule = []time.Duration{
	2 * time.Second, 5 * time.Second, 10 * time.Second, 15 * time.Second, 20 * time.Second,
	25 * time.Second, 30 * time.Second, 35 * time.Second, 40 * time.Second,
}

func (c *Client) send(ctx context.Context, content, image string, onChunk ChunkFunc) (string, error) {
	msg := chatMessage{Role: "user", Content: content}
	if image != "" {
		msg.Images = []string{image}
	}

	streaming := onChunk != nil
	req := chatRequest{Model: c.cfg.Model, Messages: []chatMessage{msg}, Stream: streaming}

	var lastErr error
	for attempt := 0; attempt <= len(retrySchedule); attempt++ {
		if attempt > 0 {
			delay := retrySchedule[attempt-1]
			c.logger.Warn("retrying chat request", "attempt", attempt, "delay", delay, "error", lastErr)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				return "", err
			}
		}

		text, err := c.doSend(ctx, req, streaming, onChunk)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
	}
	return "", fmt.Errorf("chat request failed after %d attempts: %w", len(retrySchedule)+1, lastErr)
}

func (c *Client) doSend(ctx context.Context, req chatRequest, streaming bool, onChunk ChunkFunc) (string, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("chat request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		body := readBody(resp)
		return "", fmt.Errorf("chat endpoint returned status %d: %s", resp.StatusCode, body)
	}

	if streaming {
		return c.readStream(ctx, resp, onChunk)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if decoded.Error != "" {
		return "", fmt.Errorf("chat endpoint error: %s", decoded.Error)
	}
	return decoded.Message.Content, nil
}
