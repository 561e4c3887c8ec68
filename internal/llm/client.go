// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package llm provides the OpenAI chat-completion client used by all
// learnmate agents.
//
// The client is a thin wrapper over the official SDK: one prompt in, one
// free-text response out. Retries and connection pooling are left to the
// SDK defaults.
package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// Error variables for common provider errors.
var (
	// ErrNotConfigured indicates the API key is not set.
	ErrNotConfigured = errors.New("OpenAI API key not configured")

	// ErrAuthFailed indicates authentication failed (invalid or expired API key).
	ErrAuthFailed = errors.New("authentication failed")

	// ErrRateLimited indicates too many requests were made.
	ErrRateLimited = errors.New("rate limited")

	// ErrEmptyResponse indicates the provider returned no choices.
	ErrEmptyResponse = errors.New("empty response from provider")
)

// Client wraps the OpenAI API for single-shot prompt completion.
type Client struct {
	api        openai.Client
	model      string
	configured bool
}

// Option configures a Client.
type Option func(*clientOptions)

type clientOptions struct {
	baseURL    string
	httpClient *http.Client
}

// WithBaseURL overrides the API endpoint. Used for proxies and test doubles.
func WithBaseURL(url string) Option {
	return func(o *clientOptions) {
		o.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(o *clientOptions) {
		o.httpClient = hc
	}
}

// NewClient creates a client for the given API key and model.
//
// An empty key still yields a usable value; Complete fails with
// ErrNotConfigured until a key is provided.
func NewClient(apiKey, model string, opts ...Option) *Client {
	var co clientOptions
	for _, opt := range opts {
		opt(&co)
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(strings.TrimSpace(apiKey)),
	}
	if co.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(co.baseURL))
	}
	if co.httpClient != nil {
		reqOpts = append(reqOpts, option.WithHTTPClient(co.httpClient))
	}

	return &Client{
		api:        openai.NewClient(reqOpts...),
		model:      model,
		configured: strings.TrimSpace(apiKey) != "",
	}
}

// Model returns the configured chat model.
func (c *Client) Model() string {
	return c.model
}

// IsConfigured returns true if the client has an API key.
func (c *Client) IsConfigured() bool {
	return c.configured
}

// Complete sends a system+user prompt pair and returns the assistant text.
//
// The response is returned verbatim; callers that need structure parse it
// themselves. Timeouts and cancellation propagate through ctx.
func (c *Client) Complete(ctx context.Context, system, user string) (string, error) {
	if !c.configured {
		return "", ErrNotConfigured
	}
	if user == "" {
		return "", errors.New("prompt must not be empty")
	}

	messages := make([]openai.ChatCompletionMessageParamUnion, 0, 2)
	if system != "" {
		messages = append(messages, openai.SystemMessage(system))
	}
	messages = append(messages, openai.UserMessage(user))

	start := time.Now()
	resp, err := c.api.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(c.model),
		Messages: messages,
	})
	if err != nil {
		return "", c.mapError(err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", ErrEmptyResponse
	}

	log.Printf("LLM_COMPLETE | model=%s tokens=%d latency=%dms",
		c.model, resp.Usage.TotalTokens, time.Since(start).Milliseconds())

	return resp.Choices[0].Message.Content, nil
}

// mapError converts SDK errors to the package error taxonomy.
func (c *Client) mapError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuthFailed, apiErr.Message)
		case http.StatusTooManyRequests:
			return fmt.Errorf("%w: %s", ErrRateLimited, apiErr.Message)
		}
	}
	return fmt.Errorf("provider request failed: %w", err)
}
