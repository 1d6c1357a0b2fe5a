// Package assistant backs the portal's Lumi chat helper with an
// OpenAI-compatible completion API. Lumi answers general wellness questions
// and steers anything clinical toward a symptom submission.
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrUnavailable means no API key is configured; the feature is off.
var ErrUnavailable = errors.New("assistant is not configured")

const systemPrompt = `You are Lumi, the friendly assistant of a patient care portal.
You help patients navigate the portal, understand general wellness topics, and
prepare symptom reports. You never diagnose, never prescribe, and never
contradict a caregiver. If a question needs medical judgment, tell the user to
submit a symptom report so a caregiver can review it, and to call emergency
services for anything urgent. Keep answers short and plain.`

const defaultTimeout = 30 * time.Second

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Client talks to an OpenAI-compatible chat completion endpoint.
type Client struct {
	apiKey  string
	model   string
	baseURL string
	http    *http.Client
}

func NewClient(apiKey, model, baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &Client{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: defaultTimeout},
	}
}

// Enabled reports whether a key is configured.
func (c *Client) Enabled() bool { return c.apiKey != "" }

// Chat sends the conversation with the Lumi system prompt prepended and
// returns the assistant's reply.
func (c *Client) Chat(ctx context.Context, history []Message) (string, error) {
	if !c.Enabled() {
		return "", ErrUnavailable
	}

	messages := make([]Message, 0, len(history)+1)
	messages = append(messages, Message{Role: "system", Content: systemPrompt})
	messages = append(messages, history...)

	payload := map[string]interface{}{
		"model":       c.model,
		"messages":    messages,
		"temperature": 0.7,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("assistant upstream returned %d", resp.StatusCode)
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", errors.New("assistant returned no choices")
	}
	return result.Choices[0].Message.Content, nil
}
