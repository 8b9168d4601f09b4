package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	config "github.com/postloop/postloop/configs"
)

// Options steer how a rewrite should read. All fields are optional;
// empty values leave that aspect of the text alone.
type Options struct {
	Platform string
	Tone     string
	Length   string
	Hashtags bool
}

// Rewriter produces a fresh variant of previously published copy so
// evergreen posts do not go out verbatim every cycle.
type Rewriter interface {
	Rewrite(ctx context.Context, text string, opts Options) (string, error)
}

type rewriter struct {
	client   *http.Client
	endpoint string
	apiKey   string
	model    string
}

func NewRewriter(cfg config.Config, client *http.Client) Rewriter {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	return &rewriter{
		client:   client,
		endpoint: cfg.RewriteAPIURL,
		apiKey:   cfg.RewriteAPIKey,
		model:    cfg.RewriteModel,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *rewriter) Rewrite(ctx context.Context, text string, opts Options) (string, error) {
	if r.apiKey == "" {
		return "", fmt.Errorf("rewrite api key is not configured")
	}

	payload := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt(opts)},
			{Role: "user", Content: text},
		},
		Temperature: 0.8,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", r.endpoint, bytes.NewReader(body))
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		slog.Info(err.Error())
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("rewrite endpoint returned %d: %s", resp.StatusCode, raw)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Info(err.Error())
		return "", err
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("rewrite endpoint returned no choices")
	}

	rewritten := strings.TrimSpace(result.Choices[0].Message.Content)
	if rewritten == "" {
		return "", fmt.Errorf("rewrite endpoint returned empty content")
	}
	return rewritten, nil
}

func systemPrompt(opts Options) string {
	var b strings.Builder
	b.WriteString("Rewrite the user's social media post so it says the same thing with different wording. Keep any links intact. Reply with the rewritten post only, no commentary.")
	if opts.Platform != "" {
		fmt.Fprintf(&b, " The post is for %s.", opts.Platform)
	}
	if opts.Tone != "" {
		fmt.Fprintf(&b, " Use a %s tone.", opts.Tone)
	}
	switch opts.Length {
	case "shorter":
		b.WriteString(" Make it shorter than the original.")
	case "longer":
		b.WriteString(" Make it a bit longer than the original.")
	}
	if opts.Hashtags {
		b.WriteString(" Include a few relevant hashtags.")
	} else {
		b.WriteString(" Do not add hashtags.")
	}
	return b.String()
}
