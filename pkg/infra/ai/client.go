package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cinescope/aiguard/pkg/infra/breaker"
	"github.com/cinescope/aiguard/pkg/infra/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fastjson"
)

// Generator produces the AI-backed content for the two guarded routes. The
// rate limiter has already admitted the request by the time this runs.
type Generator interface {
	GenerateFacts(ctx context.Context, title string, mediaType string) ([]string, error)
	GenerateSuggestions(ctx context.Context, query string) ([]string, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	logger  *logrus.Logger
	cfg     Config
	http    *fasthttp.Client
	breaker breaker.CircuitBreaker
	parsers fastjson.ParserPool
}

func NewClient(logger *logrus.Logger, cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	return &Client{
		logger: logger,
		cfg:    cfg,
		http: &fasthttp.Client{
			ReadTimeout:              cfg.Timeout,
			WriteTimeout:             cfg.Timeout,
			MaxConnsPerHost:          512,
			MaxIdleConnDuration:      120 * time.Second,
			NoDefaultUserAgentHeader: true,
		},
		breaker: breaker.New("ai_upstream", 30*time.Second, 5),
	}
}

type completionRequest struct {
	Model     string `json:"model"`
	Prompt    string `json:"prompt"`
	MaxTokens int    `json:"max_tokens"`
}

func (c *Client) GenerateFacts(ctx context.Context, title string, mediaType string) ([]string, error) {
	prompt := fmt.Sprintf(
		"List 5 interesting, verifiable facts about the %s %q. One fact per line, no numbering.",
		mediaType, title,
	)
	text, err := c.complete(ctx, "ai_facts", prompt, 400)
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func (c *Client) GenerateSuggestions(ctx context.Context, query string) ([]string, error) {
	prompt := fmt.Sprintf(
		"Suggest 5 movies or TV shows matching: %q. One title per line, no numbering.",
		query,
	)
	text, err := c.complete(ctx, "ai_suggestions", prompt, 200)
	if err != nil {
		return nil, err
	}
	return splitLines(text), nil
}

func (c *Client) complete(ctx context.Context, route string, prompt string, maxTokens int) (string, error) {
	body, err := json.Marshal(completionRequest{
		Model:     c.cfg.Model,
		Prompt:    prompt,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode completion request: %w", err)
	}

	timeout := c.cfg.Timeout
	if deadline, ok := ctx.Deadline(); ok {
		if remaining := time.Until(deadline); remaining < timeout {
			timeout = remaining
		}
	}

	start := time.Now()
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.doRequest(body, timeout)
	})
	prometheus.UpstreamLatency.WithLabelValues(route).Observe(float64(time.Since(start).Milliseconds()))
	if err != nil {
		c.logger.WithField("route", route).WithError(err).Error("ai upstream call failed")
		return "", fmt.Errorf("ai upstream: %w", err)
	}

	text, ok := res.(string)
	if !ok {
		return "", fmt.Errorf("unexpected upstream result type %T", res)
	}
	return text, nil
}

func (c *Client) doRequest(body []byte, timeout time.Duration) (string, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(strings.TrimRight(c.cfg.BaseURL, "/") + "/v1/completions")
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}
	req.SetBody(body)

	if err := c.http.DoTimeout(req, resp, timeout); err != nil {
		return "", err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return "", fmt.Errorf("upstream returned status %d", resp.StatusCode())
	}

	parser := c.parsers.Get()
	defer c.parsers.Put(parser)

	value, err := parser.ParseBytes(resp.Body())
	if err != nil {
		return "", fmt.Errorf("failed to parse upstream response: %w", err)
	}
	text := value.GetStringBytes("choices", "0", "text")
	if len(text) == 0 {
		return "", fmt.Errorf("upstream response missing completion text")
	}
	return string(text), nil
}

func splitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(strings.TrimLeft(line, "-*• "))
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
