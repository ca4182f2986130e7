package ocr

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"natillera-bot/internal/cache"
	"natillera-bot/internal/metrics"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const (
	extractPrompt = "Transcribe todo el texto visible en esta imagen de un comprobante de " +
		"transferencia bancaria, línea por línea, sin interpretar ni resumir. " +
		"Responde únicamente con el texto transcrito."

	resultCacheTTL = time.Hour
)

// Result is the outcome of one text extraction.
type Result struct {
	RawText   string `json:"raw_text"`
	TextFound bool   `json:"text_found"`
}

// Config holds OCR client configuration.
type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Client extracts text from receipt images through Gemini vision. Results
// are cached in Redis by image hash so a re-sent photo skips the API call.
type Client struct {
	genai   *genai.Client
	model   *genai.GenerativeModel
	logger  *slog.Logger
	metrics *metrics.Metrics
	cache   *cache.Redis
	timeout time.Duration
}

// New creates the Gemini-backed OCR client.
func New(ctx context.Context, cfg Config, logger *slog.Logger, metricRegistry *metrics.Metrics, redis *cache.Redis) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.0-flash"
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &Client{
		genai:   client,
		model:   client.GenerativeModel(modelName),
		logger:  logger.With("component", "ocr"),
		metrics: metricRegistry,
		cache:   redis,
		timeout: timeout,
	}, nil
}

// Close releases the underlying API client.
func (c *Client) Close() error {
	return c.genai.Close()
}

// ExtractText runs OCR over an image. An empty transcription is not an
// error: TextFound reports whether anything legible came back.
func (c *Client) ExtractText(ctx context.Context, image []byte, mime string) (Result, error) {
	cacheKey := "ocr:" + imageHash(image)
	var cached Result
	if c.cache != nil {
		if found, err := c.cache.GetJSON(ctx, cacheKey, &cached); err == nil && found {
			return cached, nil
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx,
		genai.ImageData(imageFormat(mime), image),
		genai.Text(extractPrompt),
	)
	status := "ok"
	if err != nil {
		status = "error"
	}
	c.metrics.OCRRequests.WithLabelValues(status).Inc()
	c.metrics.OCRLatency.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		return Result{}, fmt.Errorf("generate content: %w", err)
	}

	text := collectText(resp)
	result := Result{RawText: text, TextFound: strings.TrimSpace(text) != ""}

	if c.cache != nil {
		if err := c.cache.SetJSON(ctx, cacheKey, result, resultCacheTTL); err != nil {
			c.logger.Warn("failed caching ocr result", "error", err)
		}
	}

	return result, nil
}

func collectText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

func imageFormat(mime string) string {
	if i := strings.IndexByte(mime, '/'); i >= 0 && i+1 < len(mime) {
		return mime[i+1:]
	}
	return "jpeg"
}

func imageHash(image []byte) string {
	sum := sha256.Sum256(image)
	return hex.EncodeToString(sum[:])
}
