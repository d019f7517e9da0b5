package translate

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

	"golang.org/x/text/language"

	"evalboard/internal/config"
)

const defaultHTTPTimeout = 15 * time.Second

// Translator converts text into the configured target language.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// Config captures the runtime settings required to talk to the translation API.
type Config struct {
	BaseURL        string
	APIKey         string
	TargetLanguage string
	TimeoutSeconds int
}

// Client wraps the external translation API.
type Client struct {
	cfg        Config
	target     language.Tag
	httpClient *http.Client
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewClient constructs a translation client from the supplied configuration.
// The target language must be a valid BCP 47 tag.
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	target := strings.TrimSpace(cfg.TargetLanguage)
	if target == "" {
		target = "en"
	}
	tag, err := language.Parse(target)
	if err != nil {
		return nil, fmt.Errorf("translate: target language %q: %w", target, err)
	}

	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			BaseURL:        strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			APIKey:         strings.TrimSpace(cfg.APIKey),
			TargetLanguage: tag.String(),
			TimeoutSeconds: cfg.TimeoutSeconds,
		},
		target:     tag,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	return client, nil
}

// NewFromConfig builds a translator from application configuration. When no
// endpoint or credential is configured it returns a passthrough translator so
// conversion keeps working without the external API.
func NewFromConfig(cfg *config.Config) (Translator, error) {
	if cfg == nil || cfg.Translation.BaseURL == "" || cfg.Translation.APIKey == "" {
		return Passthrough{}, nil
	}
	return NewClient(Config{
		BaseURL:        cfg.Translation.BaseURL,
		APIKey:         cfg.Translation.APIKey,
		TargetLanguage: cfg.Translation.TargetLanguage,
		TimeoutSeconds: cfg.Translation.TimeoutSeconds,
	})
}

// Passthrough returns input text unchanged. Used when translation is not
// configured.
type Passthrough struct{}

func (Passthrough) Translate(_ context.Context, text string) (string, error) {
	return text, nil
}

type statusError struct {
	StatusCode int
	Body       string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("translate request: http %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

type translateRequest struct {
	Text           string `json:"text"`
	TargetLanguage string `json:"target_language"`
}

type translateResponse struct {
	Translation string `json:"translation"`
	Error       *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translate sends text to the external API and returns the translated text.
// Callers are expected to treat any error as "keep the original text".
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}
	if c.cfg.APIKey == "" {
		return "", errors.New("translate: api key required")
	}
	if c.cfg.BaseURL == "" {
		return "", errors.New("translate: base url required")
	}

	encoded, err := json.Marshal(translateRequest{
		Text:           text,
		TargetLanguage: c.cfg.TargetLanguage,
	})
	if err != nil {
		return "", fmt.Errorf("translate: encode body: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/translate", bytes.NewReader(encoded))
	if err != nil {
		return "", fmt.Errorf("translate: new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate: http error: %w", err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("translate: read body: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return "", &statusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	var decoded translateResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return "", fmt.Errorf("translate: decode response: %w", err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("translate: api error: %s", strings.TrimSpace(decoded.Error.Message))
	}
	if decoded.Translation == "" {
		return "", errors.New("translate: empty translation in response")
	}
	return decoded.Translation, nil
}

// Target returns the canonical target language tag.
func (c *Client) Target() string {
	return c.cfg.TargetLanguage
}
