package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"syscall"

	"evalboard/internal/config"
)

type commandContext struct {
	apiFlag    *string
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(apiFlag, configFlag *string) *commandContext {
	return &commandContext{
		apiFlag:    apiFlag,
		configFlag: configFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// apiBase resolves the daemon API address, preferring the --api flag over the
// configured bind address.
func (c *commandContext) apiBase() string {
	if c.apiFlag != nil && strings.TrimSpace(*c.apiFlag) != "" {
		return normalizeAPIBase(*c.apiFlag)
	}
	if cfg := c.configValue(); cfg != nil && strings.TrimSpace(cfg.Paths.APIBind) != "" {
		return normalizeAPIBase(cfg.Paths.APIBind)
	}
	return "http://127.0.0.1:7410"
}

func normalizeAPIBase(value string) string {
	value = strings.TrimRight(strings.TrimSpace(value), "/")
	if strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://") {
		return value
	}
	return "http://" + value
}

// getJSON fetches a daemon API endpoint and decodes the response into target.
func (c *commandContext) getJSON(path string, target any) error {
	resp, err := http.Get(c.apiBase() + path)
	if err != nil {
		return wrapDialError(err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, target)
}

// postJSON posts a JSON payload to a daemon API endpoint.
func (c *commandContext) postJSON(path string, payload, target any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	resp, err := http.Post(c.apiBase()+path, "application/json", bytes.NewReader(body))
	if err != nil {
		return wrapDialError(err)
	}
	defer resp.Body.Close()
	return decodeAPIResponse(resp, target)
}

func decodeAPIResponse(resp *http.Response, target any) error {
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		var envelope struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(raw, &envelope); err == nil && envelope.Message != "" {
			return fmt.Errorf("daemon: %s", envelope.Message)
		}
		return fmt.Errorf("daemon: http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	if target == nil {
		return nil
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func wrapDialError(err error) error {
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("connect to daemon: connection refused; start the daemon with `evalboardd`")
	}
	return fmt.Errorf("connect to daemon: %w", err)
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
