package config

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/language"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeEvaluation(); err != nil {
		return err
	}
	if err := c.normalizeTranslation(); err != nil {
		return err
	}
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = Default().Paths.APIBind
	}
	return nil
}

func (c *Config) normalizeEvaluation() error {
	if value, ok := os.LookupEnv(EnvEvaluationBaseURL); ok && strings.TrimSpace(value) != "" {
		c.Evaluation.BaseURL = value
	}
	if c.Evaluation.APIKey == "" {
		if value, ok := os.LookupEnv("EVALUATION_API_KEY"); ok {
			c.Evaluation.APIKey = value
		}
	}
	c.Evaluation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Evaluation.BaseURL), "/")
	c.Evaluation.APIKey = strings.TrimSpace(c.Evaluation.APIKey)
	if c.Evaluation.TimeoutSeconds <= 0 {
		c.Evaluation.TimeoutSeconds = Default().Evaluation.TimeoutSeconds
	}
	if c.Evaluation.PageLimit <= 0 {
		c.Evaluation.PageLimit = Default().Evaluation.PageLimit
	}
	return nil
}

func (c *Config) normalizeTranslation() error {
	if c.Translation.APIKey == "" {
		if value, ok := os.LookupEnv("TRANSLATION_API_KEY"); ok {
			c.Translation.APIKey = strings.TrimSpace(value)
		}
	}
	c.Translation.BaseURL = strings.TrimRight(strings.TrimSpace(c.Translation.BaseURL), "/")
	c.Translation.APIKey = strings.TrimSpace(c.Translation.APIKey)

	target := strings.TrimSpace(c.Translation.TargetLanguage)
	if target == "" {
		target = Default().Translation.TargetLanguage
	}
	tag, err := language.Parse(target)
	if err != nil {
		return fmt.Errorf("translation.target_language: %q: %w", target, err)
	}
	c.Translation.TargetLanguage = tag.String()
	if c.Translation.TimeoutSeconds <= 0 {
		c.Translation.TimeoutSeconds = Default().Translation.TimeoutSeconds
	}
	return nil
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.RunPollInterval <= 0 {
		c.Workflow.RunPollInterval = Default().Workflow.RunPollInterval
	}
	if c.Workflow.SuggestionPollInterval <= 0 {
		c.Workflow.SuggestionPollInterval = Default().Workflow.SuggestionPollInterval
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = Default().Logging.Format
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = Default().Logging.Level
	}
}
