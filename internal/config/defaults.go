package config

// Default returns the baseline configuration before file values are applied.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: "~/.local/share/evalboard",
			LogDir:  "~/.local/share/evalboard/logs",
			APIBind: "127.0.0.1:7410",
		},
		Evaluation: Evaluation{
			TimeoutSeconds: 30,
			PageLimit:      50,
		},
		Translation: Translation{
			TargetLanguage: "en",
			TimeoutSeconds: 15,
		},
		Workflow: Workflow{
			RunPollInterval:        5,
			SuggestionPollInterval: 3,
		},
		Logging: Logging{
			Format: "console",
			Level:  "info",
		},
	}
}
