package config

const (
	defaultConfigPath           = "~/.config/labtriage/config.toml"
	defaultDataDir              = "~/.local/share/labtriage"
	defaultLogDir               = "~/.local/share/labtriage/logs"
	defaultNotesDir             = "~/.local/share/labtriage/notes"
	defaultPolicyFile           = "~/.config/labtriage/hospital_policy.txt"
	defaultLLMBaseURL           = "https://openrouter.ai/api/v1/chat/completions"
	defaultLLMModel             = "openai/gpt-4o"
	defaultLLMTitle             = "labtriage"
	defaultLLMTimeoutSeconds    = 60
	defaultAnalysisTimeout      = 90
	defaultDraftTimeout         = 90
	defaultPollInterval         = 30
	defaultHeartbeatInterval    = 15
	defaultHeartbeatTimeout     = 300
	defaultNotifyRequestTimeout = 10
	defaultAlertTier            = "Level 5"
	defaultLogFormat            = "console"
	defaultLogLevel             = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir:    defaultDataDir,
			LogDir:     defaultLogDir,
			NotesDir:   defaultNotesDir,
			PolicyFile: defaultPolicyFile,
		},
		LLM: LLM{
			BaseURL:        defaultLLMBaseURL,
			Model:          defaultLLMModel,
			Title:          defaultLLMTitle,
			TimeoutSeconds: defaultLLMTimeoutSeconds,
		},
		Workflow: Workflow{
			AnalysisTimeout:   defaultAnalysisTimeout,
			DraftTimeout:      defaultDraftTimeout,
			PollInterval:      defaultPollInterval,
			HeartbeatInterval: defaultHeartbeatInterval,
			HeartbeatTimeout:  defaultHeartbeatTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Critical:       true,
			Pass:           true,
			Errors:         true,
			AlertTiers:     []string{defaultAlertTier},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
