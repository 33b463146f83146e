package config

// Config holds soulscribe configuration.
// Stored at: ~/.soulscribe/config.yaml
type Config struct {
	LLMProviders map[string]LLMProviderCfg `mapstructure:"llm_providers" yaml:"llm_providers"`
	TTSProviders map[string]TTSProviderCfg `mapstructure:"tts_providers" yaml:"tts_providers"`
	Defaults     DefaultsCfg               `mapstructure:"defaults" yaml:"defaults"`
	StoreDB      StoreDBConfig             `mapstructure:"storedb" yaml:"storedb"`
}

// LLMProviderCfg configures an LLM provider.
type LLMProviderCfg struct {
	Type      string `mapstructure:"type" yaml:"type"`             // "openrouter"
	Model     string `mapstructure:"model" yaml:"model"`           // Default model name
	APIKey    string `mapstructure:"api_key" yaml:"api_key"`       // API key (supports ${ENV_VAR} syntax)
	RateLimit int    `mapstructure:"rate_limit" yaml:"rate_limit"` // Requests per minute
	Enabled   bool   `mapstructure:"enabled" yaml:"enabled"`
}

// TTSProviderCfg configures a TTS provider.
type TTSProviderCfg struct {
	Type    string `mapstructure:"type" yaml:"type"`       // "openai"
	Model   string `mapstructure:"model" yaml:"model"`     // TTS model name
	Voice   string `mapstructure:"voice" yaml:"voice"`     // Default voice
	APIKey  string `mapstructure:"api_key" yaml:"api_key"` // API key (supports ${ENV_VAR} syntax)
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
}

// DefaultsCfg specifies default provider selections and generation tuning.
type DefaultsCfg struct {
	GeneratorProvider string  `mapstructure:"generator_provider" yaml:"generator_provider"`
	ReviewerProvider  string  `mapstructure:"reviewer_provider" yaml:"reviewer_provider"`
	TTSProvider       string  `mapstructure:"tts_provider" yaml:"tts_provider"`
	MaxConcurrency    int     `mapstructure:"max_concurrency" yaml:"max_concurrency"`
	QualityThreshold  float64 `mapstructure:"quality_threshold" yaml:"quality_threshold"`
	MaxRetries        int     `mapstructure:"max_retries" yaml:"max_retries"`
}

// StoreDBConfig holds document store container configuration.
type StoreDBConfig struct {
	// ContainerName is the Docker container name (default: soulscribe-storedb)
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	// Image is the Docker image to use (default: sourcenetwork/defradb:latest)
	Image string `mapstructure:"image" yaml:"image"`
	// Port is the host port to bind (default: 9181)
	Port string `mapstructure:"port" yaml:"port"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "anthropic/claude-sonnet-4",
				APIKey:  "${OPENROUTER_API_KEY}",
				Enabled: true,
			},
		},
		TTSProviders: map[string]TTSProviderCfg{
			"openai": {
				Type:    "openai",
				Model:   "tts-1-hd",
				Voice:   "onyx",
				APIKey:  "${OPENAI_API_KEY}",
				Enabled: true,
			},
		},
		Defaults: DefaultsCfg{
			GeneratorProvider: "openrouter",
			ReviewerProvider:  "openrouter",
			TTSProvider:       "openai",
			MaxConcurrency:    3,
			QualityThreshold:  0.7,
			MaxRetries:        2,
		},
		StoreDB: StoreDBConfig{
			ContainerName: "soulscribe-storedb",
			Image:         "sourcenetwork/defradb:latest",
			Port:          "9181",
		},
	}
}

// GetLLMProvider returns an LLM provider config by name.
func (c *Config) GetLLMProvider(name string) (LLMProviderCfg, bool) {
	cfg, ok := c.LLMProviders[name]
	return cfg, ok
}

// GetTTSProvider returns a TTS provider config by name.
func (c *Config) GetTTSProvider(name string) (TTSProviderCfg, bool) {
	cfg, ok := c.TTSProviders[name]
	return cfg, ok
}

// EnabledLLMProviders returns all enabled LLM providers.
func (c *Config) EnabledLLMProviders() map[string]LLMProviderCfg {
	result := make(map[string]LLMProviderCfg)
	for name, cfg := range c.LLMProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}

// EnabledTTSProviders returns all enabled TTS providers.
func (c *Config) EnabledTTSProviders() map[string]TTSProviderCfg {
	result := make(map[string]TTSProviderCfg)
	for name, cfg := range c.TTSProviders {
		if cfg.Enabled {
			result[name] = cfg
		}
	}
	return result
}
