package config

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	or, ok := cfg.GetLLMProvider("openrouter")
	if !ok {
		t.Fatal("expected default openrouter provider")
	}
	if or.APIKey != "${OPENROUTER_API_KEY}" {
		t.Error("expected openrouter API key placeholder")
	}
	if !or.Enabled {
		t.Error("expected openrouter enabled by default")
	}

	if cfg.Defaults.QualityThreshold != 0.7 {
		t.Errorf("quality threshold = %v, want 0.7", cfg.Defaults.QualityThreshold)
	}
	if cfg.Defaults.MaxConcurrency != 3 {
		t.Errorf("max concurrency = %d, want 3", cfg.Defaults.MaxConcurrency)
	}
	if cfg.StoreDB.ContainerName != "soulscribe-storedb" {
		t.Errorf("container name = %q", cfg.StoreDB.ContainerName)
	}
}

func TestResolveEnvVars(t *testing.T) {
	t.Run("resolves environment variable", func(t *testing.T) {
		os.Setenv("TEST_API_KEY", "secret123")
		defer os.Unsetenv("TEST_API_KEY")

		result := ResolveEnvVars("${TEST_API_KEY}")
		if result != "secret123" {
			t.Errorf("expected secret123, got %s", result)
		}
	})

	t.Run("returns empty for missing env var", func(t *testing.T) {
		result := ResolveEnvVars("${DEFINITELY_NOT_SET_12345}")
		if result != "" {
			t.Errorf("expected empty string, got %s", result)
		}
	})

	t.Run("leaves literal values unchanged", func(t *testing.T) {
		result := ResolveEnvVars("literal-value")
		if result != "literal-value" {
			t.Errorf("expected literal-value, got %s", result)
		}
	})
}

func TestToProviderRegistryConfig(t *testing.T) {
	os.Setenv("TEST_OR_KEY", "or-key-123")
	defer os.Unsetenv("TEST_OR_KEY")

	cfg := &Config{
		LLMProviders: map[string]LLMProviderCfg{
			"openrouter": {
				Type:    "openrouter",
				Model:   "test-model",
				APIKey:  "${TEST_OR_KEY}",
				Enabled: true,
			},
		},
		TTSProviders: map[string]TTSProviderCfg{
			"openai": {
				Type:    "openai",
				Voice:   "onyx",
				APIKey:  "literal-key",
				Enabled: true,
			},
		},
	}

	reg := cfg.ToProviderRegistryConfig()

	if reg.LLMProviders["openrouter"].APIKey != "or-key-123" {
		t.Errorf("LLM API key = %q, want resolved value", reg.LLMProviders["openrouter"].APIKey)
	}
	if reg.TTSProviders["openai"].APIKey != "literal-key" {
		t.Errorf("TTS API key = %q, want literal", reg.TTSProviders["openai"].APIKey)
	}
	if reg.TTSProviders["openai"].Voice != "onyx" {
		t.Errorf("TTS voice = %q", reg.TTSProviders["openai"].Voice)
	}
}

func TestNewManager(t *testing.T) {
	t.Run("loads from config file", func(t *testing.T) {
		tmpDir := t.TempDir()
		configFile := filepath.Join(tmpDir, "config.yaml")

		configContent := `
defaults:
  generator_provider: "custom"
  quality_threshold: 0.8
`
		if err := os.WriteFile(configFile, []byte(configContent), 0644); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}

		mgr, err := NewManager(configFile)
		if err != nil {
			t.Fatalf("failed to create manager: %v", err)
		}

		cfg := mgr.Get()
		if cfg.Defaults.GeneratorProvider != "custom" {
			t.Errorf("generator provider = %q, want custom", cfg.Defaults.GeneratorProvider)
		}
		if cfg.Defaults.QualityThreshold != 0.8 {
			t.Errorf("quality threshold = %v, want 0.8", cfg.Defaults.QualityThreshold)
		}
	})
}

func TestManager_OnChange_Multiple(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_retries: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})
	mgr.OnChange(func(cfg *Config) {})

	mgr.mu.RLock()
	if len(mgr.callbacks) != 3 {
		t.Errorf("expected 3 callbacks, got %d", len(mgr.callbacks))
	}
	mgr.mu.RUnlock()
}

func TestManager_Get_ThreadSafe(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  max_retries: 2\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	done := make(chan struct{})
	for i := 0; i < 10; i++ {
		go func() {
			for j := 0; j < 100; j++ {
				cfg := mgr.Get()
				_ = cfg.Defaults.MaxRetries
			}
			done <- struct{}{}
		}()
	}

	for i := 0; i < 10; i++ {
		<-done
	}
}

func TestManager_WatchConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.yaml")

	if err := os.WriteFile(configFile, []byte("defaults:\n  generator_provider: \"initial\"\n"), 0644); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	mgr, err := NewManager(configFile)
	if err != nil {
		t.Fatalf("failed to create manager: %v", err)
	}

	cfg := mgr.Get()
	if cfg.Defaults.GeneratorProvider != "initial" {
		t.Errorf("initial value mismatch: got %s", cfg.Defaults.GeneratorProvider)
	}

	var callbackCount atomic.Int32
	var lastValue atomic.Value

	mgr.OnChange(func(cfg *Config) {
		callbackCount.Add(1)
		lastValue.Store(cfg.Defaults.GeneratorProvider)
	})

	mgr.WatchConfig()

	// Give fsnotify time to set up the watcher
	time.Sleep(100 * time.Millisecond)

	if err := os.WriteFile(configFile, []byte("defaults:\n  generator_provider: \"updated\"\n"), 0644); err != nil {
		t.Fatalf("failed to write updated config file: %v", err)
	}

	// Wait for the watcher to detect the change (fsnotify is async)
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if callbackCount.Load() > 0 {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}

	if callbackCount.Load() == 0 {
		t.Error("callback was not invoked after config file change")
	}

	newCfg := mgr.Get()
	if newCfg.Defaults.GeneratorProvider != "updated" {
		t.Errorf("config not updated: got %s", newCfg.Defaults.GeneratorProvider)
	}

	if v := lastValue.Load(); v != "updated" {
		t.Errorf("callback received wrong value: %v", v)
	}
}
