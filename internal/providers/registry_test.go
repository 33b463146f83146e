package providers

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	mock := NewMockClient()
	r.RegisterLLM("primary", mock)

	got, err := r.GetLLM("primary")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if got != mock {
		t.Error("GetLLM() returned different client")
	}

	if _, err := r.GetLLM("missing"); err == nil {
		t.Error("GetLLM(missing) = nil error, want not found")
	}
}

func TestNewRegistryFromConfig(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"writer":   {Type: "openrouter", Model: "m1", APIKey: "k1", Enabled: true},
			"disabled": {Type: "openrouter", Model: "m2", APIKey: "k2", Enabled: false},
			"no-key":   {Type: "openrouter", Model: "m3", Enabled: true},
		},
	})

	if !r.HasLLM("writer") {
		t.Error("HasLLM(writer) = false, want registered")
	}
	if r.HasLLM("disabled") {
		t.Error("HasLLM(disabled) = true, want skipped")
	}
	if r.HasLLM("no-key") {
		t.Error("HasLLM(no-key) = true, want skipped without API key")
	}
}

func TestRegistryReload(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"writer": {Type: "openrouter", Model: "m1", APIKey: "k1", Enabled: true},
			"old":    {Type: "openrouter", Model: "m2", APIKey: "k2", Enabled: true},
		},
	})

	before, err := r.GetLLM("writer")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}

	r.Reload(RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"writer": {Type: "openrouter", Model: "m1-updated", APIKey: "k1", Enabled: true},
			"new":    {Type: "openrouter", Model: "m3", APIKey: "k3", Enabled: true},
		},
	})

	if r.HasLLM("old") {
		t.Error("HasLLM(old) = true, want removed on reload")
	}
	if !r.HasLLM("new") {
		t.Error("HasLLM(new) = false, want added on reload")
	}
	after, err := r.GetLLM("writer")
	if err != nil {
		t.Fatalf("GetLLM() error = %v", err)
	}
	if before == after {
		t.Error("writer client unchanged after model update, want recreated")
	}
}

func TestRegistryReloadUnchanged(t *testing.T) {
	cfg := RegistryConfig{
		LLMProviders: map[string]LLMProviderConfig{
			"writer": {Type: "openrouter", Model: "m1", APIKey: "k1", Enabled: true},
		},
	}
	r := NewRegistryFromConfig(cfg)
	before, _ := r.GetLLM("writer")

	r.Reload(cfg)

	after, _ := r.GetLLM("writer")
	if before != after {
		t.Error("client recreated on identical config, want reused")
	}
}

func TestRegistryTTS(t *testing.T) {
	r := NewRegistryFromConfig(RegistryConfig{
		TTSProviders: map[string]TTSProviderConfig{
			"narrator": {Type: "openai", Voice: "nova", APIKey: "k1", Enabled: true},
		},
	})

	if !r.HasTTS("narrator") {
		t.Fatal("HasTTS(narrator) = false, want registered")
	}
	p, err := r.GetTTS("narrator")
	if err != nil {
		t.Fatalf("GetTTS() error = %v", err)
	}
	if p.Name() != OpenAITTSName {
		t.Errorf("Name() = %q, want %q", p.Name(), OpenAITTSName)
	}
}
