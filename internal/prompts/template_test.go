package prompts

import (
	"context"
	"reflect"
	"testing"
)

func TestExtractVariables(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "plain text", nil},
		{"single", "Hello {{.Name}}", []string{"Name"}},
		{"sorted and deduped", "{{.Zeta}} {{.Alpha}} {{.Zeta}}", []string{"Alpha", "Zeta"}},
		{"nested field", "{{ .Story.Title }}", []string{"Story.Title"}},
		{"whitespace variants", "{{.A}} {{ .B }} {{  .C  }}", []string{"A", "B", "C"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ExtractVariables(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ExtractVariables(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestHashText(t *testing.T) {
	a := HashText("hello")
	b := HashText("hello")
	c := HashText("world")

	if a != b {
		t.Error("same text should hash identically")
	}
	if a == c {
		t.Error("different text should hash differently")
	}
	if len(a) != 64 {
		t.Errorf("expected 64 hex chars, got %d", len(a))
	}
}

func TestResolverRegisterAndGetEmbedded(t *testing.T) {
	r := NewResolver(nil, nil)
	r.Register(EmbeddedPrompt{
		Key:  "stages.test.system",
		Text: "Do {{.Thing}} carefully.",
	})

	p, ok := r.GetEmbedded("stages.test.system")
	if !ok {
		t.Fatal("expected embedded prompt")
	}
	if p.Hash == "" {
		t.Error("expected hash computed on register")
	}
	if !reflect.DeepEqual(p.Variables, []string{"Thing"}) {
		t.Errorf("unexpected variables: %v", p.Variables)
	}
}

func TestResolverResolveWithoutStore(t *testing.T) {
	r := NewResolver(nil, nil)
	r.Register(EmbeddedPrompt{Key: "stages.test.system", Text: "text"})

	resolved, err := r.Resolve(context.Background(), "stages.test.system", "")
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if resolved.IsOverride {
		t.Error("expected embedded default, not override")
	}
	if resolved.Text != "text" {
		t.Errorf("unexpected text: %q", resolved.Text)
	}

	if _, err := r.Resolve(context.Background(), "missing.key", ""); err == nil {
		t.Error("expected error for unknown key")
	}
}
