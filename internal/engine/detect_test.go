package engine

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestNew_Ollama(t *testing.T) {
	e, err := New(Config{Provider: "ollama", OllamaBaseURL: "http://localhost:11434"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, ok := e.(*OllamaEngine); !ok {
		t.Errorf("New returned %T, want *OllamaEngine", e)
	}
}

func TestNew_OpenAI(t *testing.T) {
	for _, provider := range []string{"", "openai", "groq", "OpenAI"} {
		e, err := New(Config{Provider: provider, APIKey: "gsk-test"})
		if err != nil {
			t.Fatalf("New(%q): %v", provider, err)
		}
		oe, ok := e.(*OpenAIEngine)
		if !ok {
			t.Fatalf("New(%q) returned %T, want *OpenAIEngine", provider, e)
		}
		if oe.baseURL != DefaultOpenAIBaseURL {
			t.Errorf("baseURL = %q, want %q", oe.baseURL, DefaultOpenAIBaseURL)
		}
	}
}

func TestNew_OpenAIMissingKey(t *testing.T) {
	_, err := New(Config{Provider: "openai"})
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("err = %v, want ErrMissingAPIKey", err)
	}
	if len(errors.GetAllHints(err)) == 0 {
		t.Error("expected a hint on the missing-key error")
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New(Config{Provider: "mlx"}); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}
