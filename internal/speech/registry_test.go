package speech

import (
	"context"
	"strings"
	"testing"
)

type staticTranslator struct{ model string }

func (s *staticTranslator) Translate(ctx context.Context, text, targetLanguage string) (string, error) {
	return text, nil
}

func TestRegistry_DefaultModelApplied(t *testing.T) {
	r := NewRegistry()
	r.Register("local", "llama3.1", func(ctx context.Context, model string) (Translator, error) {
		return &staticTranslator{model: model}, nil
	})
	ctx := context.Background()

	tr, err := r.Get(ctx, "local", "")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := tr.(*staticTranslator).model; got != "llama3.1" {
		t.Fatalf("expected registered default model, got %q", got)
	}

	tr, err = r.Get(ctx, "local", "mistral")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got := tr.(*staticTranslator).model; got != "mistral" {
		t.Fatalf("explicit model must win over the default, got %q", got)
	}
}

func TestRegistry_NameNormalizedAndUnknownRejected(t *testing.T) {
	r := NewRegistry()
	r.Register("  OpenAI ", "gpt-4o-mini", func(ctx context.Context, model string) (Translator, error) {
		return &staticTranslator{model: model}, nil
	})
	ctx := context.Background()

	if _, err := r.Get(ctx, "openai", ""); err != nil {
		t.Fatalf("normalized lookup failed: %v", err)
	}
	_, err := r.Get(ctx, "anthropic", "")
	if err == nil || !strings.Contains(err.Error(), "unknown translation provider") {
		t.Fatalf("expected unknown provider error, got %v", err)
	}
}
