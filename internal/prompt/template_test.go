package prompt

import (
	"testing"

	"github.com/username/llm-orchestrator/internal/domain"
)

func TestRender_SubstitutesVars(t *testing.T) {
	tmpl := domain.PromptTemplate{
		Name:         "greeting",
		UserPrompt:   "Hello {{name}}, welcome to {{place}}.",
		SystemPrompt: "You are assisting {{name}}.",
	}
	user, system := Render(tmpl, map[string]string{"name": "Ada", "place": "the lab"})
	if user != "Hello Ada, welcome to the lab." {
		t.Fatalf("unexpected user prompt: %q", user)
	}
	if system != "You are assisting Ada." {
		t.Fatalf("unexpected system prompt: %q", system)
	}
}

func TestRender_CallerOverridesDefaults(t *testing.T) {
	tmpl := domain.PromptTemplate{
		UserPrompt: "Tone: {{tone}}",
		Defaults:   map[string]string{"tone": "formal"},
	}
	user, _ := Render(tmpl, map[string]string{"tone": "casual"})
	if user != "Tone: casual" {
		t.Fatalf("expected caller value to win, got %q", user)
	}
}

func TestRender_FallsBackToDefaults(t *testing.T) {
	tmpl := domain.PromptTemplate{
		UserPrompt: "Tone: {{tone}}",
		Defaults:   map[string]string{"tone": "formal"},
	}
	user, _ := Render(tmpl, nil)
	if user != "Tone: formal" {
		t.Fatalf("expected default value, got %q", user)
	}
}

func TestRender_UnknownPlaceholderLeftVerbatim(t *testing.T) {
	tmpl := domain.PromptTemplate{UserPrompt: "Value: {{missing}}"}
	user, _ := Render(tmpl, nil)
	if user != "Value: {{missing}}" {
		t.Fatalf("expected unknown placeholder untouched, got %q", user)
	}
}

func TestRender_SubstitutesNumericPlaceholder(t *testing.T) {
	tmpl := domain.PromptTemplate{UserPrompt: "Code: {{123}}"}
	user, _ := Render(tmpl, map[string]string{"123": "ABC"})
	if user != "Code: ABC" {
		t.Fatalf("expected numeric placeholder to substitute, got %q", user)
	}
}

func TestRender_Idempotent(t *testing.T) {
	tmpl := domain.PromptTemplate{UserPrompt: "Hello {{name}}"}
	vars := map[string]string{"name": "Ada"}
	first, _ := Render(tmpl, vars)
	second, _ := Render(tmpl, vars)
	if first != second {
		t.Fatalf("expected idempotent rendering, got %q then %q", first, second)
	}
}

func TestLibrary_RegisterGetRender(t *testing.T) {
	lib := NewLibrary()
	lib.Register(domain.PromptTemplate{Name: "greet", UserPrompt: "Hi {{name}}"})

	tmpl, ok := lib.Get("greet")
	if !ok || tmpl.Name != "greet" {
		t.Fatalf("expected to find template, got %+v, %v", tmpl, ok)
	}

	user, _, err := lib.Render("greet", map[string]string{"name": "Bo"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user != "Hi Bo" {
		t.Fatalf("unexpected rendered prompt: %q", user)
	}
}

func TestLibrary_RenderUnknownNameErrors(t *testing.T) {
	lib := NewLibrary()
	if _, _, err := lib.Render("missing", nil); err == nil {
		t.Fatalf("expected an error for an unregistered template name")
	}
}

func TestLibrary_Concurrent(t *testing.T) {
	lib := NewLibrary()
	done := make(chan struct{})
	for i := 0; i < 20; i++ {
		go func(i int) {
			lib.Register(domain.PromptTemplate{Name: "t", UserPrompt: "v"})
			lib.Get("t")
			lib.Names()
			done <- struct{}{}
		}(i)
	}
	for i := 0; i < 20; i++ {
		<-done
	}
}
