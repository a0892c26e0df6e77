// Package prompt renders named, reusable prompt templates and keeps a
// thread-safe registry of them, mirroring the provider registry's shape.
package prompt

import (
	"fmt"
	"regexp"
	"sync"

	"github.com/username/llm-orchestrator/internal/domain"
)

var placeholder = regexp.MustCompile(`\{\{\s*(\w+)\s*\}\}`)

// Render substitutes every {{identifier}} in tmpl.UserPrompt and
// tmpl.SystemPrompt with vars, falling back to tmpl.Defaults for any
// identifier vars does not supply. Returns the rendered user prompt and
// system prompt, in that order.
func Render(tmpl domain.PromptTemplate, vars map[string]string) (userPrompt, systemPrompt string) {
	merged := make(map[string]string, len(tmpl.Defaults)+len(vars))
	for k, v := range tmpl.Defaults {
		merged[k] = v
	}
	for k, v := range vars {
		merged[k] = v
	}

	substitute := func(text string) string {
		return placeholder.ReplaceAllStringFunc(text, func(match string) string {
			name := placeholder.FindStringSubmatch(match)[1]
			if v, ok := merged[name]; ok {
				return v
			}
			return match
		})
	}

	return substitute(tmpl.UserPrompt), substitute(tmpl.SystemPrompt)
}

// Library is a thread-safe, name-keyed directory of prompt templates.
type Library struct {
	mu        sync.RWMutex
	templates map[string]domain.PromptTemplate
}

// NewLibrary builds an empty template library.
func NewLibrary() *Library {
	return &Library{templates: make(map[string]domain.PromptTemplate)}
}

// Register adds or replaces a template under its own Name.
func (l *Library) Register(tmpl domain.PromptTemplate) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.templates[tmpl.Name] = tmpl
}

// Get returns the template registered under name, if any.
func (l *Library) Get(name string) (domain.PromptTemplate, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	tmpl, ok := l.templates[name]
	return tmpl, ok
}

// Render looks up name and renders it with vars.
func (l *Library) Render(name string, vars map[string]string) (userPrompt, systemPrompt string, err error) {
	tmpl, ok := l.Get(name)
	if !ok {
		return "", "", fmt.Errorf("prompt: no template registered under name %q", name)
	}
	user, system := Render(tmpl, vars)
	return user, system, nil
}

// Names returns every registered template name.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]string, 0, len(l.templates))
	for name := range l.templates {
		out = append(out, name)
	}
	return out
}
