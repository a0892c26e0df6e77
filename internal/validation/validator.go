// Package validation implements predicate checks run against a provider's
// reply content: schema conformance, content filtering, length bounds,
// regular expressions, and arbitrary caller-supplied predicates, composable
// into aggregates.
package validation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/dlclark/regexp2"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/username/llm-orchestrator/internal/domain"
)

// Validator checks reply content against a single predicate. Validate is
// declared to accept a context because implementations are free to be
// network-backed (a remote moderation service, for instance).
type Validator interface {
	Name() string
	Validate(ctx context.Context, content string) domain.ValidationOutcome
}

func outcome(name string, valid bool, msg string) domain.ValidationOutcome {
	return domain.ValidationOutcome{ValidatorName: name, Valid: valid, ErrorMessage: msg}
}

// JsonSchema passes when content parses as JSON and, if Required names are
// given, every one of them is present as a top-level property. A leading
// fenced code block (```json ... ``` or ``` ... ```) is stripped before
// parsing.
type JsonSchema struct {
	Required []string
}

func (v JsonSchema) Name() string { return "json_schema" }

func (v JsonSchema) Validate(_ context.Context, content string) domain.ValidationOutcome {
	content = stripCodeFence(content)
	if strings.TrimSpace(content) == "" {
		return outcome(v.Name(), false, "content is empty")
	}

	var payload any
	if err := json.Unmarshal([]byte(content), &payload); err != nil {
		return outcome(v.Name(), false, fmt.Sprintf("invalid JSON: %v", err))
	}

	if len(v.Required) == 0 {
		return outcome(v.Name(), true, "")
	}

	schemaDoc, err := json.Marshal(map[string]any{
		"type":     "object",
		"required": v.Required,
	})
	if err != nil {
		return outcome(v.Name(), false, fmt.Sprintf("failed to build schema: %v", err))
	}
	compiled, err := jsonschema.CompileString("reply", string(schemaDoc))
	if err != nil {
		return outcome(v.Name(), false, fmt.Sprintf("failed to compile schema: %v", err))
	}
	if err := compiled.Validate(payload); err != nil {
		return outcome(v.Name(), false, err.Error())
	}
	return outcome(v.Name(), true, "")
}

func stripCodeFence(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return s
	}
	lines = lines[1:]
	if len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n")
}

// ContentFilter passes when every MustContain token is present and no
// MustNotContain token is present.
type ContentFilter struct {
	MustContain    []string
	MustNotContain []string
	CaseSensitive  bool
}

func (v ContentFilter) Name() string { return "content_filter" }

func (v ContentFilter) Validate(_ context.Context, content string) domain.ValidationOutcome {
	if strings.TrimSpace(content) == "" {
		return outcome(v.Name(), false, "content is empty")
	}

	haystack := content
	if !v.CaseSensitive {
		haystack = strings.ToLower(haystack)
	}

	for _, token := range v.MustContain {
		needle := token
		if !v.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if !strings.Contains(haystack, needle) {
			return outcome(v.Name(), false, fmt.Sprintf("missing required token %q", token))
		}
	}
	for _, token := range v.MustNotContain {
		needle := token
		if !v.CaseSensitive {
			needle = strings.ToLower(needle)
		}
		if strings.Contains(haystack, needle) {
			return outcome(v.Name(), false, fmt.Sprintf("contains forbidden token %q", token))
		}
	}
	return outcome(v.Name(), true, "")
}

// Length passes when Min <= len(content) <= Max. A zero bound is treated as
// unset (no lower/upper limit respectively) by passing negative Max or
// leaving Min at 0.
type Length struct {
	Min, Max int // Max <= 0 means unbounded
}

func (v Length) Name() string { return "length" }

func (v Length) Validate(_ context.Context, content string) domain.ValidationOutcome {
	n := utf8.RuneCountInString(content)
	if n < v.Min {
		return outcome(v.Name(), false, fmt.Sprintf("content length %d below minimum %d", n, v.Min))
	}
	if v.Max > 0 && n > v.Max {
		return outcome(v.Name(), false, fmt.Sprintf("content length %d exceeds maximum %d", n, v.Max))
	}
	return outcome(v.Name(), true, "")
}

// Regex passes when Pattern matches somewhere in content. The pattern is
// compiled once, at construction, with a 5 second match timeout enforced by
// dlclark/regexp2 — the standard library's regexp package has no such knob.
type Regex struct {
	Pattern string
	re      *regexp2.Regexp
}

// NewRegex compiles Pattern and returns a ready-to-use Regex validator.
func NewRegex(pattern string) (*Regex, error) {
	re, err := regexp2.Compile(pattern, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("validation: invalid regex %q: %w", pattern, err)
	}
	re.MatchTimeout = 5 * time.Second
	return &Regex{Pattern: pattern, re: re}, nil
}

func (v *Regex) Name() string { return "regex" }

func (v *Regex) Validate(_ context.Context, content string) domain.ValidationOutcome {
	if strings.TrimSpace(content) == "" {
		return outcome(v.Name(), false, "content is empty")
	}
	matched, err := v.re.MatchString(content)
	if err != nil {
		return outcome(v.Name(), false, fmt.Sprintf("regex evaluation failed: %v", err))
	}
	if !matched {
		return outcome(v.Name(), false, fmt.Sprintf("content does not match pattern %q", v.Pattern))
	}
	return outcome(v.Name(), true, "")
}

// Custom wraps an arbitrary predicate. A panic inside Fn is recovered and
// reported as a failure carrying Msg plus the recovered value.
type Custom struct {
	CustomName string
	Fn         func(content string) bool
	Msg        string
}

func (v Custom) Name() string {
	if v.CustomName != "" {
		return v.CustomName
	}
	return "custom"
}

func (v Custom) Validate(_ context.Context, content string) (result domain.ValidationOutcome) {
	defer func() {
		if r := recover(); r != nil {
			result = outcome(v.Name(), false, fmt.Sprintf("%s: %v", v.Msg, r))
		}
	}()
	if v.Fn(content) {
		return outcome(v.Name(), true, "")
	}
	return outcome(v.Name(), false, v.Msg)
}

// Composite runs child validators. Validate short-circuits at the first
// failing child. ValidateAll always runs every child and returns the full
// outcome list.
type Composite struct {
	Validators []Validator
}

func (v Composite) Name() string { return "composite" }

func (v Composite) Validate(ctx context.Context, content string) domain.ValidationOutcome {
	for _, child := range v.Validators {
		result := child.Validate(ctx, content)
		if !result.Valid {
			return outcome(v.Name(), false, fmt.Sprintf("%s failed: %s", child.Name(), result.ErrorMessage))
		}
	}
	return outcome(v.Name(), true, "")
}

// ValidateAll runs every child validator regardless of earlier failures and
// returns one outcome per child, in order.
func (v Composite) ValidateAll(ctx context.Context, content string) []domain.ValidationOutcome {
	results := make([]domain.ValidationOutcome, len(v.Validators))
	for i, child := range v.Validators {
		results[i] = child.Validate(ctx, content)
	}
	return results
}
