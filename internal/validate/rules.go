package validate

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Built-in structural validators. The checks are deliberately structural
// rather than exact-substring matches: a document passes when it has the
// required shape, not when it reproduces specific wording.

// DesignDocument validates markdown design documents: a title, at least two
// sections, and a non-trivial body.
func DesignDocument() Validator {
	const ruleSet = "design-document/v1"
	return Func(func(content string) Result {
		var violations []string

		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return Result{RuleSet: ruleSet, Violations: []string{"document is empty"}}
		}

		lines := strings.Split(trimmed, "\n")
		if !strings.HasPrefix(lines[0], "# ") {
			violations = append(violations, "missing top-level title (expected leading '# ' heading)")
		}

		sections := 0
		for _, line := range lines {
			if strings.HasPrefix(line, "## ") {
				sections++
			}
		}
		if sections < 2 {
			violations = append(violations,
				fmt.Sprintf("expected at least 2 sections ('## ' headings), found %d", sections))
		}

		if len(trimmed) < 200 {
			violations = append(violations,
				fmt.Sprintf("document body too short: %d characters (minimum 200)", len(trimmed)))
		}

		return Result{
			Valid:      len(violations) == 0,
			Violations: violations,
			RuleSet:    ruleSet,
		}
	})
}

// placeholderRe matches {{name}} substitution markers in prompt templates.
var placeholderRe = regexp.MustCompile(`\{\{\s*[a-zA-Z_][a-zA-Z0-9_.]*\s*\}\}`)

// PromptTemplate validates generated prompt templates: a heading, at least
// one substitution placeholder, and a non-empty instruction body.
func PromptTemplate() Validator {
	const ruleSet = "prompt-template/v1"
	return Func(func(content string) Result {
		var violations []string

		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return Result{RuleSet: ruleSet, Violations: []string{"template is empty"}}
		}

		if !strings.HasPrefix(trimmed, "#") {
			violations = append(violations, "missing template heading (expected leading '#')")
		}

		if !placeholderRe.MatchString(trimmed) {
			violations = append(violations, "no {{placeholder}} substitution markers found")
		}

		if len(trimmed) < 80 {
			violations = append(violations,
				fmt.Sprintf("template body too short: %d characters (minimum 80)", len(trimmed)))
		}

		return Result{
			Valid:      len(violations) == 0,
			Violations: violations,
			RuleSet:    ruleSet,
		}
	})
}

// ConfigurationFile validates that content parses as YAML with a top-level
// mapping.
func ConfigurationFile() Validator {
	const ruleSet = "configuration-file/yaml-v1"
	return Func(func(content string) Result {
		var violations []string

		if strings.TrimSpace(content) == "" {
			return Result{RuleSet: ruleSet, Violations: []string{"configuration is empty"}}
		}

		var doc map[string]any
		if err := yaml.Unmarshal([]byte(content), &doc); err != nil {
			violations = append(violations, fmt.Sprintf("not valid YAML: %v", err))
		} else if len(doc) == 0 {
			violations = append(violations, "top-level mapping is empty")
		}

		return Result{
			Valid:      len(violations) == 0,
			Violations: violations,
			RuleSet:    ruleSet,
		}
	})
}
