package validate

import (
	"fmt"

	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_go "github.com/tree-sitter/tree-sitter-go/bindings/go"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
	tree_sitter_rust "github.com/tree-sitter/tree-sitter-rust/bindings/go"
	tree_sitter_typescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

// Language names a grammar the syntax validator can parse.
type Language string

const (
	LangGo         Language = "go"
	LangPython     Language = "python"
	LangRust       Language = "rust"
	LangTypeScript Language = "typescript"
)

// syntaxRuleSet names the rule set applied by the syntax validator.
const syntaxRuleSet = "source-file/tree-sitter-v1"

// SyntaxValidator validates source-file artifacts by parsing them with
// tree-sitter grammars. Content is valid when at least one grammar parses it
// without ERROR or MISSING nodes; violations come from the grammar that got
// closest. A new tree-sitter parser is created per Validate call, so the
// validator itself is safe for concurrent use.
type SyntaxValidator struct {
	order     []Language
	languages map[Language]*tree_sitter.Language
}

// Compile-time check that SyntaxValidator satisfies Validator.
var _ Validator = (*SyntaxValidator)(nil)

// NewSyntaxValidator creates a SyntaxValidator with the Go, Python, Rust,
// and TypeScript grammars registered.
func NewSyntaxValidator() *SyntaxValidator {
	return &SyntaxValidator{
		order: []Language{LangGo, LangPython, LangRust, LangTypeScript},
		languages: map[Language]*tree_sitter.Language{
			LangGo:         tree_sitter.NewLanguage(tree_sitter_go.Language()),
			LangPython:     tree_sitter.NewLanguage(tree_sitter_python.Language()),
			LangRust:       tree_sitter.NewLanguage(tree_sitter_rust.Language()),
			LangTypeScript: tree_sitter.NewLanguage(tree_sitter_typescript.LanguageTypescript()),
		},
	}
}

// Validate parses content under each registered grammar in order and accepts
// on the first clean parse.
func (v *SyntaxValidator) Validate(content string) Result {
	if len(content) == 0 {
		return Result{RuleSet: syntaxRuleSet, Violations: []string{"source file is empty"}}
	}

	source := []byte(content)

	bestLang := Language("")
	var bestViolations []string

	for _, lang := range v.order {
		violations, err := v.parseWith(lang, source)
		if err != nil {
			// Grammar-level failure; try the next language.
			continue
		}
		if len(violations) == 0 {
			return Result{Valid: true, RuleSet: syntaxRuleSet}
		}
		if bestLang == "" || len(violations) < len(bestViolations) {
			bestLang = lang
			bestViolations = violations
		}
	}

	if bestLang == "" {
		return Result{
			RuleSet:    syntaxRuleSet,
			Violations: []string{"content could not be parsed by any registered grammar"},
		}
	}

	out := make([]string, 0, len(bestViolations)+1)
	out = append(out, fmt.Sprintf("no grammar parsed the content cleanly; closest match: %s", bestLang))
	out = append(out, bestViolations...)
	return Result{RuleSet: syntaxRuleSet, Violations: out}
}

// maxSyntaxViolations caps how many parse errors are reported per file.
const maxSyntaxViolations = 10

// parseWith parses source under one grammar and returns a violation per
// ERROR or MISSING node found.
func (v *SyntaxValidator) parseWith(lang Language, source []byte) ([]string, error) {
	tsLang, ok := v.languages[lang]
	if !ok {
		return nil, fmt.Errorf("validate: unsupported language: %s", lang)
	}

	parser := tree_sitter.NewParser()
	defer parser.Close()

	if err := parser.SetLanguage(tsLang); err != nil {
		return nil, fmt.Errorf("validate: set language %s: %w", lang, err)
	}

	tree := parser.Parse(source, nil)
	if tree == nil {
		return nil, fmt.Errorf("validate: tree-sitter returned nil tree for %s", lang)
	}
	defer tree.Close()

	root := tree.RootNode()
	if !root.HasError() {
		return nil, nil
	}

	var violations []string
	cursor := root.Walk()
	defer cursor.Close()
	collectSyntaxErrors(cursor, lang, &violations)
	if len(violations) == 0 {
		// HasError reported a problem the walk did not surface; record it
		// rather than letting the content pass.
		violations = append(violations, fmt.Sprintf("%s: parse tree contains errors", lang))
	}
	return violations, nil
}

// collectSyntaxErrors walks the parse tree and records ERROR and MISSING
// nodes with their positions.
func collectSyntaxErrors(cursor *tree_sitter.TreeCursor, lang Language, violations *[]string) {
	if len(*violations) >= maxSyntaxViolations {
		return
	}

	node := cursor.Node()
	switch {
	case node.IsError():
		pos := node.StartPosition()
		*violations = append(*violations,
			fmt.Sprintf("%s: syntax error at line %d, column %d", lang, pos.Row+1, pos.Column+1))
	case node.IsMissing():
		pos := node.StartPosition()
		*violations = append(*violations,
			fmt.Sprintf("%s: missing %s at line %d, column %d", lang, node.Kind(), pos.Row+1, pos.Column+1))
	}

	if cursor.GotoFirstChild() {
		collectSyntaxErrors(cursor, lang, violations)
		for cursor.GotoNextSibling() {
			collectSyntaxErrors(cursor, lang, violations)
		}
		cursor.GotoParent()
	}
}
