// Package validate gates generated artifacts through structural checks
// before they are allowed to persist. Validators are pure: they inspect
// content only and never touch the network or filesystem.
package validate

import (
	"fmt"
	"sync"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

// Result is the outcome of validating one artifact's content. It is never
// mutated after creation.
type Result struct {
	Valid      bool
	Violations []string
	RuleSet    string
}

// Validator checks one artifact kind's content.
type Validator interface {
	Validate(content string) Result
}

// Func adapts a plain function to the Validator interface.
type Func func(content string) Result

func (f Func) Validate(content string) Result { return f(content) }

// NoValidatorError reports an artifact kind with no registered validator.
// An unvalidated kind must never pass silently.
type NoValidatorError struct {
	Kind artifact.Kind
}

func (e *NoValidatorError) Error() string {
	return fmt.Sprintf("validate: no validator registered for kind %q", e.Kind)
}

// Registry maps artifact kinds to their validators.
type Registry struct {
	mu         sync.RWMutex
	validators map[artifact.Kind]Validator
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		validators: make(map[artifact.Kind]Validator),
	}
}

// NewDefaultRegistry creates a Registry with the built-in validator for
// every artifact kind the pipeline produces.
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(artifact.KindDesignDocument, DesignDocument())
	r.Register(artifact.KindPromptTemplate, PromptTemplate())
	r.Register(artifact.KindConfigurationFile, ConfigurationFile())
	r.Register(artifact.KindSourceFile, NewSyntaxValidator())
	return r
}

// Register associates a validator with an artifact kind, replacing any
// previous registration.
func (r *Registry) Register(kind artifact.Kind, v Validator) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.validators[kind] = v
}

// Kinds returns the registered artifact kinds in unspecified order.
func (r *Registry) Kinds() []artifact.Kind {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]artifact.Kind, 0, len(r.validators))
	for k := range r.validators {
		kinds = append(kinds, k)
	}
	return kinds
}

// Validate runs the registered validator for the kind. An unregistered kind
// yields a NoValidatorError rather than defaulting to valid.
func (r *Registry) Validate(kind artifact.Kind, content string) (Result, error) {
	r.mu.RLock()
	v, ok := r.validators[kind]
	r.mu.RUnlock()

	if !ok {
		return Result{}, &NoValidatorError{Kind: kind}
	}
	return v.Validate(content), nil
}
