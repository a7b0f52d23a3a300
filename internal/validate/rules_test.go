package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

const goodDesignDoc = `# Payment Service Architecture

## Overview

The service accepts payment intents over HTTP and settles them through a
provider adapter. State lives in a relational store keyed by intent id.

## Components

An API layer, an intent state machine, and one adapter per provider. The
state machine owns every transition; adapters never write state directly.
`

func TestDesignDocument(t *testing.T) {
	tests := []struct {
		name           string
		content        string
		valid          bool
		wantViolations int
	}{
		{"well formed", goodDesignDoc, true, 0},
		{"empty", "   \n", false, 1},
		{"missing title", strings.TrimPrefix(goodDesignDoc, "# Payment Service Architecture\n"), false, 1},
		{"single section", "# T\n\n## Only\n\n" + strings.Repeat("body text ", 30), false, 1},
		{"too short", "# T\n\n## A\n\nx\n\n## B\n\ny\n", false, 1},
	}

	v := DesignDocument()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.content)
			assert.Equal(t, tt.valid, res.Valid)
			assert.Len(t, res.Violations, tt.wantViolations)
			assert.Equal(t, "design-document/v1", res.RuleSet)
		})
	}
}

func TestPromptTemplate(t *testing.T) {
	good := `# Agent System Prompt

You are the build agent for {{ project_name }}. Work from the design in
{{architecture}} and produce one file per component.
`
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"well formed", good, true},
		{"empty", "", false},
		{"no placeholder", "# Prompt\n\n" + strings.Repeat("instruction text ", 10), false},
		{"no heading", "You are an agent for {{ project }}. " + strings.Repeat("do things ", 10), false},
	}

	v := PromptTemplate()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.content)
			assert.Equal(t, tt.valid, res.Valid, "violations: %v", res.Violations)
		})
	}
}

func TestConfigurationFile(t *testing.T) {
	tests := []struct {
		name    string
		content string
		valid   bool
	}{
		{"mapping", "agents:\n  - name: planner\n    model: large\ntools:\n  - web-search\n", true},
		{"empty", "\n", false},
		{"broken yaml", "agents:\n  - name: planner\n   bad-indent: x\n", false},
		{"scalar only", "just a string", false},
	}

	v := ConfigurationFile()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := v.Validate(tt.content)
			assert.Equal(t, tt.valid, res.Valid, "violations: %v", res.Violations)
		})
	}
}

func TestRegistry_UnregisteredKindFailsLoudly(t *testing.T) {
	r := NewRegistry()

	_, err := r.Validate(artifact.KindSourceFile, "package main")
	var noV *NoValidatorError
	require.ErrorAs(t, err, &noV)
	assert.Equal(t, artifact.KindSourceFile, noV.Kind)
}

func TestRegistry_ReplaceRegistration(t *testing.T) {
	r := NewRegistry()
	r.Register(artifact.KindDesignDocument, Func(func(string) Result {
		return Result{Valid: false, Violations: []string{"always rejects"}}
	}))
	r.Register(artifact.KindDesignDocument, Func(func(string) Result {
		return Result{Valid: true}
	}))

	res, err := r.Validate(artifact.KindDesignDocument, "anything")
	require.NoError(t, err)
	assert.True(t, res.Valid)
}

func TestNewDefaultRegistry_CoversEveryKind(t *testing.T) {
	r := NewDefaultRegistry()
	for _, kind := range artifact.Kinds {
		_, err := r.Validate(kind, "sample content")
		assert.NoError(t, err, "kind %s has no validator", kind)
	}
	assert.ElementsMatch(t, artifact.Kinds, r.Kinds())
}
