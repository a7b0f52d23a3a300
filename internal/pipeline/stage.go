// Package pipeline drives one project through the fixed agent-build stage
// sequence, from its persisted resume point to the terminal stage or to a
// recorded failure.
package pipeline

import (
	"fmt"

	"github.com/dusk-indust/agentforge/internal/artifact"
)

// Stage identifies one step of the agent-build pipeline. The value is also
// the stage's persisted status key.
type Stage string

const (
	StageRequirementsAnalysis Stage = "requirements-analysis"
	StageArchitectureDesign   Stage = "architecture-design"
	StageAgentDesign          Stage = "agent-design"
	StagePromptEngineering    Stage = "prompt-engineering"
	StageToolDevelopment      Stage = "tool-development"
	StageCodeDevelopment      Stage = "code-development"
	StageReview               Stage = "review"
)

// DefaultStages is the fixed build order. Stage N consumes the committed
// output of stages 0..N-1.
var DefaultStages = []Stage{
	StageRequirementsAnalysis,
	StageArchitectureDesign,
	StageAgentDesign,
	StagePromptEngineering,
	StageToolDevelopment,
	StageCodeDevelopment,
	StageReview,
}

// stageKinds maps each stage to the artifact kind it produces.
var stageKinds = map[Stage]artifact.Kind{
	StageRequirementsAnalysis: artifact.KindDesignDocument,
	StageArchitectureDesign:   artifact.KindDesignDocument,
	StageAgentDesign:          artifact.KindDesignDocument,
	StagePromptEngineering:    artifact.KindPromptTemplate,
	StageToolDevelopment:      artifact.KindSourceFile,
	StageCodeDevelopment:      artifact.KindSourceFile,
	StageReview:               artifact.KindDesignDocument,
}

// kindExtensions maps artifact kinds to the file extension of their
// committed artifact. Source files get a language-neutral extension; the
// syntax validator, not the name, determines the language.
var kindExtensions = map[artifact.Kind]string{
	artifact.KindDesignDocument:    ".md",
	artifact.KindPromptTemplate:    ".md",
	artifact.KindSourceFile:        ".txt",
	artifact.KindConfigurationFile: ".yaml",
}

// ArtifactKind returns the artifact kind the stage produces. NewRunner
// verifies at wiring time that every sequenced stage has a kind, so an
// unregistered stage here is a configuration error and panics rather than
// defaulting to a kind the stage never declared.
func (s Stage) ArtifactKind() artifact.Kind {
	k, ok := stageKinds[s]
	if !ok {
		panic(fmt.Sprintf("pipeline: no artifact kind registered for stage %q", s))
	}
	return k
}

// ArtifactName returns the committed artifact name for the stage.
func (s Stage) ArtifactName() string {
	return string(s) + kindExtensions[s.ArtifactKind()]
}

// Sequencer owns the fixed, ordered stage list and answers dependency-order
// queries. It is the single source of truth for which stage ids exist; the
// status store's accepted id set is derived from it at wiring time, so the
// two can never drift apart.
type Sequencer struct {
	stages  []Stage
	indexOf map[Stage]int
}

// NewSequencer builds a Sequencer over the given ordered stages. Empty
// sequences and duplicate ids are configuration errors.
func NewSequencer(stages []Stage) (*Sequencer, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("pipeline: stage sequence is empty")
	}

	idx := make(map[Stage]int, len(stages))
	for i, s := range stages {
		if s == "" {
			return nil, fmt.Errorf("pipeline: empty stage id at index %d", i)
		}
		if _, dup := idx[s]; dup {
			return nil, fmt.Errorf("pipeline: duplicate stage id %q", s)
		}
		idx[s] = i
	}

	return &Sequencer{
		stages:  append([]Stage(nil), stages...),
		indexOf: idx,
	}, nil
}

// DefaultSequencer returns a Sequencer over DefaultStages.
func DefaultSequencer() *Sequencer {
	seq, err := NewSequencer(DefaultStages)
	if err != nil {
		// DefaultStages is a compile-time constant list; this cannot happen.
		panic(err)
	}
	return seq
}

// Stages returns the ordered stage list.
func (q *Sequencer) Stages() []Stage {
	return append([]Stage(nil), q.stages...)
}

// StageIDs returns the ordered stage ids as plain strings, the form the
// status store records them in.
func (q *Sequencer) StageIDs() []string {
	ids := make([]string, len(q.stages))
	for i, s := range q.stages {
		ids[i] = string(s)
	}
	return ids
}

// IndexOf returns the position of a stage in the sequence, or an
// UnknownStageError for an unsequenced id.
func (q *Sequencer) IndexOf(id Stage) (int, error) {
	i, ok := q.indexOf[id]
	if !ok {
		return 0, &UnknownStageError{Stage: id}
	}
	return i, nil
}

// Next returns the stage after id. ok is false when id is terminal.
func (q *Sequencer) Next(id Stage) (next Stage, ok bool, err error) {
	i, err := q.IndexOf(id)
	if err != nil {
		return "", false, err
	}
	if i == len(q.stages)-1 {
		return "", false, nil
	}
	return q.stages[i+1], true, nil
}

// IsTerminal reports whether id is the last stage of the sequence.
func (q *Sequencer) IsTerminal(id Stage) (bool, error) {
	i, err := q.IndexOf(id)
	if err != nil {
		return false, err
	}
	return i == len(q.stages)-1, nil
}
