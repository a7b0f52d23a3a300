// Package export renders read-only project status views: a JSON structure
// for dashboards and a Mermaid diagram of the stage chain. It never mutates
// state and never blocks on an in-flight build.
package export

import (
	"fmt"
	"strings"
	"time"

	"github.com/dusk-indust/agentforge/internal/store"
)

// ProjectExport is the top-level JSON export structure for one project.
type ProjectExport struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Status       string        `json:"status"`
	CurrentStage int           `json:"currentStage"`
	CreatedAt    string        `json:"createdAt"`
	UpdatedAt    string        `json:"updatedAt"`
	Stages       []StageExport `json:"stages"`
}

// StageExport describes one pipeline stage of one project.
type StageExport struct {
	Index     int      `json:"index"`
	Stage     string   `json:"stage"`
	Completed bool     `json:"completed"`
	Error     string   `json:"error,omitempty"`
	Artifacts []string `json:"artifacts,omitempty"`
	UpdatedAt string   `json:"updatedAt"`
}

// Project builds a ProjectExport from a stored project record.
func Project(p *store.Project) *ProjectExport {
	out := &ProjectExport{
		ID:           p.ID,
		Name:         p.Name,
		Status:       string(p.Status),
		CurrentStage: p.CurrentStage,
		CreatedAt:    p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    p.UpdatedAt.UTC().Format(time.RFC3339),
	}

	for i, ss := range p.Stages {
		se := StageExport{
			Index:     i,
			Stage:     ss.Stage,
			Completed: ss.Completed,
			Error:     ss.Error,
			UpdatedAt: ss.UpdatedAt.UTC().Format(time.RFC3339),
		}
		for _, ref := range ss.Artifacts {
			se.Artifacts = append(se.Artifacts, ref.Path)
		}
		out.Stages = append(out.Stages, se)
	}

	return out
}

// Mermaid renders the project's stage chain as a Mermaid graph TD diagram.
// Completed stages are styled green, the failed stage red.
func Mermaid(p *store.Project) string {
	var sb strings.Builder
	sb.WriteString("graph TD\n")

	for i, ss := range p.Stages {
		sb.WriteString(fmt.Sprintf("  S%d[\"%s\"]\n", i, ss.Stage))
	}
	for i := 1; i < len(p.Stages); i++ {
		sb.WriteString(fmt.Sprintf("  S%d --> S%d\n", i-1, i))
	}

	for i, ss := range p.Stages {
		switch {
		case ss.Completed:
			sb.WriteString(fmt.Sprintf("  style S%d fill:#9f9\n", i))
		case ss.Error != "":
			sb.WriteString(fmt.Sprintf("  style S%d fill:#f99\n", i))
		}
	}

	return sb.String()
}
