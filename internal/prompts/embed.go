// Package prompts embeds the per-stage prompt preambles shipped inside the
// agentforge binary. Each sequenced stage has one markdown preamble under
// templates/<stage>.md; stages without a file get an empty preamble.
package prompts

import (
	"embed"
	"io/fs"
)

//go:embed templates/*.md
var templateFS embed.FS

// Preamble returns the embedded preamble for a stage id, or "" when the
// stage has no template.
func Preamble(stage string) string {
	data, err := templateFS.ReadFile("templates/" + stage + ".md")
	if err != nil {
		return ""
	}
	return string(data)
}

// Stages lists the stage ids that have an embedded preamble.
func Stages() []string {
	entries, err := fs.ReadDir(templateFS, "templates")
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		out = append(out, name[:len(name)-len(".md")])
	}
	return out
}
