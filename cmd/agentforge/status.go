package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/dusk-indust/agentforge/internal/export"
	"github.com/dusk-indust/agentforge/internal/pipeline"
)

// runStatus prints status for one project, or for all known projects when
// no id is given. Reads go straight to the status store and never touch the
// scheduler.
func runStatus(flags cliFlags, projectID string) error {
	ctx := context.Background()

	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	seq := pipeline.DefaultSequencer()
	st, err := openStore(ctx, cfg, seq.StageIDs())
	if err != nil {
		return err
	}
	defer st.Close()

	if projectID != "" {
		proj, err := st.GetProject(ctx, projectID)
		if err != nil {
			return err
		}
		switch {
		case flags.Mermaid:
			fmt.Println(export.Mermaid(proj))
		case flags.JSON:
			return printJSON(export.Project(proj))
		default:
			printStageTable(proj)
		}
		return nil
	}

	projects, err := st.ListProjects(ctx)
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		fmt.Println("No projects found.")
		fmt.Println("Run 'agentforge build <project-id>' to start one.")
		return nil
	}

	if flags.JSON {
		exports := make([]export.ProjectExport, 0, len(projects))
		for i := range projects {
			exports = append(exports, *export.Project(&projects[i]))
		}
		return printJSON(exports)
	}

	for i := range projects {
		if i > 0 {
			fmt.Println()
		}
		printStageTable(&projects[i])
	}
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
