package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/saidctb/pykythe"
)

func validateFormat(format string) error {
	switch format {
	case "json", "text":
		return nil
	}
	return fmt.Errorf("invalid format %q (want json or text)", format)
}

// moduleOutput is the JSON shape for one module's results.
type moduleOutput struct {
	Module string         `json:"module"`
	Path   string         `json:"path"`
	Status string         `json:"status"`
	Error  string         `json:"error,omitempty"`
	Facts  []pykythe.Fact `json:"facts,omitempty"`
}

// writeResults emits one line (json) or block (text) per module, in the
// deterministic FQN order the engine returned.
func writeResults(w io.Writer, format string, results []*pykythe.ModuleResult) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		for _, r := range results {
			out := moduleOutput{
				Module: r.FQN,
				Path:   r.Path,
				Status: r.Status.String(),
				Facts:  r.Facts,
			}
			if r.Err != nil {
				out.Error = r.Err.Error()
			}
			if err := enc.Encode(out); err != nil {
				return err
			}
		}
		return nil
	}

	for _, r := range results {
		fmt.Fprintf(w, "module %s (%s) %s\n", r.FQN, r.Path, r.Status)
		if r.Err != nil {
			fmt.Fprintf(w, "  error: %s\n", r.Err)
			continue
		}
		formatFactsText(w, r.Facts)
	}
	return nil
}

// formatFactsText formats facts as aligned columns.
func formatFactsText(w io.Writer, facts []pykythe.Fact) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  KIND\tSUBJECT\tOBJECT")
	for _, f := range facts {
		switch f.Kind {
		case pykythe.FactDefines:
			fmt.Fprintf(tw, "  %s\t%s.%s\t%s\n", f.Kind, f.Scope, f.Name, f.FQN)
		case pykythe.FactReferences:
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Kind, f.Pos, f.FQN)
		case pykythe.FactContains:
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Kind, f.Parent, f.Child)
		case pykythe.FactImports:
			fmt.Fprintf(tw, "  %s\t%s\t%s\n", f.Kind, f.Module, f.Target)
		}
	}
	tw.Flush()
}
